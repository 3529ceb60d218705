package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/access/accesstest"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

type fixture struct {
	membership *accesstest.Membership
	kernel     *access.Kernel
	storeX     uuid.UUID
	storeY     uuid.UUID
	ownerX     *access.Actor
	ownerY     *access.Actor
	staff      *access.Actor
	customer   *access.Actor
	admin      *access.Actor
}

func newFixture() *fixture {
	f := &fixture{
		membership: accesstest.NewMembership(),
		storeX:     uuid.New(),
		storeY:     uuid.New(),
		ownerX:     &access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner},
		ownerY:     &access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner},
		staff:      &access.Actor{ID: uuid.New(), Role: access.RoleStaff},
		customer:   &access.Actor{ID: uuid.New(), Role: access.RoleCustomer},
		admin:      &access.Actor{ID: uuid.New(), Role: access.RolePlatformAdmin},
	}
	f.membership.AddStore(f.storeX, f.ownerX.ID)
	f.membership.AddStore(f.storeY, f.ownerY.ID)
	f.kernel = access.NewKernel(f.membership)
	return f
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setup      func(f *fixture) (*access.Actor, uuid.UUID)
		perms      []permission.Permission
		wantAllow  bool
		wantReason access.ReasonCode
	}{
		{
			name:      "admin passes everywhere",
			setup:     func(f *fixture) (*access.Actor, uuid.UUID) { return f.admin, uuid.New() },
			perms:     []permission.Permission{permission.DeleteInvoices},
			wantAllow: true,
		},
		{
			name:      "owner holds every permission at own store",
			setup:     func(f *fixture) (*access.Actor, uuid.UUID) { return f.ownerX, f.storeX },
			perms:     []permission.Permission{permission.ManageStore},
			wantAllow: true,
		},
		{
			name:       "owner of another store has no access",
			setup:      func(f *fixture) (*access.Actor, uuid.UUID) { return f.ownerX, f.storeY },
			perms:      []permission.Permission{permission.ViewServices},
			wantReason: access.ReasonNoAccess,
		},
		{
			name: "staff without the permission is refused",
			setup: func(f *fixture) (*access.Actor, uuid.UUID) {
				f.membership.Grant(f.staff.ID, f.storeX, permission.ViewServices)
				return f.staff, f.storeX
			},
			perms:      []permission.Permission{permission.UpdateServices},
			wantReason: access.ReasonMissingPermission,
		},
		{
			name: "staff with any of the requested permissions passes",
			setup: func(f *fixture) (*access.Actor, uuid.UUID) {
				f.membership.Grant(f.staff.ID, f.storeX, permission.DeleteServices)
				return f.staff, f.storeX
			},
			perms:     []permission.Permission{permission.UpdateServices, permission.DeleteServices},
			wantAllow: true,
		},
		{
			name:       "staff without a grant has no access",
			setup:      func(f *fixture) (*access.Actor, uuid.UUID) { return f.staff, f.storeX },
			perms:      []permission.Permission{permission.ViewServices},
			wantReason: access.ReasonNoAccess,
		},
		{
			name: "staff grant at another store does not carry over",
			setup: func(f *fixture) (*access.Actor, uuid.UUID) {
				f.membership.Grant(f.staff.ID, f.storeY, permission.ViewServices)
				return f.staff, f.storeX
			},
			perms:      []permission.Permission{permission.ViewServices},
			wantReason: access.ReasonNoAccess,
		},
		{
			name:       "customer cannot perform store operations",
			setup:      func(f *fixture) (*access.Actor, uuid.UUID) { return f.customer, f.storeX },
			perms:      []permission.Permission{permission.ViewServices},
			wantReason: access.ReasonNoAccess,
		},
		{
			name:       "missing actor",
			setup:      func(f *fixture) (*access.Actor, uuid.UUID) { return nil, f.storeX },
			wantReason: access.ReasonNotAuthenticated,
		},
		{
			name:       "missing store id",
			setup:      func(f *fixture) (*access.Actor, uuid.UUID) { return f.ownerX, uuid.Nil },
			wantReason: access.ReasonNoStoreID,
		},
		{
			name: "inactive store refuses its owner",
			setup: func(f *fixture) (*access.Actor, uuid.UUID) {
				f.membership.SetStoreActive(f.storeX, false)
				return f.ownerX, f.storeX
			},
			wantReason: access.ReasonNoAccess,
		},
		{
			name:       "unknown store",
			setup:      func(f *fixture) (*access.Actor, uuid.UUID) { return f.ownerX, uuid.New() },
			wantReason: access.ReasonNoAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			actor, storeID := tt.setup(f)
			d, err := f.kernel.Authorize(ctx, actor, storeID, tt.perms...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllow, d.Allowed)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestRequire_DenialCarriesReason(t *testing.T) {
	f := newFixture()
	f.membership.Grant(f.staff.ID, f.storeX, permission.ViewServices)

	err := f.kernel.Require(context.Background(), f.staff, f.storeX, permission.UpdateServices)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindUnauthorized, appErr.Kind)
	assert.Equal(t, string(access.ReasonMissingPermission), appErr.Reason)

	err = f.kernel.Require(context.Background(), f.ownerX, f.storeY, permission.ViewServices)
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, string(access.ReasonNoAccess), appErr.Reason)

	err = f.kernel.Require(context.Background(), nil, f.storeX)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestRequire_LookupFailure(t *testing.T) {
	f := newFixture()
	f.membership.Err = context.DeadlineExceeded
	err := f.kernel.Require(context.Background(), f.ownerX, f.storeX, permission.ViewServices)
	assert.ErrorIs(t, err, apperror.ErrTransient)

	f.membership.Err = errors.New("disk on fire")
	err = f.kernel.Require(context.Background(), f.ownerX, f.storeX, permission.ViewServices)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestStoreAccess_IgnoresPermissions(t *testing.T) {
	f := newFixture()
	f.membership.Grant(f.staff.ID, f.storeX)

	ok, err := f.kernel.StoreAccess(context.Background(), f.staff, f.storeX)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.kernel.StoreAccess(context.Background(), f.staff, f.storeY)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEffectivePermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.membership.Grant(f.staff.ID, f.storeX, permission.ViewServices, permission.CreateQuotations)

	perms, err := f.kernel.EffectivePermissions(ctx, f.staff, f.storeX)
	require.NoError(t, err)
	assert.Equal(t, []permission.Permission{permission.ViewServices, permission.CreateQuotations}, perms)

	perms, err = f.kernel.EffectivePermissions(ctx, f.ownerX, f.storeX)
	require.NoError(t, err)
	assert.Equal(t, permission.All(), perms)

	perms, err = f.kernel.EffectivePermissions(ctx, f.ownerX, f.storeY)
	require.NoError(t, err)
	assert.Empty(t, perms)

	perms, err = f.kernel.EffectivePermissions(ctx, f.customer, f.storeX)
	require.NoError(t, err)
	assert.Empty(t, perms)

	perms, err = f.kernel.EffectivePermissions(ctx, f.admin, uuid.New())
	require.NoError(t, err)
	assert.Len(t, perms, len(permission.All()))
}

func TestPreauthorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	assert.NoError(t, f.kernel.Preauthorize(ctx, f.customer, f.storeX, permission.ViewServices))
	assert.NoError(t, f.kernel.Preauthorize(ctx, f.ownerX, f.storeX, permission.ViewServices))
	assert.ErrorIs(t, f.kernel.Preauthorize(ctx, nil, f.storeX), apperror.ErrUnauthenticated)
	assert.ErrorIs(t, f.kernel.Preauthorize(ctx, f.staff, f.storeX, permission.ViewServices), apperror.ErrUnauthorized)

	err := f.kernel.Preauthorize(ctx, f.customer, uuid.New(), permission.ViewServices)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, string(access.ReasonNoAccess), appErr.Reason)

	err = f.kernel.Preauthorize(ctx, f.customer, uuid.Nil)
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, string(access.ReasonNoStoreID), appErr.Reason)
}

func TestPreauthorize_InactiveStoreRefusesCustomers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.membership.SetStoreActive(f.storeX, false)

	err := f.kernel.Preauthorize(ctx, f.customer, f.storeX)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindUnauthorized, appErr.Kind)
	assert.Equal(t, string(access.ReasonNoAccess), appErr.Reason)

	assert.NoError(t, f.kernel.Preauthorize(ctx, f.admin, f.storeX))

	f.membership.Err = context.DeadlineExceeded
	f.membership.SetStoreActive(f.storeX, true)
	assert.ErrorIs(t, f.kernel.RequireOpenStore(ctx, f.storeX), apperror.ErrTransient)
}

func TestAuthorize_Idempotent(t *testing.T) {
	catalog := permission.All()
	roles := []access.Role{access.RolePlatformAdmin, access.RoleStoreOwner, access.RoleStaff, access.RoleCustomer}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs give the same decision", prop.ForAll(
		func(roleIdx int, granted []int, wanted []int, ownsStore bool) bool {
			f := newFixture()
			actor := &access.Actor{ID: uuid.New(), Role: roles[roleIdx]}
			if ownsStore {
				f.membership.AddStore(f.storeX, actor.ID)
			}
			var held []permission.Permission
			for _, i := range granted {
				held = append(held, catalog[i])
			}
			if len(held) > 0 {
				f.membership.Grant(actor.ID, f.storeX, held...)
			}
			var perms []permission.Permission
			for _, i := range wanted {
				perms = append(perms, catalog[i])
			}

			first, err1 := f.kernel.Authorize(context.Background(), actor, f.storeX, perms...)
			second, err2 := f.kernel.Authorize(context.Background(), actor, f.storeX, perms...)
			return err1 == nil && err2 == nil && first == second
		},
		gen.IntRange(0, len(roles)-1),
		gen.SliceOf(gen.IntRange(0, len(catalog)-1)),
		gen.SliceOf(gen.IntRange(0, len(catalog)-1)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
