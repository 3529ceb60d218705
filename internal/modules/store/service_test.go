package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/store"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/user"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

type grantKey struct{ store, user uuid.UUID }

// memRepo keeps stores and grants in maps and serves the kernel as well.
type memRepo struct {
	mu     sync.Mutex
	stores map[uuid.UUID]*store.Store
	grants map[grantKey]*store.StaffGrant
}

func newMemRepo() *memRepo {
	return &memRepo{stores: map[uuid.UUID]*store.Store{}, grants: map[grantKey]*store.StaffGrant{}}
}

func (m *memRepo) StoreState(_ context.Context, id uuid.UUID) (*access.StoreState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return nil, nil
	}
	return &access.StoreState{ID: s.ID, OwnerID: s.OwnerID, IsActive: s.IsActive}, nil
}

func (m *memRepo) FindActiveGrant(_ context.Context, userID, storeID uuid.UUID) (*access.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[grantKey{storeID, userID}]
	if !ok || !g.IsActive {
		return nil, nil
	}
	return &access.Grant{StoreID: g.StoreID, UserID: g.UserID, Permissions: g.Permissions, IsActive: true}, nil
}

func (m *memRepo) CreateStore(_ context.Context, s *store.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.stores[s.ID] = &c
	return nil
}

func (m *memRepo) GetStoreByID(_ context.Context, id uuid.UUID) (*store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return nil, apperror.NotFound("store")
	}
	c := *s
	return &c, nil
}

func (m *memRepo) ListStoresByOwner(_ context.Context, ownerID uuid.UUID) ([]*store.Store, error) {
	return m.filter(func(s *store.Store) bool { return s.OwnerID == ownerID }), nil
}

func (m *memRepo) ListStoresByStaff(_ context.Context, userID uuid.UUID) ([]*store.Store, error) {
	return m.filter(func(s *store.Store) bool {
		g, ok := m.grants[grantKey{s.ID, userID}]
		return ok && g.IsActive
	}), nil
}

func (m *memRepo) ListAllStores(context.Context) ([]*store.Store, error) {
	return m.filter(func(*store.Store) bool { return true }), nil
}

func (m *memRepo) filter(keep func(*store.Store) bool) []*store.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Store
	for _, s := range m.stores {
		if keep(s) {
			c := *s
			out = append(out, &c)
		}
	}
	return out
}

func (m *memRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return apperror.NotFound("store")
	}
	s.IsActive = active
	return nil
}

func (m *memRepo) UpsertGrant(_ context.Context, g *store.StaffGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey{g.StoreID, g.UserID}
	if existing, ok := m.grants[key]; ok {
		g.ID = existing.ID
	}
	g.IsActive = true
	c := *g
	m.grants[key] = &c
	return nil
}

func (m *memRepo) UpdateGrantPermissions(_ context.Context, storeID, userID uuid.UUID, perms []permission.Permission) (*store.StaffGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[grantKey{storeID, userID}]
	if !ok || !g.IsActive {
		return nil, apperror.NotFound("staff grant")
	}
	g.Permissions = perms
	c := *g
	return &c, nil
}

func (m *memRepo) DeactivateGrant(_ context.Context, storeID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[grantKey{storeID, userID}]
	if !ok || !g.IsActive {
		return apperror.NotFound("staff grant")
	}
	g.IsActive = false
	return nil
}

func (m *memRepo) ListGrants(_ context.Context, storeID uuid.UUID) ([]*store.StaffGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.StaffGrant
	for k, g := range m.grants {
		if k.store == storeID {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

type users map[uuid.UUID]*user.User

func (u users) GetUser(_ context.Context, id uuid.UUID) (*user.User, error) {
	if usr, ok := u[id]; ok {
		return usr, nil
	}
	return nil, apperror.NotFound("user")
}

type env struct {
	repo     *memRepo
	svc      store.Service
	admin    *access.Actor
	owner    *access.Actor
	staff    *access.Actor
	peer     *access.Actor
	customer *access.Actor
}

func newEnv() *env {
	e := &env{
		repo:     newMemRepo(),
		admin:    &access.Actor{ID: uuid.New(), Role: access.RolePlatformAdmin},
		owner:    &access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner},
		staff:    &access.Actor{ID: uuid.New(), Role: access.RoleStaff},
		peer:     &access.Actor{ID: uuid.New(), Role: access.RoleStaff},
		customer: &access.Actor{ID: uuid.New(), Role: access.RoleCustomer},
	}
	accounts := users{}
	for _, a := range []*access.Actor{e.admin, e.owner, e.staff, e.peer, e.customer} {
		accounts[a.ID] = &user.User{ID: a.ID, Role: a.Role}
	}
	e.svc = store.NewService(e.repo, accounts, access.NewKernel(e.repo))
	return e
}

func (e *env) createStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := e.svc.CreateStore(context.Background(), e.owner, store.CreateStoreRequest{Name: "Spoke & Chain"})
	require.NoError(t, err)
	return st
}

func TestCreateStore(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	st := e.createStore(t)
	assert.Equal(t, e.owner.ID, st.OwnerID)
	assert.True(t, st.IsActive)

	_, err := e.svc.CreateStore(ctx, e.staff, store.CreateStoreRequest{Name: "x"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = e.svc.CreateStore(ctx, nil, store.CreateStoreRequest{Name: "x"})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, err = e.svc.CreateStore(ctx, e.admin, store.CreateStoreRequest{Name: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.svc.CreateStore(ctx, e.admin, store.CreateStoreRequest{Name: "x", OwnerID: e.customer.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	onBehalf, err := e.svc.CreateStore(ctx, e.admin, store.CreateStoreRequest{Name: "x", OwnerID: e.owner.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, e.owner.ID, onBehalf.OwnerID)
}

func TestStaffGrantLifecycle(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	st := e.createStore(t)

	g, err := e.svc.AddStaff(ctx, e.owner, st.ID, store.AddStaffRequest{UserID: e.staff.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, permission.DefaultStaff(), g.Permissions)

	perms, err := e.svc.MyPermissions(ctx, e.staff, st.ID)
	require.NoError(t, err)
	assert.Equal(t, permission.DefaultStaff(), perms)

	// Staff cannot manage other staff with the default bundle.
	_, err = e.svc.ListStaff(ctx, e.staff, st.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = e.svc.UpdateStaffPermissions(ctx, e.owner, st.ID, e.staff.ID,
		store.UpdatePermissionsRequest{Permissions: []string{"VIEW_STAFF"}})
	require.NoError(t, err)
	grants, err := e.svc.ListStaff(ctx, e.staff, st.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	require.NoError(t, e.svc.RemoveStaff(ctx, e.owner, st.ID, e.staff.ID))
	perms, err = e.svc.MyPermissions(ctx, e.staff, st.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
	_, err = e.svc.GetStore(ctx, e.staff, st.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	// Re-adding reactivates the same grant with the new permissions.
	again, err := e.svc.AddStaff(ctx, e.owner, st.ID, store.AddStaffRequest{UserID: e.staff.ID.String(), Bundle: "senior_staff"})
	require.NoError(t, err)
	assert.Equal(t, g.ID, again.ID)
	perms, err = e.svc.MyPermissions(ctx, e.staff, st.ID)
	require.NoError(t, err)
	assert.Equal(t, permission.DefaultSeniorStaff(), perms)
}

func TestAddStaff_Rejects(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	st := e.createStore(t)

	tests := []struct {
		name string
		req  store.AddStaffRequest
	}{
		{"unknown user", store.AddStaffRequest{UserID: uuid.NewString()}},
		{"customer account", store.AddStaffRequest{UserID: e.customer.ID.String()}},
		{"unknown permission", store.AddStaffRequest{UserID: e.staff.ID.String(), Permissions: []string{"FLY"}}},
		{"bundle and list", store.AddStaffRequest{UserID: e.staff.ID.String(), Bundle: "staff", Permissions: []string{"VIEW_SERVICES"}}},
		{"unknown bundle", store.AddStaffRequest{UserID: e.staff.ID.String(), Bundle: "manager"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.AddStaff(ctx, e.owner, st.ID, tt.req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	other := &access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner}
	_, err := e.svc.AddStaff(ctx, other, st.ID, store.AddStaffRequest{UserID: e.staff.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestSetActive(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	st := e.createStore(t)

	closed, err := e.svc.SetActive(ctx, e.owner, st.ID, false)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)

	// An inactive store denies its own owner.
	_, err = e.svc.GetStore(ctx, e.owner, st.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = e.svc.SetActive(ctx, e.owner, st.ID, true)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	reopened, err := e.svc.SetActive(ctx, e.admin, st.ID, true)
	require.NoError(t, err)
	assert.True(t, reopened.IsActive)
}

func TestListStores(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	st := e.createStore(t)

	mine, err := e.svc.ListStores(ctx, e.owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, st.ID, mine[0].ID)

	none, err := e.svc.ListStores(ctx, e.staff)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.svc.AddStaff(ctx, e.owner, st.ID, store.AddStaffRequest{UserID: e.staff.ID.String()})
	require.NoError(t, err)
	joined, err := e.svc.ListStores(ctx, e.staff)
	require.NoError(t, err)
	assert.Len(t, joined, 1)

	_, err = e.svc.ListStores(ctx, e.customer)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestStaffCannotEscalate(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	st := e.createStore(t)

	_, err := e.svc.AddStaff(ctx, e.owner, st.ID, store.AddStaffRequest{
		UserID: e.staff.ID.String(), Permissions: []string{"VIEW_STAFF", "CREATE_STAFF", "UPDATE_STAFF", "VIEW_SERVICES"},
	})
	require.NoError(t, err)
	_, err = e.svc.AddStaff(ctx, e.owner, st.ID, store.AddStaffRequest{UserID: e.peer.ID.String(), Permissions: []string{"VIEW_SERVICES"}})
	require.NoError(t, err)

	_, err = e.svc.UpdateStaffPermissions(ctx, e.staff, st.ID, e.staff.ID,
		store.UpdatePermissionsRequest{Permissions: []string{"MANAGE_STORE"}})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = e.svc.UpdateStaffPermissions(ctx, e.staff, st.ID, e.peer.ID,
		store.UpdatePermissionsRequest{Permissions: []string{"MANAGE_STORE"}})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = e.svc.AddStaff(ctx, e.staff, st.ID, store.AddStaffRequest{UserID: e.staff.ID.String(), Bundle: "senior_staff"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = e.svc.AddStaff(ctx, e.staff, st.ID, store.AddStaffRequest{UserID: e.peer.ID.String(), Bundle: "senior_staff"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	mine, err := e.svc.MyPermissions(ctx, e.staff, st.ID)
	require.NoError(t, err)
	assert.NotContains(t, mine, permission.ManageStore)
	theirs, err := e.svc.MyPermissions(ctx, e.peer, st.ID)
	require.NoError(t, err)
	assert.Equal(t, []permission.Permission{permission.ViewServices}, theirs)

	// Handing on a subset of what the actor holds is allowed.
	g, err := e.svc.UpdateStaffPermissions(ctx, e.staff, st.ID, e.peer.ID,
		store.UpdatePermissionsRequest{Permissions: []string{"VIEW_STAFF", "VIEW_SERVICES"}})
	require.NoError(t, err)
	assert.Equal(t, []permission.Permission{permission.ViewStaff, permission.ViewServices}, g.Permissions)

	// Owners are not limited to what staff hold.
	_, err = e.svc.UpdateStaffPermissions(ctx, e.owner, st.ID, e.peer.ID,
		store.UpdatePermissionsRequest{Permissions: []string{"MANAGE_STORE"}})
	assert.NoError(t, err)
}
