// Package access is the store-scoped authorization kernel. Resolution runs as
// one ordered list: platform admin, then store owner, then staff grant, then
// deny.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

// Kernel answers "may this actor do this at this store". It only reads.
type Kernel struct {
	membership Membership
}

func NewKernel(membership Membership) *Kernel {
	return &Kernel{membership: membership}
}

// Authorize resolves the actor's rights at storeID. The request is satisfied by
// any one of perms; with no perms, store access alone decides.
func (k *Kernel) Authorize(ctx context.Context, actor *Actor, storeID uuid.UUID, perms ...permission.Permission) (Decision, error) {
	d, err := k.resolve(ctx, actor, storeID, perms, true)
	if err != nil {
		return Decision{}, err
	}
	record(d)
	return d, nil
}

// StoreAccess reports whether the actor may act at storeID at all.
func (k *Kernel) StoreAccess(ctx context.Context, actor *Actor, storeID uuid.UUID) (bool, error) {
	d, err := k.resolve(ctx, actor, storeID, nil, false)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// EffectivePermissions lists what the actor holds at storeID.
func (k *Kernel) EffectivePermissions(ctx context.Context, actor *Actor, storeID uuid.UUID) ([]permission.Permission, error) {
	if actor == nil {
		return []permission.Permission{}, nil
	}
	if actor.Role == RolePlatformAdmin {
		return permission.All(), nil
	}
	store, err := k.activeStore(ctx, storeID)
	if err != nil || store == nil {
		return []permission.Permission{}, err
	}
	switch actor.Role {
	case RoleStoreOwner:
		if store.OwnerID == actor.ID {
			return permission.All(), nil
		}
	case RoleStaff:
		grant, err := k.membership.FindActiveGrant(ctx, actor.ID, storeID)
		if err != nil {
			return nil, err
		}
		if grant != nil && grant.IsActive {
			out := make([]permission.Permission, len(grant.Permissions))
			copy(out, grant.Permissions)
			return out, nil
		}
	}
	return []permission.Permission{}, nil
}

// Require is Authorize with a denial converted into an apperror.
func (k *Kernel) Require(ctx context.Context, actor *Actor, storeID uuid.UUID, perms ...permission.Permission) error {
	d, err := k.Authorize(ctx, actor, storeID, perms...)
	if err != nil {
		return apperror.Classify(err, "store membership")
	}
	return DenialError(d)
}

// DenialError converts a deny decision into the matching apperror, nil on allow.
func DenialError(d Decision) error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonNotAuthenticated {
		return apperror.Unauthenticated(d.Detail)
	}
	return apperror.Unauthorized(string(d.Reason), d.Detail)
}

// RequireOwnership is the customer check: the actor must be the resource's customer.
func RequireOwnership(actor *Actor, customerID uuid.UUID) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if actor.Role != RoleCustomer || actor.ID != customerID {
		return apperror.Unauthorized(string(ReasonNoAccess), "resource belongs to another customer")
	}
	return nil
}

// Preauthorize is the entry check for operations customers share with store
// actors. Store actors go through Require. Customers only need the store to be
// open here; their ownership is checked against the loaded entity.
func (k *Kernel) Preauthorize(ctx context.Context, actor *Actor, storeID uuid.UUID, perms ...permission.Permission) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if actor.IsCustomer() {
		return k.RequireOpenStore(ctx, storeID)
	}
	return k.Require(ctx, actor, storeID, perms...)
}

// RequireOpenStore denies with no-access when storeID is missing or inactive.
func (k *Kernel) RequireOpenStore(ctx context.Context, storeID uuid.UUID) error {
	if storeID == uuid.Nil {
		d := deny(ReasonNoStoreID, "store id is required")
		record(d)
		return DenialError(d)
	}
	store, err := k.activeStore(ctx, storeID)
	if err != nil {
		return apperror.Classify(err, "store membership")
	}
	if store == nil {
		d := deny(ReasonNoAccess, "store is not open")
		record(d)
		return DenialError(d)
	}
	return nil
}

func (k *Kernel) resolve(ctx context.Context, actor *Actor, storeID uuid.UUID, perms []permission.Permission, checkPerms bool) (Decision, error) {
	if actor == nil {
		return deny(ReasonNotAuthenticated, "authentication required"), nil
	}
	if actor.Role == RolePlatformAdmin {
		return allow(), nil
	}
	if storeID == uuid.Nil {
		return deny(ReasonNoStoreID, "store id is required"), nil
	}

	store, err := k.activeStore(ctx, storeID)
	if err != nil {
		return Decision{}, err
	}
	if store == nil {
		return deny(ReasonNoAccess, "no access to this store"), nil
	}

	switch actor.Role {
	case RoleStoreOwner:
		if store.OwnerID == actor.ID {
			return allow(), nil
		}
		return deny(ReasonNoAccess, "no access to this store"), nil

	case RoleStaff:
		grant, err := k.membership.FindActiveGrant(ctx, actor.ID, storeID)
		if err != nil {
			return Decision{}, err
		}
		if grant == nil || !grant.IsActive {
			return deny(ReasonNoAccess, "no store access"), nil
		}
		if !checkPerms || len(perms) == 0 || holdsAny(grant.Permissions, perms) {
			return allow(), nil
		}
		return deny(ReasonMissingPermission, fmt.Sprintf("requires one of %v", perms)), nil

	case RoleCustomer:
		return deny(ReasonNoAccess, "role cannot perform store operations"), nil
	}
	return deny(ReasonNoAccess, "unknown role"), nil
}

// activeStore returns nil for missing or inactive stores.
func (k *Kernel) activeStore(ctx context.Context, storeID uuid.UUID) (*StoreState, error) {
	store, err := k.membership.StoreState(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil || !store.IsActive {
		return nil, nil
	}
	return store, nil
}

func holdsAny(held, wanted []permission.Permission) bool {
	for _, w := range wanted {
		for _, h := range held {
			if h == w {
				return true
			}
		}
	}
	return false
}

func record(d Decision) {
	result := "allow"
	if !d.Allowed {
		result = "deny"
	}
	metrics.AuthorizationDecisions.WithLabelValues(result, string(d.Reason)).Inc()
}
