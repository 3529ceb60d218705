package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/user"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

// Service defines store and staff management.
type Service interface {
	// CreateStore opens a store for an owner.
	CreateStore(ctx context.Context, actor *access.Actor, req CreateStoreRequest) (*Store, error)
	// GetStore returns a store the actor can access.
	GetStore(ctx context.Context, actor *access.Actor, id uuid.UUID) (*Store, error)
	// ListStores returns every store for admins, owned stores for owners and
	// stores holding an active grant for staff.
	ListStores(ctx context.Context, actor *access.Actor) ([]*Store, error)
	// SetActive opens or closes a store.
	SetActive(ctx context.Context, actor *access.Actor, id uuid.UUID, active bool) (*Store, error)

	// AddStaff grants a staff account access to the store.
	AddStaff(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req AddStaffRequest) (*StaffGrant, error)
	// UpdateStaffPermissions replaces the permissions of an active grant.
	UpdateStaffPermissions(ctx context.Context, actor *access.Actor, storeID, userID uuid.UUID, req UpdatePermissionsRequest) (*StaffGrant, error)
	// RemoveStaff deactivates a grant.
	RemoveStaff(ctx context.Context, actor *access.Actor, storeID, userID uuid.UUID) error
	// ListStaff returns the store's grants.
	ListStaff(ctx context.Context, actor *access.Actor, storeID uuid.UUID) ([]*StaffGrant, error)

	// MyPermissions is the effective permission set of the caller at storeID.
	MyPermissions(ctx context.Context, actor *access.Actor, storeID uuid.UUID) ([]permission.Permission, error)
}

// UserLookup resolves accounts referenced by grants and stores.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type service struct {
	repo   Repository
	users  UserLookup
	kernel *access.Kernel
}

// NewService creates a new store service.
func NewService(repo Repository, users UserLookup, kernel *access.Kernel) Service {
	return &service{repo: repo, users: users, kernel: kernel}
}

func (s *service) CreateStore(ctx context.Context, actor *access.Actor, req CreateStoreRequest) (*Store, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}

	var ownerID uuid.UUID
	switch actor.Role {
	case access.RoleStoreOwner:
		ownerID = actor.ID
	case access.RolePlatformAdmin:
		if req.OwnerID == "" {
			return nil, apperror.Field("owner_id", "required when an admin creates a store")
		}
		id, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return nil, apperror.Field("owner_id", "not a valid id")
		}
		owner, err := s.users.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if owner.Role != access.RoleStoreOwner {
			return nil, apperror.Field("owner_id", "user is not a store owner")
		}
		ownerID = id
	default:
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "only store owners can create stores")
	}

	st := &Store{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Name:     req.Name,
		Address:  req.Address,
		City:     req.City,
		Phone:    req.Phone,
		Email:    req.Email,
		IsActive: true,
	}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) GetStore(ctx context.Context, actor *access.Actor, id uuid.UUID) (*Store, error) {
	if err := s.kernel.Require(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.GetStoreByID(ctx, id)
}

func (s *service) ListStores(ctx context.Context, actor *access.Actor) ([]*Store, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	switch actor.Role {
	case access.RolePlatformAdmin:
		return s.repo.ListAllStores(ctx)
	case access.RoleStoreOwner:
		return s.repo.ListStoresByOwner(ctx, actor.ID)
	case access.RoleStaff:
		return s.repo.ListStoresByStaff(ctx, actor.ID)
	}
	return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "role cannot perform store operations")
}

// SetActive deactivates through the kernel, so an owner may close their own
// store. Reactivation is admin-only since the kernel denies owners of inactive
// stores.
func (s *service) SetActive(ctx context.Context, actor *access.Actor, id uuid.UUID, active bool) (*Store, error) {
	if active {
		if !actor.IsAdmin() {
			if actor == nil {
				return nil, apperror.Unauthenticated("authentication required")
			}
			return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "only platform admins can reactivate stores")
		}
	} else if err := s.kernel.Require(ctx, actor, id, permission.ManageStore); err != nil {
		return nil, err
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.repo.GetStoreByID(ctx, id)
}

// ── Staff ─────────────────────────────────────────────────────────────────────

func (s *service) AddStaff(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req AddStaffRequest) (*StaffGrant, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.CreateStaff); err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, apperror.Field("user_id", "not a valid id")
	}
	if userID == actor.ID {
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "cannot change your own grant")
	}
	member, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Field("user_id", "user does not exist")
		}
		return nil, err
	}
	if member.Role != access.RoleStaff {
		return nil, apperror.Field("user_id", "user is not a staff account")
	}

	perms, err := resolvePermissions(req.Bundle, req.Permissions)
	if err != nil {
		return nil, err
	}
	if err := s.checkDelegation(ctx, actor, storeID, perms); err != nil {
		return nil, err
	}

	g := &StaffGrant{
		ID:          uuid.New(),
		StoreID:     storeID,
		UserID:      userID,
		Permissions: perms,
	}
	if err := s.repo.UpsertGrant(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *service) UpdateStaffPermissions(ctx context.Context, actor *access.Actor, storeID, userID uuid.UUID, req UpdatePermissionsRequest) (*StaffGrant, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.UpdateStaff); err != nil {
		return nil, err
	}
	if userID == actor.ID {
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "cannot change your own grant")
	}
	if req.Permissions == nil {
		return nil, apperror.Field("permissions", "is required")
	}
	perms, err := permission.Parse(req.Permissions)
	if err != nil {
		return nil, err
	}
	if err := s.checkDelegation(ctx, actor, storeID, perms); err != nil {
		return nil, err
	}
	return s.repo.UpdateGrantPermissions(ctx, storeID, userID, perms)
}

func (s *service) RemoveStaff(ctx context.Context, actor *access.Actor, storeID, userID uuid.UUID) error {
	if err := s.kernel.Require(ctx, actor, storeID, permission.DeleteStaff); err != nil {
		return err
	}
	return s.repo.DeactivateGrant(ctx, storeID, userID)
}

func (s *service) ListStaff(ctx context.Context, actor *access.Actor, storeID uuid.UUID) ([]*StaffGrant, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.ViewStaff); err != nil {
		return nil, err
	}
	return s.repo.ListGrants(ctx, storeID)
}

func (s *service) MyPermissions(ctx context.Context, actor *access.Actor, storeID uuid.UUID) ([]permission.Permission, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	perms, err := s.kernel.EffectivePermissions(ctx, actor, storeID)
	if err != nil {
		return nil, apperror.Classify(err, "store membership")
	}
	return perms, nil
}

// checkDelegation keeps staff from handing out permissions they do not hold
// themselves. Owners and admins may grant anything.
func (s *service) checkDelegation(ctx context.Context, actor *access.Actor, storeID uuid.UUID, perms []permission.Permission) error {
	if actor.Role != access.RoleStaff {
		return nil
	}
	held, err := s.kernel.EffectivePermissions(ctx, actor, storeID)
	if err != nil {
		return apperror.Classify(err, "store membership")
	}
	have := make(map[permission.Permission]bool, len(held))
	for _, p := range held {
		have[p] = true
	}
	for _, p := range perms {
		if !have[p] {
			return apperror.Unauthorized(string(access.ReasonMissingPermission), "cannot grant "+string(p)+" without holding it")
		}
	}
	return nil
}

// resolvePermissions picks the explicit list when given, else the named bundle,
// else the default staff bundle.
func resolvePermissions(bundle string, raw []string) ([]permission.Permission, error) {
	if len(raw) > 0 {
		if bundle != "" {
			return nil, apperror.Validation("give either bundle or permissions, not both")
		}
		return permission.Parse(raw)
	}
	if bundle == "" {
		return permission.DefaultStaff(), nil
	}
	perms, ok := permission.Bundle(bundle)
	if !ok {
		return nil, apperror.Field("bundle", "unknown bundle "+bundle)
	}
	return perms, nil
}
