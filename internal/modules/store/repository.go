package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
)

// Repository defines store and staff grant storage. It doubles as the
// kernel's membership lookup.
type Repository interface {
	access.Membership

	CreateStore(ctx context.Context, s *Store) error
	GetStoreByID(ctx context.Context, id uuid.UUID) (*Store, error)
	ListStoresByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Store, error)
	ListStoresByStaff(ctx context.Context, userID uuid.UUID) ([]*Store, error)
	ListAllStores(ctx context.Context) ([]*Store, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// UpsertGrant creates the grant or reactivates an existing one, replacing
	// its permissions.
	UpsertGrant(ctx context.Context, g *StaffGrant) error
	UpdateGrantPermissions(ctx context.Context, storeID, userID uuid.UUID, perms []permission.Permission) (*StaffGrant, error)
	DeactivateGrant(ctx context.Context, storeID, userID uuid.UUID) error
	ListGrants(ctx context.Context, storeID uuid.UUID) ([]*StaffGrant, error)
}
