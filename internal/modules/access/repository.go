package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
)

// StoreState is the slice of a store the kernel needs.
type StoreState struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	IsActive bool
}

// Grant is a staff member's permission set at one store.
type Grant struct {
	StoreID     uuid.UUID
	UserID      uuid.UUID
	Permissions []permission.Permission
	IsActive    bool
}

// Membership looks up store ownership and staff grants. Both methods return
// (nil, nil) when the row does not exist; errors are reserved for data-access
// failures.
type Membership interface {
	StoreState(ctx context.Context, storeID uuid.UUID) (*StoreState, error)
	FindActiveGrant(ctx context.Context, userID, storeID uuid.UUID) (*Grant, error)
}
