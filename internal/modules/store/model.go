package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
)

// Store is a service shop owned by exactly one store owner.
type Store struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffGrant links a staff user to a store with an explicit permission set.
// Grants are never deleted; removal clears IsActive.
type StaffGrant struct {
	ID          uuid.UUID               `json:"id"`
	StoreID     uuid.UUID               `json:"store_id"`
	UserID      uuid.UUID               `json:"user_id"`
	Permissions []permission.Permission `json:"permissions"`
	IsActive    bool                    `json:"is_active"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// CreateStoreRequest holds data for creating a store. OwnerID is only read
// when a platform admin creates a store on an owner's behalf.
type CreateStoreRequest struct {
	OwnerID string `json:"owner_id,omitempty" validate:"omitempty,uuid"`
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
	City    string `json:"city" validate:"max=100"`
	Phone   string `json:"phone" validate:"omitempty,e164"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// AddStaffRequest grants a staff user access to a store. Either Bundle or
// Permissions may be given; with neither, the "staff" bundle applies.
type AddStaffRequest struct {
	UserID      string   `json:"user_id" validate:"required,uuid"`
	Bundle      string   `json:"bundle,omitempty" validate:"omitempty,oneof=staff senior_staff"`
	Permissions []string `json:"permissions,omitempty"`
}

// UpdatePermissionsRequest replaces a grant's permission set.
type UpdatePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetActiveRequest toggles a store's active flag.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}
