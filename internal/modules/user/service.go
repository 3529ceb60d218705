package user

import (
	"context"

	"github.com/google/uuid"
)

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Phone     string `json:"phone" validate:"omitempty,e164"`
	Role      string `json:"role" validate:"omitempty,oneof=customer store_owner staff"`
}

// Service defines the interface for user-related business logic.
type Service interface {
	// RegisterUser creates an account with a hashed password.
	RegisterUser(ctx context.Context, req RegisterRequest) (*User, error)
	// GetUser looks up an account by id.
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	// ContactPhone returns the phone number notifications are sent to.
	ContactPhone(ctx context.Context, id uuid.UUID) (string, error)
}
