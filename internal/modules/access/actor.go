package access

import (
	"context"

	"github.com/google/uuid"
)

// Role is fixed when an account is created.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleStoreOwner    Role = "store_owner"
	RoleStaff         Role = "staff"
	RoleCustomer      Role = "customer"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePlatformAdmin, RoleStoreOwner, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (a *Actor) IsCustomer() bool { return a != nil && a.Role == RoleCustomer }

func (a *Actor) IsAdmin() bool { return a != nil && a.Role == RolePlatformAdmin }

type contextKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor stored by the authentication middleware, or nil.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}
