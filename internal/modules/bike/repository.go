package bike

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines bike storage.
type Repository interface {
	CreateBike(ctx context.Context, b *Bike) error
	GetBikeByID(ctx context.Context, id uuid.UUID) (*Bike, error)
	ListBikesByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Bike, error)
}
