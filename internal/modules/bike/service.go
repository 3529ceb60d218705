package bike

import (
	"context"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

// Service manages customers' bikes.
type Service interface {
	// RegisterBike adds a bike to the customer's garage.
	RegisterBike(ctx context.Context, actor *access.Actor, req RegisterBikeRequest) (*Bike, error)
	// GetBike returns a bike owned by the actor. Admins see any bike.
	GetBike(ctx context.Context, actor *access.Actor, id uuid.UUID) (*Bike, error)
	// ListMyBikes returns the customer's bikes.
	ListMyBikes(ctx context.Context, actor *access.Actor) ([]*Bike, error)
}

type service struct{ repo Repository }

func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) RegisterBike(ctx context.Context, actor *access.Actor, req RegisterBikeRequest) (*Bike, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	b := &Bike{
		ID:           uuid.New(),
		CustomerID:   actor.ID,
		Brand:        req.Brand,
		Model:        req.Model,
		SerialNumber: req.SerialNumber,
		Color:        req.Color,
		Year:         req.Year,
	}
	if err := s.repo.CreateBike(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBike returns the bike to its owner or to a platform admin.
func (s *service) GetBike(ctx context.Context, actor *access.Actor, id uuid.UUID) (*Bike, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	b, err := s.repo.GetBikeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return b, nil
	}
	if err := access.RequireOwnership(actor, b.CustomerID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) ListMyBikes(ctx context.Context, actor *access.Actor) ([]*Bike, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	return s.repo.ListBikesByCustomer(ctx, actor.ID)
}

func requireCustomer(actor *access.Actor) error {
	if actor == nil {
		return apperror.Unauthenticated("authentication required")
	}
	if !actor.IsCustomer() {
		return apperror.Unauthorized(string(access.ReasonNoAccess), "only customers own bikes")
	}
	return nil
}
