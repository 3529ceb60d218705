package bike

import (
	"time"

	"github.com/google/uuid"
)

// Bike belongs to exactly one customer.
type Bike struct {
	ID           uuid.UUID `json:"id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model,omitempty"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Color        string    `json:"color,omitempty"`
	Year         *int      `json:"year,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterBikeRequest is the payload for adding a bike to the caller's garage.
type RegisterBikeRequest struct {
	Brand        string `json:"brand" validate:"required,max=100"`
	Model        string `json:"model" validate:"max=100"`
	SerialNumber string `json:"serial_number" validate:"max=100"`
	Color        string `json:"color" validate:"max=50"`
	Year         *int   `json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
}
