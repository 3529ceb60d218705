package servicerequest

import "time"

// CreateRequest is the payload for opening a service request. CustomerID is
// read only when store staff open a request on a customer's behalf.
type CreateRequest struct {
	CustomerID    string     `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	BikeID        string     `json:"bike_id" validate:"required,uuid"`
	Priority      string     `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Description   string     `json:"description" validate:"required,max=2000"`
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
}

// CancelRequest carries an optional reason.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
