package quotation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
)

// ItemInput is a client-supplied line; line totals are always recomputed.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateRequest is the payload for drafting a quotation.
type CreateRequest struct {
	ServiceRequestID string          `json:"service_request_id" validate:"required,uuid"`
	Items            []ItemInput     `json:"items"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	ValidUntil       *time.Time      `json:"valid_until,omitempty"`
	Notes            string          `json:"notes" validate:"max=2000"`
}

// RejectRequest carries an optional reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func lineItems(in []ItemInput) []workflow.LineItem {
	out := make([]workflow.LineItem, len(in))
	for i, it := range in {
		out[i] = workflow.LineItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}
