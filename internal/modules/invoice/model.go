package invoice

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

// CreateRequest bills a completed service record. Without items the invoice
// is seeded from the request's approved quotation.
type CreateRequest struct {
	ServiceRecordID string           `json:"service_record_id" validate:"required,uuid"`
	Items           []ItemInput      `json:"items,omitempty"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	Notes           string           `json:"notes" validate:"max=2000"`
}

// PaymentRequest records money received. Retries carrying the same
// idempotency key return the original payment.
type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method" validate:"required"`
	Reference      string          `json:"reference" validate:"max=120"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=120"`
}

// PaymentResult is the invoice after a payment together with the payment row.
type PaymentResult struct {
	Invoice *workflow.Invoice `json:"invoice"`
	Payment *workflow.Payment `json:"payment"`
}

func lineItems(in []ItemInput) []workflow.LineItem {
	out := make([]workflow.LineItem, len(in))
	for i, it := range in {
		out[i] = workflow.LineItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}
