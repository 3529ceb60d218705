package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceRequest is a customer's ask for work on one bike at one store.
type ServiceRequest struct {
	ID            uuid.UUID     `json:"id"`
	StoreID       uuid.UUID     `json:"store_id"`
	CustomerID    uuid.UUID     `json:"customer_id"`
	BikeID        uuid.UUID     `json:"bike_id"`
	Status        RequestStatus `json:"status"`
	Priority      Priority      `json:"priority"`
	Description   string        `json:"description"`
	PreferredDate *time.Time    `json:"preferred_date,omitempty"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// LineItem is one priced line on a quotation or invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Quotation prices the work for a service request.
type Quotation struct {
	ID               uuid.UUID       `json:"id"`
	ServiceRequestID uuid.UUID       `json:"service_request_id"`
	StoreID          uuid.UUID       `json:"store_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	Number           string          `json:"quotation_number"`
	Status           QuotationStatus `json:"status"`
	Items            []LineItem      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Total            decimal.Decimal `json:"total"`
	ValidUntil       time.Time       `json:"valid_until"`
	Notes            string          `json:"notes,omitempty"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	RejectedAt       *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ServiceRecord tracks the work performed for an approved request.
type ServiceRecord struct {
	ID               uuid.UUID    `json:"id"`
	ServiceRequestID uuid.UUID    `json:"service_request_id"`
	StoreID          uuid.UUID    `json:"store_id"`
	CustomerID       uuid.UUID    `json:"customer_id"`
	TechnicianID     *uuid.UUID   `json:"technician_id,omitempty"`
	Status           RecordStatus `json:"status"`
	WorkPerformed    string       `json:"work_performed,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Invoice bills a completed service record. PaymentStatus is always derived.
type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	ServiceRecordID uuid.UUID       `json:"service_record_id"`
	StoreID         uuid.UUID       `json:"store_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	QuotationID     *uuid.UUID      `json:"quotation_id,omitempty"`
	Number          string          `json:"invoice_number"`
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	DueDate         time.Time       `json:"due_date"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       uuid.UUID       `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Balance is what remains to be paid.
func (inv *Invoice) Balance() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount)
}

// PaymentMethod is how a payment was tendered.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodMTNMoMo      PaymentMethod = "MTN_MOMO"
	MethodAirtelMoney  PaymentMethod = "AIRTEL_MONEY"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodMTNMoMo, MethodAirtelMoney, MethodBankTransfer:
		return true
	}
	return false
}

// Payment is an append-only record of money received against an invoice.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Reference      string          `json:"reference,omitempty"`
	IdempotencyKey string          `json:"-"`
	RecordedBy     uuid.UUID       `json:"recorded_by"`
	PaidAt         time.Time       `json:"paid_at"`
	CreatedAt      time.Time       `json:"created_at"`
}
