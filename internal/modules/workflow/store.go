package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows list queries. Zero-valued fields match everything.
type Filter struct {
	StoreID          uuid.UUID
	CustomerID       uuid.UUID
	ServiceRequestID uuid.UUID
	Status           string
	// ExcludeStatus drops rows in this status before paging.
	ExcludeStatus string
	Limit            int
	Offset           int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// PageLimit clamps Limit to (0, 200], defaulting to 50.
func (f Filter) PageLimit() int {
	switch {
	case f.Limit <= 0:
		return defaultLimit
	case f.Limit > maxLimit:
		return maxLimit
	}
	return f.Limit
}

// Tx is one unit of work over the workflow tables. Lock methods hold a row
// lock until the unit ends. Save methods are conditional on the expected prior
// status and fail with a stale-state InvalidTransition when another writer got
// there first.
type Tx interface {
	LockRequest(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	InsertRequest(ctx context.Context, r *ServiceRequest) error
	SaveRequest(ctx context.Context, r *ServiceRequest, expected RequestStatus) error

	LockQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error)
	ActiveQuotations(ctx context.Context, requestID uuid.UUID) ([]*Quotation, error)
	InsertQuotation(ctx context.Context, q *Quotation) error
	SaveQuotation(ctx context.Context, q *Quotation, expected QuotationStatus) error

	LockRecord(ctx context.Context, id uuid.UUID) (*ServiceRecord, error)
	InsertRecord(ctx context.Context, rec *ServiceRecord) error
	SaveRecord(ctx context.Context, rec *ServiceRecord, expected RecordStatus) error

	LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	HasLiveInvoice(ctx context.Context, recordID uuid.UUID) (bool, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	SaveInvoice(ctx context.Context, inv *Invoice, expected PaymentStatus) error
	// PaymentByKey returns (nil, nil) when no payment carries key.
	PaymentByKey(ctx context.Context, key string) (*Payment, error)
	InsertPayment(ctx context.Context, p *Payment) error
}

// Store is the persistence contract for the workflow entities.
type Store interface {
	// InTx runs fn in one transaction, committing only when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetRequest(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	ListRequests(ctx context.Context, f Filter) ([]*ServiceRequest, error)

	GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error)
	ListQuotations(ctx context.Context, f Filter) ([]*Quotation, error)
	// ApprovedQuotation returns the approved quotation of a request, or (nil, nil).
	ApprovedQuotation(ctx context.Context, requestID uuid.UUID) (*Quotation, error)

	GetRecord(ctx context.Context, id uuid.UUID) (*ServiceRecord, error)
	ListRecords(ctx context.Context, f Filter) ([]*ServiceRecord, error)

	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, f Filter) ([]*Invoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)

	// DueQuotations lists sent quotations whose deadline is before now, in id
	// order, starting after the given id.
	DueQuotations(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error)
	// DueInvoices lists pending or partial invoices whose due date is before
	// now, in id order, starting after the given id.
	DueInvoices(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error)
}
