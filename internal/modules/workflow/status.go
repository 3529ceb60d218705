// Package workflow holds the state machine for service requests, quotations,
// service records and invoices: transition tables, compound transitions,
// money math and the unit-of-work persistence contract.
package workflow

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestQuoted     RequestStatus = "quoted"
	RequestApproved   RequestStatus = "approved"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
	RequestExpired    RequestStatus = "expired"
)

// QuotationStatus is the lifecycle state of a quotation.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "draft"
	QuotationSent     QuotationStatus = "sent"
	QuotationApproved QuotationStatus = "approved"
	QuotationRejected QuotationStatus = "rejected"
	QuotationExpired  QuotationStatus = "expired"
)

// IsActive reports whether the quotation blocks creation of another one.
func (s QuotationStatus) IsActive() bool {
	return s == QuotationDraft || s == QuotationSent
}

// RecordStatus is the lifecycle state of a service record.
type RecordStatus string

const (
	RecordPending    RecordStatus = "pending"
	RecordInProgress RecordStatus = "in_progress"
	RecordOnHold     RecordStatus = "on_hold"
	RecordCompleted  RecordStatus = "completed"
)

// PaymentStatus is derived from paid amount, total, due date and cancellation.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentPaid      PaymentStatus = "paid"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Priority of a service request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:    {RequestQuoted, RequestCancelled},
	RequestQuoted:     {RequestApproved, RequestCancelled, RequestExpired},
	RequestApproved:   {RequestInProgress, RequestCancelled},
	RequestInProgress: {RequestCompleted, RequestCancelled},
	RequestCompleted:  {},
	RequestCancelled:  {},
	RequestExpired:    {},
}

var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationDraft:    {QuotationSent, QuotationRejected},
	QuotationSent:     {QuotationApproved, QuotationRejected, QuotationExpired},
	QuotationApproved: {},
	QuotationRejected: {},
	QuotationExpired:  {},
}

var recordTransitions = map[RecordStatus][]RecordStatus{
	RecordPending:    {RecordInProgress, RecordOnHold},
	RecordInProgress: {RecordCompleted, RecordOnHold},
	RecordOnHold:     {RecordInProgress},
	RecordCompleted:  {},
}

// CanTransitionRequest returns true if the service request transition is valid.
func CanTransitionRequest(current, next RequestStatus) bool {
	return canTransition(requestTransitions, current, next)
}

// CanTransitionQuotation returns true if the quotation transition is valid.
func CanTransitionQuotation(current, next QuotationStatus) bool {
	return canTransition(quotationTransitions, current, next)
}

// CanTransitionRecord returns true if the service record transition is valid.
func CanTransitionRecord(current, next RecordStatus) bool {
	return canTransition(recordTransitions, current, next)
}

// IsTerminalRequest reports whether no transition leaves s.
func IsTerminalRequest(s RequestStatus) bool {
	next, ok := requestTransitions[s]
	return ok && len(next) == 0
}

func canTransition[S comparable](table map[S][]S, current, next S) bool {
	allowed, ok := table[current]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}
