package workflow

import (
	"time"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

// ApplyRequest returns r moved to next, or InvalidTransition.
func ApplyRequest(r ServiceRequest, next RequestStatus, now time.Time) (ServiceRequest, error) {
	if !CanTransitionRequest(r.Status, next) {
		return r, apperror.InvalidTransition("service request cannot move from %s to %s", r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = now
	return r, nil
}

// ApplyQuotation returns q moved to next, stamping the matching timestamp.
func ApplyQuotation(q Quotation, next QuotationStatus, now time.Time) (Quotation, error) {
	if !CanTransitionQuotation(q.Status, next) {
		return q, apperror.InvalidTransition("quotation cannot move from %s to %s", q.Status, next)
	}
	q.Status = next
	q.UpdatedAt = now
	switch next {
	case QuotationSent:
		q.SentAt = &now
	case QuotationApproved:
		q.ApprovedAt = &now
	case QuotationRejected:
		q.RejectedAt = &now
	}
	return q, nil
}

// ApplyRecord returns rec moved to next. StartedAt is set on the first start
// and kept across holds.
func ApplyRecord(rec ServiceRecord, next RecordStatus, now time.Time) (ServiceRecord, error) {
	if !CanTransitionRecord(rec.Status, next) {
		return rec, apperror.InvalidTransition("service record cannot move from %s to %s", rec.Status, next)
	}
	rec.Status = next
	rec.UpdatedAt = now
	switch next {
	case RecordInProgress:
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
	case RecordCompleted:
		rec.CompletedAt = &now
	}
	return rec, nil
}

// ── Compound transitions ──────────────────────────────────────────────────────
//
// Each returns every changed snapshot; the caller persists them in one unit of
// work with the prior statuses as write preconditions.

// CheckQuotationCreation allows a new quotation only for pending or quoted
// requests with no draft or sent quotation.
func CheckQuotationCreation(r ServiceRequest, hasActive bool) error {
	if r.Status != RequestPending && r.Status != RequestQuoted {
		return apperror.InvalidTransition("cannot quote a service request in status %s", r.Status)
	}
	if hasActive {
		return apperror.Conflict("service request %s already has an active quotation", r.ID)
	}
	return nil
}

// SendQuotation moves the quotation draft→sent and the request pending→quoted.
// A request that is already quoted is left unchanged.
func SendQuotation(q Quotation, r ServiceRequest, now time.Time) (Quotation, ServiceRequest, error) {
	if q.ServiceRequestID != r.ID {
		return q, r, apperror.Validation("quotation does not belong to service request %s", r.ID)
	}
	if !q.ValidUntil.After(now) {
		return q, r, apperror.Field("valid_until", "validity deadline has already passed")
	}
	sent, err := ApplyQuotation(q, QuotationSent, now)
	if err != nil {
		return q, r, err
	}
	switch r.Status {
	case RequestQuoted:
		return sent, r, nil
	case RequestPending:
		quoted, err := ApplyRequest(r, RequestQuoted, now)
		if err != nil {
			return q, r, err
		}
		return sent, quoted, nil
	}
	return q, r, apperror.InvalidTransition("cannot send a quotation for a service request in status %s", r.Status)
}

// ApproveQuotation moves the quotation sent→approved and the request
// quoted→approved. A quotation past its validity deadline cannot be approved
// even before the sweeper has expired it.
func ApproveQuotation(q Quotation, r ServiceRequest, now time.Time) (Quotation, ServiceRequest, error) {
	if q.ServiceRequestID != r.ID {
		return q, r, apperror.Validation("quotation does not belong to service request %s", r.ID)
	}
	if q.Status == QuotationSent && now.After(q.ValidUntil) {
		return q, r, apperror.InvalidTransition("quotation %s expired at %s", q.Number, q.ValidUntil.Format(time.RFC3339))
	}
	approved, err := ApplyQuotation(q, QuotationApproved, now)
	if err != nil {
		return q, r, err
	}
	advanced, err := ApplyRequest(r, RequestApproved, now)
	if err != nil {
		return q, r, err
	}
	return approved, advanced, nil
}

// RejectQuotation moves a draft or sent quotation to rejected. The request is
// left as is so a new quotation can be drafted.
func RejectQuotation(q Quotation, reason string, now time.Time) (Quotation, error) {
	rejected, err := ApplyQuotation(q, QuotationRejected, now)
	if err != nil {
		return q, err
	}
	rejected.RejectionReason = reason
	return rejected, nil
}

// CancelRequest cancels the request and rejects every active quotation.
func CancelRequest(r ServiceRequest, active []Quotation, reason string, now time.Time) (ServiceRequest, []Quotation, error) {
	cancelled, err := ApplyRequest(r, RequestCancelled, now)
	if err != nil {
		return r, nil, err
	}
	cancelled.CancelReason = reason

	rejected := make([]Quotation, 0, len(active))
	for _, q := range active {
		if !q.Status.IsActive() {
			continue
		}
		rq, err := RejectQuotation(q, "service request cancelled", now)
		if err != nil {
			return r, nil, err
		}
		rejected = append(rejected, rq)
	}
	return cancelled, rejected, nil
}

// StartRecord builds a pending service record for an approved request and
// moves the request to in_progress.
func StartRecord(r ServiceRequest, rec ServiceRecord, now time.Time) (ServiceRequest, ServiceRecord, error) {
	if r.Status != RequestApproved {
		return r, rec, apperror.InvalidTransition("service record requires an approved service request, got %s", r.Status)
	}
	advanced, err := ApplyRequest(r, RequestInProgress, now)
	if err != nil {
		return r, rec, err
	}
	rec.ServiceRequestID = r.ID
	rec.StoreID = r.StoreID
	rec.CustomerID = r.CustomerID
	rec.Status = RecordPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return advanced, rec, nil
}

// CompleteRecord moves the record in_progress→completed and the request
// in_progress→completed.
func CompleteRecord(rec ServiceRecord, r ServiceRequest, workPerformed string, now time.Time) (ServiceRecord, ServiceRequest, error) {
	if rec.ServiceRequestID != r.ID {
		return rec, r, apperror.Validation("service record does not belong to service request %s", r.ID)
	}
	done, err := ApplyRecord(rec, RecordCompleted, now)
	if err != nil {
		return rec, r, err
	}
	if workPerformed != "" {
		done.WorkPerformed = workPerformed
	}
	finished, err := ApplyRequest(r, RequestCompleted, now)
	if err != nil {
		return rec, r, err
	}
	return done, finished, nil
}

// ExpireQuotation moves a sent quotation past its deadline to expired and, when
// the request is still quoted, the request too. ok is false when nothing is
// due, which makes repeated sweeps no-ops.
func ExpireQuotation(q Quotation, r ServiceRequest, now time.Time) (Quotation, ServiceRequest, bool, error) {
	if q.Status != QuotationSent || !q.ValidUntil.Before(now) {
		return q, r, false, nil
	}
	expired, err := ApplyQuotation(q, QuotationExpired, now)
	if err != nil {
		return q, r, false, err
	}
	if r.Status != RequestQuoted {
		return expired, r, true, nil
	}
	lapsed, err := ApplyRequest(r, RequestExpired, now)
	if err != nil {
		return q, r, false, err
	}
	return expired, lapsed, true, nil
}
