package quotation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/notify"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

// Service defines quotation operations. Every multi-entity change runs in one
// unit of work, locking the service request before the quotation.
type Service interface {
	// Create drafts a priced quotation for a pending service request.
	Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.Quotation, error)
	// Get returns a quotation. Customers never see drafts.
	Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Quotation, error)
	// List returns the store's quotations.
	List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.Quotation, error)
	// ListMine returns the calling customer's sent and settled quotations.
	ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.Quotation, error)
	// Send issues a draft to the customer and marks the request quoted.
	Send(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Quotation, error)
	// Approve accepts a sent quotation and approves its request.
	Approve(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Quotation, error)
	// Reject declines a sent quotation. The request stays quoted.
	Reject(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, reason string) (*workflow.Quotation, error)
}

type service struct {
	store        workflow.Store
	kernel       *access.Kernel
	clock        clock.Clock
	notifier     notify.Notifier
	logger       *slog.Logger
	validityDays int
}

// NewService creates a new quotation service. validityDays is the default
// lifetime of a quotation when the caller gives no deadline.
func NewService(store workflow.Store, kernel *access.Kernel, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger, validityDays int) Service {
	return &service{store: store, kernel: kernel, clock: clk, notifier: notifier, logger: logger, validityDays: validityDays}
}

func (s *service) Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.Quotation, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.CreateQuotations); err != nil {
		return nil, err
	}
	requestID, err := uuid.Parse(req.ServiceRequestID)
	if err != nil {
		return nil, apperror.Field("service_request_id", "not a valid id")
	}
	totals, err := workflow.PriceItems(lineItems(req.Items), req.TaxRate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	validUntil := now.AddDate(0, 0, s.validityDays)
	if req.ValidUntil != nil {
		validUntil = req.ValidUntil.UTC()
	}
	if !validUntil.After(now) {
		return nil, apperror.Field("valid_until", "must be in the future")
	}

	var q *workflow.Quotation
	err = s.store.InTx(ctx, func(tx workflow.Tx) error {
		sr, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if sr.StoreID != storeID {
			return apperror.NotFound("service request")
		}
		active, err := tx.ActiveQuotations(ctx, sr.ID)
		if err != nil {
			return err
		}
		if err := workflow.CheckQuotationCreation(*sr, len(active) > 0); err != nil {
			return err
		}

		q = &workflow.Quotation{
			ID:               uuid.New(),
			ServiceRequestID: sr.ID,
			StoreID:          sr.StoreID,
			CustomerID:       sr.CustomerID,
			CreatedBy:        actor.ID,
			Number:           workflow.NewNumber(workflow.QuotationPrefix, now),
			Status:           workflow.QuotationDraft,
			Items:            totals.Items,
			Subtotal:         totals.Subtotal,
			TaxRate:          totals.TaxRate,
			TaxAmount:        totals.TaxAmount,
			Total:            totals.Total,
			ValidUntil:       validUntil,
			Notes:            req.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.InsertQuotation(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityQuotation), string(q.Status)).Inc()
	return q, nil
}

func (s *service) Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Quotation, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.ViewQuotations); err != nil {
		return nil, err
	}
	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkScope(actor, storeID, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *service) List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.Quotation, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.ViewQuotations); err != nil {
		return nil, err
	}
	f.StoreID = storeID
	f.CustomerID = uuid.Nil
	return s.store.ListQuotations(ctx, f)
}

// ListMine returns the caller's quotations, leaving out unsent drafts.
func (s *service) ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.Quotation, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	if !actor.IsCustomer() {
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "only customers have their own quotations")
	}
	f.CustomerID = actor.ID
	f.ExcludeStatus = string(workflow.QuotationDraft)
	return s.store.ListQuotations(ctx, f)
}

func (s *service) Send(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Quotation, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.CreateQuotations, permission.UpdateQuotations); err != nil {
		return nil, err
	}

	var sent workflow.Quotation
	var requestMoved bool
	err := s.withRequestAndQuotation(ctx, actor, storeID, id, func(tx workflow.Tx, sr *workflow.ServiceRequest, q *workflow.Quotation) error {
		var next workflow.ServiceRequest
		var err error
		sent, next, err = workflow.SendQuotation(*q, *sr, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.SaveQuotation(ctx, &sent, q.Status); err != nil {
			return err
		}
		if next.Status != sr.Status {
			requestMoved = true
			return tx.SaveRequest(ctx, &next, sr.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(workflow.EntityQuotation), string(sent.Status)).Inc()
	if requestMoved {
		metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(workflow.RequestQuoted)).Inc()
	}
	s.notify(ctx, notify.Message{
		CustomerID: sent.CustomerID,
		Event:      "quotation_sent",
		Body: fmt.Sprintf("Your quotation %s is ready: total %s, valid until %s.",
			sent.Number, sent.Total.StringFixed(2), sent.ValidUntil.Format("2 Jan 2006")),
	})
	return &sent, nil
}

// Approve moves the quotation and its service request to approved together.
func (s *service) Approve(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Quotation, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.UpdateQuotations); err != nil {
		return nil, err
	}

	var approved workflow.Quotation
	err := s.withRequestAndQuotation(ctx, actor, storeID, id, func(tx workflow.Tx, sr *workflow.ServiceRequest, q *workflow.Quotation) error {
		var next workflow.ServiceRequest
		var err error
		approved, next, err = workflow.ApproveQuotation(*q, *sr, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.SaveQuotation(ctx, &approved, q.Status); err != nil {
			return err
		}
		return tx.SaveRequest(ctx, &next, sr.Status)
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(workflow.EntityQuotation), string(approved.Status)).Inc()
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(workflow.RequestApproved)).Inc()
	s.logger.InfoContext(ctx, "quotation approved",
		slog.String("quotation_id", approved.ID.String()),
		slog.String("service_request_id", approved.ServiceRequestID.String()))
	return &approved, nil
}

func (s *service) Reject(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, reason string) (*workflow.Quotation, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.UpdateQuotations, permission.DeleteQuotations); err != nil {
		return nil, err
	}

	var rejected workflow.Quotation
	err := s.withRequestAndQuotation(ctx, actor, storeID, id, func(tx workflow.Tx, _ *workflow.ServiceRequest, q *workflow.Quotation) error {
		var err error
		rejected, err = workflow.RejectQuotation(*q, reason, s.clock.Now())
		if err != nil {
			return err
		}
		return tx.SaveQuotation(ctx, &rejected, q.Status)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityQuotation), string(rejected.Status)).Inc()
	return &rejected, nil
}

// withRequestAndQuotation opens a unit of work holding locks on the parent
// request and then the quotation, after scope checks.
func (s *service) withRequestAndQuotation(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID,
	fn func(tx workflow.Tx, sr *workflow.ServiceRequest, q *workflow.Quotation) error) error {
	// The parent id never changes, so an unlocked read is enough to find it.
	current, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return err
	}
	if err := checkScope(actor, storeID, current); err != nil {
		return err
	}

	return s.store.InTx(ctx, func(tx workflow.Tx) error {
		sr, err := tx.LockRequest(ctx, current.ServiceRequestID)
		if err != nil {
			return err
		}
		q, err := tx.LockQuotation(ctx, id)
		if err != nil {
			return err
		}
		return fn(tx, sr, q)
	})
}

func (s *service) notify(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("event", msg.Event), slog.Any("error", err))
	}
}

// checkScope hides quotations of other stores and unsent drafts from
// customers, and enforces customer ownership.
func checkScope(actor *access.Actor, storeID uuid.UUID, q *workflow.Quotation) error {
	if actor.IsCustomer() {
		if err := access.RequireOwnership(actor, q.CustomerID); err != nil {
			return err
		}
		if q.Status == workflow.QuotationDraft {
			return apperror.NotFound("quotation")
		}
	}
	if q.StoreID != storeID {
		return apperror.NotFound("quotation")
	}
	return nil
}
