package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/notify"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

// Service defines invoice and payment operations.
type Service interface {
	// Create issues an invoice for a completed service record.
	Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.Invoice, error)
	// Get returns an invoice visible to the actor.
	Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Invoice, error)
	// List returns the store's invoices.
	List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.Invoice, error)
	// ListMine returns the calling customer's invoices.
	ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.Invoice, error)
	// RecordPayment locks the invoice, applies the payment and appends it to
	// the payment history in one unit of work.
	RecordPayment(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, req PaymentRequest) (*PaymentResult, error)
	// ListPayments returns the payment history of an invoice.
	ListPayments(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) ([]*workflow.Payment, error)
	// Cancel voids an invoice that is not fully paid.
	Cancel(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Invoice, error)
}

type service struct {
	store    workflow.Store
	kernel   *access.Kernel
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	dueDays  int
}

// NewService creates a new invoice service. dueDays is the default payment
// term when the caller gives no due date.
func NewService(store workflow.Store, kernel *access.Kernel, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger, dueDays int) Service {
	return &service{store: store, kernel: kernel, clock: clk, notifier: notifier, logger: logger, dueDays: dueDays}
}

func (s *service) Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.Invoice, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.CreateInvoices); err != nil {
		return nil, err
	}
	recordID, err := uuid.Parse(req.ServiceRecordID)
	if err != nil {
		return nil, apperror.Field("service_record_id", "not a valid id")
	}
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.StoreID != storeID {
		return nil, apperror.NotFound("service record")
	}

	items := lineItems(req.Items)
	taxRate := decimal.Zero
	var quotationID *uuid.UUID
	if len(items) == 0 {
		q, err := s.store.ApprovedQuotation(ctx, rec.ServiceRequestID)
		if err != nil {
			return nil, err
		}
		if q == nil {
			return nil, apperror.Field("items", "required when the service request has no approved quotation")
		}
		items = q.Items
		taxRate = q.TaxRate
		quotationID = &q.ID
	}
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	totals, err := workflow.PriceItems(items, taxRate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	due := now.AddDate(0, 0, s.dueDays)
	if req.DueDate != nil {
		due = req.DueDate.UTC()
	}
	if !due.After(now) {
		return nil, apperror.Field("due_date", "must be in the future")
	}

	var inv workflow.Invoice
	err = s.store.InTx(ctx, func(tx workflow.Tx) error {
		locked, err := tx.LockRecord(ctx, recordID)
		if err != nil {
			return err
		}
		live, err := tx.HasLiveInvoice(ctx, locked.ID)
		if err != nil {
			return err
		}
		if err := workflow.CheckInvoiceCreation(*locked, live); err != nil {
			return err
		}
		inv = workflow.NewInvoice(*locked, totals, quotationID, due, actor.ID, req.Notes, now)
		return tx.InsertInvoice(ctx, &inv)
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(workflow.EntityInvoice), string(inv.PaymentStatus)).Inc()
	s.notify(ctx, notify.Message{
		CustomerID: inv.CustomerID,
		Event:      "invoice_issued",
		Body: fmt.Sprintf("Invoice %s for %s is due on %s.",
			inv.Number, inv.Total.StringFixed(2), inv.DueDate.Format("2 Jan 2006")),
	})
	return &inv, nil
}

func (s *service) Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Invoice, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.ViewInvoices); err != nil {
		return nil, err
	}
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkScope(actor, storeID, inv); err != nil {
		return nil, err
	}
	return s.current(inv), nil
}

func (s *service) List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.Invoice, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.ViewInvoices); err != nil {
		return nil, err
	}
	f.StoreID = storeID
	f.CustomerID = uuid.Nil
	return s.list(ctx, f)
}

func (s *service) ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.Invoice, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	if !actor.IsCustomer() {
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "only customers have their own invoices")
	}
	f.CustomerID = actor.ID
	return s.list(ctx, f)
}

func (s *service) list(ctx context.Context, f workflow.Filter) ([]*workflow.Invoice, error) {
	all, err := s.store.ListInvoices(ctx, f)
	if err != nil {
		return nil, err
	}
	for i, inv := range all {
		all[i] = s.current(inv)
	}
	return all, nil
}

func (s *service) RecordPayment(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, req PaymentRequest) (*PaymentResult, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.UpdateInvoices); err != nil {
		return nil, err
	}
	method := workflow.PaymentMethod(strings.ToUpper(req.Method))
	if !method.Valid() {
		return nil, apperror.Field("method", "unsupported payment method "+req.Method)
	}
	if !req.Amount.Equal(workflow.Round2(req.Amount)) {
		return nil, apperror.Field("amount", "at most two decimal places")
	}

	var result PaymentResult
	err := s.store.InTx(ctx, func(tx workflow.Tx) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.StoreID != storeID {
			return apperror.NotFound("invoice")
		}
		if req.IdempotencyKey != "" {
			prior, err := tx.PaymentByKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				if prior.InvoiceID != inv.ID {
					return apperror.Conflict("idempotency key already used for another invoice")
				}
				result = PaymentResult{Invoice: inv, Payment: prior}
				return nil
			}
		}

		now := s.clock.Now()
		next, err := workflow.RecordPayment(*inv, req.Amount, now)
		if err != nil {
			return err
		}
		if err := tx.SaveInvoice(ctx, &next, inv.PaymentStatus); err != nil {
			return err
		}
		p := &workflow.Payment{
			ID:             uuid.New(),
			InvoiceID:      inv.ID,
			Amount:         req.Amount,
			Method:         method,
			Reference:      req.Reference,
			IdempotencyKey: req.IdempotencyKey,
			RecordedBy:     actor.ID,
			PaidAt:         now,
			CreatedAt:      now,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		result = PaymentResult{Invoice: &next, Payment: p}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(workflow.EntityInvoice), string(result.Invoice.PaymentStatus)).Inc()
	s.logger.InfoContext(ctx, "payment recorded",
		slog.String("invoice_id", result.Invoice.ID.String()),
		slog.String("amount", result.Payment.Amount.StringFixed(2)),
		slog.String("payment_status", string(result.Invoice.PaymentStatus)))
	return &result, nil
}

func (s *service) ListPayments(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) ([]*workflow.Payment, error) {
	if _, err := s.Get(ctx, actor, storeID, id); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, id)
}

func (s *service) Cancel(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.Invoice, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.UpdateInvoices, permission.DeleteInvoices); err != nil {
		return nil, err
	}
	var cancelled workflow.Invoice
	err := s.store.InTx(ctx, func(tx workflow.Tx) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.StoreID != storeID {
			return apperror.NotFound("invoice")
		}
		cancelled, err = workflow.CancelInvoice(*inv, s.clock.Now())
		if err != nil {
			return err
		}
		return tx.SaveInvoice(ctx, &cancelled, inv.PaymentStatus)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityInvoice), string(cancelled.PaymentStatus)).Inc()
	return &cancelled, nil
}

// current re-derives the payment status for display so an invoice that went
// overdue since the last sweep is reported as overdue.
func (s *service) current(inv *workflow.Invoice) *workflow.Invoice {
	fresh, _ := workflow.RefreshPaymentStatus(*inv, s.clock.Now())
	return &fresh
}

func (s *service) notify(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("event", msg.Event), slog.Any("error", err))
	}
}

func checkScope(actor *access.Actor, storeID uuid.UUID, inv *workflow.Invoice) error {
	if actor.IsCustomer() {
		if err := access.RequireOwnership(actor, inv.CustomerID); err != nil {
			return err
		}
	}
	if inv.StoreID != storeID {
		return apperror.NotFound("invoice")
	}
	return nil
}
