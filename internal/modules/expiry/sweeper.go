// Package expiry moves lapsed quotations to expired and unpaid invoices past
// their due date to overdue.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

const defaultBatchSize = 500

// Row kinds reported by a sweep.
const (
	KindQuotation = "quotation"
	KindInvoice   = "invoice"
)

// Failure is one row the sweep could not update.
type Failure struct {
	Kind  string    `json:"kind"`
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// Report summarises one pass.
type Report struct {
	StartedAt         time.Time `json:"started_at"`
	QuotationsExpired int       `json:"quotations_expired"`
	RequestsExpired   int       `json:"requests_expired"`
	InvoicesOverdue   int       `json:"invoices_overdue"`
	Skipped           int       `json:"skipped"`
	Failures          []Failure `json:"failures"`
}

// Sweeper applies time-based transitions. Each row is its own unit of work so
// one failure never rolls back or stops the rest of the pass.
type Sweeper struct {
	store     workflow.Store
	clock     clock.Clock
	logger    *slog.Logger
	batchSize int
}

func NewSweeper(store workflow.Store, clk clock.Clock, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, clock: clk, logger: logger, batchSize: defaultBatchSize}
}

// Sweep runs one pass. Running it again with no new lapsed rows changes nothing.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	start := time.Now()
	now := s.clock.Now()
	report := Report{StartedAt: now, Failures: []Failure{}}

	s.eachDue(ctx, &report, KindQuotation, func(after uuid.UUID) ([]uuid.UUID, error) {
		return s.store.DueQuotations(ctx, now, after, s.batchSize)
	}, func(id uuid.UUID) {
		expired, requestExpired, err := s.expireQuotation(ctx, id, now)
		s.tally(&report, KindQuotation, id, expired, err)
		if requestExpired {
			report.RequestsExpired++
		}
	})

	s.eachDue(ctx, &report, KindInvoice, func(after uuid.UUID) ([]uuid.UUID, error) {
		return s.store.DueInvoices(ctx, now, after, s.batchSize)
	}, func(id uuid.UUID) {
		changed, err := s.markOverdue(ctx, id, now)
		s.tally(&report, KindInvoice, id, changed, err)
	})

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "expiration sweep finished",
		slog.Int("quotations_expired", report.QuotationsExpired),
		slog.Int("requests_expired", report.RequestsExpired),
		slog.Int("invoices_overdue", report.InvoicesOverdue),
		slog.Int("skipped", report.Skipped),
		slog.Int("failures", len(report.Failures)),
		slog.Duration("took", time.Since(start)))
	return report
}

// eachDue pages through due ids in id order, so rows that keep failing never
// hide the rows after them.
func (s *Sweeper) eachDue(ctx context.Context, report *Report, kind string,
	list func(after uuid.UUID) ([]uuid.UUID, error), apply func(id uuid.UUID)) {
	var after uuid.UUID
	for ctx.Err() == nil {
		ids, err := list(after)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Kind: kind, Error: err.Error()})
			return
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			apply(id)
		}
		if len(ids) < s.batchSize {
			return
		}
		after = ids[len(ids)-1]
	}
}

func (s *Sweeper) tally(report *Report, kind string, id uuid.UUID, changed bool, err error) {
	switch {
	case err != nil:
		metrics.SweepRows.WithLabelValues(kind, "failed").Inc()
		report.Failures = append(report.Failures, Failure{Kind: kind, ID: id, Error: err.Error()})
		s.logger.Warn("sweep row failed", slog.String("kind", kind), slog.String("id", id.String()), slog.Any("error", err))
	case !changed:
		metrics.SweepRows.WithLabelValues(kind, "skipped").Inc()
		report.Skipped++
	case kind == KindQuotation:
		metrics.SweepRows.WithLabelValues(kind, "expired").Inc()
		report.QuotationsExpired++
	default:
		metrics.SweepRows.WithLabelValues(kind, "overdue").Inc()
		report.InvoicesOverdue++
	}
}

// expireQuotation locks the parent request before the quotation, the same
// order the actor-facing services use.
func (s *Sweeper) expireQuotation(ctx context.Context, id uuid.UUID, now time.Time) (changed, requestExpired bool, err error) {
	current, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return false, false, err
	}
	err = s.store.InTx(ctx, func(tx workflow.Tx) error {
		sr, err := tx.LockRequest(ctx, current.ServiceRequestID)
		if err != nil {
			return err
		}
		q, err := tx.LockQuotation(ctx, id)
		if err != nil {
			return err
		}
		expired, lapsed, ok, err := workflow.ExpireQuotation(*q, *sr, now)
		if err != nil || !ok {
			return err
		}
		if err := tx.SaveQuotation(ctx, &expired, q.Status); err != nil {
			return err
		}
		changed = true
		if lapsed.Status != sr.Status {
			requestExpired = true
			return tx.SaveRequest(ctx, &lapsed, sr.Status)
		}
		return nil
	})
	if err != nil {
		// An actor moved the row first; nothing left to do.
		if apperror.KindOf(err) == apperror.KindInvalidTransition {
			return false, false, nil
		}
		return false, false, err
	}
	if changed {
		metrics.Transitions.WithLabelValues(string(workflow.EntityQuotation), string(workflow.QuotationExpired)).Inc()
	}
	if requestExpired {
		metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(workflow.RequestExpired)).Inc()
	}
	return changed, requestExpired, nil
}

func (s *Sweeper) markOverdue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	changed := false
	err := s.store.InTx(ctx, func(tx workflow.Tx) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		next, ok := workflow.RefreshPaymentStatus(*inv, now)
		if !ok {
			return nil
		}
		changed = true
		return tx.SaveInvoice(ctx, &next, inv.PaymentStatus)
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInvalidTransition {
			return false, nil
		}
		return false, err
	}
	if changed {
		metrics.Transitions.WithLabelValues(string(workflow.EntityInvoice), string(workflow.PaymentOverdue)).Inc()
	}
	return changed, nil
}
