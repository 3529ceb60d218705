package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/database"
)

const (
	requestColumns = `id,store_id,customer_id,bike_id,status,priority,description,preferred_date,cancel_reason,created_at,updated_at`

	quotationColumns = `id,service_request_id,store_id,customer_id,created_by,quotation_number,status,items,
		subtotal,tax_rate,tax_amount,total,valid_until,notes,sent_at,approved_at,rejected_at,rejection_reason,created_at,updated_at`

	recordColumns = `id,service_request_id,store_id,customer_id,technician_id,status,work_performed,notes,
		started_at,completed_at,created_at,updated_at`

	invoiceColumns = `id,service_record_id,store_id,customer_id,quotation_id,invoice_number,items,subtotal,tax_rate,
		tax_amount,total,paid_amount,payment_status,due_date,cancelled_at,notes,created_by,created_at,updated_at`

	paymentColumns = `id,invoice_id,amount,method,reference,idempotency_key,recorded_by,paid_at,created_at`
)

// Unique constraints the inserts translate into conflicts.
const (
	activeQuotationIndex = "uq_quotations_active_per_request"
	quotationNumberKey   = "quotations_quotation_number_key"
	liveInvoiceIndex     = "uq_invoices_live_per_record"
	invoiceNumberKey     = "invoices_invoice_number_key"
)

type postgresStore struct {
	db *sql.DB
	queries
}

// NewPostgresStore creates the PostgreSQL workflow store.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db, queries: queries{q: db}}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&queries{q: tx})
	})
	return apperror.Classify(err, "workflow")
}

// queries runs against either the pool or an open transaction.
type queries struct {
	q database.Querier
}

type scanner interface {
	Scan(dest ...any) error
}

// ── ServiceRequest ────────────────────────────────────────────────────────────

func (r *queries) GetRequest(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	sr, err := scanRequest(r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=$1`, id))
	return sr, apperror.Classify(err, "service request")
}

func (r *queries) LockRequest(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	sr, err := scanRequest(r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=$1 FOR UPDATE`, id))
	return sr, apperror.Classify(err, "service request")
}

func (r *queries) ListRequests(ctx context.Context, f Filter) ([]*ServiceRequest, error) {
	tail, args := filterClause(f, "status", "")
	rows, err := r.q.QueryContext(ctx, `SELECT `+requestColumns+` FROM service_requests`+tail, args...)
	if err != nil {
		return nil, apperror.Classify(err, "service request")
	}
	defer rows.Close()
	out := []*ServiceRequest{}
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, apperror.Classify(err, "service request")
		}
		out = append(out, sr)
	}
	return out, apperror.Classify(rows.Err(), "service request")
}

func (r *queries) InsertRequest(ctx context.Context, sr *ServiceRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO service_requests (id,store_id,customer_id,bike_id,status,priority,description,preferred_date,cancel_reason,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sr.ID, sr.StoreID, sr.CustomerID, sr.BikeID, sr.Status, sr.Priority, sr.Description,
		sr.PreferredDate, sr.CancelReason, sr.CreatedAt, sr.UpdatedAt)
	return apperror.Classify(err, "service request")
}

func (r *queries) SaveRequest(ctx context.Context, sr *ServiceRequest, expected RequestStatus) error {
	return r.conditional(ctx, "service request", `
		UPDATE service_requests SET status=$2, cancel_reason=$3, updated_at=$4
		WHERE id=$1 AND status=$5`,
		sr.ID, sr.Status, sr.CancelReason, sr.UpdatedAt, expected)
}

// ── Quotation ─────────────────────────────────────────────────────────────────

func (r *queries) GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	q, err := scanQuotation(r.q.QueryRowContext(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id=$1`, id))
	return q, apperror.Classify(err, "quotation")
}

func (r *queries) LockQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	q, err := scanQuotation(r.q.QueryRowContext(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id=$1 FOR UPDATE`, id))
	return q, apperror.Classify(err, "quotation")
}

func (r *queries) ListQuotations(ctx context.Context, f Filter) ([]*Quotation, error) {
	tail, args := filterClause(f, "status", "service_request_id")
	return r.quotations(ctx, `SELECT `+quotationColumns+` FROM quotations`+tail, args...)
}

func (r *queries) ActiveQuotations(ctx context.Context, requestID uuid.UUID) ([]*Quotation, error) {
	return r.quotations(ctx, `
		SELECT `+quotationColumns+` FROM quotations
		WHERE service_request_id=$1 AND status IN ('draft','sent')
		FOR UPDATE`, requestID)
}

func (r *queries) ApprovedQuotation(ctx context.Context, requestID uuid.UUID) (*Quotation, error) {
	q, err := scanQuotation(r.q.QueryRowContext(ctx, `
		SELECT `+quotationColumns+` FROM quotations
		WHERE service_request_id=$1 AND status='approved'
		ORDER BY approved_at DESC LIMIT 1`, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, apperror.Classify(err, "quotation")
}

func (r *queries) quotations(ctx context.Context, query string, args ...any) ([]*Quotation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Classify(err, "quotation")
	}
	defer rows.Close()
	out := []*Quotation{}
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, apperror.Classify(err, "quotation")
		}
		out = append(out, q)
	}
	return out, apperror.Classify(rows.Err(), "quotation")
}

func (r *queries) InsertQuotation(ctx context.Context, q *Quotation) error {
	items, err := json.Marshal(q.Items)
	if err != nil {
		return apperror.Internal(err, "encode quotation items")
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO quotations (id,service_request_id,store_id,customer_id,created_by,quotation_number,status,items,
			subtotal,tax_rate,tax_amount,total,valid_until,notes,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		q.ID, q.ServiceRequestID, q.StoreID, q.CustomerID, q.CreatedBy, q.Number, q.Status, items,
		q.Subtotal, q.TaxRate, q.TaxAmount, q.Total, q.ValidUntil, q.Notes, q.CreatedAt, q.UpdatedAt)
	switch apperror.ViolatedConstraint(err) {
	case activeQuotationIndex:
		return apperror.Conflict("service request %s already has an active quotation", q.ServiceRequestID)
	case quotationNumberKey:
		return apperror.Conflict("quotation number %s is already taken", q.Number)
	}
	return apperror.Classify(err, "quotation")
}

func (r *queries) SaveQuotation(ctx context.Context, q *Quotation, expected QuotationStatus) error {
	return r.conditional(ctx, "quotation", `
		UPDATE quotations
		SET status=$2, sent_at=$3, approved_at=$4, rejected_at=$5, rejection_reason=$6, updated_at=$7
		WHERE id=$1 AND status=$8`,
		q.ID, q.Status, q.SentAt, q.ApprovedAt, q.RejectedAt, q.RejectionReason, q.UpdatedAt, expected)
}

// ── ServiceRecord ─────────────────────────────────────────────────────────────

func (r *queries) GetRecord(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	rec, err := scanRecord(r.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM service_records WHERE id=$1`, id))
	return rec, apperror.Classify(err, "service record")
}

func (r *queries) LockRecord(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	rec, err := scanRecord(r.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM service_records WHERE id=$1 FOR UPDATE`, id))
	return rec, apperror.Classify(err, "service record")
}

func (r *queries) ListRecords(ctx context.Context, f Filter) ([]*ServiceRecord, error) {
	tail, args := filterClause(f, "status", "service_request_id")
	rows, err := r.q.QueryContext(ctx, `SELECT `+recordColumns+` FROM service_records`+tail, args...)
	if err != nil {
		return nil, apperror.Classify(err, "service record")
	}
	defer rows.Close()
	out := []*ServiceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperror.Classify(err, "service record")
		}
		out = append(out, rec)
	}
	return out, apperror.Classify(rows.Err(), "service record")
}

func (r *queries) InsertRecord(ctx context.Context, rec *ServiceRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO service_records (id,service_request_id,store_id,customer_id,technician_id,status,work_performed,notes,
			started_at,completed_at,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.ServiceRequestID, rec.StoreID, rec.CustomerID, rec.TechnicianID, rec.Status,
		rec.WorkPerformed, rec.Notes, rec.StartedAt, rec.CompletedAt, rec.CreatedAt, rec.UpdatedAt)
	if apperror.IsUniqueViolation(err) {
		return apperror.Conflict("service request %s already has a service record", rec.ServiceRequestID)
	}
	return apperror.Classify(err, "service record")
}

func (r *queries) SaveRecord(ctx context.Context, rec *ServiceRecord, expected RecordStatus) error {
	return r.conditional(ctx, "service record", `
		UPDATE service_records
		SET status=$2, technician_id=$3, work_performed=$4, notes=$5, started_at=$6, completed_at=$7, updated_at=$8
		WHERE id=$1 AND status=$9`,
		rec.ID, rec.Status, rec.TechnicianID, rec.WorkPerformed, rec.Notes, rec.StartedAt, rec.CompletedAt, rec.UpdatedAt, expected)
}

// ── Invoice ───────────────────────────────────────────────────────────────────

func (r *queries) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	return inv, apperror.Classify(err, "invoice")
}

func (r *queries) LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	return inv, apperror.Classify(err, "invoice")
}

func (r *queries) ListInvoices(ctx context.Context, f Filter) ([]*Invoice, error) {
	tail, args := filterClause(f, "payment_status", "")
	rows, err := r.q.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices`+tail, args...)
	if err != nil {
		return nil, apperror.Classify(err, "invoice")
	}
	defer rows.Close()
	out := []*Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, apperror.Classify(err, "invoice")
		}
		out = append(out, inv)
	}
	return out, apperror.Classify(rows.Err(), "invoice")
}

func (r *queries) HasLiveInvoice(ctx context.Context, recordID uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE service_record_id=$1 AND payment_status <> 'cancelled')`,
		recordID).Scan(&exists)
	return exists, apperror.Classify(err, "invoice")
}

func (r *queries) InsertInvoice(ctx context.Context, inv *Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return apperror.Internal(err, "encode invoice items")
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO invoices (id,service_record_id,store_id,customer_id,quotation_id,invoice_number,items,subtotal,tax_rate,
			tax_amount,total,paid_amount,payment_status,due_date,notes,created_by,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		inv.ID, inv.ServiceRecordID, inv.StoreID, inv.CustomerID, inv.QuotationID, inv.Number, items,
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, inv.PaidAmount, inv.PaymentStatus,
		inv.DueDate, inv.Notes, inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt)
	switch apperror.ViolatedConstraint(err) {
	case liveInvoiceIndex:
		return apperror.Conflict("service record %s already has an invoice", inv.ServiceRecordID)
	case invoiceNumberKey:
		return apperror.Conflict("invoice number %s is already taken", inv.Number)
	}
	return apperror.Classify(err, "invoice")
}

func (r *queries) SaveInvoice(ctx context.Context, inv *Invoice, expected PaymentStatus) error {
	return r.conditional(ctx, "invoice", `
		UPDATE invoices SET paid_amount=$2, payment_status=$3, cancelled_at=$4, updated_at=$5
		WHERE id=$1 AND payment_status=$6`,
		inv.ID, inv.PaidAmount, inv.PaymentStatus, inv.CancelledAt, inv.UpdatedAt, expected)
}

// ── Payment ───────────────────────────────────────────────────────────────────

func (r *queries) PaymentByKey(ctx context.Context, key string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key=$1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, apperror.Classify(err, "payment")
}

func (r *queries) InsertPayment(ctx context.Context, p *Payment) error {
	var key sql.NullString
	if p.IdempotencyKey != "" {
		key = sql.NullString{String: p.IdempotencyKey, Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (id,invoice_id,amount,method,reference,idempotency_key,recorded_by,paid_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, key, p.RecordedBy, p.PaidAt, p.CreatedAt)
	return apperror.Classify(err, "payment")
}

func (r *queries) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id=$1 ORDER BY paid_at, created_at`, invoiceID)
	if err != nil {
		return nil, apperror.Classify(err, "payment")
	}
	defer rows.Close()
	out := []*Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, apperror.Classify(err, "payment")
		}
		out = append(out, p)
	}
	return out, apperror.Classify(rows.Err(), "payment")
}

// ── Sweeper queries ───────────────────────────────────────────────────────────

func (r *queries) DueQuotations(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return r.ids(ctx, "quotation", `
		SELECT id FROM quotations
		WHERE status='sent' AND valid_until < $1 AND id > $2
		ORDER BY id LIMIT $3`, now, after, limit)
}

func (r *queries) DueInvoices(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return r.ids(ctx, "invoice", `
		SELECT id FROM invoices
		WHERE payment_status IN ('pending','partial') AND due_date < $1 AND id > $2
		ORDER BY id LIMIT $3`, now, after, limit)
}

func (r *queries) ids(ctx context.Context, entity, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Classify(err, entity)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.Classify(err, entity)
		}
		out = append(out, id)
	}
	return out, apperror.Classify(rows.Err(), entity)
}

// conditional runs a status-guarded UPDATE. No matching row means another
// writer changed the status first.
func (r *queries) conditional(ctx context.Context, entity, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return apperror.Classify(err, entity)
	}
	ok, err := database.ExpectOne(res)
	if err != nil {
		return apperror.Classify(err, entity)
	}
	if !ok {
		return apperror.Stale(entity)
	}
	return nil
}

// filterClause renders WHERE, ORDER BY and paging for f.
func filterClause(f Filter, statusCol, requestCol string) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if f.StoreID != uuid.Nil {
		add("store_id", f.StoreID)
	}
	if f.CustomerID != uuid.Nil {
		add("customer_id", f.CustomerID)
	}
	if requestCol != "" && f.ServiceRequestID != uuid.Nil {
		add(requestCol, f.ServiceRequestID)
	}
	if f.Status != "" {
		add(statusCol, f.Status)
	}
	if f.ExcludeStatus != "" {
		args = append(args, f.ExcludeStatus)
		conds = append(conds, fmt.Sprintf("%s<>$%d", statusCol, len(args)))
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	args = append(args, f.PageLimit(), f.Offset)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}

func scanRequest(row scanner) (*ServiceRequest, error) {
	sr := &ServiceRequest{}
	err := row.Scan(&sr.ID, &sr.StoreID, &sr.CustomerID, &sr.BikeID, &sr.Status, &sr.Priority,
		&sr.Description, &sr.PreferredDate, &sr.CancelReason, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sr, nil
}

func scanQuotation(row scanner) (*Quotation, error) {
	q := &Quotation{}
	var items []byte
	err := row.Scan(&q.ID, &q.ServiceRequestID, &q.StoreID, &q.CustomerID, &q.CreatedBy, &q.Number, &q.Status, &items,
		&q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.Total, &q.ValidUntil, &q.Notes,
		&q.SentAt, &q.ApprovedAt, &q.RejectedAt, &q.RejectionReason, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &q.Items); err != nil {
		return nil, fmt.Errorf("decode quotation items: %w", err)
	}
	return q, nil
}

func scanRecord(row scanner) (*ServiceRecord, error) {
	rec := &ServiceRecord{}
	err := row.Scan(&rec.ID, &rec.ServiceRequestID, &rec.StoreID, &rec.CustomerID, &rec.TechnicianID, &rec.Status,
		&rec.WorkPerformed, &rec.Notes, &rec.StartedAt, &rec.CompletedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanInvoice(row scanner) (*Invoice, error) {
	inv := &Invoice{}
	var items []byte
	err := row.Scan(&inv.ID, &inv.ServiceRecordID, &inv.StoreID, &inv.CustomerID, &inv.QuotationID, &inv.Number, &items,
		&inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.Total, &inv.PaidAmount, &inv.PaymentStatus,
		&inv.DueDate, &inv.CancelledAt, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	return inv, nil
}

func scanPayment(row scanner) (*Payment, error) {
	p := &Payment{}
	var key sql.NullString
	err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &key, &p.RecordedBy, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.IdempotencyKey = key.String
	return p, nil
}
