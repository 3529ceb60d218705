// Package workflowtest provides an in-memory workflow.Store for service tests.
package workflowtest

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

// Memory is a transactional in-memory store. Units of work run one at a time
// against a copy of the data that replaces the committed state only when the
// unit succeeds.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *tables

	// FailQuotationSave, when set, is consulted before every quotation save.
	FailQuotationSave func(id uuid.UUID) error
}

type tables struct {
	requests   map[uuid.UUID]workflow.ServiceRequest
	quotations map[uuid.UUID]workflow.Quotation
	records    map[uuid.UUID]workflow.ServiceRecord
	invoices   map[uuid.UUID]workflow.Invoice
	payments   map[uuid.UUID]workflow.Payment
}

func New() *Memory {
	return &Memory{data: &tables{
		requests:   map[uuid.UUID]workflow.ServiceRequest{},
		quotations: map[uuid.UUID]workflow.Quotation{},
		records:    map[uuid.UUID]workflow.ServiceRecord{},
		invoices:   map[uuid.UUID]workflow.Invoice{},
		payments:   map[uuid.UUID]workflow.Payment{},
	}}
}

func (t *tables) clone() *tables {
	c := &tables{
		requests:   make(map[uuid.UUID]workflow.ServiceRequest, len(t.requests)),
		quotations: make(map[uuid.UUID]workflow.Quotation, len(t.quotations)),
		records:    make(map[uuid.UUID]workflow.ServiceRecord, len(t.records)),
		invoices:   make(map[uuid.UUID]workflow.Invoice, len(t.invoices)),
		payments:   make(map[uuid.UUID]workflow.Payment, len(t.payments)),
	}
	for k, v := range t.requests {
		c.requests[k] = v
	}
	for k, v := range t.quotations {
		c.quotations[k] = v
	}
	for k, v := range t.records {
		c.records[k] = v
	}
	for k, v := range t.invoices {
		c.invoices[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	return c
}

// ── Seeding and inspection ────────────────────────────────────────────────────

func (m *Memory) PutRequest(r workflow.ServiceRequest) {
	m.mu.Lock()
	m.data.requests[r.ID] = r
	m.mu.Unlock()
}

func (m *Memory) PutQuotation(q workflow.Quotation) {
	m.mu.Lock()
	m.data.quotations[q.ID] = q
	m.mu.Unlock()
}

func (m *Memory) PutRecord(rec workflow.ServiceRecord) {
	m.mu.Lock()
	m.data.records[rec.ID] = rec
	m.mu.Unlock()
}

func (m *Memory) PutInvoice(inv workflow.Invoice) {
	m.mu.Lock()
	m.data.invoices[inv.ID] = inv
	m.mu.Unlock()
}

// CountQuotations counts quotations of a request in any of the given statuses.
func (m *Memory) CountQuotations(requestID uuid.UUID, statuses ...workflow.QuotationStatus) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, q := range m.data.quotations {
		if q.ServiceRequestID != requestID {
			continue
		}
		for _, s := range statuses {
			if q.Status == s {
				n++
				break
			}
		}
	}
	return n
}

// ── workflow.Store ────────────────────────────────────────────────────────────

func (m *Memory) InTx(ctx context.Context, fn func(tx workflow.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	work := m.data.clone()
	m.mu.RUnlock()

	if err := fn(&memTx{m: m, t: work}); err != nil {
		return err
	}

	m.mu.Lock()
	m.data = work
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetRequest(ctx context.Context, id uuid.UUID) (*workflow.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data.requests[id]
	if !ok {
		return nil, apperror.NotFound("service request")
	}
	return &r, nil
}

func (m *Memory) ListRequests(ctx context.Context, f workflow.Filter) ([]*workflow.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*workflow.ServiceRequest{}
	for _, r := range m.data.requests {
		r := r
		if match(f, r.StoreID, r.CustomerID, uuid.Nil, string(r.Status)) {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), nil
}

func (m *Memory) GetQuotation(ctx context.Context, id uuid.UUID) (*workflow.Quotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.data.quotations[id]
	if !ok {
		return nil, apperror.NotFound("quotation")
	}
	return &q, nil
}

func (m *Memory) ListQuotations(ctx context.Context, f workflow.Filter) ([]*workflow.Quotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*workflow.Quotation{}
	for _, q := range m.data.quotations {
		q := q
		if match(f, q.StoreID, q.CustomerID, q.ServiceRequestID, string(q.Status)) {
			out = append(out, &q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), nil
}

func (m *Memory) ApprovedQuotation(ctx context.Context, requestID uuid.UUID) (*workflow.Quotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.data.quotations {
		if q.ServiceRequestID == requestID && q.Status == workflow.QuotationApproved {
			q := q
			return &q, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetRecord(ctx context.Context, id uuid.UUID) (*workflow.ServiceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data.records[id]
	if !ok {
		return nil, apperror.NotFound("service record")
	}
	return &rec, nil
}

func (m *Memory) ListRecords(ctx context.Context, f workflow.Filter) ([]*workflow.ServiceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*workflow.ServiceRecord{}
	for _, rec := range m.data.records {
		rec := rec
		if match(f, rec.StoreID, rec.CustomerID, rec.ServiceRequestID, string(rec.Status)) {
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), nil
}

func (m *Memory) GetInvoice(ctx context.Context, id uuid.UUID) (*workflow.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.data.invoices[id]
	if !ok {
		return nil, apperror.NotFound("invoice")
	}
	return &inv, nil
}

func (m *Memory) ListInvoices(ctx context.Context, f workflow.Filter) ([]*workflow.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*workflow.Invoice{}
	for _, inv := range m.data.invoices {
		inv := inv
		if match(f, inv.StoreID, inv.CustomerID, uuid.Nil, string(inv.PaymentStatus)) {
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), nil
}

func (m *Memory) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*workflow.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*workflow.Payment{}
	for _, p := range m.data.payments {
		p := p
		if p.InvoiceID == invoiceID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (m *Memory) DueQuotations(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []uuid.UUID
	for id, q := range m.data.quotations {
		if q.Status == workflow.QuotationSent && q.ValidUntil.Before(now) {
			due = append(due, id)
		}
	}
	return idPage(due, after, limit), nil
}

func (m *Memory) DueInvoices(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []uuid.UUID
	for id, inv := range m.data.invoices {
		pending := inv.PaymentStatus == workflow.PaymentPending || inv.PaymentStatus == workflow.PaymentPartial
		if pending && inv.DueDate.Before(now) {
			due = append(due, id)
		}
	}
	return idPage(due, after, limit), nil
}

// idPage sorts ids bytewise, as PostgreSQL orders uuid, and returns up to
// limit of them after the cursor.
func idPage(ids []uuid.UUID, after uuid.UUID, limit int) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	var out []uuid.UUID
	for _, id := range ids {
		if bytes.Compare(id[:], after[:]) > 0 && len(out) < limit {
			out = append(out, id)
		}
	}
	return out
}

func match(f workflow.Filter, storeID, customerID, requestID uuid.UUID, status string) bool {
	if f.StoreID != uuid.Nil && f.StoreID != storeID {
		return false
	}
	if f.CustomerID != uuid.Nil && f.CustomerID != customerID {
		return false
	}
	if f.ServiceRequestID != uuid.Nil && f.ServiceRequestID != requestID {
		return false
	}
	if f.ExcludeStatus != "" && f.ExcludeStatus == status {
		return false
	}
	return f.Status == "" || f.Status == status
}

func page[T any](items []T, f workflow.Filter) []T {
	if f.Offset >= len(items) {
		return items[:0]
	}
	items = items[f.Offset:]
	if n := f.PageLimit(); len(items) > n {
		items = items[:n]
	}
	return items
}

// ── workflow.Tx ───────────────────────────────────────────────────────────────

type memTx struct {
	m *Memory
	t *tables
}

func (tx *memTx) LockRequest(ctx context.Context, id uuid.UUID) (*workflow.ServiceRequest, error) {
	r, ok := tx.t.requests[id]
	if !ok {
		return nil, apperror.NotFound("service request")
	}
	return &r, nil
}

func (tx *memTx) InsertRequest(ctx context.Context, r *workflow.ServiceRequest) error {
	if _, ok := tx.t.requests[r.ID]; ok {
		return apperror.Conflict("service request already exists")
	}
	tx.t.requests[r.ID] = *r
	return nil
}

func (tx *memTx) SaveRequest(ctx context.Context, r *workflow.ServiceRequest, expected workflow.RequestStatus) error {
	cur, ok := tx.t.requests[r.ID]
	if !ok || cur.Status != expected {
		return apperror.Stale("service request")
	}
	tx.t.requests[r.ID] = *r
	return nil
}

func (tx *memTx) LockQuotation(ctx context.Context, id uuid.UUID) (*workflow.Quotation, error) {
	q, ok := tx.t.quotations[id]
	if !ok {
		return nil, apperror.NotFound("quotation")
	}
	return &q, nil
}

func (tx *memTx) ActiveQuotations(ctx context.Context, requestID uuid.UUID) ([]*workflow.Quotation, error) {
	var out []*workflow.Quotation
	for _, q := range tx.t.quotations {
		q := q
		if q.ServiceRequestID == requestID && q.Status.IsActive() {
			out = append(out, &q)
		}
	}
	return out, nil
}

// InsertQuotation enforces the one-active-quotation index.
func (tx *memTx) InsertQuotation(ctx context.Context, q *workflow.Quotation) error {
	for _, existing := range tx.t.quotations {
		if existing.ServiceRequestID == q.ServiceRequestID && existing.Status.IsActive() && q.Status.IsActive() {
			return apperror.Conflict("service request %s already has an active quotation", q.ServiceRequestID)
		}
	}
	tx.t.quotations[q.ID] = *q
	return nil
}

func (tx *memTx) SaveQuotation(ctx context.Context, q *workflow.Quotation, expected workflow.QuotationStatus) error {
	if tx.m.FailQuotationSave != nil {
		if err := tx.m.FailQuotationSave(q.ID); err != nil {
			return err
		}
	}
	cur, ok := tx.t.quotations[q.ID]
	if !ok || cur.Status != expected {
		return apperror.Stale("quotation")
	}
	tx.t.quotations[q.ID] = *q
	return nil
}

func (tx *memTx) LockRecord(ctx context.Context, id uuid.UUID) (*workflow.ServiceRecord, error) {
	rec, ok := tx.t.records[id]
	if !ok {
		return nil, apperror.NotFound("service record")
	}
	return &rec, nil
}

func (tx *memTx) InsertRecord(ctx context.Context, rec *workflow.ServiceRecord) error {
	for _, existing := range tx.t.records {
		if existing.ServiceRequestID == rec.ServiceRequestID {
			return apperror.Conflict("service request %s already has a service record", rec.ServiceRequestID)
		}
	}
	tx.t.records[rec.ID] = *rec
	return nil
}

func (tx *memTx) SaveRecord(ctx context.Context, rec *workflow.ServiceRecord, expected workflow.RecordStatus) error {
	cur, ok := tx.t.records[rec.ID]
	if !ok || cur.Status != expected {
		return apperror.Stale("service record")
	}
	tx.t.records[rec.ID] = *rec
	return nil
}

func (tx *memTx) LockInvoice(ctx context.Context, id uuid.UUID) (*workflow.Invoice, error) {
	inv, ok := tx.t.invoices[id]
	if !ok {
		return nil, apperror.NotFound("invoice")
	}
	return &inv, nil
}

func (tx *memTx) HasLiveInvoice(ctx context.Context, recordID uuid.UUID) (bool, error) {
	for _, inv := range tx.t.invoices {
		if inv.ServiceRecordID == recordID && inv.PaymentStatus != workflow.PaymentCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) InsertInvoice(ctx context.Context, inv *workflow.Invoice) error {
	live, _ := tx.HasLiveInvoice(ctx, inv.ServiceRecordID)
	if live {
		return apperror.Conflict("service record %s already has an invoice", inv.ServiceRecordID)
	}
	tx.t.invoices[inv.ID] = *inv
	return nil
}

func (tx *memTx) SaveInvoice(ctx context.Context, inv *workflow.Invoice, expected workflow.PaymentStatus) error {
	cur, ok := tx.t.invoices[inv.ID]
	if !ok || cur.PaymentStatus != expected {
		return apperror.Stale("invoice")
	}
	if inv.PaidAmount.IsNegative() || inv.PaidAmount.GreaterThan(inv.Total) {
		return apperror.Internal(nil, "paid_amount check constraint violated")
	}
	tx.t.invoices[inv.ID] = *inv
	return nil
}

func (tx *memTx) PaymentByKey(ctx context.Context, key string) (*workflow.Payment, error) {
	for _, p := range tx.t.payments {
		if key != "" && p.IdempotencyKey == key {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (tx *memTx) InsertPayment(ctx context.Context, p *workflow.Payment) error {
	if !p.Amount.IsPositive() {
		return apperror.Internal(nil, "amount check constraint violated")
	}
	tx.t.payments[p.ID] = *p
	return nil
}
