package invoice_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/access/accesstest"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/invoice"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/notify"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow/workflowtest"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
)

var start = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type env struct {
	store    *workflowtest.Memory
	members  *accesstest.Membership
	clock    *clock.Fixed
	svc      invoice.Service
	storeID  uuid.UUID
	owner    *access.Actor
	cashier  *access.Actor
	customer *access.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    workflowtest.New(),
		clock:    clock.NewFixed(start),
		storeID:  uuid.New(),
		owner:    &access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner},
		cashier:  &access.Actor{ID: uuid.New(), Role: access.RoleStaff},
		customer: &access.Actor{ID: uuid.New(), Role: access.RoleCustomer},
	}
	members := accesstest.NewMembership()
	e.members = members
	members.AddStore(e.storeID, e.owner.ID)
	members.Grant(e.cashier.ID, e.storeID, permission.ViewInvoices, permission.UpdateInvoices)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.svc = invoice.NewService(e.store, access.NewKernel(members), e.clock, notify.Discard{}, logger, 14)
	return e
}

// seedCompleted stores a completed record whose request has an approved
// quotation for 40.00 plus 10% tax.
func (e *env) seedCompleted() (workflow.ServiceRecord, workflow.Quotation) {
	sr := workflow.ServiceRequest{ID: uuid.New(), StoreID: e.storeID, CustomerID: e.customer.ID, Status: workflow.RequestCompleted}
	totals, _ := workflow.PriceItems([]workflow.LineItem{
		{Description: "Brake pads", Quantity: dec("1"), UnitPrice: dec("25")},
		{Description: "Chain lube", Quantity: dec("1"), UnitPrice: dec("15")},
	}, dec("10"))
	approvedAt := start.Add(-48 * time.Hour)
	q := workflow.Quotation{ID: uuid.New(), ServiceRequestID: sr.ID, StoreID: e.storeID, CustomerID: e.customer.ID,
		Status: workflow.QuotationApproved, Items: totals.Items, Subtotal: totals.Subtotal, TaxRate: totals.TaxRate,
		TaxAmount: totals.TaxAmount, Total: totals.Total, ApprovedAt: &approvedAt}
	rec := workflow.ServiceRecord{ID: uuid.New(), ServiceRequestID: sr.ID, StoreID: e.storeID, CustomerID: e.customer.ID,
		Status: workflow.RecordCompleted}
	e.store.PutRequest(sr)
	e.store.PutQuotation(q)
	e.store.PutRecord(rec)
	return rec, q
}

func (e *env) seedInvoice(total, paid string, due time.Time) workflow.Invoice {
	inv := workflow.Invoice{ID: uuid.New(), ServiceRecordID: uuid.New(), StoreID: e.storeID, CustomerID: e.customer.ID,
		Number: "INV-20260310-AAAAAAAA", Total: dec(total), PaidAmount: dec(paid), DueDate: due}
	inv.PaymentStatus = workflow.DerivePaymentStatus(inv.PaidAmount, inv.Total, inv.DueDate, false, start)
	e.store.PutInvoice(inv)
	return inv
}

func TestCreate_SeedsFromApprovedQuotation(t *testing.T) {
	e := newEnv(t)
	rec, q := e.seedCompleted()

	inv, err := e.svc.Create(context.Background(), e.owner, e.storeID, invoice.CreateRequest{ServiceRecordID: rec.ID.String()})
	require.NoError(t, err)

	assert.Equal(t, "44.00", inv.Total.StringFixed(2))
	require.NotNil(t, inv.QuotationID)
	assert.Equal(t, q.ID, *inv.QuotationID)
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, workflow.PaymentPending, inv.PaymentStatus)
	assert.Equal(t, start.AddDate(0, 0, 14), inv.DueDate)
	assert.True(t, strings.HasPrefix(inv.Number, "INV-20260310-"), inv.Number)

	_, err = e.svc.Create(context.Background(), e.owner, e.storeID, invoice.CreateRequest{ServiceRecordID: rec.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestCreate_ExplicitItems(t *testing.T) {
	e := newEnv(t)
	rec, _ := e.seedCompleted()
	zero := decimal.Zero

	inv, err := e.svc.Create(context.Background(), e.owner, e.storeID, invoice.CreateRequest{
		ServiceRecordID: rec.ID.String(),
		Items:           []invoice.ItemInput{{Description: "Labour", Quantity: dec("2"), UnitPrice: dec("12.50")}},
		TaxRate:         &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "25.00", inv.Total.StringFixed(2))
	assert.Nil(t, inv.QuotationID)
}

func TestCreate_RequiresCompletedRecord(t *testing.T) {
	e := newEnv(t)
	rec := workflow.ServiceRecord{ID: uuid.New(), ServiceRequestID: uuid.New(), StoreID: e.storeID, CustomerID: e.customer.ID,
		Status: workflow.RecordInProgress}
	e.store.PutRecord(rec)

	_, err := e.svc.Create(context.Background(), e.owner, e.storeID, invoice.CreateRequest{
		ServiceRecordID: rec.ID.String(),
		Items:           []invoice.ItemInput{{Description: "Labour", Quantity: dec("1"), UnitPrice: dec("10")}},
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = e.svc.Create(context.Background(), e.cashier, e.storeID, invoice.CreateRequest{ServiceRecordID: rec.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRecordPayment_OverpaymentChangesNothing(t *testing.T) {
	e := newEnv(t)
	inv := e.seedInvoice("150.00", "0", start.AddDate(0, 0, 14))

	res, err := e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID,
		invoice.PaymentRequest{Amount: dec("80"), Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, workflow.PaymentPartial, res.Invoice.PaymentStatus)
	assert.Equal(t, workflow.MethodCash, res.Payment.Method)

	_, err = e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID,
		invoice.PaymentRequest{Amount: dec("70.01"), Method: "CASH"})
	require.ErrorIs(t, err, apperror.ErrConflict)

	stored, err := e.store.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(dec("80")), stored.PaidAmount.String())
	assert.Equal(t, workflow.PaymentPartial, stored.PaymentStatus)
	payments, err := e.store.ListPayments(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	res, err = e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID,
		invoice.PaymentRequest{Amount: dec("70"), Method: "MTN_MOMO"})
	require.NoError(t, err)
	assert.Equal(t, workflow.PaymentPaid, res.Invoice.PaymentStatus)

	_, err = e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID,
		invoice.PaymentRequest{Amount: dec("1"), Method: "CASH"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestRecordPayment_InputValidation(t *testing.T) {
	e := newEnv(t)
	inv := e.seedInvoice("50", "0", start.AddDate(0, 0, 14))

	tests := []struct {
		name string
		req  invoice.PaymentRequest
	}{
		{"zero amount", invoice.PaymentRequest{Amount: decimal.Zero, Method: "CASH"}},
		{"negative amount", invoice.PaymentRequest{Amount: dec("-5"), Method: "CASH"}},
		{"three decimals", invoice.PaymentRequest{Amount: dec("1.005"), Method: "CASH"}},
		{"unknown method", invoice.PaymentRequest{Amount: dec("5"), Method: "CHEQUE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID, tt.req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestRecordPayment_IdempotencyKey(t *testing.T) {
	e := newEnv(t)
	inv := e.seedInvoice("100", "0", start.AddDate(0, 0, 14))
	other := e.seedInvoice("100", "0", start.AddDate(0, 0, 14))
	req := invoice.PaymentRequest{Amount: dec("40"), Method: "CARD", IdempotencyKey: "till-7-0042"}

	first, err := e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID, req)
	require.NoError(t, err)
	retry, err := e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, inv.ID, req)
	require.NoError(t, err)
	assert.Equal(t, first.Payment.ID, retry.Payment.ID)

	stored, err := e.store.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(dec("40")))

	_, err = e.svc.RecordPayment(context.Background(), e.cashier, e.storeID, other.ID, req)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestCancel(t *testing.T) {
	e := newEnv(t)
	open := e.seedInvoice("100", "20", start.AddDate(0, 0, 14))
	paid := e.seedInvoice("100", "100", start.AddDate(0, 0, 14))

	cancelled, err := e.svc.Cancel(context.Background(), e.owner, e.storeID, open.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.PaymentCancelled, cancelled.PaymentStatus)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = e.svc.Cancel(context.Background(), e.owner, e.storeID, open.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = e.svc.Cancel(context.Background(), e.owner, e.storeID, paid.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestGet_ReportsOverdueBeforeTheSweep(t *testing.T) {
	e := newEnv(t)
	inv := e.seedInvoice("100", "10", start.Add(24*time.Hour))
	e.clock.Advance(48 * time.Hour)

	got, err := e.svc.Get(context.Background(), e.customer, e.storeID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.PaymentOverdue, got.PaymentStatus)

	stored, err := e.store.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.PaymentPartial, stored.PaymentStatus)

	_, err = e.svc.Get(context.Background(), &access.Actor{ID: uuid.New(), Role: access.RoleCustomer}, e.storeID, inv.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestHandler_PaymentWithIdempotencyHeader(t *testing.T) {
	e := newEnv(t)
	inv := e.seedInvoice("100", "0", start.AddDate(0, 0, 14))

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(access.WithActor(r.Context(), e.cashier)))
		})
	})
	invoice.NewHandler(e.svc).RegisterRoutes(router)

	post := func(body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost,
			"/api/v1/stores/"+e.storeID.String()+"/invoices/"+inv.ID.String()+"/payments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(invoice.IdempotencyHeader, key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"amount":"25.00","method":"airtel_money"}`, "pos-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first invoice.PaymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, workflow.PaymentPartial, first.Invoice.PaymentStatus)

	rec = post(`{"amount":"25.00","method":"airtel_money"}`, "pos-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var retry invoice.PaymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &retry))
	assert.Equal(t, first.Payment.ID, retry.Payment.ID)

	rec = post(`{"amount":"25.00","method":"cash","idempotency_key":"other"}`, "pos-1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = post(`{"amount":"500","method":"cash"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInactiveStoreRefusesCustomers(t *testing.T) {
	e := newEnv(t)
	inv := e.seedInvoice("150", "0", start.AddDate(0, 0, 14))
	e.members.SetStoreActive(e.storeID, false)

	_, err := e.svc.Get(context.Background(), e.customer, e.storeID, inv.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = e.svc.ListPayments(context.Background(), e.customer, e.storeID, inv.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
