package invoice

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// IdempotencyHeader may carry the payment idempotency key instead of the body.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes invoice and payment HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/stores/{store_id}/invoices", h.create)
	r.Get("/api/v1/stores/{store_id}/invoices", h.list)
	r.Get("/api/v1/stores/{store_id}/invoices/{invoice_id}", h.get)
	r.Post("/api/v1/stores/{store_id}/invoices/{invoice_id}/payments", h.recordPayment)
	r.Get("/api/v1/stores/{store_id}/invoices/{invoice_id}/payments", h.listPayments)
	r.Post("/api/v1/stores/{store_id}/invoices/{invoice_id}/cancel", h.cancel)
	r.Get("/api/v1/me/invoices", h.listMine)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), access.FromContext(r.Context()), storeID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	f, err := filter(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	list, err := h.service.List(r.Context(), access.FromContext(r.Context()), storeID, f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, list)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	f, err := filter(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	list, err := h.service.ListMine(r.Context(), access.FromContext(r.Context()), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, list)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if key := r.Header.Get(IdempotencyHeader); key != "" {
		if req.IdempotencyKey != "" && req.IdempotencyKey != key {
			httpx.Error(w, apperror.Field("idempotency_key", "does not match the "+IdempotencyHeader+" header"))
			return
		}
		req.IdempotencyKey = key
	}
	res, err := h.service.RecordPayment(r.Context(), access.FromContext(r.Context()), storeID, id, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, res)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	list, err := h.service.ListPayments(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, list)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.service.Cancel(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, inv)
}

func ids(r *http.Request) (storeID, id uuid.UUID, err error) {
	if storeID, err = httpx.UUIDParam("store_id", chi.URLParam(r, "store_id")); err != nil {
		return
	}
	id, err = httpx.UUIDParam("invoice_id", chi.URLParam(r, "invoice_id"))
	return
}

func filter(r *http.Request) (workflow.Filter, error) {
	limit, offset, err := httpx.Page(r)
	if err != nil {
		return workflow.Filter{}, err
	}
	f := workflow.Filter{Status: r.URL.Query().Get("status"), Limit: limit, Offset: offset}
	switch workflow.PaymentStatus(f.Status) {
	case "", workflow.PaymentPending, workflow.PaymentPartial, workflow.PaymentPaid,
		workflow.PaymentOverdue, workflow.PaymentCancelled:
	default:
		return workflow.Filter{}, apperror.Field("status", "unknown payment status "+f.Status)
	}
	return f, nil
}
