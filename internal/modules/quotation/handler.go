package quotation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes quotation HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/stores/{store_id}/quotations", h.create)
	r.Get("/api/v1/stores/{store_id}/quotations", h.list)
	r.Get("/api/v1/stores/{store_id}/quotations/{quotation_id}", h.get)
	r.Post("/api/v1/stores/{store_id}/quotations/{quotation_id}/send", h.send)
	r.Post("/api/v1/stores/{store_id}/quotations/{quotation_id}/approve", h.approve)
	r.Post("/api/v1/stores/{store_id}/quotations/{quotation_id}/reject", h.reject)
	r.Get("/api/v1/me/quotations", h.listMine)
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
	q, err := h.service.Create(r.Context(), access.FromContext(r.Context()), storeID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, q)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, q)
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

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	q, err := h.service.Send(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, q)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	q, err := h.service.Approve(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, q)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req RejectRequest
	if err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	q, err := h.service.Reject(r.Context(), access.FromContext(r.Context()), storeID, id, req.Reason)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, q)
}

func ids(r *http.Request) (storeID, id uuid.UUID, err error) {
	if storeID, err = httpx.UUIDParam("store_id", chi.URLParam(r, "store_id")); err != nil {
		return
	}
	id, err = httpx.UUIDParam("quotation_id", chi.URLParam(r, "quotation_id"))
	return
}

func filter(r *http.Request) (workflow.Filter, error) {
	limit, offset, err := httpx.Page(r)
	if err != nil {
		return workflow.Filter{}, err
	}
	f := workflow.Filter{Status: r.URL.Query().Get("status"), Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("service_request_id"); raw != "" {
		if f.ServiceRequestID, err = httpx.UUIDParam("service_request_id", raw); err != nil {
			return workflow.Filter{}, err
		}
	}
	switch workflow.QuotationStatus(f.Status) {
	case "", workflow.QuotationDraft, workflow.QuotationSent, workflow.QuotationApproved,
		workflow.QuotationRejected, workflow.QuotationExpired:
	default:
		return workflow.Filter{}, apperror.Field("status", "unknown quotation status "+f.Status)
	}
	return f, nil
}
