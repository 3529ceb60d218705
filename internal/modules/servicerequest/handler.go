package servicerequest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes service request HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/stores/{store_id}/service-requests", h.create)
	r.Get("/api/v1/stores/{store_id}/service-requests", h.list)
	r.Get("/api/v1/stores/{store_id}/service-requests/{request_id}", h.get)
	r.Post("/api/v1/stores/{store_id}/service-requests/{request_id}/cancel", h.cancel)
	r.Get("/api/v1/me/service-requests", h.listMine)
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
	sr, err := h.service.Create(r.Context(), access.FromContext(r.Context()), storeID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, sr)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	sr, err := h.service.Get(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, sr)
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

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req CancelRequest
	if err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	sr, err := h.service.Cancel(r.Context(), access.FromContext(r.Context()), storeID, id, req.Reason)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, sr)
}

func ids(r *http.Request) (storeID, id uuid.UUID, err error) {
	if storeID, err = httpx.UUIDParam("store_id", chi.URLParam(r, "store_id")); err != nil {
		return
	}
	id, err = httpx.UUIDParam("request_id", chi.URLParam(r, "request_id"))
	return
}

func filter(r *http.Request) (workflow.Filter, error) {
	limit, offset, err := httpx.Page(r)
	if err != nil {
		return workflow.Filter{}, err
	}
	status := r.URL.Query().Get("status")
	if status != "" {
		switch workflow.RequestStatus(status) {
		case workflow.RequestPending, workflow.RequestQuoted, workflow.RequestApproved, workflow.RequestInProgress,
			workflow.RequestCompleted, workflow.RequestCancelled, workflow.RequestExpired:
		default:
			return workflow.Filter{}, apperror.Field("status", "unknown service request status "+status)
		}
	}
	return workflow.Filter{Status: status, Limit: limit, Offset: offset}, nil
}
