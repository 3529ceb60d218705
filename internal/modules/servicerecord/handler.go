package servicerecord

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes service record HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/stores/{store_id}/service-records", h.create)
	r.Get("/api/v1/stores/{store_id}/service-records", h.list)
	r.Get("/api/v1/stores/{store_id}/service-records/{record_id}", h.get)
	r.Post("/api/v1/stores/{store_id}/service-records/{record_id}/start", h.progress(Service.Start))
	r.Post("/api/v1/stores/{store_id}/service-records/{record_id}/hold", h.progress(Service.Hold))
	r.Post("/api/v1/stores/{store_id}/service-records/{record_id}/resume", h.progress(Service.Resume))
	r.Post("/api/v1/stores/{store_id}/service-records/{record_id}/complete", h.complete)
	r.Get("/api/v1/me/service-records", h.listMine)
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
	rec, err := h.service.Create(r.Context(), access.FromContext(r.Context()), storeID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, rec)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	rec, err := h.service.Get(r.Context(), access.FromContext(r.Context()), storeID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, rec)
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

type progressFunc func(s Service, ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error)

func (h *Handler) progress(fn progressFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, id, err := ids(r)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		var req ProgressRequest
		if err := httpx.DecodeOptional(r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
		rec, err := fn(h.service, r.Context(), access.FromContext(r.Context()), storeID, id, req.Notes)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.Respond(w, http.StatusOK, rec)
	}
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	storeID, id, err := ids(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req CompleteRequest
	if err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	rec, err := h.service.Complete(r.Context(), access.FromContext(r.Context()), storeID, id, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, rec)
}

func ids(r *http.Request) (storeID, id uuid.UUID, err error) {
	if storeID, err = httpx.UUIDParam("store_id", chi.URLParam(r, "store_id")); err != nil {
		return
	}
	id, err = httpx.UUIDParam("record_id", chi.URLParam(r, "record_id"))
	return
}

func filter(r *http.Request) (workflow.Filter, error) {
	limit, offset, err := httpx.Page(r)
	if err != nil {
		return workflow.Filter{}, err
	}
	f := workflow.Filter{Status: r.URL.Query().Get("status"), Limit: limit, Offset: offset}
	switch workflow.RecordStatus(f.Status) {
	case "", workflow.RecordPending, workflow.RecordInProgress, workflow.RecordOnHold, workflow.RecordCompleted:
	default:
		return workflow.Filter{}, apperror.Field("status", "unknown service record status "+f.Status)
	}
	return f, nil
}
