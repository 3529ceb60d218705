package store

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes store and staff HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/stores", h.createStore)
	r.Get("/api/v1/stores", h.listStores)
	r.Get("/api/v1/stores/{store_id}", h.getStore)
	r.Patch("/api/v1/stores/{store_id}/active", h.setActive)
	r.Get("/api/v1/stores/{store_id}/permissions/me", h.myPermissions)

	// Staff endpoints
	r.Post("/api/v1/stores/{store_id}/staff", h.addStaff)
	r.Get("/api/v1/stores/{store_id}/staff", h.listStaff)
	r.Put("/api/v1/stores/{store_id}/staff/{user_id}/permissions", h.updatePermissions)
	r.Delete("/api/v1/stores/{store_id}/staff/{user_id}", h.removeStaff)
}

func (h *Handler) createStore(w http.ResponseWriter, r *http.Request) {
	var req CreateStoreRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	st, err := h.service.CreateStore(r.Context(), access.FromContext(r.Context()), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, st)
}

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, stores)
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	st, err := h.service.GetStore(r.Context(), access.FromContext(r.Context()), storeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, st)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req SetActiveRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	st, err := h.service.SetActive(r.Context(), access.FromContext(r.Context()), storeID, *req.IsActive)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, st)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	perms, err := h.service.MyPermissions(r.Context(), access.FromContext(r.Context()), storeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"store_id": storeID, "permissions": perms})
}

func (h *Handler) addStaff(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req AddStaffRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	g, err := h.service.AddStaff(r.Context(), access.FromContext(r.Context()), storeID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, g)
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	grants, err := h.service.ListStaff(r.Context(), access.FromContext(r.Context()), storeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, grants)
}

func (h *Handler) updatePermissions(w http.ResponseWriter, r *http.Request) {
	storeID, userID, err := staffParams(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req UpdatePermissionsRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	g, err := h.service.UpdateStaffPermissions(r.Context(), access.FromContext(r.Context()), storeID, userID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, g)
}

func (h *Handler) removeStaff(w http.ResponseWriter, r *http.Request) {
	storeID, userID, err := staffParams(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.service.RemoveStaff(r.Context(), access.FromContext(r.Context()), storeID, userID); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func staffParams(r *http.Request) (storeID, userID uuid.UUID, err error) {
	storeID, err = httpx.UUIDParam("store_id", chi.URLParam(r, "store_id"))
	if err != nil {
		return
	}
	userID, err = httpx.UUIDParam("user_id", chi.URLParam(r, "user_id"))
	return
}
