package transition

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes the generic transition endpoint.
type Handler struct{ dispatcher *Dispatcher }

func NewHandler(dispatcher *Dispatcher) *Handler { return &Handler{dispatcher: dispatcher} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/stores/{store_id}/transitions/{entity_type}/{entity_id}", h.transition)
	r.Get("/api/v1/stores/{store_id}/transitions/{entity_type}/{entity_id}/actions", h.actions)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	storeID, entity, id, err := params(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req Request
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	req.EntityType = entity
	req.EntityID = id
	out, err := h.dispatcher.RequestTransition(r.Context(), access.FromContext(r.Context()), storeID, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, out)
}

func (h *Handler) actions(w http.ResponseWriter, r *http.Request) {
	storeID, entity, id, err := params(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	out, err := h.dispatcher.Actions(r.Context(), access.FromContext(r.Context()), storeID, entity, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, out)
}

func params(r *http.Request) (storeID uuid.UUID, entity workflow.EntityType, id uuid.UUID, err error) {
	if storeID, err = httpx.UUIDParam("store_id", chi.URLParam(r, "store_id")); err != nil {
		return
	}
	entity = workflow.EntityType(chi.URLParam(r, "entity_type"))
	id, err = httpx.UUIDParam("entity_id", chi.URLParam(r, "entity_id"))
	return
}
