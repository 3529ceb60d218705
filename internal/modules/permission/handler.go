package permission

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes the catalog. The catalog is public reference data.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/permissions", h.list)
	r.Get("/api/v1/permissions/bundles", h.bundles)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, map[string][]Permission{"permissions": All()})
}

func (h *Handler) bundles(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, Bundles())
}
