package expiry

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes the manual sweep endpoint.
type Handler struct{ sweeper *Sweeper }

func NewHandler(sweeper *Sweeper) *Handler { return &Handler{sweeper: sweeper} }

// RegisterRoutes exposes an on-demand sweep to platform admins.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(access.RequireRole(access.RolePlatformAdmin)).Post("/api/v1/admin/sweeps", h.sweep)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.sweeper.Sweep(r.Context()))
}
