package bike

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Handler exposes bike HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/bikes", h.register)
	r.Get("/api/v1/bikes", h.listMine)
	r.Get("/api/v1/bikes/{bike_id}", h.get)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterBikeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	b, err := h.service.RegisterBike(r.Context(), access.FromContext(r.Context()), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, b)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	bikes, err := h.service.ListMyBikes(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, bikes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam("bike_id", chi.URLParam(r, "bike_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	b, err := h.service.GetBike(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, b)
}
