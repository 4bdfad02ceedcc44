package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	personaModel "github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/pkg/utils"
)

// Handler exposes the persona registry to clients.
type Handler struct {
	registry personaModel.Registry
}

// New creates the persona handler.
func New(registry personaModel.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes mounts the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleList)
	r.Get("/personas/{personaID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	p, ok := h.registry.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
