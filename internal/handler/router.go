package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jordanmt/career-compass/backend/internal/auth"
	"github.com/jordanmt/career-compass/backend/internal/blob"
	chathandler "github.com/jordanmt/career-compass/backend/internal/handler/chat"
	personahandler "github.com/jordanmt/career-compass/backend/internal/handler/persona"
	wshandler "github.com/jordanmt/career-compass/backend/internal/handler/ws"
	middlewarePkg "github.com/jordanmt/career-compass/backend/internal/middleware"
	personaModel "github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/ratelimit"
	"github.com/jordanmt/career-compass/backend/internal/service/turn"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

// Deps aggregates the collaborators the HTTP surface needs.
type Deps struct {
	Registry personaModel.Registry
	Turns    *turn.Manager
	Store    storage.Store
	Verifier *auth.Verifier
	Limiter  ratelimit.Limiter
	Quotas   chathandler.Quotas
	Blobs    *blob.LocalStore // nil disables file serving
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := personahandler.New(deps.Registry)
	chatHandler := chathandler.New(deps.Turns, deps.Store, deps.Limiter, deps.Quotas)
	wsHandler := wshandler.New(deps.Turns, deps.Store)

	r.Route("/api", func(api chi.Router) {
		// Personas are public read-only data.
		personaHandler.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(deps.Verifier.Middleware)
			chatHandler.RegisterRoutes(authed)
			wsHandler.RegisterRoutes(authed)
		})
	})

	if deps.Blobs != nil {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(deps.Blobs.Dir())))
		r.Get("/files/*", fs.ServeHTTP)
	}

	return r
}
