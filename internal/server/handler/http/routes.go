package http

import (
	"net/http"

	"github.com/atinyakov/OfficeSync/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// document service API.
//
// Routes:
//
//	GET /api/health              → Health
//	GET /api/tasks/stats         → feedHandler.TaskStats
//	GET /api/{entity}/changes    → feedHandler.Changes
//	PUT /api/{entity}            → feedHandler.Put (JSON only)
//
// Middleware chain (applied in order):
//  1. RequestID                  - assigns or propagates X-Request-ID
//  2. WithRequestLogging(logger) - logs every request
//  3. Recoverer                  - turns handler panics into 500s
func NewRouter(feedHandler *FeedHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)
		r.Get("/tasks/stats", feedHandler.TaskStats)
		r.Get("/{entity}/changes", feedHandler.Changes)

		r.Group(func(r chi.Router) {
			// Only allow writes with Content-Type: application/json
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Put("/{entity}", feedHandler.Put)
		})
	})

	return r
}
