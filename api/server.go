/*
server.go - HTTP router and middleware configuration

ROUTER: chi
  Lightweight, context-based, RESTful route patterns.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/pools", func(r chi.Router) {
			r.Get("/current", h.GetCurrentPool)
			r.Post("/current/challengers", h.EnrollChallenger)
			r.Get("/available", h.ListAvailablePools)
			r.Get("/open", h.ListOpenPools)
			r.Get("/last-ended", h.GetLastEndedPool)
			r.Get("/last-finished", h.GetLastFinishedPool)
			r.Get("/{id}", h.GetPool)
			r.Get("/{id}/prize", h.GetPrize)
			r.Get("/{id}/challengers", h.ListChallengers)
			r.Get("/{id}/challengers/active", h.ListActiveChallengers)
			r.Post("/{id}/recalculate", h.RecalculateAward)
		})

		r.Route("/challengers", func(r chi.Router) {
			r.Post("/{id}/activity", h.SetActivity)
		})
	})

	return r
}
