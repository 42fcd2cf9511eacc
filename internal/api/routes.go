package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"policyportal/internal/types"
)

// MountRoutes registers the middleware chain, the /v1 group and the
// top-level routes.
//
// Middleware order:
//  1. Recoverer      - outermost so every panic is caught.
//  2. RequestID      - correlation ID for the logger and error envelopes.
//  3. RequestLogger  - sees the final status.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusNotFound, APIErrorResponse{
			Error: ErrorDetail{
				Code:      "not_found_route",
				Message:   "route not found",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
	})

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})
}
