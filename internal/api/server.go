// Package api provides the HTTP chassis for the escalation worker. It builds
// a chi router with the cross-cutting middleware (panic recovery, request IDs,
// request logging) and exposes the JSON response helpers used by the handler
// packages. Domain routes are attached through V1RouteRegistrars so the
// chassis does not import its handlers.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// RouteRegistrar attaches routes under the /v1 group.
type RouteRegistrar func(r chi.Router)

// Server holds the router and the dependencies shared by every request.
type Server struct {
	Logger    *slog.Logger
	Validator *validator.Validate

	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe

	// MetricsHandler is mounted at GET /metrics when non-nil.
	MetricsHandler http.Handler

	V1RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer creates a Server with an empty router. Call MountRoutes after
// setting probes, metrics and registrars.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Server{
		Logger:    logger,
		Validator: v,
		router:    chi.NewRouter(),
	}, nil
}

// jsonFieldName reports validation failures under the JSON field name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}
