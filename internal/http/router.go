// Package httpapi assembles the HTTP surface: middleware chain, operational
// endpoints and the listing routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	listinghandler "vendemos/internal/listing/handler"
	"vendemos/internal/platform/metrics"
	"vendemos/pkg/platform/httputil"
	authmw "vendemos/pkg/platform/middleware/auth"
	"vendemos/pkg/platform/middleware/metadata"
	"vendemos/pkg/platform/middleware/request"
	"vendemos/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps holds what the router needs. Metrics, MetricsHandler and Health are
// optional.
type Deps struct {
	Logger         *slog.Logger
	Listings       *listinghandler.Handler
	Validator      authmw.JWTValidator
	Metrics        *metrics.HTTP
	MetricsHandler http.Handler
	Health         map[string]HealthCheck
}

// NewRouter wires all public endpoints. Writes require a bearer token; reads
// accept one when present so the actor is known in logs.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(chimw.AllowContentType("application/json"))
		r.Use(authmw.OptionalAuth(deps.Validator, deps.Logger))
		r.With(authmw.RequireAuth(deps.Validator, deps.Logger)).Group(func(r chi.Router) {
			deps.Listings.RegisterWrites(r)
		})
		deps.Listings.RegisterReads(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: "method_not_allowed"})
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{"checks": results})
	}
}
