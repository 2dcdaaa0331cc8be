// Package app wires the process entrypoints: the Service Factory, the
// Orchestrator, and the thin chi router that exposes /healthz, /metrics,
// and /debug. Consumer-facing recommend() routing stays out of this
// package's scope.
package app

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/retail-reco/core/internal/adapter/httpserver"
	"github.com/retail-reco/core/internal/adapter/observability"
	"github.com/retail-reco/core/internal/config"
	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/orchestrator"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{"*"}
	}
	if s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the process entrypoint's thin HTTP handler: health,
// Prometheus metrics, and an admin-gated debug dump of the Service
// Factory/Orchestrator state. Per spec's Non-goals, recommend() is a library
// call the consumer's own application makes against the Orchestrator
// directly, not a route this router exposes.
func BuildRouter(cfg config.Config, orch *orchestrator.Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthzHandler(orch))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(wr chi.Router) {
		wr.Use(DebugGuard(cfg))
		wr.Get("/debug", debugHandler(orch))
	})

	return httpserver.SecurityHeaders(r)
}

func healthzHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := orch.HealthCheck(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status == domain.HealthUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}

func debugHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orch.Metrics())
	}
}
