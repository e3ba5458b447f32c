// Package httptransport assembles the public HTTP surface from the feature
// handlers. Business logic lives in the feature services; this layer only
// mounts routes and operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of a backing resource.
type HealthChecker func() error

// NewRouter wires all public endpoints.
func NewRouter(handlers []Registrar, health HealthChecker) http.Handler {
	r := chi.NewRouter()

	for _, h := range handlers {
		h.Register(r)
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}
