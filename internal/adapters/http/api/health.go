package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/shortlist/pkg/metrics"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pinger Pinger
}

// Pinger reports whether backing services are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler creates a new health handler. A nil pinger is always ready.
func NewHealthHandler(p Pinger) *HealthHandler {
	return &HealthHandler{pinger: p}
}

// HandleHealth handles GET /healthz by serving the Prometheus registry.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// HandleReady handles GET /readyz; it fails while the store is unreachable.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", ErrNotReady)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
