package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks the liveness of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports the number of live websocket connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthHandler serves the health report.
type HealthHandler struct {
	store  Pinger // nil in memory mode
	cache  Pinger // nil when Redis is not configured
	hub    ConnectionCounter
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Nil pingers are reported as
// "disabled" rather than probed.
func NewHealthHandler(store, cache Pinger, hub ConnectionCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache, hub: hub, logger: logger}
}

// HealthCheck reports overall service health and per-dependency status.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"store":     h.probe(ctx, h.store, &status),
		"cache":     h.probe(ctx, h.cache, &status),
	}
	if h.hub != nil {
		report["ws_connections"] = h.hub.ConnectionCount()
	}
	if status != http.StatusOK {
		report["status"] = "degraded"
	}

	writeJSON(w, status, report)
}

func (h *HealthHandler) probe(ctx context.Context, p Pinger, status *int) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		h.logger.Error("health probe failed", slog.String("error", err.Error()))
		*status = http.StatusServiceUnavailable
		return "unreachable"
	}
	return "ok"
}
