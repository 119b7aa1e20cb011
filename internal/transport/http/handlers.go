package http

import (
	"net/http"

	"github.com/your-org/edge-gateway/internal/route"
	"github.com/your-org/edge-gateway/internal/service/cache"
	"github.com/your-org/edge-gateway/pkg/httputil"
)

// Handler serves the gateway's own endpoints.
type Handler struct {
	cache    *cache.Service
	registry *route.Registry
	version  string
}

// NewHandler creates the endpoint handler.
func NewHandler(cacheService *cache.Service, registry *route.Registry, version string) *Handler {
	return &Handler{
		cache:    cacheService,
		registry: registry,
		version:  version,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready reports readiness: the cache backend must be reachable and the
// route table populated.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"cache":  "ok",
		"routes": "ok",
	}
	status := http.StatusOK

	if !h.cache.Healthy(r.Context()) {
		checks["cache"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.registry.Len() == 0 {
		checks["routes"] = "empty"
	}

	httputil.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
