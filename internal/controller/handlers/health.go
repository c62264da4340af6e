package handlers

import (
	"net/http"
	"strconv"

	"warehousesim/pkg/api"
)

// Healthz is a liveness probe.
// It returns 200 OK if the server is running.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is a readiness probe.
// The API is ready only while the configured store backend answers a ping;
// both responses name the backend.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	backend := h.opts.Backend
	if backend == "" {
		backend = "unknown"
	}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "backend", backend, "error", err)
		h.respondJson(w, http.StatusServiceUnavailable, api.ErrorResponse{
			Error:   "Database unavailable",
			Code:    strconv.Itoa(http.StatusServiceUnavailable),
			Details: backend + " store did not answer",
		})
		return
	}
	h.respondJson(w, http.StatusOK, map[string]string{"status": "ready", "backend": backend})
}
