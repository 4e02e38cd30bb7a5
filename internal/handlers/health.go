package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/startup"
	"media-catalog/internal/stats"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	Sync    indexer.HealthStatus `json:"sync"`
	Stats   stats.Snapshot       `json:"stats"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns detailed status: synchronizer state, cached counters
// and runtime information. It answers 503 until the first sync completes.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	sync := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Sync:         sync,
		Stats:        h.stats.Get(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	code := http.StatusOK
	switch {
	case !sync.Ready:
		response.Status = statusStarting
		code = http.StatusServiceUnavailable
	case sync.LastError != "":
		response.Status = statusDegraded
	}
	writeJSON(w, code, response)
}

// LivenessCheck answers 200 while the process can reach its database.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logging.Warn("Liveness check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only once the initial synchronization is done.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	code, status := http.StatusOK, "ready"
	if !h.indexer.IsReady() {
		code, status = http.StatusServiceUnavailable, "not_ready"
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(code)
		return
	}
	writeJSON(w, code, map[string]string{"status": status})
}
