package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker backs the /healthz and /readyz probes. Liveness is
// unconditional; readiness flips on once startup recovery has finished and
// flips off again during shutdown so the load balancer drains first.
type HealthChecker struct {
	ready   atomic.Bool
	started time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }
func (h *HealthChecker) IsReady() bool       { return h.ready.Load() }

// LivenessHandler answers 200 whenever the process can serve HTTP at all.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, map[string]any{
		"status":         "alive",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// ReadinessHandler answers 200 once the database is migrated, NATS streams
// exist, and state recovery has completed; 503 before and during shutdown.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeProbe(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeProbe(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeProbe(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
