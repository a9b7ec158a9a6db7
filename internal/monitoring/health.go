package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks engine liveness for the health endpoint.
type HealthChecker struct {
	mu         sync.RWMutex
	lastTick   time.Time
	lastErrors []string
	connected  bool
}

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastTick  time.Time `json:"last_tick"`
	Connected bool      `json:"connected"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = connected
}

func (h *HealthChecker) RecordTick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = time.Now()
	h.lastErrors = nil
}

func (h *HealthChecker) RecordError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErrors = append(h.lastErrors, message)
	if len(h.lastErrors) > 10 {
		h.lastErrors = h.lastErrors[1:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.connected || time.Since(h.lastTick) > time.Hour {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if len(h.lastErrors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		LastTick:  h.lastTick,
		Connected: h.connected,
		Uptime:    time.Since(startTime).String(),
		Errors:    h.lastErrors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
