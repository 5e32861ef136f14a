// Package health serves the liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Status is the value of the status field in probe responses.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusReady    Status = "ready"
	StatusNotReady Status = "not ready"
)

// Response is the JSON body of both probes.
type Response struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Registrar is the subset of the router used to mount the probes.
type Registrar interface {
	HandleFunc(method, pattern string, fn http.HandlerFunc)
}

// Handlers serves /health and /ready.
type Handlers struct {
	forceUnready bool
	now          func() time.Time
}

// NewHandlers creates the probes. forceUnready pins readiness to 503.
func NewHandlers(forceUnready bool) *Handlers {
	return &Handlers{forceUnready: forceUnready, now: time.Now}
}

// Register mounts the probes on rt.
func (h *Handlers) Register(rt Registrar) {
	rt.HandleFunc(http.MethodGet, "/health", h.Live)
	rt.HandleFunc(http.MethodGet, "/ready", h.Ready)
}

// Live always reports healthy while the process can serve requests.
func (h *Handlers) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Status:    StatusHealthy,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// Ready reports not ready only when the fault policy forces it.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.forceUnready {
		writeJSON(w, http.StatusServiceUnavailable, Response{Status: StatusNotReady})
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: StatusReady})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
