package chaos

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wudi/faultbox/internal/errors"
	"github.com/wudi/faultbox/internal/extract"
	"github.com/wudi/faultbox/internal/faults"
	"github.com/wudi/faultbox/internal/logging"
	"github.com/wudi/faultbox/internal/observation"
	"go.uber.org/zap"
)

// Config holds the chaos endpoint parameters.
type Config struct {
	// DefaultLeakSize is used when the request gives no usable size
	DefaultLeakSize int
	// MaxLeakSize clamps requested leak growth
	MaxLeakSize int
	// DefaultSpike is the CPU spike length when no duration is given
	DefaultSpike time.Duration
	// MaxSpike clamps requested CPU spikes
	MaxSpike time.Duration
	// ErrorDelay is the wait of the "timeout" error selector
	ErrorDelay time.Duration
	// BodyLimit caps request bodies in bytes
	BodyLimit int64
}

// DefaultConfig returns the stock chaos parameters.
func DefaultConfig() Config {
	return Config{
		DefaultLeakSize: 1_000_000,
		MaxLeakSize:     10_000_000,
		DefaultSpike:    5 * time.Second,
		MaxSpike:        60 * time.Second,
		ErrorDelay:      5 * time.Second,
		BodyLimit:       extract.DefaultBodyLimit,
	}
}

// CPURecorder accumulates busy-spin time.
type CPURecorder interface {
	RecordCPUSpike(d time.Duration)
}

// Registrar is the subset of the router used to mount the endpoints.
type Registrar interface {
	HandleFunc(method, pattern string, fn http.HandlerFunc)
}

// Handlers serves the /api/debug endpoints.
type Handlers struct {
	cfg  Config
	leak *LeakBuffer
	cpu  CPURecorder

	errorType extract.Func
}

// NewHandlers creates the debug handlers around a process-wide leak buffer.
// cpu may be nil.
func NewHandlers(cfg Config, leak *LeakBuffer, cpu CPURecorder) *Handlers {
	def := DefaultConfig()
	if cfg.DefaultLeakSize <= 0 {
		cfg.DefaultLeakSize = def.DefaultLeakSize
	}
	if cfg.MaxLeakSize <= 0 {
		cfg.MaxLeakSize = def.MaxLeakSize
	}
	if cfg.DefaultSpike <= 0 {
		cfg.DefaultSpike = def.DefaultSpike
	}
	if cfg.MaxSpike <= 0 {
		cfg.MaxSpike = def.MaxSpike
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = def.ErrorDelay
	}
	return &Handlers{
		cfg:       cfg,
		leak:      leak,
		cpu:       cpu,
		errorType: extract.Build("query:type"),
	}
}

// Register mounts the endpoints on rt.
func (h *Handlers) Register(rt Registrar) {
	rt.HandleFunc(http.MethodPost, "/api/debug/leak", h.Leak)
	rt.HandleFunc(http.MethodGet, "/api/debug/cpu-spike", h.CPUSpike)
	rt.HandleFunc(http.MethodGet, "/api/debug/error", h.Error)
	rt.HandleFunc(http.MethodPost, "/api/debug/reset", h.Reset)
}

// Leak grows the leak buffer by the requested number of entries, at most
// MaxLeakSize per request.
func (h *Handlers) Leak(w http.ResponseWriter, r *http.Request) {
	body, err := extract.JSONBody(w, r, h.cfg.BodyLimit)
	var maxErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxErr):
		errors.ErrRequestEntityTooLarge.WriteJSON(w)
		return
	case err != nil:
		errors.ErrBadRequest.WithDetails(err.Error()).WriteJSON(w)
		return
	}

	size := extract.PositiveInt(body, "size", h.cfg.DefaultLeakSize)
	if size > h.cfg.MaxLeakSize {
		size = h.cfg.MaxLeakSize
	}
	total := h.leak.Grow(size)

	logging.Warn("Leak buffer grown",
		zap.Int("added", size),
		zap.Int("total", total),
		zap.Int("chunks", h.leak.Chunks()),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Added %d items to memory leak", size),
		"added":   size,
		"total":   total,
	})
}

// CPUSpike busy-spins the serving goroutine for the requested duration in
// milliseconds. The runtime preempts the loop, so other requests are still
// served, but one OS thread stays saturated until the deadline.
func (h *Handlers) CPUSpike(w http.ResponseWriter, r *http.Request) {
	ms := extract.QueryInt(r, "duration", int(h.cfg.DefaultSpike.Milliseconds()))
	if limit := int(h.cfg.MaxSpike.Milliseconds()); ms > limit {
		ms = limit
	}
	d := time.Duration(ms) * time.Millisecond

	start := time.Now()
	_ = spin(start.Add(d))
	elapsed := time.Since(start)

	if h.cpu != nil {
		h.cpu.RecordCPUSpike(elapsed)
	}
	logging.Warn("CPU spike completed", zap.Duration("duration", d))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("CPU spike for %dms completed", d.Milliseconds()),
	})
}

func spin(deadline time.Time) float64 {
	x := 1.0
	for time.Now().Before(deadline) {
		for i := 0; i < 1000; i++ {
			x = x*1.0000001 + 0.5
		}
	}
	return x
}

// Error answers with the outcome named by the type query parameter.
func (h *Handlers) Error(w http.ResponseWriter, r *http.Request) {
	switch h.errorType(r) {
	case "400":
		errors.ErrBadRequest.WriteJSON(w)
	case "", "500":
		errors.ErrInternalServer.WriteJSON(w)
	case "timeout":
		if err := faults.Wait(r.Context(), h.cfg.ErrorDelay); err != nil {
			observation.FromRequest(r).Canceled = true
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Delayed response"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "No error"})
	}
}

// Reset empties the leak buffer.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.leak.Reset()
	logging.Info("Debug state reset")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Debug state reset"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
