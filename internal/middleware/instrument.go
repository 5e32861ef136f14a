package middleware

import (
	"net/http"
	"time"

	"github.com/wudi/faultbox/internal/logging"
	"github.com/wudi/faultbox/internal/observation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Recorder receives one sample per completed request plus in-flight
// adjustments. *metrics.Collector implements it.
type Recorder interface {
	RecordRequest(method, route string, statusCode int, duration time.Duration)
	RecordActiveRequest(delta int)
}

// InstrumentConfig configures the instrumentation middleware
type InstrumentConfig struct {
	// Route is the registered route pattern used as the metric label
	Route string
	// Recorder receives the request metrics; nil disables metrics
	Recorder Recorder
	// Logger overrides the global logger
	Logger *zap.Logger
}

// Instrument creates the instrumentation middleware for one route.
func Instrument(route string, rec Recorder) Middleware {
	return InstrumentWithConfig(InstrumentConfig{Route: route, Recorder: rec})
}

// InstrumentWithConfig creates the instrumentation middleware with custom
// config. It must be the outermost per-route middleware: it owns the
// request's Observation and emits the metrics and log record exactly once.
func InstrumentWithConfig(cfg InstrumentConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			obs := observation.New(r, cfg.Route)
			obs.RequestID = r.Header.Get(RequestIDHeader)

			sw := &statusWriter{ResponseWriter: w}

			if cfg.Recorder != nil {
				cfg.Recorder.RecordActiveRequest(1)
			}

			completed := false
			defer func() {
				if cfg.Recorder != nil {
					cfg.Recorder.RecordActiveRequest(-1)
				}
				status := sw.statusCode()
				switch {
				case !completed:
					// a panic escaped the inner chain
					obs.HandlerError = true
					status = http.StatusInternalServerError
				case !sw.wroteHeader && obs.Canceled:
					status = observation.StatusClientClosed
				}
				obs.Finish(status)
				if cfg.Recorder != nil {
					cfg.Recorder.RecordRequest(obs.Method, obs.Route, obs.Status, obs.Duration)
				}
				emit(cfg.Logger, obs)
			}()

			next.ServeHTTP(sw, r.WithContext(observation.NewContext(r.Context(), obs)))
			completed = true
		})
	}
}

// emit writes the request record at a level derived from its outcome.
func emit(l *zap.Logger, obs *observation.Observation) {
	if l == nil {
		l = logging.Global()
	}
	l.Log(levelFor(obs), "Request completed",
		zap.String("request_id", obs.RequestID),
		zap.String("method", obs.Method),
		zap.String("path", obs.Path),
		zap.String("route", obs.Route),
		zap.Int("status", obs.Status),
		zap.Duration("duration", obs.Duration),
		zap.Float64("duration_ms", float64(obs.Duration)/float64(time.Millisecond)),
		zap.Duration("delay", obs.Delay),
		zap.Bool("injected", obs.Injected),
		zap.Bool("handler_error", obs.HandlerError),
		zap.Bool("canceled", obs.Canceled),
	)
}

func levelFor(obs *observation.Observation) zapcore.Level {
	switch {
	case obs.Status < http.StatusInternalServerError:
		return zapcore.InfoLevel
	case obs.Injected:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// statusWriter records the status code written by inner handlers.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int64
}

func (sw *statusWriter) WriteHeader(status int) {
	if !sw.wroteHeader {
		sw.status = status
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.status = http.StatusOK
		sw.wroteHeader = true
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += int64(n)
	return n, err
}

// Flush implements http.Flusher
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *statusWriter) statusCode() int {
	if !sw.wroteHeader {
		return http.StatusOK
	}
	return sw.status
}
