package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/wudi/faultbox/internal/errors"
	"github.com/wudi/faultbox/internal/logging"
	"github.com/wudi/faultbox/internal/observation"
	"go.uber.org/zap"
)

// RecoveryConfig configures the recovery middleware
type RecoveryConfig struct {
	// PrintStack captures the stack trace when a panic occurs
	PrintStack bool
	// LogFunc is called when a panic occurs
	LogFunc func(obs *observation.Observation, err any, stack []byte)
}

// DefaultRecoveryConfig provides default recovery settings
var DefaultRecoveryConfig = RecoveryConfig{
	PrintStack: true,
	LogFunc:    defaultLogFunc,
}

func defaultLogFunc(obs *observation.Observation, err any, stack []byte) {
	logging.Error("Panic recovered",
		zap.String("request_id", obs.RequestID),
		zap.String("method", obs.Method),
		zap.String("route", obs.Route),
		zap.Any("error", err),
		zap.ByteString("stack", stack),
	)
}

// Recovery creates a panic recovery middleware
func Recovery() Middleware {
	return RecoveryWithConfig(DefaultRecoveryConfig)
}

// RecoveryWithConfig creates a recovery middleware with custom config.
// A recovered panic is answered with a 500 JSON body and marks the
// request's observation as a handler error.
func RecoveryWithConfig(cfg RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				var stack []byte
				if cfg.PrintStack {
					stack = debug.Stack()
				}

				obs := observation.FromRequest(r)
				obs.HandlerError = true

				if cfg.LogFunc != nil {
					cfg.LogFunc(obs, err, stack)
				}

				httpErr := errors.ErrInternalServer.WithDetails(fmt.Sprintf("panic: %v", err))
				reqID := obs.RequestID
				if reqID == "" {
					reqID = w.Header().Get(RequestIDHeader)
				}
				if reqID != "" {
					httpErr = httpErr.WithRequestID(reqID)
				}
				httpErr.WriteJSON(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
