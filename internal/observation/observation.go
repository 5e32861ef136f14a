// Package observation carries the per-request telemetry record from the
// instrumentation middleware to the layers it wraps.
package observation

import (
	"context"
	"net/http"
	"time"
)

// StatusClientClosed is recorded when the client goes away before any
// response is written (nginx convention).
const StatusClientClosed = 499

// Observation is owned by a single request. Inner middlewares annotate it;
// the instrumentation middleware emits it once the response completes.
type Observation struct {
	Method    string
	Path      string
	Route     string
	RequestID string
	Start     time.Time

	Status   int
	Duration time.Duration

	Delay        time.Duration
	Injected     bool
	HandlerError bool
	Canceled     bool
}

type contextKey struct{}

// New starts an observation for r labelled with the matched route pattern.
func New(r *http.Request, route string) *Observation {
	return &Observation{
		Method: r.Method,
		Path:   r.URL.Path,
		Route:  route,
		Start:  time.Now(),
	}
}

// Finish stamps the final status and elapsed time.
func (o *Observation) Finish(status int) {
	o.Status = status
	o.Duration = time.Since(o.Start)
}

// NewContext returns a context carrying o.
func NewContext(ctx context.Context, o *Observation) context.Context {
	return context.WithValue(ctx, contextKey{}, o)
}

// FromContext returns the observation stored in ctx, if any.
func FromContext(ctx context.Context) (*Observation, bool) {
	o, ok := ctx.Value(contextKey{}).(*Observation)
	return o, ok
}

// FromRequest returns the request's observation or a detached one, so
// callers never need a nil check.
func FromRequest(r *http.Request) *Observation {
	if o, ok := FromContext(r.Context()); ok {
		return o
	}
	return &Observation{}
}
