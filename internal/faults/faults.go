// Package faults decides and applies injected latency and failures.
package faults

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/wudi/faultbox/internal/errors"
	"github.com/wudi/faultbox/internal/observation"
)

// Fault kinds reported to the Recorder.
const (
	KindDelay   = "delay"
	KindFailure = "failure"
)

// Policy is the process-wide fault configuration. It is built once at
// startup and never mutated.
type Policy struct {
	// FailureRate is the per-request probability of a forced 500.
	FailureRate float64
	// FixedDelay is added to every non-exempt request when positive.
	FixedDelay time.Duration
	// ForceUnready makes the readiness probe report not ready.
	ForceUnready bool
}

// Validate reports policy values that cannot be applied.
func (p Policy) Validate() error {
	if p.FailureRate < 0 || p.FailureRate > 1 {
		return fmt.Errorf("failure rate %v out of range [0,1]", p.FailureRate)
	}
	if p.FixedDelay < 0 {
		return fmt.Errorf("fixed delay %v must not be negative", p.FixedDelay)
	}
	return nil
}

// Decision is the fault outcome for a single request.
type Decision struct {
	Delay        time.Duration
	ForceFailure bool
}

// Source yields uniform values in [0,1).
type Source interface {
	Float64() float64
}

// Decide draws exactly one value from src and applies p to it.
func Decide(p Policy, src Source) Decision {
	d := Decision{ForceFailure: src.Float64() < p.FailureRate}
	if p.FixedDelay > 0 {
		d.Delay = p.FixedDelay
	}
	return d
}

// lockedSource serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a concurrency-safe Source seeded with seed.
func NewSource(seed int64) Source {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	v := s.rng.Float64()
	s.mu.Unlock()
	return v
}

// Recorder receives a count for every injected fault.
type Recorder interface {
	RecordFault(kind string)
}

// Injector applies a Policy to live requests.
type Injector struct {
	policy   Policy
	src      Source
	recorder Recorder
}

// Option configures an Injector.
type Option func(*Injector)

// WithSource replaces the random source, mainly for tests.
func WithSource(src Source) Option {
	return func(in *Injector) { in.src = src }
}

// WithRecorder reports injected faults to r.
func WithRecorder(r Recorder) Option {
	return func(in *Injector) { in.recorder = r }
}

// NewInjector creates an injector for p.
func NewInjector(p Policy, opts ...Option) (*Injector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	in := &Injector{
		policy: p,
		src:    NewSource(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Policy returns the injector's policy.
func (in *Injector) Policy() Policy {
	return in.policy
}

// Decide draws the fault decision for one request.
func (in *Injector) Decide() Decision {
	return Decide(in.policy, in.src)
}

// Wait suspends for d or until ctx is done, whichever comes first. It
// returns ctx.Err() when cancelled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait is the injector's suspension primitive; see the package-level Wait.
func (in *Injector) Wait(ctx context.Context, d time.Duration) error {
	return Wait(ctx, d)
}

func (in *Injector) record(kind string) {
	if in.recorder != nil {
		in.recorder.RecordFault(kind)
	}
}

// Middleware delays and then either fails or dispatches each request.
// Requests whose route pattern is listed in exempt pass through untouched.
func (in *Injector) Middleware(exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, route := range exempt {
		skip[route] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			obs := observation.FromRequest(r)
			route := obs.Route
			if route == "" {
				route = r.URL.Path
			}
			if _, ok := skip[route]; ok {
				next.ServeHTTP(w, r)
				return
			}

			d := in.Decide()

			if d.Delay > 0 {
				in.record(KindDelay)
				obs.Delay = d.Delay
				if err := in.Wait(r.Context(), d.Delay); err != nil {
					obs.Canceled = true
					return
				}
			}

			if d.ForceFailure {
				in.record(KindFailure)
				obs.Injected = true
				simErr := errors.ErrSimulatedFailure
				if obs.RequestID != "" {
					simErr = simErr.WithRequestID(obs.RequestID)
				}
				simErr.WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
