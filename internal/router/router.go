// Package router maps method and path patterns to handlers and wraps every
// route in the per-route instrumentation chain, so the metric route label is
// always the registered pattern rather than the raw path.
package router

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/wudi/faultbox/internal/errors"
	"github.com/wudi/faultbox/internal/faults"
	"github.com/wudi/faultbox/internal/middleware"
	"go.uber.org/zap"
)

// UnmatchedRoute labels requests that match no registered pattern.
const UnmatchedRoute = "unmatched"

// Route is a registered method and pattern.
type Route struct {
	Method  string
	Pattern string
}

// Options selects the layers wrapped around each route.
type Options struct {
	// Recorder receives request metrics
	Recorder middleware.Recorder
	// Injector applies the fault policy; nil disables injection
	Injector *faults.Injector
	// Exempt lists route patterns that bypass fault injection
	Exempt []string
	// Tracing builds a span middleware for a route; nil disables tracing
	Tracing middleware.Layer
	// Recovery overrides the default panic recovery
	Recovery *middleware.RecoveryConfig
	// Logger receives request records; nil uses the global logger
	Logger *zap.Logger
}

// Router is an http.Handler dispatching to instrumented routes.
type Router struct {
	tree   *httprouter.Router
	stack  middleware.Stack
	mu     sync.RWMutex
	routes []Route
}

// New creates a router. Unknown paths and methods are answered with JSON
// errors and are instrumented under the "unmatched" route label.
func New(opts Options) *Router {
	tree := httprouter.New()
	tree.RedirectTrailingSlash = false
	tree.RedirectFixedPath = false
	tree.HandleOPTIONS = false
	tree.HandleMethodNotAllowed = true

	rt := &Router{tree: tree, stack: layers(opts)}

	tree.NotFound = rt.wrap(UnmatchedRoute, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.ErrNotFound.WriteJSON(w)
	}))
	tree.MethodNotAllowed = rt.wrap(UnmatchedRoute, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.ErrMethodNotAllowed.WriteJSON(w)
	}))
	return rt
}

// Handle registers h for method and pattern. Patterns use httprouter syntax
// (/api/users/:id); {name} segments are accepted and converted.
func (rt *Router) Handle(method, pattern string, h http.Handler) {
	pattern = replaceParams(pattern)

	rt.mu.Lock()
	rt.routes = append(rt.routes, Route{Method: method, Pattern: pattern})
	rt.mu.Unlock()

	rt.tree.Handler(method, pattern, rt.wrap(pattern, h))
}

// HandleFunc registers a handler function.
func (rt *Router) HandleFunc(method, pattern string, fn http.HandlerFunc) {
	rt.Handle(method, pattern, fn)
}

// Routes returns the registered routes sorted by pattern then method.
func (rt *Router) Routes() []Route {
	rt.mu.RLock()
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	rt.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.tree.ServeHTTP(w, r)
}

// layers lists the per-route chain: instrumentation, tracing, recovery,
// fault injection. Disabled concerns stay nil.
func layers(opts Options) middleware.Stack {
	recovery := middleware.DefaultRecoveryConfig
	if opts.Recovery != nil {
		recovery = *opts.Recovery
	}
	var inject middleware.Layer
	if opts.Injector != nil {
		inject = middleware.Static(opts.Injector.Middleware(opts.Exempt...))
	}

	return middleware.Stack{
		func(route string) middleware.Middleware {
			return middleware.InstrumentWithConfig(middleware.InstrumentConfig{
				Route:    route,
				Recorder: opts.Recorder,
				Logger:   opts.Logger,
			})
		},
		opts.Tracing,
		middleware.Static(middleware.RecoveryWithConfig(recovery)),
		inject,
	}
}

func (rt *Router) wrap(route string, h http.Handler) http.Handler {
	return rt.stack.Wrap(route, h)
}

// replaceParams converts {name} path parameters to :name httprouter syntax.
func replaceParams(path string) string {
	if !strings.Contains(path, "{") {
		return path
	}
	var result strings.Builder
	i := 0
	for i < len(path) {
		if path[i] == '{' {
			j := strings.IndexByte(path[i:], '}')
			if j == -1 {
				result.WriteByte(path[i])
				i++
				continue
			}
			result.WriteByte(':')
			result.WriteString(path[i+1 : i+j])
			i += j + 1
		} else {
			result.WriteByte(path[i])
			i++
		}
	}
	return result.String()
}
