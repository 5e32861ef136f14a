// Package middleware holds the request pipeline shared by every route:
// request IDs, instrumentation and panic recovery.
package middleware

import "net/http"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Layer builds the middleware for one route pattern.
type Layer func(route string) Middleware

// Stack lists the per-route layers, outermost first. Nil layers, and layers
// that return a nil Middleware, are skipped, so optional concerns can be
// listed unconditionally.
type Stack []Layer

// Static adapts a route-independent middleware to a Layer.
func Static(m Middleware) Layer {
	if m == nil {
		return nil
	}
	return func(string) Middleware { return m }
}

// Wrap applies every layer of s for route around h.
func (s Stack) Wrap(route string, h http.Handler) http.Handler {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == nil {
			continue
		}
		if m := s[i](route); m != nil {
			h = m(h)
		}
	}
	return h
}
