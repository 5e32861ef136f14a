package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen caps client-supplied IDs before they reach logs and
// error bodies.
const maxRequestIDLen = 128

func init() {
	uuid.EnableRandPool()
}

// RequestID tags each request before routing. A client-supplied X-Request-ID
// is kept when it is printable ASCII of at most 128 bytes; otherwise a random
// UUID replaces it. The ID is written back onto the request headers and
// echoed on the response, where Instrument and Recovery pick it up.
func RequestID() Middleware {
	return requestID(uuid.NewString)
}

func requestID(generate func() string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = generate()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < '!' || c > '~' {
			return false
		}
	}
	return true
}
