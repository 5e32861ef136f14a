package errors

import (
	"encoding/json"
	"net/http"
)

// HTTPError is an error rendered to clients as a JSON body.
type HTTPError struct {
	Code      int    `json:"code"`
	Message   string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// WriteJSON writes the error as JSON to the response.
// Base errors without details or request ID use pre-serialized bytes.
func (e *HTTPError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Common errors
var (
	ErrNotFound = &HTTPError{
		Code:    http.StatusNotFound,
		Message: "Not found",
	}

	ErrMethodNotAllowed = &HTTPError{
		Code:    http.StatusMethodNotAllowed,
		Message: "Method not allowed",
	}

	ErrBadRequest = &HTTPError{
		Code:    http.StatusBadRequest,
		Message: "Bad request",
	}

	ErrInternalServer = &HTTPError{
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
	}

	// ErrSimulatedFailure is the short-circuit response of the fault injector.
	ErrSimulatedFailure = &HTTPError{
		Code:    http.StatusInternalServerError,
		Message: "Simulated random failure",
	}

	ErrRequestEntityTooLarge = &HTTPError{
		Code:    http.StatusRequestEntityTooLarge,
		Message: "Request entity too large",
	}
)

// preSerialized holds JSON-encoded bytes for base error singletons.
var preSerialized map[*HTTPError][]byte

func init() {
	bases := []*HTTPError{
		ErrNotFound, ErrMethodNotAllowed, ErrBadRequest,
		ErrInternalServer, ErrSimulatedFailure, ErrRequestEntityTooLarge,
	}
	preSerialized = make(map[*HTTPError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// WithDetails adds details to the error
func (e *HTTPError) WithDetails(details string) *HTTPError {
	return &HTTPError{
		Code:      e.Code,
		Message:   e.Message,
		Details:   details,
		RequestID: e.RequestID,
	}
}

// WithRequestID adds a request ID to the error
func (e *HTTPError) WithRequestID(requestID string) *HTTPError {
	return &HTTPError{
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: requestID,
	}
}
