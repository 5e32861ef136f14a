// Package api implements the sample business endpoints whose traffic the
// fault pipeline perturbs.
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/wudi/faultbox/internal/errors"
	"github.com/wudi/faultbox/internal/extract"
	"github.com/wudi/faultbox/internal/faults"
	"github.com/wudi/faultbox/internal/observation"
)

// Config holds the built-in randomness of the sample endpoints.
type Config struct {
	// UserSlowRate is the fraction of user lookups that are slowed down
	UserSlowRate float64
	// UserSlowDelay is the extra latency of a slow user lookup
	UserSlowDelay time.Duration
	// OrderFailureRate is the fraction of order submissions that fail
	OrderFailureRate float64
	// BodyLimit caps request bodies in bytes
	BodyLimit int64
}

// DefaultConfig returns the stock endpoint behavior.
func DefaultConfig() Config {
	return Config{
		UserSlowRate:     0.1,
		UserSlowDelay:    500 * time.Millisecond,
		OrderFailureRate: 0.05,
		BodyLimit:        extract.DefaultBodyLimit,
	}
}

// User is the response of the user lookup.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slow bool   `json:"slow,omitempty"`
}

// Order is the response of a created order.
type Order struct {
	OrderID int64           `json:"orderId"`
	Items   json.RawMessage `json:"items"`
	Status  string          `json:"status"`
}

// Registrar is the subset of the router used to mount the endpoints.
type Registrar interface {
	HandleFunc(method, pattern string, fn http.HandlerFunc)
}

// Handlers serves /api/users and /api/orders.
type Handlers struct {
	cfg    Config
	src    faults.Source
	now    func() time.Time
	userID extract.Func
}

// NewHandlers creates the endpoints. A nil src uses a time-seeded source.
func NewHandlers(cfg Config, src faults.Source) *Handlers {
	if src == nil {
		src = faults.NewSource(time.Now().UnixNano())
	}
	return &Handlers{
		cfg:    cfg,
		src:    src,
		now:    time.Now,
		userID: extract.Build("param:id"),
	}
}

// Register mounts the endpoints on rt.
func (h *Handlers) Register(rt Registrar) {
	rt.HandleFunc(http.MethodGet, "/api/users/:id", h.GetUser)
	rt.HandleFunc(http.MethodPost, "/api/orders", h.CreateOrder)
}

// GetUser echoes a synthetic user, occasionally after a delay.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id := h.userID(r)
	user := User{ID: id, Name: "User " + id}

	if h.src.Float64() < h.cfg.UserSlowRate {
		if err := faults.Wait(r.Context(), h.cfg.UserSlowDelay); err != nil {
			observation.FromRequest(r).Canceled = true
			return
		}
		user.Slow = true
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateOrder accepts an order, failing a fixed fraction of submissions.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := extract.JSONBody(w, r, h.cfg.BodyLimit)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			errors.ErrRequestEntityTooLarge.WriteJSON(w)
			return
		}
		errors.ErrBadRequest.WithDetails(err.Error()).WriteJSON(w)
		return
	}

	if h.src.Float64() < h.cfg.OrderFailureRate {
		errors.ErrInternalServer.WriteJSON(w)
		return
	}

	var items json.RawMessage
	if v := body.Get("items"); v.Exists() {
		items = json.RawMessage(v.Raw)
	}
	writeJSON(w, http.StatusCreated, Order{
		OrderID: h.now().UnixMilli(),
		Items:   items,
		Status:  "created",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
