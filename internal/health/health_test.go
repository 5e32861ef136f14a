package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLive(t *testing.T) {
	h := NewHandlers(true)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 500, time.FixedZone("X", 3600))
	h.now = func() time.Time { return fixed }

	rr := httptest.NewRecorder()
	h.Live(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Timestamp != "2026-03-01T11:00:00.0000005Z" {
		t.Errorf("timestamp = %q", resp.Timestamp)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name         string
		forceUnready bool
		wantCode     int
		wantStatus   Status
	}{
		{"ready", false, http.StatusOK, StatusReady},
		{"forced unready", true, http.StatusServiceUnavailable, StatusNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHandlers(tt.forceUnready).Ready(rr, httptest.NewRequest("GET", "/ready", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var resp Response
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
		})
	}
}

type routeRecorder []string

func (r *routeRecorder) HandleFunc(method, pattern string, _ http.HandlerFunc) {
	*r = append(*r, method+" "+pattern)
}

func TestRegister(t *testing.T) {
	var rr routeRecorder
	NewHandlers(false).Register(&rr)
	if len(rr) != 2 || rr[0] != "GET /health" || rr[1] != "GET /ready" {
		t.Errorf("unexpected routes %v", rr)
	}
}
