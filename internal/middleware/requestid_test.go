package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	if seen == "" {
		t.Fatal("expected request ID in context")
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("request ID %q is not a valid UUID: %v", seen, err)
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header %q does not match context value %q", got, seen)
	}
}

func TestRequestIDPropagatesHeader(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetRequestID(r.Context()); got != "caller-supplied" {
			t.Errorf("GetRequestID() = %q, want caller-supplied", got)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Errorf("response header = %q, want caller-supplied", got)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}
