package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestIDKeepsCleanIDs(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("expected caller id to be kept, got %q", seen)
	}
}

func TestWithRequestIDReplacesUnsafeIDs(t *testing.T) {
	for _, id := range []string{"", "bad id\n", strings.Repeat("a", 65)} {
		var seen string
		h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == "" || seen == id {
			t.Fatalf("expected a fresh id for %q, got %q", id, seen)
		}
	}
}
