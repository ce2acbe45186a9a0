package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestIDHandler(captured *string) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = RequestIDFromContext(r.Context())
	})
	return RequestID(inner)
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var got string
	h := requestIDHandler(&got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got == "" {
		t.Fatal("expected a generated request id in context")
	}
	if hdr := rec.Header().Get("X-Request-ID"); hdr != got {
		t.Fatalf("response header = %q, context id = %q", hdr, got)
	}
}

func TestRequestIDKeepsIncoming(t *testing.T) {
	var got string
	h := requestIDHandler(&got)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "upstream-id-42" {
		t.Fatalf("request id = %q, want upstream value", got)
	}
}

func TestRequestIDReplacesMalformed(t *testing.T) {
	var got string
	h := requestIDHandler(&got)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces\n")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == "bad id with spaces\n" || got == "" {
		t.Fatalf("malformed id was not replaced, got %q", got)
	}
}

func TestRequestIDFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if rid := RequestIDFromContext(req.Context()); rid != "" {
		t.Fatalf("expected empty id outside middleware, got %q", rid)
	}
}
