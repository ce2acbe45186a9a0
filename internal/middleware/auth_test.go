package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authHandler(token string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return BearerAuth(token)(next)
}

func TestBearerAuthAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()

	authHandler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBearerAuthRejectsWrongToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()

	authHandler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestBearerAuthRejectsMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", nil)
	rec := httptest.NewRecorder()

	authHandler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBearerAuthUnconfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	authHandler("").ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
