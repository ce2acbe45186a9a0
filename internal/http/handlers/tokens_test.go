package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubTokens struct {
	provider string
	token    string
	err      error
}

func (s *stubTokens) SetToken(ctx context.Context, provider, token string) error {
	s.provider = provider
	s.token = token
	if strings.TrimSpace(token) == "" {
		return errors.New("token is required")
	}
	return s.err
}

func TestSetToken(t *testing.T) {
	tokens := &stubTokens{}
	app := &App{Tokens: tokens, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tokens", strings.NewReader(`{"provider":"replicate","token":"r8_abc"}`))
	rec := httptest.NewRecorder()
	app.SetToken(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if tokens.provider != "replicate" || tokens.token != "r8_abc" {
		t.Fatalf("stored = %q %q", tokens.provider, tokens.token)
	}
}

func TestSetTokenUnknownProvider(t *testing.T) {
	app := &App{Tokens: &stubTokens{}, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tokens", strings.NewReader(`{"provider":"gemini","token":"x"}`))
	rec := httptest.NewRecorder()
	app.SetToken(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSetTokenEmpty(t *testing.T) {
	app := &App{Tokens: &stubTokens{}, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/v1/tokens", strings.NewReader(`{"provider":"openai","token":"  "}`))
	rec := httptest.NewRecorder()
	app.SetToken(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
