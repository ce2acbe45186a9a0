package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"bananaforge/internal/domain"
)

// Submitter accepts validated runs for asynchronous execution.
type Submitter interface {
	Submit(ctx context.Context, req domain.JobRequest) (string, error)
}

// RunGetter reads run status records.
type RunGetter interface {
	GetByID(ctx context.Context, runID string) (domain.RunRecord, error)
}

// TokenWriter stores provider credentials.
type TokenWriter interface {
	SetToken(ctx context.Context, provider, token string) error
}

type App struct {
	Runner Submitter
	Runs   RunGetter
	Tokens TokenWriter
	Logger zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
