package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bananaforge/internal/domain"
	"bananaforge/internal/orchestrator"
	"bananaforge/internal/registry"
)

type createRunResponse struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

type runStatusResponse struct {
	RunID      string          `json:"run_id"`
	State      string          `json:"state"`
	Error      string          `json:"error,omitempty"`
	Request    json.RawMessage `json:"request,omitempty"`
	Outcome    json.RawMessage `json:"outcome,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// CreateRun accepts a job request and dispatches it fire and forget. The
// 202 response carries the run id to poll.
func (a *App) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req domain.JobRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	runID, err := a.Runner.Submit(r.Context(), req)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			a.error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orchestrator.ErrQueueFull):
			a.error(w, http.StatusServiceUnavailable, err.Error())
		default:
			a.Logger.Error().Err(err).Msg("run submission failed")
			a.error(w, http.StatusInternalServerError, "failed to accept run")
		}
		return
	}

	a.json(w, http.StatusAccepted, createRunResponse{
		RunID: runID,
		State: string(domain.RunStateQueued),
	})
}

// GetRun returns the status record for one run.
func (a *App) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	rec, err := a.Runs.GetByID(r.Context(), runID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			a.error(w, http.StatusNotFound, "run not found")
			return
		}
		a.Logger.Error().Err(err).Str("run_id", runID).Msg("run lookup failed")
		a.error(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	a.json(w, http.StatusOK, runStatusResponse{
		RunID:      rec.ID,
		State:      string(rec.State),
		Error:      rec.ErrorMessage,
		Request:    rec.RequestJSON,
		Outcome:    rec.OutcomeJSON,
		CreatedAt:  rec.CreatedAt,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	})
}
