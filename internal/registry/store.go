// Package registry persists run status records. Submission creates a
// queued record, workers advance it, and the status endpoint reads it.
package registry

import (
	"context"
	"errors"
	"fmt"

	"bananaforge/internal/domain"
	"bananaforge/internal/infra"
	"bananaforge/internal/sqlinline"
)

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = errors.New("run not found")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Create inserts a queued record for a freshly accepted run.
func (s *Store) Create(ctx context.Context, runID string, requestJSON []byte) error {
	_, err := s.sql.Exec(ctx, sqlinline.QRunInsert, runID, string(domain.RunStateQueued), requestJSON)
	if err != nil {
		return fmt.Errorf("registry: create run: %w", err)
	}
	return nil
}

// MarkRunning transitions a run to the running state when a worker picks
// it up.
func (s *Store) MarkRunning(ctx context.Context, runID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QRunMarkRunning, runID)
	if err != nil {
		return fmt.Errorf("registry: mark running: %w", err)
	}
	return nil
}

// Complete records the terminal state and outcome of a run.
func (s *Store) Complete(ctx context.Context, runID string, state domain.RunState, outcomeJSON []byte, errMsg string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QRunComplete, runID, string(state), outcomeJSON, errMsg)
	if err != nil {
		return fmt.Errorf("registry: complete run: %w", err)
	}
	return nil
}

// GetByID returns the status record for a run.
func (s *Store) GetByID(ctx context.Context, runID string) (domain.RunRecord, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QRunByID, runID)

	var rec domain.RunRecord
	var state string
	err := row.Scan(&rec.ID, &state, &rec.RequestJSON, &rec.OutcomeJSON, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.RunRecord{}, ErrNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("registry: load run: %w", err)
	}
	rec.State = domain.RunState(state)
	return rec, nil
}
