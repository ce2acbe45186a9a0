package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bananaforge/internal/domain"
)

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	record domain.RunRecord
	rowErr error
	calls  []execCall
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	return pgconn.CommandTag{}, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{exec: s}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	exec *stubExecutor
}

func (r stubRow) Scan(dest ...any) error {
	if r.exec.rowErr != nil {
		return r.exec.rowErr
	}
	rec := r.exec.record
	*(dest[0].(*string)) = rec.ID
	*(dest[1].(*string)) = string(rec.State)
	*(dest[2].(*[]byte)) = rec.RequestJSON
	*(dest[3].(*[]byte)) = rec.OutcomeJSON
	*(dest[4].(*string)) = rec.ErrorMessage
	*(dest[5].(*time.Time)) = rec.CreatedAt
	*(dest[6].(**time.Time)) = rec.StartedAt
	*(dest[7].(**time.Time)) = rec.FinishedAt
	return nil
}

func TestCreateInsertsQueuedState(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)

	if err := store.Create(context.Background(), "run-1", []byte(`{}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %d", len(exec.calls))
	}
	if exec.calls[0].args[1] != "queued" {
		t.Fatalf("state arg = %v", exec.calls[0].args[1])
	}
}

func TestCompletePassesState(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)

	err := store.Complete(context.Background(), "run-1", domain.RunStatePartial, []byte(`{}`), "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if exec.calls[0].args[1] != "partial" {
		t.Fatalf("state arg = %v", exec.calls[0].args[1])
	}
}

func TestGetByID(t *testing.T) {
	now := time.Now()
	exec := &stubExecutor{record: domain.RunRecord{
		ID:          "run-1",
		State:       domain.RunStateSucceeded,
		RequestJSON: []byte(`{"category":"Self"}`),
		CreatedAt:   now,
		StartedAt:   &now,
	}}
	store := NewStore(exec)

	rec, err := store.GetByID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.State != domain.RunStateSucceeded {
		t.Fatalf("State = %q", rec.State)
	}
	if rec.StartedAt == nil || rec.FinishedAt != nil {
		t.Fatalf("timestamps = %v %v", rec.StartedAt, rec.FinishedAt)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := NewStore(&stubExecutor{rowErr: pgx.ErrNoRows})

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
