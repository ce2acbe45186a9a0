package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bananaforge/internal/domain"
)

// ErrQueueFull is returned by Submit when the run queue has no capacity.
var ErrQueueFull = errors.New("run queue full")

// RunStore persists run status records through their lifecycle.
type RunStore interface {
	Create(ctx context.Context, runID string, requestJSON []byte) error
	MarkRunning(ctx context.Context, runID string) error
	Complete(ctx context.Context, runID string, state domain.RunState, outcomeJSON []byte, errMsg string) error
}

type task struct {
	runID string
	req   domain.JobRequest
}

// Runner dispatches accepted runs to a bounded worker pool. Submission is
// fire and forget: callers get a run id immediately and observe progress
// through the run store.
type Runner struct {
	orc     *Orchestrator
	store   RunStore
	logger  zerolog.Logger
	queue   chan task
	workers int

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewRunner(orc *Orchestrator, store RunStore, logger zerolog.Logger, queueSize, workers int) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		orc:     orc,
		store:   store,
		logger:  logger,
		queue:   make(chan task, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool. Workers run until Shutdown closes the
// queue; ctx cancellation additionally interrupts in-flight runs.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.worker(ctx)
		}
	})
}

// Submit validates the request, persists a queued record, and enqueues the
// run. It never blocks: a saturated queue fails the submission.
func (r *Runner) Submit(ctx context.Context, req domain.JobRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	runID := uuid.NewString()
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	if err := r.store.Create(ctx, runID, requestJSON); err != nil {
		return "", err
	}

	select {
	case r.queue <- task{runID: runID, req: req}:
		r.logger.Info().Str("run_id", runID).Msg("run queued")
		return runID, nil
	default:
		if err := r.store.Complete(ctx, runID, domain.RunStateFailed, nil, ErrQueueFull.Error()); err != nil {
			r.logger.Error().Err(err).Str("run_id", runID).Msg("failed to mark rejected run")
		}
		return "", ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued runs to drain, up to
// the context deadline.
func (r *Runner) Shutdown(ctx context.Context) error {
	close(r.queue)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for t := range r.queue {
		r.process(ctx, t)
	}
}

func (r *Runner) process(ctx context.Context, t task) {
	if err := r.store.MarkRunning(ctx, t.runID); err != nil {
		r.logger.Error().Err(err).Str("run_id", t.runID).Msg("failed to mark run running")
	}

	out := r.orc.Run(ctx, t.runID, t.req)
	state := domain.StateForOutcome(out)

	outcomeJSON, err := json.Marshal(out)
	if err != nil {
		r.logger.Error().Err(err).Str("run_id", t.runID).Msg("failed to encode outcome")
	}
	if err := r.store.Complete(ctx, t.runID, state, outcomeJSON, out.Error); err != nil {
		r.logger.Error().Err(err).Str("run_id", t.runID).Msg("failed to record run completion")
	}

	r.logger.Info().
		Str("run_id", t.runID).
		Str("state", string(state)).
		Int("attempted", out.Attempted).
		Int("succeeded", out.Succeeded).
		Int("failed", out.Failed).
		Msg("run finished")
}
