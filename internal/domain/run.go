package domain

import "time"

// RunState is the lifecycle state of a submitted run.
//
// These values are persisted in generation_runs.state and are part of the
// stable contract with the status endpoint.
type RunState string

const (
	RunStateQueued    RunState = "queued"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStatePartial   RunState = "partial"
	RunStateFailed    RunState = "failed"
)

// StateForOutcome derives the terminal run state from an aggregate outcome.
func StateForOutcome(out JobOutcome) RunState {
	switch {
	case out.Error != "":
		return RunStateFailed
	case out.Failed == 0:
		return RunStateSucceeded
	case out.Succeeded > 0:
		return RunStatePartial
	default:
		return RunStateFailed
	}
}

// RunRecord is the persisted status record for one run. It is the
// side-channel through which callers observe fire-and-forget execution.
type RunRecord struct {
	ID           string
	State        RunState
	RequestJSON  []byte
	OutcomeJSON  []byte
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}
