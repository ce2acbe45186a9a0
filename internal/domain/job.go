package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how prompt phrasing is sourced when prompts are generated.
type Mode string

const (
	// ModeStandard uses the category's template-based instruction set.
	ModeStandard Mode = "standard"
	// ModeRandom uses the category's dynamic instruction set for novel phrasing.
	ModeRandom Mode = "random"
)

// ParseMode converts free-form input into a Mode. An empty string defaults to
// standard; anything else unrecognized is a validation error.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeStandard):
		return ModeStandard, nil
	case string(ModeRandom):
		return ModeRandom, nil
	default:
		return "", &ValidationError{Field: "mode", Message: fmt.Sprintf("unsupported mode %q", s)}
	}
}

// SelectionStrategy selects how input images are picked from source folders.
type SelectionStrategy string

const (
	// StrategyRandom picks uniformly at random among eligible folder items.
	StrategyRandom SelectionStrategy = "random"
)

// ParseSelectionStrategy converts free-form input into a SelectionStrategy.
func ParseSelectionStrategy(s string) (SelectionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StrategyRandom):
		return StrategyRandom, nil
	default:
		return "", &ValidationError{Field: "image_selection_strategy", Message: fmt.Sprintf("unsupported strategy %q", s)}
	}
}

// JobRequest is the immutable input to one orchestration run.
//
// MinCount/MaxCount are pointers so an absent value can be told apart from an
// explicit zero: max_count of 0 legitimately produces a run with zero units.
type JobRequest struct {
	SaveRemotely          bool              `json:"save_remotely"`
	TargetFolderID        string            `json:"target_folder_id,omitempty"`
	Category              string            `json:"category,omitempty"`
	MinCount              *int              `json:"min_count,omitempty"`
	MaxCount              *int              `json:"max_count,omitempty"`
	Resolution            string            `json:"resolution,omitempty"`
	AspectRatio           string            `json:"aspect_ratio,omitempty"`
	Mode                  Mode              `json:"mode,omitempty"`
	ModelVersion          string            `json:"model_version,omitempty"`
	ImageURLs             []string          `json:"image_urls,omitempty"`
	Prompts               []string          `json:"prompts,omitempty"`
	ImageStrategy         SelectionStrategy `json:"image_selection_strategy,omitempty"`
	SourceFolderIDs       []string          `json:"source_folder_ids,omitempty"`
	SpawnDuplicates       bool              `json:"spawn_duplicates"`
	RandomImagePrefix     string            `json:"random_image_prefix,omitempty"`
	PrefixTargetFolderIDs []string          `json:"prefix_target_folder_ids,omitempty"`
}

// Default prompt count bounds when the request leaves them unset.
const (
	DefaultMinCount = 2
	DefaultMaxCount = 5
)

// Validate rejects malformed requests before any external call is made.
func (r *JobRequest) Validate() error {
	min, max := r.CountBounds()
	if min < 0 {
		return &ValidationError{Field: "min_count", Message: "must not be negative"}
	}
	if max < 0 {
		return &ValidationError{Field: "max_count", Message: "must not be negative"}
	}
	if min > max {
		return &ValidationError{Field: "min_count", Message: fmt.Sprintf("min_count %d exceeds max_count %d", min, max)}
	}
	if r.Mode != "" && r.Mode != ModeStandard && r.Mode != ModeRandom {
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unsupported mode %q", r.Mode)}
	}
	if r.ImageStrategy != "" && r.ImageStrategy != StrategyRandom {
		return &ValidationError{Field: "image_selection_strategy", Message: fmt.Sprintf("unsupported strategy %q", r.ImageStrategy)}
	}
	for i, p := range r.Prompts {
		if strings.TrimSpace(p) == "" {
			return &ValidationError{Field: "prompts", Message: fmt.Sprintf("prompt %d is empty", i)}
		}
	}
	return nil
}

// CountBounds returns the effective [min, max] prompt count interval with
// defaults applied. A defaulted minimum yields to an explicit maximum, so
// max_count of 0 with min_count unset is a valid zero-unit request rather
// than a contradiction with the default minimum.
func (r *JobRequest) CountBounds() (int, int) {
	min, max := DefaultMinCount, DefaultMaxCount
	if r.MinCount != nil {
		min = *r.MinCount
	}
	if r.MaxCount != nil {
		max = *r.MaxCount
	}
	if r.MinCount == nil && min > max {
		min = max
	}
	return min, max
}

// ImageSelection carries the ImageSource parameters for one unit.
type ImageSelection struct {
	FolderIDs             []string
	Strategy              SelectionStrategy
	Prefix                string
	PrefixTargetFolderIDs []string
}

// GenerationParams are the backend parameters for one unit, after defaults.
type GenerationParams struct {
	Resolution   string `json:"resolution"`
	AspectRatio  string `json:"aspect_ratio"`
	ModelVersion string `json:"model_version"`
}

// GenerationUnit is one (prompt, image set, parameters) tuple submitted to the
// generation backend. Derived per run, never persisted on its own.
type GenerationUnit struct {
	Index     int
	Prompt    string
	ImageURLs []string
	Params    GenerationParams
}

// UnitOutcome is the result of one generation unit: a stored artifact plus
// metadata, or a failure descriptor.
type UnitOutcome struct {
	Unit           int         `json:"unit"`
	Success        bool        `json:"success"`
	Prompt         string      `json:"prompt,omitempty"`
	ArtifactURL    string      `json:"artifact_url,omitempty"`
	LocalKey       string      `json:"local_key,omitempty"`
	RemoteRef      string      `json:"remote_ref,omitempty"`
	RemoteStored   bool        `json:"remote_stored"`
	Attempts       int         `json:"attempts,omitempty"`
	FailureKind    FailureKind `json:"failure_kind,omitempty"`
	FailureMessage string      `json:"failure_message,omitempty"`
}

// JobOutcome aggregates every UnitOutcome of one run. Written once at run
// completion and never mutated afterwards.
type JobOutcome struct {
	RunID      string        `json:"run_id"`
	Category   string        `json:"category,omitempty"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Units      []UnitOutcome `json:"units,omitempty"`
	ErrorKind  FailureKind   `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
