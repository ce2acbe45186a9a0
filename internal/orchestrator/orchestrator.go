// Package orchestrator turns one job request into a set of generation
// units, executes them against the backend, and aggregates per-unit
// results into a single run outcome.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bananaforge/internal/backend"
	"bananaforge/internal/domain"
	"bananaforge/internal/imagesource"
	"bananaforge/internal/promptsource"
	"bananaforge/internal/sink"
)

// PromptConfigStore loads category configuration and records generated
// prompts for reuse by later runs.
type PromptConfigStore interface {
	PromptConfig(ctx context.Context, category string) (domain.PromptConfig, error)
	AppendGeneratedPrompts(ctx context.Context, category string, prompts []string) error
}

// ModelResolver resolves stored model settings. An empty version selects
// the active default model.
type ModelResolver interface {
	ModelConfig(ctx context.Context, modelVersion string) (domain.ModelConfig, error)
}

// Defaults are the fallback generation parameters applied when neither the
// request nor the model configuration provides a value.
type Defaults struct {
	Resolution     string
	AspectRatio    string
	ModelVersion   string
	DuplicateCount int
	TargetFolderID string
}

type Options struct {
	Prompts    promptsource.Source
	Images     imagesource.Source
	Backend    backend.Generator
	Sink       sink.ArtifactSink
	Configs    PromptConfigStore
	Models     ModelResolver
	Logger     zerolog.Logger
	Categories []string
	Defaults   Defaults

	// Parallelism bounds how many units run concurrently.
	Parallelism int
	// RetryAttempts bounds backend calls per unit for transient failures.
	RetryAttempts int
	// RetryBackoff is the initial delay between attempts; it doubles on
	// every retry.
	RetryBackoff time.Duration
}

type Orchestrator struct {
	prompts    promptsource.Source
	images     imagesource.Source
	backend    backend.Generator
	sink       sink.ArtifactSink
	configs    PromptConfigStore
	models     ModelResolver
	logger     zerolog.Logger
	categories []string
	defaults   Defaults

	parallelism   int
	retryAttempts int
	retryBackoff  time.Duration
}

func New(opts Options) *Orchestrator {
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	retryAttempts := opts.RetryAttempts
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	retryBackoff := opts.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}
	return &Orchestrator{
		prompts:       opts.Prompts,
		images:        opts.Images,
		backend:       opts.Backend,
		sink:          opts.Sink,
		configs:       opts.Configs,
		models:        opts.Models,
		logger:        opts.Logger,
		categories:    opts.Categories,
		defaults:      opts.Defaults,
		parallelism:   parallelism,
		retryAttempts: retryAttempts,
		retryBackoff:  retryBackoff,
	}
}

// Run executes one job request to completion. It never returns an error:
// every failure mode is folded into the outcome so the caller always has a
// complete record to persist.
func (o *Orchestrator) Run(ctx context.Context, runID string, req domain.JobRequest) domain.JobOutcome {
	started := time.Now().UTC()
	out := domain.JobOutcome{RunID: runID, StartedAt: started}

	finish := func(out domain.JobOutcome) domain.JobOutcome {
		out.FinishedAt = time.Now().UTC()
		return out
	}

	if err := req.Validate(); err != nil {
		out.ErrorKind = domain.FailureValidation
		out.Error = err.Error()
		return finish(out)
	}

	category := req.Category
	if category == "" && len(o.categories) > 0 {
		category = o.categories[rand.Intn(len(o.categories))]
	}
	out.Category = category

	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		out.ErrorKind = domain.FailureValidation
		out.Error = err.Error()
		return finish(out)
	}

	cfg, prompts, generated, err := o.resolvePrompts(ctx, req, category, mode)
	if err != nil {
		out.ErrorKind = kindForSetupError(err)
		out.Error = err.Error()
		return finish(out)
	}
	if generated && o.configs != nil {
		if err := o.configs.AppendGeneratedPrompts(ctx, category, prompts); err != nil {
			o.logger.Warn().Err(err).Str("category", category).Msg("failed to record generated prompts")
		}
	}

	params := o.resolveParams(ctx, req)
	units := buildUnits(prompts, req, params, o.spawnCount(req))

	out.Attempted = len(units)
	if len(units) == 0 {
		return finish(out)
	}

	out.Units = o.execute(ctx, runID, req, cfg, category, units)
	for _, u := range out.Units {
		if u.Success {
			out.Succeeded++
		}
	}
	out.Failed = out.Attempted - out.Succeeded
	return finish(out)
}

// resolvePrompts determines the prompt list for a run. It loads category
// configuration lazily: requests carrying verbatim prompts and explicit
// images never touch the config store.
func (o *Orchestrator) resolvePrompts(ctx context.Context, req domain.JobRequest, category string, mode domain.Mode) (domain.PromptConfig, []string, bool, error) {
	var cfg domain.PromptConfig
	minCount, maxCount := req.CountBounds()

	needConfig := len(req.Prompts) == 0 || (len(req.ImageURLs) == 0 && len(req.SourceFolderIDs) == 0)
	if needConfig && o.configs != nil {
		loaded, err := o.configs.PromptConfig(ctx, category)
		if err != nil {
			if len(req.Prompts) > 0 {
				// Verbatim prompts make the config optional; it was only
				// wanted for fallback images.
				return domain.PromptConfig{Category: category}, nil, false, nil
			}
			return domain.PromptConfig{}, nil, false, err
		}
		cfg = loaded
	}
	if cfg.Category == "" {
		cfg.Category = category
	}

	switch {
	case req.SpawnDuplicates:
		n := o.spawnCount(req)
		if n <= 0 {
			return cfg, nil, false, nil
		}
		prompt, generated, err := o.duplicateSeed(ctx, req, cfg, mode)
		if err != nil {
			return cfg, nil, false, err
		}
		prompts := make([]string, n)
		for i := range prompts {
			prompts[i] = prompt
		}
		if generated {
			return cfg, prompts[:1], true, nil
		}
		return cfg, prompts, false, nil

	case len(req.Prompts) > 0:
		return cfg, req.Prompts, false, nil

	default:
		n := minCount
		if maxCount > minCount {
			n = minCount + rand.Intn(maxCount-minCount+1)
		}
		if n <= 0 {
			return cfg, nil, false, nil
		}
		prompts, err := o.prompts.Generate(ctx, cfg, mode, n)
		if err != nil {
			return cfg, nil, false, err
		}
		return cfg, prompts, true, nil
	}
}

// spawnCount is how many units a spawn_duplicates run produces. An
// explicit max_count wins; otherwise the configured duplicate count.
func (o *Orchestrator) spawnCount(req domain.JobRequest) int {
	if req.MaxCount != nil {
		return *req.MaxCount
	}
	if o.defaults.DuplicateCount > 0 {
		return o.defaults.DuplicateCount
	}
	return domain.DefaultMaxCount
}

// duplicateSeed picks the single prompt a spawn_duplicates run repeats.
func (o *Orchestrator) duplicateSeed(ctx context.Context, req domain.JobRequest, cfg domain.PromptConfig, mode domain.Mode) (string, bool, error) {
	if len(req.Prompts) > 0 {
		return req.Prompts[0], false, nil
	}
	prompts, err := o.prompts.Generate(ctx, cfg, mode, 1)
	if err != nil {
		return "", false, err
	}
	return prompts[0], true, nil
}

// resolveParams layers generation parameters: request values win, then the
// stored model configuration, then static defaults.
func (o *Orchestrator) resolveParams(ctx context.Context, req domain.JobRequest) domain.GenerationParams {
	params := domain.GenerationParams{
		Resolution:   req.Resolution,
		AspectRatio:  req.AspectRatio,
		ModelVersion: req.ModelVersion,
	}

	if o.models != nil && (params.Resolution == "" || params.AspectRatio == "" || params.ModelVersion == "") {
		mc, err := o.models.ModelConfig(ctx, req.ModelVersion)
		if err == nil {
			if params.ModelVersion == "" {
				params.ModelVersion = mc.ModelVersion
			}
			if params.Resolution == "" {
				params.Resolution = mc.Resolution
			}
			if params.AspectRatio == "" {
				params.AspectRatio = mc.AspectRatio
			}
		} else if !domain.IsValidation(err) {
			o.logger.Warn().Err(err).Msg("model config lookup failed, using defaults")
		}
	}

	if params.Resolution == "" {
		params.Resolution = o.defaults.Resolution
	}
	if params.AspectRatio == "" {
		params.AspectRatio = o.defaults.AspectRatio
	}
	if params.ModelVersion == "" {
		params.ModelVersion = o.defaults.ModelVersion
	}
	return params
}

// buildUnits expands the prompt list into generation units. A generated
// spawn_duplicates seed arrives as a single prompt and is repeated up to
// the spawn count.
func buildUnits(prompts []string, req domain.JobRequest, params domain.GenerationParams, spawnCount int) []domain.GenerationUnit {
	n := len(prompts)
	if req.SpawnDuplicates && n == 1 && spawnCount > n {
		n = spawnCount
	}

	units := make([]domain.GenerationUnit, 0, n)
	for i := 0; i < n; i++ {
		prompt := prompts[0]
		if i < len(prompts) {
			prompt = prompts[i]
		}
		units = append(units, domain.GenerationUnit{
			Index:     i,
			Prompt:    prompt,
			ImageURLs: req.ImageURLs,
			Params:    params,
		})
	}
	return units
}

// execute runs units under the parallelism bound. A run-fatal failure in
// one unit cancels the rest; units never started are represented by a
// single synthetic failure entry.
func (o *Orchestrator) execute(ctx context.Context, runID string, req domain.JobRequest, cfg domain.PromptConfig, category string, units []domain.GenerationUnit) []domain.UnitOutcome {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		outcomes []domain.UnitOutcome
		skipped  []int
		abortErr error
	)

	sem := make(chan struct{}, o.parallelism)
	var wg sync.WaitGroup

	for _, unit := range units {
		wg.Add(1)
		go func(unit domain.GenerationUnit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if runCtx.Err() != nil {
				mu.Lock()
				skipped = append(skipped, unit.Index)
				mu.Unlock()
				return
			}

			outcome, fatal := o.runUnit(runCtx, runID, req, cfg, category, unit)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			if fatal != nil && abortErr == nil {
				abortErr = fatal
				cancel()
			}
			mu.Unlock()
		}(unit)
	}
	wg.Wait()

	if len(skipped) > 0 {
		sort.Ints(skipped)
		msg := fmt.Sprintf("run aborted, %d units not attempted", len(skipped))
		if abortErr != nil {
			msg = fmt.Sprintf("%s: %s", msg, abortErr)
		}
		outcomes = append(outcomes, domain.UnitOutcome{
			Unit:           skipped[0],
			Success:        false,
			FailureKind:    domain.FailureAborted,
			FailureMessage: msg,
		})
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Unit < outcomes[j].Unit })
	return outcomes
}

// runUnit executes a single generation unit end to end: image selection,
// backend call with bounded retries, artifact persistence. The second
// return value carries the error when it should abort the whole run.
func (o *Orchestrator) runUnit(ctx context.Context, runID string, req domain.JobRequest, cfg domain.PromptConfig, category string, unit domain.GenerationUnit) (domain.UnitOutcome, error) {
	outcome := domain.UnitOutcome{Unit: unit.Index, Prompt: unit.Prompt}

	images, err := o.resolveImages(ctx, req, cfg, unit)
	if err != nil {
		return failUnit(outcome, 0, err), runFatal(err)
	}

	artifactURL, attempts, err := o.generateWithRetry(ctx, backend.GenerateRequest{
		Prompt:    unit.Prompt,
		ImageURLs: images,
		Params:    unit.Params,
	})
	outcome.Attempts = attempts
	if err != nil {
		return failUnit(outcome, attempts, err), runFatal(err)
	}
	outcome.ArtifactURL = artifactURL

	ref, err := o.sink.Store(ctx, artifactURL, sink.Meta{
		RunID:          runID,
		Unit:           unit.Index,
		Prompt:         unit.Prompt,
		Category:       category,
		TargetFolderID: targetFolder(req, o.defaults),
	}, req.SaveRemotely)
	if err != nil {
		return failUnit(outcome, attempts, err), runFatal(err)
	}

	outcome.Success = true
	outcome.LocalKey = ref.LocalKey
	outcome.RemoteRef = ref.RemoteRef
	outcome.RemoteStored = ref.RemoteStored
	return outcome, nil
}

// runFatal passes through errors that abort the whole run, nil otherwise.
func runFatal(err error) error {
	if domain.IsRunFatal(err) {
		return err
	}
	return nil
}

// resolveImages picks the reference images for one unit. Explicit URLs are
// used as given; otherwise a fresh selection is made per unit so duplicate
// prompts still vary their inputs.
func (o *Orchestrator) resolveImages(ctx context.Context, req domain.JobRequest, cfg domain.PromptConfig, unit domain.GenerationUnit) ([]string, error) {
	if len(req.ImageURLs) > 0 {
		return req.ImageURLs, nil
	}
	if len(req.SourceFolderIDs) > 0 && o.images != nil {
		return o.images.Select(ctx, domain.ImageSelection{
			FolderIDs:             req.SourceFolderIDs,
			Strategy:              req.ImageStrategy,
			Prefix:                req.RandomImagePrefix,
			PrefixTargetFolderIDs: req.PrefixTargetFolderIDs,
		})
	}
	if len(cfg.ImageURLs) > 0 {
		return []string{cfg.ImageURLs[rand.Intn(len(cfg.ImageURLs))]}, nil
	}
	return nil, nil
}

// generateWithRetry calls the backend, retrying transient failures with a
// doubling backoff. Non-retriable failures return immediately.
func (o *Orchestrator) generateWithRetry(ctx context.Context, req backend.GenerateRequest) (string, int, error) {
	backoff := o.retryBackoff
	var lastErr error

	for attempt := 1; attempt <= o.retryAttempts; attempt++ {
		url, err := o.backend.Generate(ctx, req)
		if err == nil {
			return url, attempt, nil
		}
		lastErr = err
		if !domain.IsRetriable(err) {
			return "", attempt, err
		}
		if attempt == o.retryAttempts {
			break
		}

		o.logger.Warn().Err(err).Int("attempt", attempt).Msg("backend unavailable, retrying")
		select {
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", o.retryAttempts, lastErr
}

func failUnit(outcome domain.UnitOutcome, attempts int, err error) domain.UnitOutcome {
	outcome.Success = false
	outcome.Attempts = attempts
	outcome.FailureKind = domain.KindOf(err)
	outcome.FailureMessage = err.Error()
	return outcome
}

func kindForSetupError(err error) domain.FailureKind {
	if domain.IsValidation(err) {
		return domain.FailureValidation
	}
	return domain.KindOf(err)
}

func targetFolder(req domain.JobRequest, defaults Defaults) string {
	if req.TargetFolderID != "" {
		return req.TargetFolderID
	}
	return defaults.TargetFolderID
}
