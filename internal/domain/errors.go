package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the orchestration pipeline. Collaborators wrap these so
// the orchestrator can classify failures without knowing provider details.
var (
	// ErrGenerationFailure indicates the prompt source could not produce the
	// required prompts. Fatal to the whole run.
	ErrGenerationFailure = errors.New("prompt generation failed")

	// ErrNoEligibleImages indicates the image source found nothing matching
	// the configured folders and prefix filter. Fatal to the affected unit only.
	ErrNoEligibleImages = errors.New("no eligible images")

	// ErrProviderUnavailable indicates a transient backend or network failure.
	// Retried with backoff before being recorded as a unit failure.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidInput indicates the generation backend rejected the request
	// parameters. Not retriable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrContentRejected indicates provider-side moderation refused the
	// prompt or images. Not retriable.
	ErrContentRejected = errors.New("content rejected")

	// ErrStorageFailure indicates an artifact could not be persisted.
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidCredentials indicates the environment is misconfigured
	// (rejected API token or storage credentials). Aborts the run.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FailureKind labels a unit failure in outcome records.
type FailureKind string

const (
	FailureValidation          FailureKind = "validation"
	FailurePromptGeneration    FailureKind = "prompt_generation"
	FailureNoEligibleImages    FailureKind = "no_eligible_images"
	FailureProviderUnavailable FailureKind = "provider_unavailable"
	FailureInvalidInput        FailureKind = "invalid_input"
	FailureContentRejected     FailureKind = "content_rejected"
	FailureStorage             FailureKind = "storage"
	FailureAborted             FailureKind = "aborted"
	FailureInternal            FailureKind = "internal"
)

// KindOf maps an error to its failure kind for outcome records.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGenerationFailure):
		return FailurePromptGeneration
	case errors.Is(err, ErrNoEligibleImages):
		return FailureNoEligibleImages
	case errors.Is(err, ErrProviderUnavailable):
		return FailureProviderUnavailable
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(err, ErrContentRejected):
		return FailureContentRejected
	case errors.Is(err, ErrStorageFailure):
		return FailureStorage
	case errors.Is(err, ErrInvalidCredentials):
		return FailureAborted
	default:
		return FailureInternal
	}
}

// IsRetriable reports whether the orchestrator should retry the failed call.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsRunFatal reports whether the error aborts the whole run rather than a
// single unit.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// ValidationError describes a malformed job request. It is reported to the
// caller at submission time, before any external call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a request validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
