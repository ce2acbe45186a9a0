package promptsource

import (
	"context"

	"bananaforge/internal/domain"
)

// Source produces generation prompts for a category when a request does
// not carry prompts of its own.
type Source interface {
	// Generate returns exactly count prompts for the category described by
	// cfg. Implementations fail the whole call rather than return fewer
	// prompts than requested.
	Generate(ctx context.Context, cfg domain.PromptConfig, mode domain.Mode, count int) ([]string, error)
}
