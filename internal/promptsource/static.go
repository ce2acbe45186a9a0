package promptsource

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bananaforge/internal/domain"
)

var staticTemplates = []string{
	"A warm candid photo in the style of %s, natural light, shallow depth of field",
	"A cinematic portrait themed around %s, golden hour, film grain",
	"A playful everyday scene inspired by %s, soft colors, documentary style",
	"A cozy indoor moment evoking %s, window light, muted tones",
}

// StaticSource produces deterministic template prompts. It serves as the
// offline fallback when no chat completion provider is configured.
type StaticSource struct{}

var _ Source = StaticSource{}

func NewStaticSource() StaticSource {
	return StaticSource{}
}

func (StaticSource) Generate(ctx context.Context, cfg domain.PromptConfig, mode domain.Mode, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: prompt count must be positive", domain.ErrGenerationFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Curated prompts win over templates when the category has them.
	// The pool is sampled without replacement so the result never
	// repeats a prompt.
	pool := append([]string{}, cfg.StandardPrompts...)
	if mode == domain.ModeRandom {
		pool = append(pool, cfg.DynamicPrompts...)
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	theme := cases.Title(language.English).String(strings.TrimSpace(cfg.Category))
	for _, tpl := range staticTemplates {
		pool = append(pool, fmt.Sprintf(tpl, theme))
	}

	prompts := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	take := func(p string) {
		if _, dup := seen[p]; dup || len(prompts) == count {
			return
		}
		seen[p] = struct{}{}
		prompts = append(prompts, p)
	}
	for _, p := range pool {
		take(p)
	}
	// Numbered template variants cover counts beyond the candidate set.
	for v := 2; len(prompts) < count; v++ {
		for _, tpl := range staticTemplates {
			take(fmt.Sprintf(tpl, theme) + fmt.Sprintf(", take %d", v))
		}
	}
	return prompts, nil
}
