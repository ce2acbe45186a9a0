package configstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"bananaforge/internal/domain"
	"bananaforge/internal/infra"
	"bananaforge/internal/sqlinline"
)

// Store reads and updates per-category prompt configuration and model
// configuration from the database.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// PromptConfig returns the prompt configuration for a category. A missing
// category is a validation problem: callers picked or received a category
// that operators never configured.
func (s *Store) PromptConfig(ctx context.Context, category string) (domain.PromptConfig, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QPromptConfigByCategory, category)

	var cfg domain.PromptConfig
	err := row.Scan(&cfg.Category, &cfg.SystemPrompt, &cfg.StandardPrompts, &cfg.DynamicPrompts, &cfg.ImageURLs)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.PromptConfig{}, &domain.ValidationError{
				Field:   "category",
				Message: fmt.Sprintf("no prompt configuration for category %q", category),
			}
		}
		return domain.PromptConfig{}, fmt.Errorf("configstore: load prompt config: %w", err)
	}
	return cfg, nil
}

// AppendGeneratedPrompts records prompts produced during a run so later
// runs in random mode can reuse them.
func (s *Store) AppendGeneratedPrompts(ctx context.Context, category string, prompts []string) error {
	cleaned := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	_, err := s.sql.Exec(ctx, sqlinline.QPromptConfigAppendDynamic, category, cleaned)
	if err != nil {
		return fmt.Errorf("configstore: append prompts: %w", err)
	}
	return nil
}

// ModelConfig resolves model settings. An empty version selects the active
// default model.
func (s *Store) ModelConfig(ctx context.Context, modelVersion string) (domain.ModelConfig, error) {
	var row pgx.Row
	if strings.TrimSpace(modelVersion) != "" {
		row = s.sql.QueryRow(ctx, sqlinline.QModelConfigByVersion, modelVersion)
	} else {
		row = s.sql.QueryRow(ctx, sqlinline.QModelConfigActiveDefault)
	}

	var cfg domain.ModelConfig
	err := row.Scan(&cfg.ModelVersion, &cfg.Resolution, &cfg.AspectRatio, &cfg.Active)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.ModelConfig{}, &domain.ValidationError{
				Field:   "model_version",
				Message: fmt.Sprintf("no model configuration for %q", modelVersion),
			}
		}
		return domain.ModelConfig{}, fmt.Errorf("configstore: load model config: %w", err)
	}
	return cfg, nil
}
