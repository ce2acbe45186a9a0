package credentials

import (
	"context"
	"errors"
	"strings"

	"bananaforge/internal/infra"
	"bananaforge/internal/sqlinline"
)

const (
	ProviderReplicate = "replicate"
	ProviderOpenAI    = "openai"
)

// Store reads and writes provider tokens kept in the database. Tokens in
// the database take precedence over environment configuration so they can
// be rotated without a restart.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) ReplicateToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderReplicate)
}

func (s *Store) OpenAIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token)
	return err
}
