package backend

import (
	"context"

	"bananaforge/internal/domain"
)

// GenerateRequest is one image generation call.
type GenerateRequest struct {
	Prompt    string
	ImageURLs []string
	Params    domain.GenerationParams
}

// Generator produces a single image artifact per call and returns the URL
// it can be downloaded from.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
