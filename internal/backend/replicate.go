package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bananaforge/internal/domain"
)

const replicateDefaultTimeout = 5 * time.Minute

type ReplicateOptions struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	// RateLimit caps outgoing prediction calls per second. Zero disables
	// the limiter.
	RateLimit float64
}

// ReplicateClient calls the Replicate synchronous predictions API. The
// Prefer header asks the API to block until the prediction finishes, so a
// single request yields the final output.
type ReplicateClient struct {
	token   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	limiter *rate.Limiter
}

var _ Generator = (*ReplicateClient)(nil)

func NewReplicateClient(opts ReplicateOptions) (*ReplicateClient, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("%w: replicate token is required", domain.ErrInvalidCredentials)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: replicateDefaultTimeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &ReplicateClient{
		token:   strings.TrimSpace(opts.Token),
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
		limiter: limiter,
	}, nil
}

type predictionInput struct {
	Prompt      string   `json:"prompt"`
	ImageInput  []string `json:"image_input,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

type predictionResponse struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (c *ReplicateClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", domain.ErrInvalidInput)
	}
	model := strings.TrimSpace(req.Params.ModelVersion)
	if model == "" {
		return "", fmt.Errorf("%w: model version is empty", domain.ErrInvalidInput)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	payload := predictionRequest{Input: predictionInput{
		Prompt:      req.Prompt,
		ImageInput:  req.ImageURLs,
		Resolution:  req.Params.Resolution,
		AspectRatio: req.Params.AspectRatio,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", domain.ErrInvalidInput, err)
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrInvalidInput, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Prefer", "wait")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		return "", c.classifyHTTPError(resp.StatusCode, raw)
	}

	var pred predictionResponse
	if err := json.Unmarshal(raw, &pred); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		return "", classifyPredictionError(pred.Error)
	}

	url, err := extractOutputURL(pred.Output)
	if err != nil {
		return "", err
	}

	c.logger.Debug().Str("model", model).Msg("prediction completed")
	return url, nil
}

// classifyHTTPError maps prediction API status codes onto the failure
// taxonomy. Auth failures abort the whole run, capacity problems are
// retried, everything else fails just the unit.
func (c *ReplicateClient) classifyHTTPError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", domain.ErrInvalidCredentials, status, detail)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if looksLikeContentRejection(detail) {
			return fmt.Errorf("%w: status %d: %s", domain.ErrContentRejected, status, detail)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrInvalidInput, status, detail)
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, status, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrInvalidInput, status, detail)
	}
}

func classifyPredictionError(msg string) error {
	if looksLikeContentRejection(msg) {
		return fmt.Errorf("%w: %s", domain.ErrContentRejected, msg)
	}
	return fmt.Errorf("%w: prediction failed: %s", domain.ErrInvalidInput, msg)
}

func looksLikeContentRejection(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "flagged") ||
		strings.Contains(lower, "sensitive") ||
		strings.Contains(lower, "safety")
}

// extractOutputURL handles both output shapes the API produces: a single
// URL string or an array of URL strings.
func extractOutputURL(output json.RawMessage) (string, error) {
	if len(output) == 0 {
		return "", fmt.Errorf("%w: prediction returned no output", domain.ErrInvalidInput)
	}

	var single string
	if err := json.Unmarshal(output, &single); err == nil && single != "" {
		return single, nil
	}

	var many []string
	if err := json.Unmarshal(output, &many); err == nil {
		for _, u := range many {
			if u != "" {
				return u, nil
			}
		}
	}

	return "", fmt.Errorf("%w: unrecognized output shape", domain.ErrInvalidInput)
}
