package promptsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bananaforge/internal/domain"
)

const openAIDefaultTimeout = 60 * time.Second

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// OpenAISource generates prompts through the OpenAI chat completions API.
// The model is instructed to answer with a JSON object so the response can
// be parsed without scraping.
type OpenAISource struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

var _ Source = (*OpenAISource)(nil)

func NewOpenAISource(opts OpenAIOptions) (*OpenAISource, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai api key is required", domain.ErrGenerationFailure)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAISource{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type promptPayload struct {
	Prompts []string `json:"prompts"`
}

func (o *OpenAISource) Generate(ctx context.Context, cfg domain.PromptConfig, mode domain.Mode, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: prompt count must be positive", domain.ErrGenerationFailure)
	}

	payload := openAIChatRequest{
		Model:          o.model,
		Temperature:    0.9,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: systemInstruction(cfg)},
			{Role: "user", Content: userInstruction(cfg, mode, count)},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrGenerationFailure, err)
	}

	endpoint := o.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrGenerationFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: openai status %d", domain.ErrGenerationFailure, resp.StatusCode)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGenerationFailure, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrGenerationFailure)
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	var parsed promptPayload
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse payload: %v", domain.ErrGenerationFailure, err)
	}

	prompts := make([]string, 0, count)
	seen := make(map[string]struct{}, len(parsed.Prompts))
	for _, p := range parsed.Prompts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		prompts = append(prompts, p)
	}
	if len(prompts) < count {
		return nil, fmt.Errorf("%w: got %d distinct prompts, need %d", domain.ErrGenerationFailure, len(prompts), count)
	}

	o.logger.Debug().Str("category", cfg.Category).Int("count", count).Msg("prompts generated")
	return prompts[:count], nil
}

func systemInstruction(cfg domain.PromptConfig) string {
	system := strings.TrimSpace(cfg.SystemPrompt)
	if system == "" {
		system = "You write vivid, concrete prompts for an image generation model."
	}
	return system + ` Respond with a JSON object of the form {"prompts": ["...", "..."]}.`
}

// userInstruction picks one seed prompt from the category pool and asks
// for count distinct variations of it. Standard mode draws from the
// curated pool; random mode prefers prompts recorded from earlier runs.
func userInstruction(cfg domain.PromptConfig, mode domain.Mode, count int) string {
	pool := cfg.StandardPrompts
	if mode == domain.ModeRandom && len(cfg.DynamicPrompts) > 0 {
		pool = cfg.DynamicPrompts
	}

	var seed string
	if len(pool) > 0 {
		seed = pool[rand.Intn(len(pool))]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write %d distinct image generation prompts for the %q theme.", count, cfg.Category)
	if seed != "" {
		fmt.Fprintf(&b, " Use this as inspiration: %s", seed)
	}
	b.WriteString(` Answer only with JSON: {"prompts": [...]}.`)
	return b.String()
}
