package promptsource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bananaforge/internal/domain"
)

func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func newTestSource(t *testing.T, handler http.HandlerFunc) *OpenAISource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src, err := NewOpenAISource(OpenAIOptions{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewOpenAISource: %v", err)
	}
	return src
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	var gotReq openAIChatRequest
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write(chatResponse(t, `{"prompts": ["a dog", " a cat ", "a bird"]}`))
	})

	cfg := domain.PromptConfig{Category: "Self", SystemPrompt: "You write prompts."}
	prompts, err := src.Generate(context.Background(), cfg, domain.ModeStandard, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("got %d prompts, want 3", len(prompts))
	}
	if prompts[1] != "a cat" {
		t.Errorf("prompts[1] = %q, want trimmed", prompts[1])
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", gotReq.ResponseFormat)
	}
}

func TestOpenAIGenerateTruncatesExtras(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse(t, `{"prompts": ["one", "two", "three", "four"]}`))
	})

	prompts, err := src.Generate(context.Background(), domain.PromptConfig{Category: "MD"}, domain.ModeStandard, 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("got %d prompts, want 2", len(prompts))
	}
}

func TestOpenAIGenerateDropsDuplicates(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse(t, `{"prompts": ["a dog", "a dog ", "a cat"]}`))
	})

	prompts, err := src.Generate(context.Background(), domain.PromptConfig{Category: "Self"}, domain.ModeStandard, 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(prompts) != 2 || prompts[0] != "a dog" || prompts[1] != "a cat" {
		t.Fatalf("prompts = %v, want deduplicated pair", prompts)
	}

	// Duplicates must not count toward the requested total.
	_, err = src.Generate(context.Background(), domain.PromptConfig{Category: "Self"}, domain.ModeStandard, 3)
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestOpenAIGenerateTooFewPrompts(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse(t, `{"prompts": ["only one", "  "]}`))
	})

	_, err := src.Generate(context.Background(), domain.PromptConfig{Category: "Self"}, domain.ModeStandard, 3)
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestOpenAIGenerateHTTPError(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := src.Generate(context.Background(), domain.PromptConfig{Category: "Self"}, domain.ModeStandard, 1)
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestOpenAIGenerateBadPayload(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse(t, "not json"))
	})

	_, err := src.Generate(context.Background(), domain.PromptConfig{Category: "Self"}, domain.ModeStandard, 1)
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestNewOpenAISourceRequiresKey(t *testing.T) {
	if _, err := NewOpenAISource(OpenAIOptions{}); err == nil {
		t.Fatal("expected error when api key is missing")
	}
}

func TestStaticGenerate(t *testing.T) {
	src := NewStaticSource()

	prompts, err := src.Generate(context.Background(), domain.PromptConfig{Category: "near family"}, domain.ModeStandard, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(prompts) != 4 {
		t.Fatalf("got %d prompts, want 4", len(prompts))
	}
	for _, p := range prompts {
		if p == "" {
			t.Fatal("empty prompt in output")
		}
	}
}

func TestStaticGeneratePrefersConfiguredPool(t *testing.T) {
	src := NewStaticSource()
	cfg := domain.PromptConfig{
		Category:        "Self",
		StandardPrompts: []string{"curated one", "curated two", "curated three"},
	}

	prompts, err := src.Generate(context.Background(), cfg, domain.ModeStandard, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pool := map[string]bool{"curated one": true, "curated two": true, "curated three": true}
	for _, p := range prompts {
		if !pool[p] {
			t.Fatalf("prompt = %q, want pool entry", p)
		}
	}
}

func TestStaticGenerateDistinctPrompts(t *testing.T) {
	src := NewStaticSource()
	cfg := domain.PromptConfig{
		Category:        "Self",
		StandardPrompts: []string{"same prompt", "same prompt"},
	}

	// 10 exceeds pool plus templates, forcing the variant fallback.
	prompts, err := src.Generate(context.Background(), cfg, domain.ModeStandard, 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(prompts) != 10 {
		t.Fatalf("got %d prompts, want 10", len(prompts))
	}
	seen := map[string]bool{}
	for _, p := range prompts {
		if seen[p] {
			t.Fatalf("duplicate prompt %q", p)
		}
		seen[p] = true
	}
}
