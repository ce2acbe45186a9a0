package domain

// PromptConfig is the per-category prompt configuration row.
type PromptConfig struct {
	Category        string
	SystemPrompt    string
	StandardPrompts []string
	DynamicPrompts  []string
	ImageURLs       []string
}

// ModelConfig describes one generation model and its default parameters.
type ModelConfig struct {
	ModelVersion string
	Resolution   string
	AspectRatio  string
	Active       bool
}
