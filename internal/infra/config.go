package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment
// variables. It is read once at process start and treated as immutable;
// orchestration code receives it by value and never mutates it.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	APIToken    string

	// Orchestration defaults.
	Categories            []string
	DefaultResolution     string
	DefaultAspectRatio    string
	DefaultModelVersion   string
	DefaultDuplicateCount int
	Parallelism           int
	RetryAttempts         int
	RetryBackoff          time.Duration

	// Prompt generation.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Generation backend.
	ReplicateAPIToken string
	ReplicateBaseURL  string
	BackendRateLimit  float64

	// Storage.
	StoragePath           string
	RemoteBucket          string
	RemoteRegion          string
	RemoteEndpoint        string
	RemoteForcePathStyle  bool
	RemoteAccessKeyID     string
	RemoteSecretAccessKey string
	DefaultTargetFolderID string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	RunQueueSize     int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		APIToken:    os.Getenv("API_AUTH_TOKEN"),

		Categories:            getEnvList("CATEGORIES", []string{"ExtendedFamily", "Self", "NearFamily", "MD", "General"}),
		DefaultResolution:     getEnv("DEFAULT_RESOLUTION", "2K"),
		DefaultAspectRatio:    getEnv("DEFAULT_ASPECT_RATIO", "16:9"),
		DefaultModelVersion:   getEnv("DEFAULT_MODEL_VERSION", "google/nano-banana-pro"),
		DefaultDuplicateCount: getEnvInt("DEFAULT_DUPLICATE_COUNT", 5),
		Parallelism:           getEnvInt("UNIT_PARALLELISM", 2),
		RetryAttempts:         getEnvInt("BACKEND_RETRY_ATTEMPTS", 3),
		RetryBackoff:          time.Duration(getEnvInt("BACKEND_RETRY_BACKOFF_MS", 500)) * time.Millisecond,

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
		BackendRateLimit:  getEnvFloat("BACKEND_RATE_LIMIT", 0),

		StoragePath:           getEnv("STORAGE_PATH", "./storage"),
		RemoteBucket:          os.Getenv("REMOTE_BUCKET"),
		RemoteRegion:          os.Getenv("REMOTE_REGION"),
		RemoteEndpoint:        os.Getenv("REMOTE_ENDPOINT"),
		RemoteForcePathStyle:  getEnvBool("REMOTE_FORCE_PATH_STYLE", false),
		RemoteAccessKeyID:     os.Getenv("REMOTE_ACCESS_KEY_ID"),
		RemoteSecretAccessKey: os.Getenv("REMOTE_SECRET_ACCESS_KEY"),
		DefaultTargetFolderID: os.Getenv("DEFAULT_TARGET_FOLDER_ID"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RunQueueSize:     getEnvInt("RUN_QUEUE_SIZE", 16),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("CATEGORIES must not be empty")
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
