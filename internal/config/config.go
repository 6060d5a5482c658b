package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort                  = "8080"
	defaultReasoningProvider     = "anthropic"
	defaultAnthropicBaseURL      = "https://api.anthropic.com"
	defaultAnthropicTextModel    = "claude-3-haiku-20240307"
	defaultAnthropicVisionModel  = "claude-3-5-sonnet-20240620"
	defaultOpenRouterBaseURL     = "https://openrouter.ai/api/v1"
	defaultOpenRouterTextModel   = "anthropic/claude-3-haiku"
	defaultOpenRouterVisionModel = "anthropic/claude-3.5-sonnet"
	defaultBraveBaseURL          = "https://api.search.brave.com/res/v1"
	defaultReasoningTimeoutSecs  = 60
	defaultScrapeTimeoutSecs     = 10
	defaultProbeTimeoutSecs      = 5
	defaultProbeConcurrency      = 64
	defaultPipelineTimeoutSecs   = 90
	defaultMaxImageBytes         = 1 << 20
	defaultCacheTTLMinutes       = 60
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	ReasoningProvider      string
	AnthropicAPIKey        string
	AnthropicBaseURL       string
	AnthropicTextModel     string
	AnthropicVisionModel   string
	OpenRouterAPIKey       string
	OpenRouterBaseURL      string
	OpenRouterTextModel    string
	OpenRouterVisionModel  string
	ReasoningTimeout       time.Duration
	ReasoningMinInterval   time.Duration
	ScrapeTimeout          time.Duration
	ProbeTimeout           time.Duration
	ProbeConcurrency       int
	PipelineTimeout        time.Duration
	MaxImageBytes          int
	SourceDirectoryFile    string
	BraveAPIKey            string
	BraveBaseURL           string
	SourceSearchEnabled    bool
	RedisAddress           string
	RedisPassword          string
	RedisDB                int
	CacheTTL               time.Duration
	DatabaseURL            string
	DatabaseAuthToken      string
	AuthRequired           bool
	GoogleClientID         string
	InsecureSkipAuthVerify bool
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// TextModel returns the configured lighter model for the active provider.
func (c Config) TextModel() string {
	if c.ReasoningProvider == ProviderOpenRouter {
		return c.OpenRouterTextModel
	}
	return c.AnthropicTextModel
}

// VisionModel returns the configured image-capable model for the active provider.
func (c Config) VisionModel() string {
	if c.ReasoningProvider == ProviderOpenRouter {
		return c.OpenRouterVisionModel
	}
	return c.AnthropicVisionModel
}

// Load reads .env files (ENV_FILE, then .env) and the process environment.
func Load() (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:                   envOrDefault("PORT", defaultPort),
		Environment:            envOrDefault("APP_ENV", "development"),
		LogLevel:               envOrDefault("LOG_LEVEL", "info"),
		ReasoningProvider:      strings.ToLower(envOrDefault("REASONING_PROVIDER", defaultReasoningProvider)),
		AnthropicAPIKey:        strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL:       envOrDefault("ANTHROPIC_BASE_URL", defaultAnthropicBaseURL),
		AnthropicTextModel:     envOrDefault("ANTHROPIC_TEXT_MODEL", defaultAnthropicTextModel),
		AnthropicVisionModel:   envOrDefault("ANTHROPIC_VISION_MODEL", defaultAnthropicVisionModel),
		OpenRouterAPIKey:       strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL:      envOrDefault("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL),
		OpenRouterTextModel:    envOrDefault("OPENROUTER_TEXT_MODEL", defaultOpenRouterTextModel),
		OpenRouterVisionModel:  envOrDefault("OPENROUTER_VISION_MODEL", defaultOpenRouterVisionModel),
		ReasoningTimeout:       seconds(intOrDefault("REASONING_TIMEOUT_SECONDS", defaultReasoningTimeoutSecs)),
		ReasoningMinInterval:   time.Duration(intOrDefault("REASONING_MIN_INTERVAL_MS", 0)) * time.Millisecond,
		ScrapeTimeout:          seconds(intOrDefault("SCRAPE_TIMEOUT_SECONDS", defaultScrapeTimeoutSecs)),
		ProbeTimeout:           seconds(intOrDefault("PROBE_TIMEOUT_SECONDS", defaultProbeTimeoutSecs)),
		ProbeConcurrency:       intOrDefault("PROBE_CONCURRENCY", defaultProbeConcurrency),
		PipelineTimeout:        seconds(intOrDefault("PIPELINE_TIMEOUT_SECONDS", defaultPipelineTimeoutSecs)),
		MaxImageBytes:          intOrDefault("MAX_IMAGE_BYTES", defaultMaxImageBytes),
		SourceDirectoryFile:    strings.TrimSpace(os.Getenv("SOURCE_DIRECTORY_FILE")),
		BraveAPIKey:            strings.TrimSpace(os.Getenv("BRAVE_API_KEY")),
		BraveBaseURL:           envOrDefault("BRAVE_BASE_URL", defaultBraveBaseURL),
		SourceSearchEnabled:    boolOrDefault("SOURCE_SEARCH_ENABLED", false),
		RedisAddress:           strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                intOrDefault("REDIS_DB", 0),
		CacheTTL:               time.Duration(intOrDefault("CACHE_TTL_MINUTES", defaultCacheTTLMinutes)) * time.Minute,
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseAuthToken:      strings.TrimSpace(os.Getenv("DATABASE_AUTH_TOKEN")),
		AuthRequired:           boolOrDefault("AUTH_REQUIRED", false),
		GoogleClientID:         strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		InsecureSkipAuthVerify: boolOrDefault("AUTH_INSECURE_SKIP_VERIFY", false),
	}

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", "*"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It does not require API keys:
// a missing key surfaces per request as an upstream rejection.
func (c Config) Validate() error {
	switch c.ReasoningProvider {
	case ProviderAnthropic, ProviderOpenRouter:
	default:
		return fmt.Errorf("REASONING_PROVIDER must be %q or %q, got %q", ProviderAnthropic, ProviderOpenRouter, c.ReasoningProvider)
	}
	if c.ScrapeTimeout <= 0 || c.ProbeTimeout <= 0 || c.ReasoningTimeout <= 0 || c.PipelineTimeout <= 0 {
		return errors.New("timeouts must be > 0")
	}
	if c.ProbeConcurrency <= 0 {
		return errors.New("PROBE_CONCURRENCY must be > 0")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be > 0")
	}
	if c.SourceSearchEnabled && c.BraveAPIKey == "" {
		return errors.New("BRAVE_API_KEY is required when SOURCE_SEARCH_ENABLED=true")
	}
	if strings.HasPrefix(c.DatabaseURL, "libsql://") && c.DatabaseAuthToken == "" {
		return errors.New("DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}
	if c.AuthRequired && !c.InsecureSkipAuthVerify && c.GoogleClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required when AUTH_REQUIRED=true")
	}
	return nil
}

func loadEnvFiles() error {
	if envFile := strings.TrimSpace(os.Getenv("ENV_FILE")); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
