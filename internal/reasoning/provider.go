package reasoning

import (
	"net/http"

	"factcheck/backend/internal/config"
)

// FromConfig returns the configured provider, wrapped in the shared rate
// limiter when REASONING_MIN_INTERVAL_MS is set.
func FromConfig(cfg config.Config, httpClient *http.Client) Invoker {
	var inner Invoker
	switch cfg.ReasoningProvider {
	case config.ProviderOpenRouter:
		inner = NewOpenRouterClient(OpenRouterConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Timeout: cfg.ReasoningTimeout,
		}, httpClient)
	default:
		inner = NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Timeout: cfg.ReasoningTimeout,
		}, httpClient)
	}
	return NewRateLimited(inner, cfg.ReasoningMinInterval)
}
