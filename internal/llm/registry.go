package llm

import (
	"log/slog"
	"time"
)

// ProvidersConfig lists credentials for every supported backend
type ProvidersConfig struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	DeepSeekAPIKey  string
	OpenAIModel     string
	AnthropicModel  string
	DeepSeekModel   string
	Timeout         time.Duration
	UseMock         bool
	MockResponse    string
}

// NewProviders instantiates a provider for every configured API key. When
// UseMock is set only the mock provider is returned.
func NewProviders(cfg ProvidersConfig, logger *slog.Logger) []Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UseMock {
		response := cfg.MockResponse
		if response == "" {
			response = "{}"
		}
		logger.Info("registered LLM provider", "name", ProviderMock)
		return []Provider{NewMockProvider(ProviderMock, response)}
	}

	var providers []Provider
	if IsConfiguredKey(cfg.OpenAIAPIKey) {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}))
	}
	if IsConfiguredKey(cfg.AnthropicAPIKey) {
		providers = append(providers, NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.Timeout,
		}))
	}
	if IsConfiguredKey(cfg.DeepSeekAPIKey) {
		providers = append(providers, NewDeepSeekProvider(OpenAIConfig{
			APIKey:  cfg.DeepSeekAPIKey,
			Model:   cfg.DeepSeekModel,
			Timeout: cfg.Timeout,
		}))
	}

	for _, p := range providers {
		logger.Info("registered LLM provider", "name", p.Name(), "json_mode", p.SupportsJSONMode())
	}
	return providers
}

// PriorityWithPreferred moves preferred to the front of priority
func PriorityWithPreferred(priority []string, preferred string) []string {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	if preferred == "" {
		return append([]string(nil), priority...)
	}
	out := []string{preferred}
	for _, name := range priority {
		if name != preferred {
			out = append(out, name)
		}
	}
	return out
}
