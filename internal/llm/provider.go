package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
	ProviderMock      = "mock"
)

// Generation parameters shared by every backend
const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000
)

// Provider is an interchangeable LLM backend
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Complete sends one system and one user message and returns the raw reply text.
	Complete(ctx context.Context, system, user string) (string, error)

	// SupportsJSONMode reports whether the backend can force a JSON object reply.
	SupportsJSONMode() bool
}

// IsConfiguredKey reports whether an API key is usable. Empty keys and the
// "your_<name>_api_key_here" placeholders from sample env files are not.
func IsConfiguredKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	return !(strings.HasPrefix(lower, "your_") && strings.HasSuffix(lower, "_here"))
}

// StatusError is returned by HTTP-based adapters for non-2xx replies
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying
func (e *StatusError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
