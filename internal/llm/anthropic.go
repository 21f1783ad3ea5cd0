package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"
)

const anthropicDefaultModel = "claude-3-sonnet-20240229"

// AnthropicConfig holds configuration for the Anthropic messages client.
type AnthropicConfig struct {
	APIKey      string
	Model       string        // "claude-3-sonnet-20240229" (default)
	BaseURL     string        // Optional (tests)
	Temperature float64       // 0.1 (default)
	MaxTokens   int           // 2000 (default)
	MaxAttempts int           // Attempts for transient failures, 3 (default)
	RetryDelay  time.Duration // Base delay between attempts
	Timeout     time.Duration // HTTP timeout
	HTTPClient  *http.Client  // Optional (tests)
}

// AnthropicProvider implements Provider with the official Anthropic SDK.
type AnthropicProvider struct {
	model       string
	temperature float64
	maxTokens   int
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	client      anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// SDK retries are off; Complete retries with retry-go.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		httpClient:  httpClient,
		client:      anthropic.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Model returns the configured model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// SupportsJSONMode reports false; the messages API has no JSON object mode.
func (p *AnthropicProvider) SupportsJSONMode() bool {
	return false
}

// Close releases idle HTTP connections.
func (p *AnthropicProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Complete sends a messages request, retrying transport errors, 429 and 5xx.
func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(p.temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}

	var out string
	err := retry.Do(
		func() error {
			msg, err := p.client.Messages.New(ctx, params)
			if err != nil {
				return p.mapError(err)
			}
			text, err := messageText(msg)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			out = text
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.maxAttempts)),
		retry.Delay(p.retryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (p *AnthropicProvider) mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &StatusError{
			Provider:   ProviderAnthropic,
			StatusCode: apiErr.StatusCode,
			Body:       anthropicErrorMessage(apiErr),
		}
	}
	return fmt.Errorf("%s request failed: %w", ProviderAnthropic, err)
}

// anthropicErrorMessage prefers the message inside the error envelope over
// the SDK's formatted error string.
func anthropicErrorMessage(apiErr *anthropic.Error) string {
	if raw := apiErr.RawJSON(); raw != "" {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(raw), &envelope) == nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	return apiErr.Error()
}

func messageText(msg *anthropic.Message) (string, error) {
	if msg != nil {
		for _, block := range msg.Content {
			if block.Type == "" || block.Type == "text" {
				return strings.TrimSpace(block.Text), nil
			}
		}
	}
	return "", fmt.Errorf("anthropic response has no text content")
}

func isTransient(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

var _ Provider = (*AnthropicProvider)(nil)
