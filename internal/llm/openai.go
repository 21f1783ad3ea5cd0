package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	openAIDefaultModel   = "gpt-4"
	deepSeekDefaultModel = "deepseek-chat"
	deepSeekBaseURL      = "https://api.deepseek.com/v1"
)

// OpenAIConfig holds configuration for OpenAI-compatible chat backends.
type OpenAIConfig struct {
	Name        string // Provider name reported by Name(); defaults to "openai"
	APIKey      string
	Model       string        // "gpt-4" (default)
	BaseURL     string        // Optional (DeepSeek, tests)
	Temperature float64       // 0.1 (default)
	MaxTokens   int           // 2000 (default)
	MaxRetries  int           // Retry attempts for SDK transport
	Timeout     time.Duration // HTTP timeout
	HTTPClient  *http.Client  // Optional (tests)
}

// OpenAIProvider implements Provider with the official OpenAI SDK. It also
// serves any backend that speaks the OpenAI chat completions protocol.
type OpenAIProvider struct {
	name        string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	client      openai.Client
}

// NewOpenAIProvider creates a new OpenAI chat provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  httpClient,
		client:      openai.NewClient(opts...),
	}
}

// NewDeepSeekProvider creates a provider for DeepSeek's OpenAI-compatible API.
func NewDeepSeekProvider(cfg OpenAIConfig) *OpenAIProvider {
	cfg.Name = ProviderDeepSeek
	if cfg.Model == "" {
		cfg.Model = deepSeekDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = deepSeekBaseURL
	}
	return NewOpenAIProvider(cfg)
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the configured model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// SupportsJSONMode reports that replies can be forced to a JSON object.
func (p *OpenAIProvider) SupportsJSONMode() bool {
	return true
}

// Close releases idle HTTP connections.
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Complete sends a chat completion request in JSON object mode.
func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(p.temperature),
		MaxTokens:   openai.Int(int64(p.maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", p.mapError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{
			Provider:   p.name,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
	}
	return fmt.Errorf("%s request failed: %w", p.name, err)
}

var _ Provider = (*OpenAIProvider)(nil)
