package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
)

func mockNamed(name string, jsonMode bool) *MockProvider {
	return &MockProvider{ProviderName: name, JSONMode: jsonMode, Response: "{}"}
}

func TestSelector_PriorityOrder(t *testing.T) {
	s := NewSelector([]Provider{
		mockNamed(ProviderDeepSeek, true),
		mockNamed("zeta", true),
		mockNamed(ProviderAnthropic, false),
		mockNamed("alpha", true),
	}, nil, false)

	assert.Equal(t, []string{ProviderAnthropic, ProviderDeepSeek, "alpha", "zeta"}, s.Names())
	assert.Equal(t, ProviderAnthropic, s.Preferred().Name())
	assert.Equal(t, 4, s.Len())
}

func TestSelector_PreferJSON(t *testing.T) {
	providers := []Provider{mockNamed(ProviderAnthropic, false), mockNamed(ProviderDeepSeek, true)}

	assert.Equal(t, ProviderDeepSeek, NewSelector(providers, nil, true).Preferred().Name())
	assert.Equal(t, ProviderAnthropic, NewSelector(providers, nil, false).Preferred().Name())

	onlyText := NewSelector([]Provider{mockNamed(ProviderAnthropic, false)}, nil, true)
	assert.Equal(t, ProviderAnthropic, onlyText.Preferred().Name(), "falls back when no JSON-mode provider exists")
}

func TestSelector_ExplicitPreferenceBeatsJSONMode(t *testing.T) {
	providers := NewProviders(ProvidersConfig{
		OpenAIAPIKey:    "sk-test",
		AnthropicAPIKey: "sk-ant-test",
	}, nil)
	require.Len(t, providers, 2)

	s := NewSelector(providers, PriorityWithPreferred(nil, ProviderAnthropic), true).WithPreferred(ProviderAnthropic)
	assert.Equal(t, []string{ProviderAnthropic, ProviderOpenAI}, s.Names())
	assert.Equal(t, ProviderAnthropic, s.Preferred().Name())
	assert.Equal(t, ProviderOpenAI, s.Alternate(ProviderAnthropic).Name())

	unset := NewSelector(providers, nil, true).WithPreferred("")
	assert.Equal(t, ProviderOpenAI, unset.Preferred().Name())

	missing := NewSelector([]Provider{mockNamed(ProviderDeepSeek, true)}, nil, true).WithPreferred(ProviderAnthropic)
	assert.Equal(t, ProviderDeepSeek, missing.Preferred().Name(), "an unconfigured preference falls back to priority")
}

func TestSelector_Alternate(t *testing.T) {
	s := NewSelector([]Provider{
		mockNamed(ProviderOpenAI, true),
		mockNamed(ProviderAnthropic, false),
		mockNamed(ProviderDeepSeek, true),
	}, nil, true)

	assert.Equal(t, ProviderAnthropic, s.Alternate(ProviderOpenAI).Name())
	assert.Equal(t, ProviderOpenAI, s.Alternate(ProviderAnthropic).Name())
	assert.Equal(t, ProviderOpenAI, s.Alternate(ProviderDeepSeek).Name())

	single := NewSelector([]Provider{mockNamed(ProviderOpenAI, true)}, nil, true)
	assert.Nil(t, single.Alternate(ProviderOpenAI))
}

func TestSelector_Get(t *testing.T) {
	s := NewSelector([]Provider{mockNamed(ProviderOpenAI, true)}, nil, true)

	p, err := s.Get(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	_, err = s.Get(ProviderAnthropic)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSelector_Empty(t *testing.T) {
	s := NewSelector(nil, nil, true)
	assert.Nil(t, s.Preferred())
	assert.Nil(t, s.Alternate(""))
	assert.Zero(t, s.Len())
}

func TestPriorityWithPreferred(t *testing.T) {
	assert.Equal(t, DefaultPriority, PriorityWithPreferred(nil, ""))
	assert.Equal(t,
		[]string{ProviderDeepSeek, ProviderOpenAI, ProviderAnthropic},
		PriorityWithPreferred(nil, ProviderDeepSeek))
}

func TestIsConfiguredKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"your_openai_api_key_here", false},
		{"YOUR_ANTHROPIC_API_KEY_HERE", false},
		{"sk-live-123", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsConfiguredKey(tt.key), tt.key)
	}
}

func TestNewProviders(t *testing.T) {
	providers := NewProviders(ProvidersConfig{
		OpenAIAPIKey:    "sk-test",
		AnthropicAPIKey: "your_anthropic_api_key_here",
		DeepSeekAPIKey:  "ds-test",
	}, nil)

	require.Len(t, providers, 2)
	assert.Equal(t, ProviderOpenAI, providers[0].Name())
	assert.Equal(t, ProviderDeepSeek, providers[1].Name())

	mock := NewProviders(ProvidersConfig{OpenAIAPIKey: "sk-test", UseMock: true}, nil)
	require.Len(t, mock, 1)
	assert.Equal(t, ProviderMock, mock[0].Name())
}
