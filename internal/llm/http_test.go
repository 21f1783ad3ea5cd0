package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": " {\"case_number\": null} "}}]
		}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
	out, err := p.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.Equal(t, `{"case_number": null}`, out)
	assert.Equal(t, "gpt-4", payload["model"])
	assert.InDelta(t, 0.1, payload["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, payload["response_format"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), "system", "user")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.False(t, statusErr.Transient())
}

func TestNewDeepSeekProvider(t *testing.T) {
	p := NewDeepSeekProvider(OpenAIConfig{APIKey: "ds"})
	assert.Equal(t, ProviderDeepSeek, p.Name())
	assert.Equal(t, "deepseek-chat", p.Model())
	assert.True(t, p.SupportsJSONMode())
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-sonnet-20240229",
			"content": [{"type": "text", "text": " {\"a\": 1} "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{APIKey: "ak-test", BaseURL: server.URL})
	out, err := p.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)

	assert.Equal(t, `{"a": 1}`, out)
	assert.Equal(t, "claude-3-sonnet-20240229", payload["model"])
	assert.EqualValues(t, 2000, payload["max_tokens"])
	assert.InDelta(t, 0.1, payload["temperature"], 1e-9)

	system, ok := payload["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "sys", system[0].(map[string]any)["text"])

	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.False(t, p.SupportsJSONMode())
}

func TestAnthropicProvider_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg_2", "type": "message", "role": "assistant", "content": [{"type": "text", "text": "ok"}]}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: server.URL, RetryDelay: time.Millisecond})
	out, err := p.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicProvider_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "max_tokens too large"}}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: server.URL, RetryDelay: time.Millisecond})
	_, err := p.Complete(context.Background(), "s", "u")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "max_tokens too large", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}
