package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MockProvider is a Provider for tests and offline runs.
type MockProvider struct {
	// Configurable behavior
	ProviderName string
	JSONMode     bool
	Response     string
	Err          error

	// Respond, when set, computes the reply from the prompts and takes
	// precedence over Response and Err.
	Respond func(ctx context.Context, system, user string) (string, error)

	// State
	calls   atomic.Int64
	mu      sync.Mutex
	prompts []string
}

// NewMockProvider creates a mock named name that always returns response.
func NewMockProvider(name, response string) *MockProvider {
	return &MockProvider{ProviderName: name, JSONMode: true, Response: response}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return ProviderMock
	}
	return m.ProviderName
}

// SupportsJSONMode returns the configured JSON mode capability.
func (m *MockProvider) SupportsJSONMode() bool {
	return m.JSONMode
}

// Complete returns the canned or computed response.
func (m *MockProvider) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, user)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Respond != nil {
		return m.Respond(ctx, system, user)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return "", fmt.Errorf("mock provider %s has no response configured", m.Name())
	}
	return m.Response, nil
}

// Calls returns the number of Complete invocations.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// Prompts returns the user prompts received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

var _ Provider = (*MockProvider)(nil)
