package llm

import (
	"fmt"
	"sort"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
)

// DefaultPriority is the provider order used when none is configured
var DefaultPriority = []string{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek}

// Selector chooses providers by priority and JSON-mode capability. It is
// immutable after construction.
type Selector struct {
	providers  map[string]Provider
	order      []string
	preferJSON bool
	preferred  string
}

// NewSelector orders providers by priority. Providers missing from priority
// follow in name order.
func NewSelector(providers []Provider, priority []string, preferJSON bool) *Selector {
	s := &Selector{
		providers:  make(map[string]Provider, len(providers)),
		preferJSON: preferJSON,
	}
	for _, p := range providers {
		if p != nil {
			s.providers[p.Name()] = p
		}
	}
	if len(priority) == 0 {
		priority = DefaultPriority
	}

	seen := make(map[string]bool)
	for _, name := range priority {
		if _, ok := s.providers[name]; ok && !seen[name] {
			s.order = append(s.order, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.providers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	s.order = append(s.order, rest...)
	return s
}

// WithPreferred returns a copy of s whose Preferred always answers name when
// that provider is configured, ahead of the JSON-mode preference.
func (s *Selector) WithPreferred(name string) *Selector {
	c := *s
	c.preferred = name
	return &c
}

// Len returns the number of configured providers
func (s *Selector) Len() int {
	return len(s.order)
}

// Names returns provider names in priority order
func (s *Selector) Names() []string {
	return append([]string(nil), s.order...)
}

// Preferred returns the explicitly preferred provider when configured.
// Otherwise it is the first provider in priority order, restricted to
// JSON-mode providers when that preference is set and one exists.
func (s *Selector) Preferred() Provider {
	if len(s.order) == 0 {
		return nil
	}
	if p, ok := s.providers[s.preferred]; ok {
		return p
	}
	if s.preferJSON {
		for _, name := range s.order {
			if p := s.providers[name]; p.SupportsJSONMode() {
				return p
			}
		}
	}
	return s.providers[s.order[0]]
}

// Alternate returns the first provider in priority order other than exclude
func (s *Selector) Alternate(exclude string) Provider {
	for _, name := range s.order {
		if name != exclude {
			return s.providers[name]
		}
	}
	return nil
}

// Get returns a configured provider by name
func (s *Selector) Get(name string) (Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, errors.Validation("llm.select",
			fmt.Sprintf("provider %s not available; configured: %v", name, s.order))
	}
	return p, nil
}

// Providers returns every configured provider in priority order
func (s *Selector) Providers() []Provider {
	out := make([]Provider, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.providers[name])
	}
	return out
}
