package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// DefaultCallTimeout bounds a single provider call
const DefaultCallTimeout = 30 * time.Second

// Options configures an Extractor
type Options struct {
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Extractor sends chunk text and a schema to an LLM provider and parses the
// reply into fields. A failed call is retried once on an alternate provider.
type Extractor struct {
	selector    *Selector
	callTimeout time.Duration
	log         *slog.Logger
}

// NewExtractor fails with a Configuration error when no provider is configured
func NewExtractor(selector *Selector, opts Options) (*Extractor, error) {
	if selector == nil || selector.Len() == 0 {
		return nil, errors.Configuration("llm.new",
			"no LLM providers configured; set an API key or enable the mock provider")
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{
		selector:    selector,
		callTimeout: opts.CallTimeout,
		log:         opts.Logger,
	}, nil
}

// Selector returns the provider selector
func (e *Extractor) Selector() *Selector {
	return e.selector
}

// Close releases provider connections
func (e *Extractor) Close() error {
	var errs []error
	for _, p := range e.selector.Providers() {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
			}
		}
	}
	return stderrors.Join(errs...)
}

// Extract runs one extraction. provider selects a backend by name; empty
// uses the selector's preferred provider.
func (e *Extractor) Extract(ctx context.Context, text string, schema models.ExtractionSchema, provider string) (map[string]models.ExtractionField, error) {
	var selected Provider
	if provider == "" {
		selected = e.selector.Preferred()
	} else {
		p, err := e.selector.Get(provider)
		if err != nil {
			return nil, err
		}
		selected = p
	}

	fields, err := e.extractWith(ctx, selected, text, schema)
	if err == nil {
		return fields, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	alt := e.selector.Alternate(selected.Name())
	if alt == nil {
		return nil, err
	}

	e.log.Warn("llm.extract.fallback",
		"from", selected.Name(),
		"to", alt.Name(),
		"retryable", errors.IsRetryable(err),
		"error", err,
	)

	fields, altErr := e.extractWith(ctx, alt, text, schema)
	if altErr != nil {
		return nil, fmt.Errorf("extraction failed with %s and fallback %s: %w",
			selected.Name(), alt.Name(), stderrors.Join(err, altErr))
	}
	return fields, nil
}

func (e *Extractor) extractWith(ctx context.Context, p Provider, text string, schema models.ExtractionSchema) (map[string]models.ExtractionField, error) {
	const op = "llm.extract"
	rid := uuid.New().String()
	start := time.Now()

	schemaJSON, err := schema.FieldsJSON()
	if err != nil {
		return nil, errors.Validation(op, err.Error())
	}

	e.log.Info("llm.extract.start",
		"req_id", rid,
		"provider", p.Name(),
		"schema", schema.Name,
		"fields", len(schema.Fields),
		"text_len", len(text),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	raw, err := p.Complete(callCtx, BuildSystemPrompt(), BuildUserPrompt(schemaJSON, text))
	if err != nil {
		e.log.Error("llm.extract.provider_error",
			"req_id", rid,
			"provider", p.Name(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, errors.Provider(op, p.Name(), err)
	}

	parsed, err := ParseResponse(raw, schema.FieldNames())
	if err != nil {
		e.log.Error("llm.extract.invalid_response",
			"req_id", rid,
			"provider", p.Name(),
			"error", err,
			"raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	if !parsed.Strict {
		e.log.Warn("llm.extract.lenient_parse",
			"req_id", rid,
			"provider", p.Name(),
			"error", parsed.SchemaError,
		)
	}

	e.log.Info("llm.extract.ok",
		"req_id", rid,
		"provider", p.Name(),
		"fields", len(parsed.Fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return parsed.Fields, nil
}
