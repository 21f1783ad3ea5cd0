// Package app assembles the extraction pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/a3tai/mcp-legal-extractor/internal/analysis"
	"github.com/a3tai/mcp-legal-extractor/internal/cache"
	"github.com/a3tai/mcp-legal-extractor/internal/chunker"
	"github.com/a3tai/mcp-legal-extractor/internal/config"
	"github.com/a3tai/mcp-legal-extractor/internal/intelligence"
	"github.com/a3tai/mcp-legal-extractor/internal/llm"
	"github.com/a3tai/mcp-legal-extractor/internal/ocr"
	"github.com/a3tai/mcp-legal-extractor/internal/pdf"
	"github.com/a3tai/mcp-legal-extractor/internal/postprocess"
	"github.com/a3tai/mcp-legal-extractor/internal/schema"
)

// App holds the long-lived components shared by the MCP server and the CLI
type App struct {
	Config    *config.Config
	Store     *pdf.FileStore
	Validator *pdf.Validator
	Text      *pdf.Extractor
	Chunker   *chunker.Chunker
	Schemas   *schema.Registry
	Agent     *analysis.Agent
	Logger    *slog.Logger
}

// New wires every component. Failing to configure a single LLM provider is a
// Configuration error.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := pdf.NewFileStore(cfg.PDFDirectory, cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	schemas := schema.NewRegistry()
	if n, err := schemas.LoadDir(cfg.SchemaDir); err != nil {
		return nil, fmt.Errorf("failed to load schema templates: %w", err)
	} else if n > 0 {
		logger.Info("loaded schema templates", "dir", cfg.SchemaDir, "count", n)
	}

	providers := llm.NewProviders(cfg.Providers(), logger)
	selector := llm.NewSelector(providers, llm.PriorityWithPreferred(cfg.LLMPriority, cfg.PreferredProvider), true).
		WithPreferred(cfg.PreferredProvider)
	extractor, err := llm.NewExtractor(selector, llm.Options{CallTimeout: cfg.LLMTimeout, Logger: logger})
	if err != nil {
		return nil, err
	}

	recognizer, err := ocr.New(ctx, cfg.OCR(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure OCR: %w", err)
	}

	mode, err := postprocess.ParseMode(cfg.ArtifactCorrection)
	if err != nil {
		return nil, err
	}

	results, err := cache.Open(ctx, cfg.Cache(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	text := pdf.NewExtractor(store, pdf.ExtractorConfig{MinCharsPerPage: cfg.MinCharsPerPage}, logger)
	chunks := chunker.New(chunker.Config{
		MaxTokens:     cfg.ChunkSizeTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
	})

	agent, err := analysis.NewAgent(analysis.Deps{
		Store:      store,
		Text:       text,
		OCR:        recognizer,
		Chunker:    chunks,
		LLM:        extractor,
		Processor:  postprocess.New(mode),
		Classifier: intelligence.NewDocumentClassifier(),
		Cache:      results,
		Logger:     logger,
	}, analysis.Options{
		MaxPagesDefault:  cfg.MaxPagesDefault,
		ChunkTokens:      cfg.ChunkSizeTokens,
		ChunkConcurrency: cfg.ChunkConcurrency,
	})
	if err != nil {
		return nil, err
	}

	ocrName := ocr.BackendNone
	if recognizer != nil {
		ocrName = recognizer.Name()
	}
	logger.Info("pipeline ready",
		"dir", cfg.PDFDirectory,
		"providers", strings.Join(selector.Names(), ","),
		"ocr", ocrName,
		"cache", cfg.CacheBackend,
		"schemas", len(schemas.Names()),
	)

	return &App{
		Config:    cfg,
		Store:     store,
		Validator: pdf.NewValidator(store),
		Text:      text,
		Chunker:   chunks,
		Schemas:   schemas,
		Agent:     agent,
		Logger:    logger,
	}, nil
}

// Close releases the agent's connections
func (a *App) Close(ctx context.Context) error {
	return a.Agent.Shutdown(ctx)
}

// NewLogger builds the process logger. Output goes to stderr so stdout stays
// free for the MCP protocol and CLI results.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
