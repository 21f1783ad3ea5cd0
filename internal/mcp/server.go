package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-legal-extractor/internal/app"
	"github.com/a3tai/mcp-legal-extractor/internal/chunker"
	"github.com/a3tai/mcp-legal-extractor/internal/config"
	"github.com/a3tai/mcp-legal-extractor/internal/descriptions"
	"github.com/a3tai/mcp-legal-extractor/internal/export"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// shutdownTimeout bounds the graceful stop of the HTTP transport
const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	app       *app.App
	mcpServer *server.MCPServer
	logger    *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, a *app.App) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // The tool list is fixed at startup
	)

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		app:       a,
		mcpServer: mcpServer,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolAnalyzeDocument,
		mcp.WithDescription(descriptions.AnalyzeDocumentDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document path relative to the document directory"),
		),
		mcp.WithString("schema",
			mcp.Description("Name of a schema template (see legal_list_schemas)"),
		),
		mcp.WithString("fields",
			mcp.Description("Inline field definitions as a JSON object; overrides schema"),
		),
		mcp.WithString("schema_name",
			mcp.Description("Name recorded for inline fields (default: custom)"),
		),
		mcp.WithNumber("confidence_threshold",
			mcp.Description("Confidence below which a field requires review, between 0 and 1"),
		),
		mcp.WithBoolean("process_full_document",
			mcp.Description("Read every page instead of the configured page limit"),
		),
		mcp.WithBoolean("force_reprocess",
			mcp.Description("Ignore any cached result"),
		),
	), s.handleAnalyzeDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolDocumentStatus,
		mcp.WithDescription(descriptions.DocumentStatusDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document path relative to the document directory"),
		),
	), s.handleDocumentStatus)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolClearCache,
		mcp.WithDescription(descriptions.ClearCacheDescription),
	), s.handleClearCache)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolValidateDocument,
		mcp.WithDescription(descriptions.ValidateDocumentDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document path relative to the document directory"),
		),
	), s.handleValidateDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolListSchemas,
		mcp.WithDescription(descriptions.ListSchemasDescription),
	), s.handleListSchemas)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolExportReview,
		mcp.WithDescription(descriptions.ExportReviewDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document path relative to the document directory"),
		),
		mcp.WithString("output",
			mcp.Description("Workbook path relative to the document directory (default: <document>.review.xlsx)"),
		),
	), s.handleExportReview)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolListDocuments,
		mcp.WithDescription(descriptions.ListDocumentsDescription),
		mcp.WithString("query",
			mcp.Description("Optional case-insensitive filter on document ids"),
		),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolSearchDocument,
		mcp.WithDescription(descriptions.SearchDocumentDescription),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document path relative to the document directory"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithBoolean("process_full_document",
			mcp.Description("Search every page instead of the configured page limit"),
		),
	), s.handleSearchDocument)
}

// Handler functions
func (s *Server) handleAnalyzeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	threshold, err := optionalNumber(request.GetArguments(), "confidence_threshold")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := request.GetString("schema", "")
	if request.GetString("fields", "") != "" {
		name = request.GetString("schema_name", "")
	}
	extractionSchema, err := s.app.Schemas.Resolve(name, request.GetString("fields", ""), threshold)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.app.Agent.Analyze(ctx, models.AnalysisRequest{
		DocumentID:          documentID,
		Schema:              extractionSchema,
		ProcessFullDocument: request.GetBool("process_full_document", false),
		ForceReprocess:      request.GetBool("force_reprocess", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(resp)
}

func (s *Server) handleDocumentStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, ok := s.app.Agent.Status(ctx, documentID)
	if !ok {
		status = "not_found"
	}

	return jsonResult(map[string]any{
		"document_id": documentID,
		"status":      status,
		"cache":       s.app.Agent.CacheStats(ctx),
	})
}

func (s *Server) handleClearCache(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.app.Agent.ClearCache(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Cache cleared: removed %d cached result(s) (hits: %d, misses: %d, hit rate: %.1f%%)",
		stats.Size, stats.Hits, stats.Misses, stats.HitRate)), nil
}

func (s *Server) handleValidateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.app.Validator.Validate(ctx, documentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !result.Valid {
		return mcp.NewToolResultText(
			fmt.Sprintf("PDF validation failed for %s: %s", result.DocumentID, result.Message)), nil
	}

	text := fmt.Sprintf("PDF file %s is valid and readable\n", result.DocumentID)
	text += fmt.Sprintf("Pages: %d\n", result.PageCount)
	text += fmt.Sprintf("Version: %s\n", result.Version)
	text += fmt.Sprintf("Encrypted: %t\n", result.Encrypted)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListSchemas(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.app.Schemas.All())
}

func (s *Server) handleExportReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, ok, err := s.app.Agent.Result(ctx, documentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(
			fmt.Sprintf("no analysis result for %s; run %s first", documentID, descriptions.ToolAnalyzeDocument)), nil
	}

	output := request.GetString("output", "")
	if output == "" {
		output = strings.TrimSuffix(documentID, filepath.Ext(documentID)) + ".review.xlsx"
	}
	if !strings.EqualFold(filepath.Ext(output), ".xlsx") {
		return mcp.NewToolResultError(fmt.Sprintf("output must be an .xlsx file: %s", output)), nil
	}

	path, err := s.app.Store.Path(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := writeWorkbook(path, resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.Info("review.exported", "document_id", documentID, "path", path)

	text := fmt.Sprintf("Review workbook written: %s\n", path)
	text += fmt.Sprintf("Fields: %d\n", len(resp.ExtractedData))
	text += fmt.Sprintf("Requiring review: %d\n", resp.ReviewRequiredCount)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.app.Store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := strings.ToLower(strings.TrimSpace(request.GetString("query", "")))
	var text string
	count := 0
	for _, file := range files {
		if query != "" && !strings.Contains(strings.ToLower(file.DocumentID), query) {
			continue
		}
		count++
		text += fmt.Sprintf("%d. %s\n", count, file.DocumentID)
		text += fmt.Sprintf("   Size: %d bytes\n", file.Size)
		text += fmt.Sprintf("   Modified: %s\n", file.ModTime.UTC().Format(time.RFC3339))
	}

	if count == 0 {
		text = fmt.Sprintf("No PDF files found in directory: %s", s.app.Store.Dir())
		if query != "" {
			text += fmt.Sprintf(" (searched for: %s)", query)
		}
		return mcp.NewToolResultText(text), nil
	}

	header := fmt.Sprintf("Found %d PDF file(s) in directory: %s\n\n", count, s.app.Store.Dir())
	return mcp.NewToolResultText(header + text), nil
}

func (s *Server) handleSearchDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query cannot be empty"), nil
	}

	maxPages := s.config.MaxPagesDefault
	if request.GetBool("process_full_document", false) {
		maxPages = 0
	}

	extracted, err := s.app.Text.Extract(ctx, documentID, maxPages)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	chunks := s.app.Chunker.ChunkPages(extracted.PageTexts(), 0)
	matches := chunker.FindText(chunks, query)
	if matches == nil {
		matches = []chunker.Match{}
	}

	return jsonResult(map[string]any{
		"document_id":     documentID,
		"query":           query,
		"processed_pages": extracted.Metadata.ProcessedPages,
		"total_pages":     extracted.Metadata.TotalPages,
		"is_text_based":   extracted.IsTextBased,
		"match_count":     len(matches),
		"matches":         matches,
	})
}

// optionalNumber reads a numeric argument, returning nil when it is absent
func optionalNumber(args map[string]any, key string) (*float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	n, ok := raw.(float64)
	if !ok {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &n, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func writeWorkbook(path string, resp *models.AnalysisResponse) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := export.WriteReviewWorkbook(f, resp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Run starts the MCP server in the configured mode and returns once ctx is
// canceled or the transport stops
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves JSON-RPC over stdin and stdout
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("mcp.start", "mode", config.ModeStdio, "dir", s.config.PDFDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	s.logger.Info("mcp.stop", "mode", config.ModeStdio)
	return nil
}

// runServerMode serves the SSE transport over HTTP on the configured address
func (s *Server) runServerMode(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}

	addr := listener.Addr().String()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))
	httpServer := &http.Server{
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("mcp.start", "mode", config.ModeServer, "addr", addr, "dir", s.config.PDFDirectory)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sse.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("mcp.sse_shutdown_failed", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info("mcp.stop", "mode", config.ModeServer)
	return nil
}
