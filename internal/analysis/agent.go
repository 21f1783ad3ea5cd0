// Package analysis runs documents through the extraction pipeline: text
// extraction, OCR fallback, chunking, field extraction, synthesis,
// post-processing and caching.
package analysis

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/a3tai/mcp-legal-extractor/internal/cache"
	"github.com/a3tai/mcp-legal-extractor/internal/errors"
	"github.com/a3tai/mcp-legal-extractor/internal/intelligence"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
	"github.com/a3tai/mcp-legal-extractor/internal/ocr"
	"github.com/a3tai/mcp-legal-extractor/internal/pdf"
	"github.com/a3tai/mcp-legal-extractor/internal/postprocess"
	"github.com/a3tai/mcp-legal-extractor/internal/synthesis"
)

// DefaultMaxPages bounds extraction when the full document is not requested
const DefaultMaxPages = 10

// TextExtractor reads the text layer of a stored document
type TextExtractor interface {
	Extract(ctx context.Context, documentID string, maxPages int) (*pdf.ExtractionResult, error)
}

// FieldExtractor turns chunk text into fields for a schema
type FieldExtractor interface {
	Extract(ctx context.Context, text string, schema models.ExtractionSchema, provider string) (map[string]models.ExtractionField, error)
}

// Chunker splits page text into chunks
type Chunker interface {
	ChunkPages(pages []string, maxTokens int) []models.TextChunk
}

// Classifier assigns a document type from text and reports the rules that
// decided it
type Classifier interface {
	Explain(text string) models.Classification
}

// Deps are the collaborators of an Agent. Store, Text, Chunker and LLM are
// required. A nil OCR recognizer makes scanned documents fail.
type Deps struct {
	Store      pdf.Store
	Text       TextExtractor
	OCR        ocr.Recognizer
	Chunker    Chunker
	LLM        FieldExtractor
	Processor  *postprocess.Processor
	Classifier Classifier
	Cache      cache.Store
	Logger     *slog.Logger
}

// Options tune an Agent
type Options struct {
	MaxPagesDefault  int    // Page limit when the full document is not requested
	ChunkTokens      int    // Token budget per chunk; 0 uses the chunker's
	ChunkConcurrency int    // Parallel chunk extractions; <= 1 is sequential
	Provider         string // LLM provider for every call; empty uses the preferred one
}

// Agent orchestrates document analysis
type Agent struct {
	store      pdf.Store
	text       TextExtractor
	ocr        ocr.Recognizer
	chunker    Chunker
	llm        FieldExtractor
	processor  *postprocess.Processor
	classifier Classifier
	cache      cache.Store
	log        *slog.Logger
	opts       Options

	flights singleflight.Group

	mu       sync.Mutex
	inflight map[string]int
}

// NewAgent validates deps and fills defaults for the optional ones
func NewAgent(deps Deps, opts Options) (*Agent, error) {
	const op = "analysis.new"
	switch {
	case deps.Store == nil:
		return nil, errors.Configuration(op, "document store is required")
	case deps.Text == nil:
		return nil, errors.Configuration(op, "text extractor is required")
	case deps.Chunker == nil:
		return nil, errors.Configuration(op, "chunker is required")
	case deps.LLM == nil:
		return nil, errors.Configuration(op, "LLM extractor is required")
	}

	if deps.Processor == nil {
		deps.Processor = postprocess.New(postprocess.ModeAlways)
	}
	if deps.Classifier == nil {
		deps.Classifier = intelligence.NewDocumentClassifier()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.MaxPagesDefault <= 0 {
		opts.MaxPagesDefault = DefaultMaxPages
	}

	return &Agent{
		store:      deps.Store,
		text:       deps.Text,
		ocr:        deps.OCR,
		chunker:    deps.Chunker,
		llm:        deps.LLM,
		processor:  deps.Processor,
		classifier: deps.Classifier,
		cache:      deps.Cache,
		log:        deps.Logger,
		opts:       opts,
		inflight:   make(map[string]int),
	}, nil
}

// Analyze runs one request. The error is non-nil only when the request is
// malformed; pipeline failures come back as a FAILED response.
func (a *Agent) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(req)
	log := a.log.With("document_id", req.DocumentID, "fingerprint", fingerprint)
	log.Debug("analysis.state", "state", stateReceived)

	if !req.ForceReprocess {
		if resp, ok := a.cached(ctx, log, fingerprint); ok {
			log.Info("analysis.cache_hit", "status", resp.Status)
			return resp, nil
		}
	}

	// The run is detached from any single caller so that one caller giving
	// up does not fail the others sharing the flight.
	runCtx := context.WithoutCancel(ctx)
	ch := a.flights.DoChan(flightKey(req), func() (any, error) {
		return a.run(runCtx, log, req, fingerprint), nil
	})

	select {
	case res := <-ch:
		resp := res.Val.(*models.AnalysisResponse)
		if res.Shared {
			log.Debug("analysis.shared_flight")
			resp = resp.Clone()
		}
		return resp, nil
	case <-ctx.Done():
		log.Info("analysis.abandoned", "error", ctx.Err())
		failed := models.FailedResponse(req.DocumentID,
			errors.Extraction("analysis.analyze", "request canceled", ctx.Err()).WithDocument(req.DocumentID))
		failed.Metadata.Filename = req.DocumentID
		return failed, nil
	}
}

func (a *Agent) cached(ctx context.Context, log *slog.Logger, fingerprint string) (*models.AnalysisResponse, bool) {
	resp, ok, err := a.cache.Get(ctx, fingerprint)
	if err != nil {
		log.Warn("analysis.cache_read_failed", "error", err)
		return nil, false
	}
	return resp, ok
}

func (a *Agent) run(ctx context.Context, log *slog.Logger, req models.AnalysisRequest, fingerprint string) *models.AnalysisResponse {
	start := time.Now()
	a.track(req.DocumentID, 1)
	defer a.track(req.DocumentID, -1)

	resp, err := a.pipeline(ctx, log, req)
	if err != nil {
		log.Error("analysis.failed",
			"state", stateFailed,
			"error_type", errors.TypeOf(err).String(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		failed := models.FailedResponse(req.DocumentID, err)
		failed.Metadata.Filename = req.DocumentID
		failed.Metadata.ProcessingDuration = time.Since(start).Seconds()
		return failed
	}
	resp.Metadata.ProcessingDuration = time.Since(start).Seconds()

	log.Debug("analysis.state", "state", stateCaching)
	if err := a.cache.Put(ctx, fingerprint, resp); err != nil {
		log.Warn("analysis.cache_write_failed", "error", err)
	}

	log.Info("analysis.ok",
		"state", stateDone,
		"fields", len(resp.ExtractedData),
		"review_required", resp.ReviewRequiredCount,
		"chunks", *resp.ChunkCount,
		"method", resp.Metadata.ProcessingMethod,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp
}

// document is the text a run works from, whichever way it was obtained
type document struct {
	text        string
	pages       []string
	method      string
	confidences map[int]float64
	warnings    []string
}

func (a *Agent) pipeline(ctx context.Context, log *slog.Logger, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	maxPages := a.opts.MaxPagesDefault
	if req.ProcessFullDocument {
		maxPages = 0
	}

	log.Debug("analysis.state", "state", stateExtractingText, "max_pages", maxPages)
	extracted, err := a.text.Extract(ctx, req.DocumentID, maxPages)
	if err != nil {
		return nil, err
	}

	doc := document{
		text:   extracted.Text,
		pages:  extracted.PageTexts(),
		method: models.MethodDirectText,
	}
	if !extracted.IsTextBased {
		log.Info("analysis.ocr_fallback",
			"state", stateOCRFallback,
			"avg_chars_per_page", extracted.Metadata.AvgCharsPerPage,
		)
		doc, err = a.recognize(ctx, req.DocumentID, maxPages)
		if err != nil {
			return nil, err
		}
	}

	log.Debug("analysis.state", "state", stateChunking)
	chunks := a.chunker.ChunkPages(doc.pages, a.opts.ChunkTokens)
	if len(chunks) == 0 {
		return nil, errors.Extraction("analysis.chunk", "document contains no extractable text", nil).
			WithDocument(req.DocumentID)
	}
	log.Info("analysis.chunked", "chunks", len(chunks))

	log.Debug("analysis.state", "state", stateExtractingFields)
	fields, err := a.extractFields(ctx, log, chunks, req.Schema)
	if err != nil {
		return nil, err
	}

	log.Debug("analysis.state", "state", statePostProcessing)
	fields = a.processor.Process(fields, req.Schema.ConfidenceThreshold, doc.method)
	fields = postprocess.AttributePages(fields, doc.pages)

	classification := a.classifier.Explain(doc.text)
	chunkCount := len(chunks)
	resp := &models.AnalysisResponse{
		DocumentID:    req.DocumentID,
		Status:        models.StatusCompleted,
		ExtractedData: fields,
		Metadata: models.DocumentMetadata{
			Filename:            extracted.Metadata.Filename,
			FileSize:            extracted.Metadata.FileSize,
			PageCount:           extracted.Metadata.TotalPages,
			ProcessedPages:      extracted.Metadata.ProcessedPages,
			DocumentType:        classification.Type,
			ProcessingMethod:    doc.method,
			RawTextMD5:          textMD5(doc.text),
			ProcessingTimestamp: time.Now(),
			TotalCharacters:     extracted.Metadata.TotalCharacters,
			AvgCharsPerPage:     extracted.Metadata.AvgCharsPerPage,
			OCRPageConfidences:  doc.confidences,
			Classification:      &classification,
		},
		ProcessingErrors: doc.warnings,
		ChunkCount:       &chunkCount,
	}
	if resp.ProcessingErrors == nil {
		resp.ProcessingErrors = []string{}
	}
	resp.Finalize()
	return resp, nil
}

func (a *Agent) recognize(ctx context.Context, documentID string, maxPages int) (document, error) {
	const op = "analysis.ocr"
	if a.ocr == nil {
		return document{}, errors.Extraction(op,
			"document has no usable text layer and OCR is disabled", nil).WithDocument(documentID)
	}

	path, err := a.store.Path(documentID)
	if err != nil {
		return document{}, err
	}

	result, err := a.ocr.Recognize(ctx, path, maxPages)
	if err != nil {
		return document{}, errors.Extraction(op, "OCR failed", err).WithDocument(documentID)
	}
	return document{
		text:        result.Text,
		pages:       result.PageTexts(),
		method:      models.MethodOCR,
		confidences: result.PageConfidences,
		warnings:    append([]string(nil), result.Errors...),
	}, nil
}

// extractFields runs the LLM over every chunk in chunk order. One chunk is
// used as is; several are synthesized.
func (a *Agent) extractFields(ctx context.Context, log *slog.Logger, chunks []models.TextChunk, schema models.ExtractionSchema) (map[string]models.ExtractionField, error) {
	if len(chunks) == 1 {
		return a.llm.Extract(ctx, chunks[0].Text, schema, a.opts.Provider)
	}

	results := make([]map[string]models.ExtractionField, len(chunks))
	if a.opts.ChunkConcurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.opts.ChunkConcurrency)
		for i, chunk := range chunks {
			g.Go(func() error {
				log.Info("analysis.chunk", "chunk", chunk.ChunkIndex+1, "of", len(chunks), "tokens", chunk.TokenCount)
				fields, err := a.llm.Extract(gctx, chunk.Text, schema, a.opts.Provider)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err)
				}
				results[i] = fields
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, chunk := range chunks {
			log.Info("analysis.chunk", "chunk", chunk.ChunkIndex+1, "of", len(chunks), "tokens", chunk.TokenCount)
			fields, err := a.llm.Extract(ctx, chunk.Text, schema, a.opts.Provider)
			if err != nil {
				return nil, fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err)
			}
			results[i] = fields
		}
	}

	log.Debug("analysis.state", "state", stateSynthesizing)
	return synthesis.Synthesize(results), nil
}

func (a *Agent) track(documentID string, delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight[documentID] += delta
	if a.inflight[documentID] <= 0 {
		delete(a.inflight, documentID)
	}
}

// Status reports the state of a document: processing while a run is in
// flight, otherwise the status of its most recent cached result.
func (a *Agent) Status(ctx context.Context, documentID string) (models.ProcessingStatus, bool) {
	a.mu.Lock()
	running := a.inflight[documentID] > 0
	a.mu.Unlock()
	if running {
		return models.StatusProcessing, true
	}

	resp, ok, err := a.cache.FindByDocument(ctx, documentID)
	if err != nil {
		a.log.Warn("analysis.status_lookup_failed", "document_id", documentID, "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	return resp.Status, true
}

// Result returns the most recent cached response for a document
func (a *Agent) Result(ctx context.Context, documentID string) (*models.AnalysisResponse, bool, error) {
	return a.cache.FindByDocument(ctx, documentID)
}

// CacheStats reports hit, miss and size counters of the result cache
func (a *Agent) CacheStats(ctx context.Context) cache.Stats {
	return a.cache.Stats(ctx)
}

// ClearCache drops every cached response and returns the cache statistics
// as they stood just before
func (a *Agent) ClearCache(ctx context.Context) (cache.Stats, error) {
	before := a.cache.Stats(ctx)
	if err := a.cache.Clear(ctx); err != nil {
		return before, fmt.Errorf("failed to clear cache: %w", err)
	}
	a.log.Info("analysis.cache_cleared", "entries", before.Size, "hits", before.Hits, "misses", before.Misses)
	return before, nil
}

// Shutdown releases provider connections, the OCR client and the cache
func (a *Agent) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range []any{a.llm, a.ocr, a.cache} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	a.log.Info("analysis.shutdown")
	return stderrors.Join(errs...)
}
