package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
)

// ExtractorConfig tunes text extraction
type ExtractorConfig struct {
	MinCharsPerPage int  // Density above which a document is text based, 100 (default)
	SkipValidation  bool // Skip the pdfcpu structural check before reading
}

// Extractor pulls the text layer out of stored PDFs
type Extractor struct {
	store           Store
	minCharsPerPage int
	validate        bool
	logger          *slog.Logger
}

// NewExtractor creates an extractor reading from store
func NewExtractor(store Store, cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if cfg.MinCharsPerPage <= 0 {
		cfg.MinCharsPerPage = DefaultMinCharsPerPage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		store:           store,
		minCharsPerPage: cfg.MinCharsPerPage,
		validate:        !cfg.SkipValidation,
		logger:          logger,
	}
}

// MinCharsPerPage returns the configured density threshold
func (e *Extractor) MinCharsPerPage() int {
	return e.minCharsPerPage
}

// Extract reads up to maxPages pages of documentID; maxPages <= 0 reads all
func (e *Extractor) Extract(ctx context.Context, documentID string, maxPages int) (*ExtractionResult, error) {
	const op = "pdf.extract"

	info, err := e.store.Stat(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if e.validate {
		if _, _, _, err := inspect(info.Path); err != nil {
			return nil, errors.Extraction(op, "document is not a readable PDF", err).WithDocument(documentID)
		}
	}

	pages, total, err := readPages(ctx, info.Path, maxPages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Extraction(op, "failed to read PDF text", err).WithDocument(documentID)
	}

	result := &ExtractionResult{
		Pages: pages,
		Path:  info.Path,
		Metadata: Metadata{
			Filename:       filepath.Base(info.Path),
			FileSize:       info.Size,
			TotalPages:     total,
			ProcessedPages: len(pages),
		},
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
		result.Metadata.TotalCharacters += p.CharCount
	}
	result.Text = strings.Join(texts, "\n")

	if len(pages) > 0 {
		result.Metadata.AvgCharsPerPage = float64(result.Metadata.TotalCharacters) / float64(len(pages))
		result.IsTextBased = result.Metadata.AvgCharsPerPage > float64(e.minCharsPerPage)
	}

	e.logger.Debug("text extracted",
		"document_id", documentID,
		"pages", len(pages),
		"total_pages", total,
		"avg_chars_per_page", result.Metadata.AvgCharsPerPage,
		"text_based", result.IsTextBased,
	)
	return result, nil
}

// readPages extracts normalized page text, recovering from library panics on
// malformed content streams
func readPages(ctx context.Context, path string, maxPages int) (pages []PageText, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reading PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total = reader.NumPage()
	limit := total
	if maxPages > 0 && maxPages < total {
		limit = maxPages
	}

	pages = make([]PageText, 0, limit)
	for n := 1; n <= limit; n++ {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}
		text := pageText(reader, n)
		pages = append(pages, PageText{
			Number:    n,
			Text:      text,
			CharCount: utf8.RuneCountInString(strings.TrimSpace(text)),
		})
	}
	return pages, total, nil
}

// pageText returns the NFKC-normalized plain text of page n, or "" when the
// page has no readable text layer
func pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return normalizeText(content)
}

// normalizeText folds compatibility characters such as the "ﬁ" ligature
func normalizeText(s string) string {
	return norm.NFKC.String(s)
}
