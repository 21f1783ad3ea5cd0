// Package ocr recognizes text in scanned PDFs that carry no usable text layer.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend names
const (
	BackendTesseract  = "tesseract"
	BackendDocumentAI = "documentai"
	BackendNone       = "none"
)

// Recognizer turns a PDF on disk into text. A positive maxPages limits
// recognition to the first maxPages pages.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, path string, maxPages int) (*Result, error)
}

// Page is the recognized text of one page
type Page struct {
	Number     int     `json:"number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of recognizing a whole document
type Result struct {
	Text            string          `json:"text"`
	Pages           []Page          `json:"pages"`
	PageConfidences map[int]float64 `json:"page_confidences"`
	Errors          []string        `json:"errors,omitempty"`
}

// MeanConfidence averages the page confidences
func (r *Result) MeanConfidence() float64 {
	if len(r.Pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range r.Pages {
		sum += p.Confidence
	}
	return sum / float64(len(r.Pages))
}

// PageTexts returns each page's text in order
func (r *Result) PageTexts() []string {
	texts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		texts[i] = p.Text
	}
	return texts
}

// newResult assembles a Result from pages in order
func newResult(pages []Page, errs []string) *Result {
	texts := make([]string, len(pages))
	confidences := make(map[int]float64, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
		confidences[p.Number] = p.Confidence
	}
	return &Result{
		Text:            strings.Join(texts, "\n"),
		Pages:           pages,
		PageConfidences: confidences,
		Errors:          errs,
	}
}

// Config selects and configures a backend
type Config struct {
	Backend    string
	Tesseract  TesseractConfig
	DocumentAI DocumentAIConfig
}

// New builds the configured recognizer. The "none" backend returns nil, which
// makes scanned documents fail extraction.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Recognizer, error) {
	switch cfg.Backend {
	case "", BackendTesseract:
		return NewTesseract(cfg.Tesseract, nil, logger), nil
	case BackendDocumentAI:
		d, err := NewDocumentAI(ctx, cfg.DocumentAI, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.Backend)
	}
}
