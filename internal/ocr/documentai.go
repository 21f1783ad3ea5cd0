package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIConfig identifies a Google Document AI OCR processor
type DocumentAIConfig struct {
	ProjectID       string
	Location        string // "us" (default)
	ProcessorID     string
	CredentialsFile string // Defaults to GOOGLE_APPLICATION_CREDENTIALS
}

// processFunc sends one request to Document AI
type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error)

// DocumentAI recognizes documents with a Google Document AI processor
type DocumentAI struct {
	name    string
	process processFunc
	close   func() error
	logger  *slog.Logger
}

// NewDocumentAI connects to the regional Document AI endpoint
func NewDocumentAI(ctx context.Context, cfg DocumentAIConfig, logger *slog.Logger) (*DocumentAI, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("documentai backend requires a project id and processor id")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}

	process := func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
		resp, err := client.ProcessDocument(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.GetDocument(), nil
	}

	d := newDocumentAI(processorName(cfg), process, logger)
	d.close = client.Close
	return d, nil
}

func newDocumentAI(name string, process processFunc, logger *slog.Logger) *DocumentAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentAI{name: name, process: process, logger: logger}
}

func processorName(cfg DocumentAIConfig) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID)
}

// Name returns the backend name
func (d *DocumentAI) Name() string {
	return BackendDocumentAI
}

// Recognize uploads the PDF and splits the returned text by page. A positive
// maxPages asks the processor for the leading pages only.
func (d *DocumentAI) Recognize(ctx context.Context, path string, maxPages int) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
		SkipHumanReview: true,
	}
	if maxPages > 0 {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			PageRange: &documentaipb.ProcessOptions_FromStart{FromStart: int32(maxPages)},
		}
	}

	doc, err := d.process(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	result := resultFromDocument(doc)
	if maxPages > 0 && len(result.Pages) > maxPages {
		result = newResult(result.Pages[:maxPages], result.Errors)
	}
	d.logger.Info("ocr completed",
		"backend", BackendDocumentAI,
		"pages", len(result.Pages),
		"avg_confidence", result.MeanConfidence(),
	)
	return result, nil
}

// Close releases the underlying client
func (d *DocumentAI) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

// resultFromDocument maps a Document AI response onto pages
func resultFromDocument(doc *documentaipb.Document) *Result {
	if doc == nil {
		return newResult(nil, nil)
	}

	pages := make([]Page, 0, len(doc.GetPages()))
	for i, p := range doc.GetPages() {
		number := int(p.GetPageNumber())
		if number == 0 {
			number = i + 1
		}
		layout := p.GetLayout()
		pages = append(pages, Page{
			Number:     number,
			Text:       strings.TrimSpace(textFromLayout(layout, doc.GetText())),
			Confidence: float64(layout.GetConfidence()),
		})
	}

	// Processors that return text without page layout still yield one page.
	if len(pages) == 0 && doc.GetText() != "" {
		pages = append(pages, Page{Number: 1, Text: strings.TrimSpace(doc.GetText())})
	}
	return newResult(pages, nil)
}

// textFromLayout concatenates the text anchor segments of a layout
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.GetTextAnchor() == nil {
		return ""
	}
	runes := []rune(fullText)
	total := len(runes)

	var b strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start := int(seg.GetStartIndex())
		end := int(seg.GetEndIndex())
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		b.WriteString(string(runes[start:end]))
	}
	return b.String()
}

var _ Recognizer = (*DocumentAI)(nil)
