// Package postprocess applies review flags and value cleanup to extracted fields.
package postprocess

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// shortValueRunes bounds the values eligible for scan-artifact correction
const shortValueRunes = 10

// Mode selects when scan-artifact correction is applied
type Mode string

const (
	ModeAlways  Mode = "always"
	ModeOCROnly Mode = "ocr_only"
	ModeOff     Mode = "off"
)

// ParseMode validates a configured correction mode. Empty selects ModeAlways.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAlways:
		return ModeAlways, nil
	case ModeOCROnly:
		return ModeOCROnly, nil
	case ModeOff:
		return ModeOff, nil
	default:
		return "", fmt.Errorf("unknown artifact correction mode %q", s)
	}
}

var artifactReplacer = strings.NewReplacer("|", "I", "0", "O")

// Processor finalizes extraction results against a request's threshold
type Processor struct {
	ArtifactCorrection Mode
}

// New creates a processor with the given correction mode
func New(mode Mode) *Processor {
	if mode == "" {
		mode = ModeAlways
	}
	return &Processor{ArtifactCorrection: mode}
}

// Process returns new fields with RequiresReview set to score < threshold and
// values sanitized. method is the run's processing method.
func (p *Processor) Process(fields map[string]models.ExtractionField, threshold float64, method string) map[string]models.ExtractionField {
	correct := p.correctionApplies(method)
	out := make(map[string]models.ExtractionField, len(fields))
	for name, field := range fields {
		processed := field.Clone()
		processed.RequiresReview = processed.ConfidenceScore < threshold
		if !processed.IsNull() {
			processed.Value = sanitize(processed.Value, correct)
		}
		out[name] = processed
	}
	return out
}

func (p *Processor) correctionApplies(method string) bool {
	switch p.ArtifactCorrection {
	case ModeOff:
		return false
	case ModeOCROnly:
		return method == models.MethodOCR
	default:
		return true
	}
}

func sanitize(value any, correct bool) any {
	switch v := value.(type) {
	case string:
		return sanitizeString(v, correct)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = sanitizeString(s, correct)
		}
		return out
	default:
		return value
	}
}

func sanitizeString(s string, correct bool) string {
	s = strings.TrimSpace(s)
	if correct && utf8.RuneCountInString(s) < shortValueRunes {
		s = artifactReplacer.Replace(s)
	}
	return s
}

// AttributePages fills a missing PageNumber with the first page whose text
// contains the field's source text, ignoring case. pages are in page order.
func AttributePages(fields map[string]models.ExtractionField, pages []string) map[string]models.ExtractionField {
	lowered := make([]string, len(pages))
	for i, p := range pages {
		lowered[i] = strings.ToLower(p)
	}

	out := make(map[string]models.ExtractionField, len(fields))
	for name, field := range fields {
		f := field.Clone()
		if f.PageNumber == nil && f.SourceText != nil {
			needle := strings.ToLower(strings.TrimSpace(*f.SourceText))
			if needle != "" {
				for i, p := range lowered {
					if strings.Contains(p, needle) {
						page := i + 1
						f.PageNumber = &page
						break
					}
				}
			}
		}
		out[name] = f
	}
	return out
}
