package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
)

// DefaultConfidenceThreshold is used when a schema does not carry its own threshold
const DefaultConfidenceThreshold = 0.9

// DocumentType is the coarse legal category assigned from keyword heuristics
type DocumentType string

const (
	DocumentTypeComplaint     DocumentType = "complaint"
	DocumentTypeRetainer      DocumentType = "retainer_agreement"
	DocumentTypeSettlement    DocumentType = "settlement_agreement"
	DocumentTypeMedicalRecord DocumentType = "medical_record"
	DocumentTypeOther         DocumentType = "other"
)

// ProcessingStatus is the lifecycle state of an analysis
type ProcessingStatus string

const (
	StatusPending        ProcessingStatus = "pending"
	StatusProcessing     ProcessingStatus = "processing"
	StatusCompleted      ProcessingStatus = "completed"
	StatusFailed         ProcessingStatus = "failed"
	StatusRequiresReview ProcessingStatus = "requires_review"
)

// Processing methods recorded in DocumentMetadata
const (
	MethodDirectText = "direct_text"
	MethodOCR        = "ocr"
	MethodError      = "error"
)

// FieldSpec is an opaque field descriptor passed verbatim into the prompt
type FieldSpec = json.RawMessage

// ExtractionSchema describes the fields to extract from a document
type ExtractionSchema struct {
	Name                string               `json:"schema_name"`
	Fields              map[string]FieldSpec `json:"fields"`
	ConfidenceThreshold float64              `json:"confidence_threshold"`
}

// NewExtractionSchema builds a schema with a private copy of fields. A
// negative threshold selects the default.
func NewExtractionSchema(name string, fields map[string]FieldSpec, threshold float64) ExtractionSchema {
	copied := make(map[string]FieldSpec, len(fields))
	for k, v := range fields {
		copied[k] = append(FieldSpec(nil), v...)
	}
	if threshold < 0 {
		threshold = DefaultConfidenceThreshold
	}
	return ExtractionSchema{
		Name:                strings.TrimSpace(name),
		Fields:              copied,
		ConfidenceThreshold: threshold,
	}
}

// FieldNames returns the expected output keys in sorted order
func (s ExtractionSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldsJSON renders the field descriptors as indented JSON for prompting
func (s ExtractionSchema) FieldsJSON() (string, error) {
	data, err := json.MarshalIndent(s.Fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema fields: %w", err)
	}
	return string(data), nil
}

// Validate checks the schema's structural constraints
func (s ExtractionSchema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Validation("schema.validate", "schema name cannot be empty")
	}
	if len(s.Fields) == 0 {
		return errors.Validation("schema.validate", "schema must define at least one field")
	}
	for name := range s.Fields {
		if strings.TrimSpace(name) == "" {
			return errors.Validation("schema.validate", "field names cannot be empty")
		}
	}
	if !(s.ConfidenceThreshold >= 0 && s.ConfidenceThreshold <= 1) {
		return errors.Validation("schema.validate",
			fmt.Sprintf("confidence threshold %v outside [0,1]", s.ConfidenceThreshold))
	}
	return nil
}

// AnalysisRequest asks for one document to be analyzed against a schema
type AnalysisRequest struct {
	DocumentID          string           `json:"document_id"`
	Schema              ExtractionSchema `json:"extraction_schema"`
	ProcessFullDocument bool             `json:"process_full_document"`
	ForceReprocess      bool             `json:"force_reprocess"`
}

// Validate rejects malformed requests before any pipeline work starts
func (r AnalysisRequest) Validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return errors.Validation("request.validate", "document id cannot be empty")
	}
	return r.Schema.Validate()
}

// ExtractionField is one extracted value with its evidence and confidence.
// Value is nil, a string, a []string or a float64.
type ExtractionField struct {
	Value           any     `json:"value"`
	SourceText      *string `json:"source_text"`
	ConfidenceScore float64 `json:"confidence_score"`
	PageNumber      *int    `json:"page_number"`
	RequiresReview  bool    `json:"requires_review"`
}

// NullField is the placeholder for a field not found in the text
func NullField() ExtractionField {
	return ExtractionField{}
}

// IsNull reports whether the field carries no value
func (f ExtractionField) IsNull() bool {
	return f.Value == nil
}

// Clone returns a deep copy so merged results never alias their inputs
func (f ExtractionField) Clone() ExtractionField {
	out := f
	if f.SourceText != nil {
		s := *f.SourceText
		out.SourceText = &s
	}
	if f.PageNumber != nil {
		p := *f.PageNumber
		out.PageNumber = &p
	}
	if list, ok := f.Value.([]string); ok {
		out.Value = append([]string(nil), list...)
	}
	return out
}

// UnmarshalJSON restores list values as []string rather than []any
func (f *ExtractionField) UnmarshalJSON(data []byte) error {
	type plain ExtractionField
	var aux struct {
		plain
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = ExtractionField(aux.plain)
	f.Value = nil

	raw := strings.TrimSpace(string(aux.Value))
	if raw == "" || raw == "null" {
		return nil
	}
	switch raw[0] {
	case '[':
		var list []*string
		if err := json.Unmarshal(aux.Value, &list); err != nil {
			return fmt.Errorf("field value: %w", err)
		}
		values := make([]string, 0, len(list))
		for _, v := range list {
			if v != nil {
				values = append(values, *v)
			}
		}
		f.Value = values
	case '"':
		var s string
		if err := json.Unmarshal(aux.Value, &s); err != nil {
			return fmt.Errorf("field value: %w", err)
		}
		f.Value = s
	default:
		var n float64
		if err := json.Unmarshal(aux.Value, &n); err != nil {
			return fmt.Errorf("field value: %w", err)
		}
		f.Value = n
	}
	return nil
}

// TextChunk is a token-bounded slice of document text
type TextChunk struct {
	Text        string `json:"text"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	SourcePages []int  `json:"source_pages"`
	ChunkIndex  int    `json:"chunk_index"`
	TokenCount  int    `json:"token_count"`
}

// DocumentMetadata summarizes how a document was processed
type DocumentMetadata struct {
	Filename            string          `json:"filename"`
	FileSize            int64           `json:"file_size"`
	PageCount           int             `json:"page_count"`
	ProcessedPages      int             `json:"processed_pages"`
	DocumentType        DocumentType    `json:"document_type"`
	ProcessingMethod    string          `json:"processing_method"`
	RawTextMD5          string          `json:"raw_text_md5"`
	ProcessingTimestamp time.Time       `json:"processing_timestamp"`
	ProcessingDuration  float64         `json:"processing_duration"`
	TotalCharacters     int             `json:"total_characters"`
	AvgCharsPerPage     float64         `json:"avg_chars_per_page"`
	OCRPageConfidences  map[int]float64 `json:"ocr_page_confidences,omitempty"`
	Classification      *Classification `json:"classification,omitempty"`
}

// ClassificationAlternative is a lower-precedence rule that also matched
type ClassificationAlternative struct {
	Type    DocumentType `json:"type"`
	Rule    string       `json:"rule"`
	Matched []string     `json:"matched"`
}

// Classification explains how a document type was chosen
type Classification struct {
	Type         DocumentType                `json:"type"`
	Rule         string                      `json:"rule,omitempty"`
	Matched      []string                    `json:"matched,omitempty"`
	Alternatives []ClassificationAlternative `json:"alternatives,omitempty"`
}

// Clone returns a deep copy of the classification
func (c *Classification) Clone() *Classification {
	if c == nil {
		return nil
	}
	out := *c
	out.Matched = append([]string(nil), c.Matched...)
	out.Alternatives = make([]ClassificationAlternative, len(c.Alternatives))
	for i, alt := range c.Alternatives {
		alt.Matched = append([]string(nil), alt.Matched...)
		out.Alternatives[i] = alt
	}
	return &out
}

// AnalysisResponse is the outcome of one analysis run
type AnalysisResponse struct {
	DocumentID          string                     `json:"document_id"`
	Status              ProcessingStatus           `json:"status"`
	ExtractedData       map[string]ExtractionField `json:"extracted_data"`
	Metadata            DocumentMetadata           `json:"metadata"`
	ProcessingErrors    []string                   `json:"processing_errors"`
	ChunkCount          *int                       `json:"chunk_count"`
	ReviewRequiredCount int                        `json:"review_required_count"`
}

// Clone returns a deep copy of the response
func (r *AnalysisResponse) Clone() *AnalysisResponse {
	if r == nil {
		return nil
	}
	out := *r
	out.ExtractedData = make(map[string]ExtractionField, len(r.ExtractedData))
	for name, f := range r.ExtractedData {
		out.ExtractedData[name] = f.Clone()
	}
	if r.Metadata.OCRPageConfidences != nil {
		out.Metadata.OCRPageConfidences = make(map[int]float64, len(r.Metadata.OCRPageConfidences))
		for page, c := range r.Metadata.OCRPageConfidences {
			out.Metadata.OCRPageConfidences[page] = c
		}
	}
	out.Metadata.Classification = r.Metadata.Classification.Clone()
	out.ProcessingErrors = append([]string(nil), r.ProcessingErrors...)
	if r.ChunkCount != nil {
		n := *r.ChunkCount
		out.ChunkCount = &n
	}
	return &out
}

// Finalize recomputes derived counters after ExtractedData is settled
func (r *AnalysisResponse) Finalize() {
	count := 0
	for _, f := range r.ExtractedData {
		if f.RequiresReview {
			count++
		}
	}
	r.ReviewRequiredCount = count
}

// OverallConfidence is the mean confidence across all extracted fields
func (r *AnalysisResponse) OverallConfidence() float64 {
	if len(r.ExtractedData) == 0 {
		return 0
	}
	var sum float64
	for _, f := range r.ExtractedData {
		sum += f.ConfidenceScore
	}
	return sum / float64(len(r.ExtractedData))
}

// FieldNames returns the extracted field names in sorted order
func (r *AnalysisResponse) FieldNames() []string {
	names := make([]string, 0, len(r.ExtractedData))
	for name := range r.ExtractedData {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FailedResponse builds the terminal response for a run that could not complete
func FailedResponse(documentID string, err error) *AnalysisResponse {
	return &AnalysisResponse{
		DocumentID:    documentID,
		Status:        StatusFailed,
		ExtractedData: map[string]ExtractionField{},
		Metadata: DocumentMetadata{
			DocumentType:        DocumentTypeOther,
			ProcessingMethod:    MethodError,
			ProcessingTimestamp: time.Now(),
		},
		ProcessingErrors: []string{err.Error()},
	}
}
