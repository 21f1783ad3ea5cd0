package models

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
)

func testFields() map[string]FieldSpec {
	return map[string]FieldSpec{
		"case_number":    FieldSpec(`{"type":"string","description":"Court case number"}`),
		"plaintiff_name": FieldSpec(`{"type":"string"}`),
	}
}

func TestNewExtractionSchema(t *testing.T) {
	fields := testFields()
	s := NewExtractionSchema("  complaint  ", fields, -1)

	assert.Equal(t, "complaint", s.Name)
	assert.Equal(t, DefaultConfidenceThreshold, s.ConfidenceThreshold)
	assert.Equal(t, []string{"case_number", "plaintiff_name"}, s.FieldNames())

	fields["injected"] = FieldSpec(`{}`)
	assert.Len(t, s.Fields, 2, "schema must not share the caller's map")
}

func TestAnalysisRequest_Validate(t *testing.T) {
	valid := NewExtractionSchema("complaint", testFields(), 0.9)

	tests := []struct {
		name    string
		req     AnalysisRequest
		wantErr bool
	}{
		{"valid", AnalysisRequest{DocumentID: "doc.pdf", Schema: valid}, false},
		{"empty document id", AnalysisRequest{DocumentID: "  ", Schema: valid}, true},
		{"empty schema name", AnalysisRequest{DocumentID: "doc.pdf", Schema: ExtractionSchema{Fields: testFields(), ConfidenceThreshold: 0.9}}, true},
		{"no fields", AnalysisRequest{DocumentID: "doc.pdf", Schema: ExtractionSchema{Name: "x", ConfidenceThreshold: 0.9}}, true},
		{"threshold above one", AnalysisRequest{DocumentID: "doc.pdf", Schema: ExtractionSchema{Name: "x", Fields: testFields(), ConfidenceThreshold: 1.5}}, true},
		{"threshold below zero", AnalysisRequest{DocumentID: "doc.pdf", Schema: ExtractionSchema{Name: "x", Fields: testFields(), ConfidenceThreshold: -0.1}}, true},
		{"threshold not a number", AnalysisRequest{DocumentID: "doc.pdf", Schema: ExtractionSchema{Name: "x", Fields: testFields(), ConfidenceThreshold: math.NaN()}}, true},
		{"threshold bounds inclusive", AnalysisRequest{DocumentID: "doc.pdf", Schema: ExtractionSchema{Name: "x", Fields: testFields(), ConfidenceThreshold: 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExtractionField_Clone(t *testing.T) {
	src := "Jane Doe, Plaintiff"
	page := 2
	f := ExtractionField{Value: []string{"Acme Corp"}, SourceText: &src, ConfidenceScore: 0.8, PageNumber: &page}

	c := f.Clone()
	c.Value.([]string)[0] = "changed"
	*c.SourceText = "changed"
	*c.PageNumber = 9

	assert.Equal(t, []string{"Acme Corp"}, f.Value)
	assert.Equal(t, "Jane Doe, Plaintiff", *f.SourceText)
	assert.Equal(t, 2, *f.PageNumber)
}

func TestNullField(t *testing.T) {
	f := NullField()
	assert.True(t, f.IsNull())
	assert.Nil(t, f.SourceText)
	assert.Zero(t, f.ConfidenceScore)
}

func TestAnalysisResponse_Finalize(t *testing.T) {
	resp := &AnalysisResponse{
		ExtractedData: map[string]ExtractionField{
			"a": {Value: "x", ConfidenceScore: 0.99},
			"b": {ConfidenceScore: 0, RequiresReview: true},
			"c": {Value: "y", ConfidenceScore: 0.5, RequiresReview: true},
		},
		ReviewRequiredCount: 42,
	}
	resp.Finalize()

	assert.Equal(t, 2, resp.ReviewRequiredCount)
	assert.InDelta(t, (0.99+0+0.5)/3, resp.OverallConfidence(), 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, resp.FieldNames())
}

func TestFailedResponse(t *testing.T) {
	resp := FailedResponse("doc.pdf", stderrors.New("boom"))

	assert.Equal(t, StatusFailed, resp.Status)
	assert.Empty(t, resp.ExtractedData)
	assert.Equal(t, []string{"boom"}, resp.ProcessingErrors)
	assert.Equal(t, MethodError, resp.Metadata.ProcessingMethod)
}

func TestAnalysisResponse_JSONShape(t *testing.T) {
	src := "Case Number: CIV-2024-1138"
	resp := AnalysisResponse{
		DocumentID: "doc.pdf",
		Status:     StatusCompleted,
		ExtractedData: map[string]ExtractionField{
			"case_number": {Value: "CIV-2024-1138", SourceText: &src, ConfidenceScore: 0.99},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "completed", raw["status"])
	field := raw["extracted_data"].(map[string]any)["case_number"].(map[string]any)
	assert.Equal(t, 0.99, field["confidence_score"])
	assert.Nil(t, field["page_number"])
}

func TestExtractionField_UnmarshalJSON(t *testing.T) {
	var fields map[string]ExtractionField
	raw := `{
		"a": {"value": ["x", null, "y"], "source_text": "x and y", "confidence_score": 0.9, "page_number": 2, "requires_review": false},
		"b": {"value": "CIV-1", "source_text": null, "confidence_score": 0.5, "page_number": null, "requires_review": true},
		"c": {"value": 250000, "confidence_score": 0.7},
		"d": {"value": null, "confidence_score": 0}
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))

	assert.Equal(t, []string{"x", "y"}, fields["a"].Value)
	require.NotNil(t, fields["a"].PageNumber)
	assert.Equal(t, 2, *fields["a"].PageNumber)
	assert.Equal(t, "CIV-1", fields["b"].Value)
	assert.True(t, fields["b"].RequiresReview)
	assert.Nil(t, fields["b"].SourceText)
	assert.Equal(t, 250000.0, fields["c"].Value)
	assert.True(t, fields["d"].IsNull())
}

func TestAnalysisResponse_Clone(t *testing.T) {
	src := "Jane Doe"
	n := 2
	resp := &AnalysisResponse{
		DocumentID: "doc.pdf",
		Status:     StatusCompleted,
		ExtractedData: map[string]ExtractionField{
			"names": {Value: []string{"Jane"}, SourceText: &src, ConfidenceScore: 0.9},
		},
		Metadata:         DocumentMetadata{OCRPageConfidences: map[int]float64{1: 0.8}},
		ProcessingErrors: []string{},
		ChunkCount:       &n,
	}

	clone := resp.Clone()
	clone.ExtractedData["names"].Value.([]string)[0] = "John"
	*clone.ChunkCount = 5
	clone.Metadata.OCRPageConfidences[1] = 0.1

	assert.Equal(t, []string{"Jane"}, resp.ExtractedData["names"].Value)
	assert.Equal(t, 2, *resp.ChunkCount)
	assert.Equal(t, 0.8, resp.Metadata.OCRPageConfidences[1])
	assert.Nil(t, (*AnalysisResponse)(nil).Clone())
}
