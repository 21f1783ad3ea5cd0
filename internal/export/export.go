// Package export renders analysis results as spreadsheets for human review.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// Sheet names
const (
	FieldsSheet  = "Fields"
	SummarySheet = "Summary"
)

var fieldHeaders = []string{
	"Field",
	"Value",
	"Source Text",
	"Confidence",
	"Page",
	"Requires Review",
}

// WriteReviewWorkbook writes an XLSX workbook with one row per extracted
// field. Rows that need review are highlighted.
func WriteReviewWorkbook(w io.Writer, resp *models.AnalysisResponse) error {
	if resp == nil {
		return fmt.Errorf("no analysis result to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", FieldsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	reviewStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	if err := writeFields(f, resp, headerStyle, reviewStyle); err != nil {
		return err
	}
	if err := writeSummary(f, resp, headerStyle); err != nil {
		return err
	}

	index, _ := f.GetSheetIndex(FieldsSheet)
	f.SetActiveSheet(index)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeFields(f *excelize.File, resp *models.AnalysisResponse, headerStyle, reviewStyle int) error {
	for i, h := range fieldHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(FieldsSheet, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(fieldHeaders), 1)
	_ = f.SetCellStyle(FieldsSheet, "A1", lastHeader, headerStyle)

	row := 2
	for _, name := range resp.FieldNames() {
		field := resp.ExtractedData[name]

		source := ""
		if field.SourceText != nil {
			source = *field.SourceText
		}
		var page any = ""
		if field.PageNumber != nil {
			page = *field.PageNumber
		}
		review := "no"
		if field.RequiresReview {
			review = "yes"
		}

		values := []any{name, FormatValue(field.Value), source, field.ConfidenceScore, page, review}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(FieldsSheet, cell, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
		if field.RequiresReview {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(fieldHeaders), row)
			_ = f.SetCellStyle(FieldsSheet, first, last, reviewStyle)
		}
		row++
	}

	_ = f.SetColWidth(FieldsSheet, "A", "A", 26)
	_ = f.SetColWidth(FieldsSheet, "B", "B", 40)
	_ = f.SetColWidth(FieldsSheet, "C", "C", 60)
	_ = f.SetColWidth(FieldsSheet, "D", "F", 14)
	return nil
}

func writeSummary(f *excelize.File, resp *models.AnalysisResponse, headerStyle int) error {
	chunks := ""
	if resp.ChunkCount != nil {
		chunks = strconv.Itoa(*resp.ChunkCount)
	}
	processed := ""
	if !resp.Metadata.ProcessingTimestamp.IsZero() {
		processed = resp.Metadata.ProcessingTimestamp.UTC().Format(time.RFC3339)
	}

	rows := [][]any{
		{"Document", resp.DocumentID},
		{"Status", string(resp.Status)},
		{"Document Type", string(resp.Metadata.DocumentType)},
		{"Processing Method", resp.Metadata.ProcessingMethod},
		{"Pages", resp.Metadata.PageCount},
		{"Processed Pages", resp.Metadata.ProcessedPages},
		{"Chunks", chunks},
		{"Overall Confidence", resp.OverallConfidence()},
		{"Fields Requiring Review", resp.ReviewRequiredCount},
		{"Processed At", processed},
		{"Errors", strings.Join(resp.ProcessingErrors, "\n")},
	}
	for i, r := range rows {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &r); err != nil {
			return fmt.Errorf("xlsx summary: %w", err)
		}
	}
	_ = f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle)
	_ = f.SetColWidth(SummarySheet, "A", "A", 26)
	_ = f.SetColWidth(SummarySheet, "B", "B", 48)
	return nil
}

// FormatValue renders an extracted value as a single cell string
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, "; ")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
