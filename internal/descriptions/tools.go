package descriptions

import "sort"

// Tool names exposed over MCP
const (
	ToolAnalyzeDocument  = "legal_analyze_document"
	ToolDocumentStatus   = "legal_document_status"
	ToolClearCache       = "legal_clear_cache"
	ToolValidateDocument = "legal_validate_document"
	ToolListSchemas      = "legal_list_schemas"
	ToolExportReview     = "legal_export_review"
	ToolListDocuments    = "legal_list_documents"
	ToolSearchDocument   = "legal_search_document"
)

const (
	AnalyzeDocumentDescription = `Extract structured fields from a legal PDF using a named schema template or inline field definitions.

**When to use:** Need case numbers, parties, dates, fees or other facts pulled out of a complaint, retainer agreement, medical record or similar filing.

**How it works:** Reads the text layer (falling back to OCR for scanned documents), splits long documents into section-aware chunks, asks the configured LLM providers for each field with a confidence score and supporting quote, then merges the chunk results.

**Examples:**
• Template: document_id="intake/complaint.pdf", schema="complaint"
• Inline fields: document_id="retainer.pdf", fields='{"hourly_rate": {"type": "number"}, "client_name": {"type": "string"}}'
• Whole document: add process_full_document=true (only the first 10 pages are read by default)

**Result:** JSON with extracted_data (value, source_text, confidence_score, page_number, requires_review per field), metadata (including the document type and the classification rule and keywords that chose it), status and processing_errors.

**Best practices:** Fields scoring below the confidence threshold are flagged requires_review. Results are cached per document, schema name and threshold; pass force_reprocess=true after replacing a file or changing inline fields under the same schema_name.`

	DocumentStatusDescription = `Report the processing status of a document.

**When to use:** Check whether an analysis is still running or how the most recent one ended.

**Result:** One of processing, completed, failed or requires_review. Documents that were never analyzed report not_found. The result cache's hit, miss and size counters are included.`

	ClearCacheDescription = `Drop every cached analysis result.

**When to use:** After changing providers, prompts or schema templates so that the next analysis runs from scratch.

**Result:** How many cached results were removed and the cache hit rate before clearing.`

	ValidateDocumentDescription = `Verify that a stored document is a readable PDF before analyzing it.

**When to use:** Before analysis in automated workflows, or to diagnose a failed run.

**Result:** Validity, page count, PDF version, encryption flag and file size.`

	ListSchemasDescription = `List the extraction schema templates available to legal_analyze_document.

**Result:** Each template's name, confidence threshold and field definitions. Custom templates are loaded from the configured schema directory.`

	ExportReviewDescription = `Write the most recent analysis of a document to an Excel review workbook.

**When to use:** Hand extracted fields to a paralegal for verification. Rows that require review are highlighted.

**Examples:**
• Default location: document_id="complaint.pdf" writes complaint.review.xlsx next to the document
• Custom location: output="reviews/complaint.xlsx" (relative to the document directory)

**Best practices:** Run legal_analyze_document first; the export reads the cached result.`

	ListDocumentsDescription = `List the PDF documents available for analysis.

**Result:** Document ids (paths relative to the document directory), sizes and modification times. An optional query filters ids case-insensitively.`

	SearchDocumentDescription = `Search a document's text for a phrase and return each match with surrounding context.

**When to use:** Verify an extracted value against the source, or locate a clause before deciding which fields to extract.

**Examples:**
• document_id="retainer.pdf", query="hourly rate"
• document_id="complaint.pdf", query="case no", process_full_document=true

**Result:** Matches with chunk index, character position, context and source pages.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolAnalyzeDocument:  AnalyzeDocumentDescription,
	ToolDocumentStatus:   DocumentStatusDescription,
	ToolClearCache:       ClearCacheDescription,
	ToolValidateDocument: ValidateDocumentDescription,
	ToolListSchemas:      ListSchemasDescription,
	ToolExportReview:     ExportReviewDescription,
	ToolListDocuments:    ListDocumentsDescription,
	ToolSearchDocument:   SearchDocumentDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns every tool name in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
