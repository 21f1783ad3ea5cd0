package llm

import (
	"strings"
)

const systemPrompt = `You are an expert paralegal specializing in personal injury cases.
Your task is to extract specific information from legal documents with extreme accuracy.

CRITICAL RULES:
1. Extract information ONLY from the provided text
2. Do not infer or add information not explicitly stated
3. For each field, provide the exact source text that justifies the extraction
4. Assign confidence scores from 0.0 to 1.0 based on text clarity
5. If information is not found, return null values with 0.0 confidence
6. Be extremely conservative - better to return null than guess`

const exampleFormat = `{
    "case_number": {
        "value": "CIV-2024-1138",
        "source_text": "Case Number: CIV-2024-1138",
        "confidence_score": 0.99
    },
    "plaintiff_name": {
        "value": "Jane Doe",
        "source_text": "Jane Doe, an individual, Plaintiff",
        "confidence_score": 0.95
    }
}`

// BuildSystemPrompt returns the fixed extraction instructions
func BuildSystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt embeds the indented field schema and the chunk text
func BuildUserPrompt(schemaJSON, text string) string {
	var b strings.Builder
	b.WriteString("Extract the following information from this legal document text:\n\n")
	b.WriteString("TARGET SCHEMA:\n")
	b.WriteString(schemaJSON)
	b.WriteString("\n\nDOCUMENT TEXT:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn a JSON object where each field contains:\n")
	b.WriteString("- value: The extracted value (null if not found)\n")
	b.WriteString("- source_text: The exact text that supports this extraction\n")
	b.WriteString("- confidence_score: A score from 0.0 to 1.0 indicating confidence\n\n")
	b.WriteString("Example format:\n")
	b.WriteString(exampleFormat)
	b.WriteString("\n\nIMPORTANT: Only extract information that is explicitly stated in the text. Do not infer or guess.\n")
	return b.String()
}
