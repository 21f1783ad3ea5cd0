// Package synthesis merges per-chunk extraction results into one result set.
package synthesis

import (
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// Synthesize keeps, for every field seen in any chunk, the non-null candidate
// with the greatest confidence. Ties go to the earliest chunk. Fields never
// found become NullField. Inputs are not modified.
func Synthesize(results []map[string]models.ExtractionField) map[string]models.ExtractionField {
	merged := make(map[string]models.ExtractionField)
	found := make(map[string]bool)

	for _, result := range results {
		for name, field := range result {
			if _, seen := merged[name]; !seen {
				merged[name] = models.NullField()
			}
			if field.IsNull() {
				continue
			}
			if !found[name] || field.ConfidenceScore > merged[name].ConfidenceScore {
				merged[name] = field.Clone()
				found[name] = true
			}
		}
	}

	return merged
}
