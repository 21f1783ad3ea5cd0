package intelligence

import (
	"strings"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// ClassificationRule maps a group of keywords to a document type
type ClassificationRule struct {
	Name         string              `json:"name"`
	DocumentType models.DocumentType `json:"document_type"`
	Keywords     []string            `json:"keywords"`
}

// Classification explains how a document type was chosen
type Classification = models.Classification

// ClassificationAlternative is a lower-precedence rule that also matched
type ClassificationAlternative = models.ClassificationAlternative

// DocumentClassifier assigns legal document types by keyword precedence
type DocumentClassifier struct {
	rules []ClassificationRule
}

// NewDocumentClassifier creates a classifier with the default legal rules
func NewDocumentClassifier() *DocumentClassifier {
	return &DocumentClassifier{rules: DefaultRules()}
}

// NewDocumentClassifierWithRules creates a classifier with custom rules,
// evaluated in the given order
func NewDocumentClassifierWithRules(rules []ClassificationRule) *DocumentClassifier {
	return &DocumentClassifier{rules: rules}
}

// DefaultRules returns the legal keyword groups in precedence order
func DefaultRules() []ClassificationRule {
	return []ClassificationRule{
		{
			Name:         "complaint_indicators",
			DocumentType: models.DocumentTypeComplaint,
			Keywords: []string{
				"complaint for damages",
				"civil complaint",
				"plaintiff",
				"defendant",
				"cause of action",
				"prayer for relief",
			},
		},
		{
			Name:         "retainer_indicators",
			DocumentType: models.DocumentTypeRetainer,
			Keywords: []string{
				"retainer agreement",
				"attorney-client agreement",
				"legal services agreement",
				"fee agreement",
			},
		},
		{
			Name:         "settlement_indicators",
			DocumentType: models.DocumentTypeSettlement,
			Keywords: []string{
				"settlement agreement",
				"release and settlement",
				"settlement and release",
			},
		},
		{
			Name:         "medical_indicators",
			DocumentType: models.DocumentTypeMedicalRecord,
			Keywords: []string{
				"medical record",
				"patient",
				"diagnosis",
				"treatment",
				"hospital",
			},
		},
	}
}

// Explain evaluates every rule and reports the winning rule, its matched
// keywords and any other rules that matched
func (dc *DocumentClassifier) Explain(text string) Classification {
	lower := strings.ToLower(text)
	result := Classification{Type: models.DocumentTypeOther}

	for _, rule := range dc.rules {
		matched := matchKeywords(rule, lower)
		if len(matched) == 0 {
			continue
		}
		if result.Rule == "" {
			result.Type = rule.DocumentType
			result.Rule = rule.Name
			result.Matched = matched
			continue
		}
		result.Alternatives = append(result.Alternatives, ClassificationAlternative{
			Type:    rule.DocumentType,
			Rule:    rule.Name,
			Matched: matched,
		})
	}

	return result
}

func matchKeywords(rule ClassificationRule, lowerText string) []string {
	var matched []string
	for _, kw := range rule.Keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
