package analysis

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name      string
		full      bool
		threshold float64
		key       string
	}{
		{"defaults", false, 0.9, "complaint.pdf|complaint|False|0.9"},
		{"full document", true, 0.85, "complaint.pdf|complaint|True|0.85"},
		{"whole threshold", false, 1, "complaint.pdf|complaint|False|1.0"},
		{"zero threshold", false, 0, "complaint.pdf|complaint|False|0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.AnalysisRequest{
				DocumentID:          "complaint.pdf",
				Schema:              models.NewExtractionSchema("complaint", map[string]models.FieldSpec{"a": nil}, tt.threshold),
				ProcessFullDocument: tt.full,
			}
			assert.Equal(t, md5hex(tt.key), Fingerprint(req))
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	req := request("complaint.pdf")
	assert.Equal(t, Fingerprint(req), Fingerprint(req))

	forced := req
	forced.ForceReprocess = true
	assert.Equal(t, Fingerprint(req), Fingerprint(forced), "force does not change the cache key")
	assert.NotEqual(t, flightKey(req), flightKey(forced))

	other := req
	other.DocumentID = "other.pdf"
	assert.NotEqual(t, Fingerprint(req), Fingerprint(other))
}
