package analysis

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// Fingerprint is the cache key of a request: the MD5 hex digest of
// document_id|schema_name|process_full_document|confidence_threshold.
// Keys match those written by earlier deployments, so booleans render as
// True/False and whole thresholds keep a trailing ".0".
func Fingerprint(req models.AnalysisRequest) string {
	key := strings.Join([]string{
		req.DocumentID,
		req.Schema.Name,
		formatBool(req.ProcessFullDocument),
		formatThreshold(req.Schema.ConfidenceThreshold),
	}, "|")
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func flightKey(req models.AnalysisRequest) string {
	key := Fingerprint(req)
	if req.ForceReprocess {
		key += ":force"
	}
	return key
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatThreshold(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func textMD5(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
