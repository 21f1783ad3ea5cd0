// Package pdf reads stored legal documents and extracts their page text.
package pdf

import "time"

// DefaultMinCharsPerPage is the average page density above which a document
// is treated as text based
const DefaultMinCharsPerPage = 100

// FileInfo describes a stored document
type FileInfo struct {
	DocumentID string    `json:"document_id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
}

// PageText is the text of one page
type PageText struct {
	Number    int    `json:"number"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
}

// Metadata summarizes an extraction run
type Metadata struct {
	Filename        string  `json:"filename"`
	FileSize        int64   `json:"file_size"`
	TotalPages      int     `json:"total_pages"`
	ProcessedPages  int     `json:"processed_pages"`
	TotalCharacters int     `json:"total_characters"`
	AvgCharsPerPage float64 `json:"avg_chars_per_page"`
}

// ExtractionResult is the text layer of a document
type ExtractionResult struct {
	Text        string     `json:"text"`
	Pages       []PageText `json:"pages"`
	IsTextBased bool       `json:"is_text_based"`
	Path        string     `json:"-"`
	Metadata    Metadata   `json:"metadata"`
}

// PageTexts returns the text of each processed page in order
func (r *ExtractionResult) PageTexts() []string {
	texts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		texts[i] = p.Text
	}
	return texts
}

// ValidationResult reports whether a file is a readable PDF
type ValidationResult struct {
	DocumentID string `json:"document_id"`
	Valid      bool   `json:"valid"`
	Message    string `json:"message,omitempty"`
	PageCount  int    `json:"page_count"`
	Version    string `json:"version,omitempty"`
	Encrypted  bool   `json:"encrypted"`
	Size       int64  `json:"size"`
}
