package chunker

import (
	"unicode"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// contextChars is the number of characters shown on each side of a match
const contextChars = 100

// Match is one occurrence of a search string inside a chunk
type Match struct {
	ChunkIndex  int    `json:"chunk_index"`
	Position    int    `json:"position"`
	Text        string `json:"text"`
	Context     string `json:"context"`
	SourcePages []int  `json:"source_pages"`
}

// FindText searches every chunk case-insensitively and returns each match with
// surrounding context. Positions are in characters, not bytes.
func FindText(chunks []models.TextChunk, needle string) []Match {
	query := lowerRunes(needle)
	if len(query) == 0 {
		return nil
	}

	var matches []Match
	for _, chunk := range chunks {
		original := []rune(chunk.Text)
		haystack := lowerRunes(chunk.Text)
		for pos := 0; pos+len(query) <= len(haystack); pos++ {
			if !hasPrefixAt(haystack, query, pos) {
				continue
			}
			matches = append(matches, Match{
				ChunkIndex:  chunk.ChunkIndex,
				Position:    pos,
				Text:        string(original[pos : pos+len(query)]),
				Context:     contextAround(original, pos, len(query)),
				SourcePages: chunk.SourcePages,
			})
		}
	}
	return matches
}

func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func hasPrefixAt(haystack, query []rune, pos int) bool {
	for i, r := range query {
		if haystack[pos+i] != r {
			return false
		}
	}
	return true
}

func contextAround(text []rune, pos, length int) string {
	start := max(0, pos-contextChars)
	end := min(len(text), pos+length+contextChars)

	context := string(text[start:end])
	if start > 0 {
		context = "..." + context
	}
	if end < len(text) {
		context += "..."
	}
	return context
}
