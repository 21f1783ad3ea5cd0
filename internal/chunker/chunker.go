package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// Config configures chunk sizing
type Config struct {
	MaxTokens     int // Token budget per chunk
	OverlapTokens int // Token budget carried into the next chunk
}

// DefaultConfig returns the default chunk sizing
func DefaultConfig() Config {
	return Config{
		MaxTokens:     4000,
		OverlapTokens: 400,
	}
}

// sectionPatterns mark lines that open a new legal section. They are matched
// against trimmed lines, case-insensitively, in this order.
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\d+\.\s+`),           // numbered sections
	regexp.MustCompile(`(?i)^[A-Z]\.\s+`),         // lettered sections
	regexp.MustCompile(`(?i)^WHEREAS\s+`),         // recitals
	regexp.MustCompile(`(?i)^NOW\s+THEREFORE\s+`), // operative clause
	regexp.MustCompile(`(?i)^PARTIES$`),           // parties heading
	regexp.MustCompile(`(?i)^BACKGROUND$`),        // background heading
	regexp.MustCompile(`(?i)^CLAIMS?$`),           // claims heading
	regexp.MustCompile(`(?i)^COUNT\s+[IVX]+`),     // COUNT I, COUNT II, ...
	regexp.MustCompile(`(?i)^PRAYER\s+FOR\s+RELIEF$`),
}

// sentenceBoundary matches terminal punctuation, whitespace and the capital
// letter opening the next sentence.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// Chunker splits document text into overlapping, token-bounded chunks that
// prefer legal section boundaries over arbitrary cuts
type Chunker struct {
	config Config
}

// New creates a chunker, filling unset budgets from DefaultConfig
func New(config Config) *Chunker {
	def := DefaultConfig()
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	if config.OverlapTokens < 0 {
		config.OverlapTokens = def.OverlapTokens
	}
	return &Chunker{config: config}
}

// Config returns the chunker configuration
func (c *Chunker) Config() Config {
	return c.config
}

// EstimateTokens approximates the token count as one token per four characters
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}

type sentence struct {
	text   string
	tokens int
	page   int
}

// Chunk splits text as a single page. maxTokens <= 0 uses the configured budget.
func (c *Chunker) Chunk(text string, maxTokens int) []models.TextChunk {
	return c.ChunkPages([]string{text}, maxTokens)
}

// ChunkPages splits the text of pages joined by newlines and records, for each
// chunk, the pages its sentences came from.
func (c *Chunker) ChunkPages(pages []string, maxTokens int) []models.TextChunk {
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	text := strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		return []models.TextChunk{}
	}

	if EstimateTokens(text) <= maxTokens {
		return []models.TextChunk{{
			Text:        text,
			StartIndex:  0,
			EndIndex:    utf8.RuneCountInString(text),
			SourcePages: nonEmptyPages(pages),
			ChunkIndex:  0,
			TokenCount:  EstimateTokens(text),
		}}
	}

	pageOf := pageLocator(pages)
	sentences := splitSentences(text, pageOf)

	var (
		chunks  []models.TextChunk
		current []sentence
		tokens  int
		start   int
	)

	emit := func() string {
		chunkText := joinSentences(current)
		chunks = append(chunks, models.TextChunk{
			Text:        chunkText,
			StartIndex:  start,
			EndIndex:    start + utf8.RuneCountInString(chunkText),
			SourcePages: sourcePages(current),
			ChunkIndex:  len(chunks),
			TokenCount:  tokens,
		})
		return chunkText
	}

	for _, s := range sentences {
		if tokens+s.tokens > maxTokens && len(current) > 0 {
			chunkText := emit()

			overlap := overlapSentences(current, c.config.OverlapTokens)
			current = overlap
			tokens = 0
			for _, o := range overlap {
				tokens += o.tokens
			}
			start += utf8.RuneCountInString(chunkText) - utf8.RuneCountInString(joinSentences(overlap))
		}
		current = append(current, s)
		tokens += s.tokens
	}

	if len(current) > 0 {
		emit()
	}

	return chunks
}

// overlapSentences walks backward over whole sentences while the cumulative
// estimate stays within budget
func overlapSentences(sentences []sentence, budget int) []sentence {
	used := 0
	i := len(sentences)
	for i > 0 {
		next := sentences[i-1].tokens
		if used+next > budget {
			break
		}
		used += next
		i--
	}
	return append([]sentence(nil), sentences[i:]...)
}

// splitSentences splits text into legal sections and then into sentences,
// tagging each sentence with the page holding its first character
func splitSentences(text string, pageOf func(offset int) int) []sentence {
	var out []sentence
	for _, sec := range splitSections(text) {
		body := text[sec.start:sec.end]
		last := 0
		for _, m := range sentenceBoundary.FindAllStringIndex(body, -1) {
			// The punctuation closes this sentence; the capital opens the next.
			out = appendSentence(out, body[last:m[0]+1], sec.start+last, pageOf)
			last = m[1] - 1
		}
		out = appendSentence(out, body[last:], sec.start+last, pageOf)
	}
	return out
}

func appendSentence(out []sentence, raw string, offset int, pageOf func(int) int) []sentence {
	trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
	offset += len(raw) - len(trimmed)
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if trimmed == "" {
		return out
	}
	return append(out, sentence{
		text:   trimmed,
		tokens: EstimateTokens(trimmed),
		page:   pageOf(offset),
	})
}

type span struct {
	start, end int
}

// splitSections groups lines into sections, opening a new section at every
// line that matches a section header pattern
func splitSections(text string) []span {
	var sections []span
	sectionStart := 0
	lineStart := 0
	for lineStart <= len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}

		if lineStart > sectionStart && isSectionHeader(text[lineStart:lineEnd]) {
			// drop the newline separating the sections
			sections = append(sections, span{sectionStart, lineStart - 1})
			sectionStart = lineStart
		}
		lineStart = lineEnd + 1
	}
	return append(sections, span{sectionStart, len(text)})
}

func isSectionHeader(line string) bool {
	line = strings.TrimSpace(line)
	for _, p := range sectionPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func joinSentences(sentences []sentence) string {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}

func sourcePages(sentences []sentence) []int {
	seen := make(map[int]bool)
	var pages []int
	for _, s := range sentences {
		if !seen[s.page] {
			seen[s.page] = true
			pages = append(pages, s.page)
		}
	}
	sort.Ints(pages)
	return pages
}

func nonEmptyPages(pages []string) []int {
	var out []int
	for i, p := range pages {
		if strings.TrimSpace(p) != "" {
			out = append(out, i+1)
		}
	}
	return out
}

// pageLocator maps a byte offset in the newline-joined text to its 1-based page
func pageLocator(pages []string) func(int) int {
	ends := make([]int, len(pages))
	pos := 0
	for i, p := range pages {
		pos += len(p)
		ends[i] = pos
		pos++ // separator
	}
	return func(offset int) int {
		i := sort.SearchInts(ends, offset)
		if i >= len(ends) {
			i = len(ends) - 1
		}
		return i + 1
	}
}
