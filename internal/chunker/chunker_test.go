package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clauses builds n sentences of 36 characters (9 estimated tokens) each,
// numbered from first.
func clauses(first, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Clause %02d provides the agreed terms.", first+i)
	}
	return out
}

var clausePattern = regexp.MustCompile(`Clause \d+ provides the agreed terms\.`)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 9, EstimateTokens(clauses(1, 1)[0]))
	assert.Equal(t, 1, EstimateTokens("ﬁﬁﬁﬁ"), "estimate counts characters, not bytes")
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(DefaultConfig())
	for _, text := range []string{"", "   ", "\n\t\n"} {
		chunks := c.Chunk(text, 0)
		assert.NotNil(t, chunks)
		assert.Empty(t, chunks)
	}
}

func TestChunk_RoundTrip(t *testing.T) {
	c := New(DefaultConfig())
	texts := []string{
		"Case Number: CIV-2024-1138\nJane Doe, Plaintiff\nv.\nAcme Corp, Defendant",
		strings.Join(clauses(1, 40), " "),
		"  leading and trailing whitespace is preserved  ",
	}

	for _, text := range texts {
		chunks := c.Chunk(text, 4000)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].ChunkIndex)
		assert.Equal(t, 0, chunks[0].StartIndex)
		assert.Equal(t, utf8.RuneCountInString(text), chunks[0].EndIndex)
		assert.Equal(t, []int{1}, chunks[0].SourcePages)
		assert.Equal(t, EstimateTokens(text), chunks[0].TokenCount)
	}
}

func TestChunk_DefaultBudget(t *testing.T) {
	c := New(Config{MaxTokens: 20, OverlapTokens: 0})
	text := strings.Join(clauses(1, 6), " ")

	assert.Len(t, c.Chunk(text, 0), 3, "zero budget falls back to the configured one")
	assert.Len(t, c.Chunk(text, 1000), 1)
}

func TestChunk_MultiChunkProperties(t *testing.T) {
	text := strings.Join(clauses(1, 40), " ")

	configs := []Config{
		{MaxTokens: 40, OverlapTokens: 10},
		{MaxTokens: 60, OverlapTokens: 20},
		{MaxTokens: 100, OverlapTokens: 0},
		{MaxTokens: 100, OverlapTokens: 45},
	}

	for _, cfg := range configs {
		t.Run(fmt.Sprintf("max=%d/overlap=%d", cfg.MaxTokens, cfg.OverlapTokens), func(t *testing.T) {
			chunks := New(cfg).Chunk(text, cfg.MaxTokens)
			require.Greater(t, len(chunks), 1)

			for i, chunk := range chunks {
				assert.Equal(t, i, chunk.ChunkIndex, "chunk indexes are contiguous")
				assert.Equal(t, utf8.RuneCountInString(chunk.Text), chunk.EndIndex-chunk.StartIndex)
				assert.LessOrEqual(t, chunk.TokenCount, cfg.MaxTokens)

				sum := 0
				for _, s := range clausePattern.FindAllString(chunk.Text, -1) {
					sum += EstimateTokens(s)
				}
				assert.Equal(t, sum, chunk.TokenCount)
			}

			for i := 1; i < len(chunks); i++ {
				prev := clausePattern.FindAllString(chunks[i-1].Text, -1)
				next := clausePattern.FindAllString(chunks[i].Text, -1)

				overlap := sharedPrefix(prev, next)
				tokens := 0
				for _, s := range overlap {
					tokens += EstimateTokens(s)
				}
				assert.LessOrEqual(t, tokens, cfg.OverlapTokens, "overlap carried into chunk %d", i)

				overlapLen := utf8.RuneCountInString(strings.Join(overlap, " "))
				want := chunks[i-1].StartIndex + utf8.RuneCountInString(chunks[i-1].Text) - overlapLen
				assert.Equal(t, want, chunks[i].StartIndex)
			}

			first := clausePattern.FindAllString(chunks[0].Text, -1)
			last := clausePattern.FindAllString(chunks[len(chunks)-1].Text, -1)
			assert.Equal(t, "Clause 01 provides the agreed terms.", first[0])
			assert.Equal(t, "Clause 40 provides the agreed terms.", last[len(last)-1])
		})
	}
}

// sharedPrefix returns the suffix of prev that opens next
func sharedPrefix(prev, next []string) []string {
	if len(next) == 0 {
		return nil
	}
	for i, s := range prev {
		if s == next[0] {
			return prev[i:]
		}
	}
	return nil
}

func TestChunk_GreedyPacking(t *testing.T) {
	text := strings.Join(clauses(1, 12), " ")
	chunks := New(Config{MaxTokens: 40, OverlapTokens: 10}).Chunk(text, 40)

	require.Len(t, chunks, 4)
	assert.Equal(t, strings.Join(clauses(1, 4), " "), chunks[0].Text)
	assert.Equal(t, strings.Join(clauses(4, 4), " "), chunks[1].Text)
	assert.Equal(t, strings.Join(clauses(7, 4), " "), chunks[2].Text)
	assert.Equal(t, strings.Join(clauses(10, 3), " "), chunks[3].Text)
	assert.Equal(t, 36, chunks[0].TokenCount)
	assert.Equal(t, 27, chunks[3].TokenCount)
}

func TestChunk_OversizedSentenceStandsAlone(t *testing.T) {
	long := "This sentence is much longer than the tiny budget allows for a chunk."
	text := "Short one. " + long + " Tail end."
	chunks := New(Config{MaxTokens: 5, OverlapTokens: 0}).Chunk(text, 5)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0].Text)
	assert.Equal(t, long, chunks[1].Text)
	assert.Equal(t, "Tail end.", chunks[2].Text)
}

func TestChunkPages_SourcePages(t *testing.T) {
	pages := []string{
		strings.Join(clauses(1, 20), " "),
		strings.Join(clauses(21, 20), " "),
	}
	chunks := New(Config{MaxTokens: 40, OverlapTokens: 10}).ChunkPages(pages, 40)
	require.Greater(t, len(chunks), 2)

	assert.Equal(t, []int{1}, chunks[0].SourcePages)
	assert.Equal(t, []int{2}, chunks[len(chunks)-1].SourcePages)

	spanning := 0
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, "Clause 20") && strings.Contains(chunk.Text, "Clause 21") {
			assert.Equal(t, []int{1, 2}, chunk.SourcePages)
			spanning++
		}
	}
	assert.Equal(t, 1, spanning)
}

func TestChunkPages_SingleChunkListsNonEmptyPages(t *testing.T) {
	chunks := New(DefaultConfig()).ChunkPages([]string{"Page one.", "   ", "Page three."}, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, []int{1, 3}, chunks[0].SourcePages)
	assert.Equal(t, "Page one.\n   \nPage three.", chunks[0].Text)
}

func TestSplitSentences(t *testing.T) {
	page := func(int) int { return 1 }

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "sentence boundaries",
			text: "The parties agree. The term is one year! Is it renewable? yes it is.",
			want: []string{"The parties agree.", "The term is one year!", "Is it renewable? yes it is."},
		},
		{
			name: "numbered section without punctuation",
			text: "Terms follow\n1. payment is due monthly",
			want: []string{"Terms follow", "1. payment is due monthly"},
		},
		{
			name: "lowercase recital header",
			text: "Intro text\nwhereas the buyer pays",
			want: []string{"Intro text", "whereas the buyer pays"},
		},
		{
			name: "headings",
			text: "PARTIES\nJane Doe sues\nCOUNT II\nnegligence occurred\nPRAYER FOR RELIEF\ndamages",
			want: []string{"PARTIES\nJane Doe sues", "COUNT II\nnegligence occurred", "PRAYER FOR RELIEF\ndamages"},
		},
		{
			name: "empty sentences dropped",
			text: "\n\n1. \nBACKGROUND\n",
			want: []string{"1.", "BACKGROUND"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range splitSentences(tt.text, page) {
				got = append(got, s.text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitSections(t *testing.T) {
	text := "WHEREAS the seller owns land\nand wishes to sell it\nNOW THEREFORE the parties agree\nA. Price"
	var got []string
	for _, s := range splitSections(text) {
		got = append(got, text[s.start:s.end])
	}
	assert.Equal(t, []string{
		"WHEREAS the seller owns land\nand wishes to sell it",
		"NOW THEREFORE the parties agree",
		"A. Price",
	}, got)
}

func TestOverlapSentences(t *testing.T) {
	ss := []sentence{{text: "a", tokens: 5}, {text: "b", tokens: 3}, {text: "c", tokens: 4}}

	assert.Empty(t, overlapSentences(ss, 3))
	assert.Equal(t, []sentence{ss[2]}, overlapSentences(ss, 4))
	assert.Equal(t, ss[1:], overlapSentences(ss, 7))
	assert.Equal(t, ss, overlapSentences(ss, 12))
}
