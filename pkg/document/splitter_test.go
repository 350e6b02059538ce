package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)

	chunks := s.Split([]Page{{Number: 1, Text: "hello world"}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].Page)
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(100, 0)

	para1 := strings.Repeat("a", 60)
	para2 := strings.Repeat("b", 60)
	text := para1 + "\n\n" + para2

	chunks := s.Split([]Page{{Number: 1, Text: text}})

	require.Len(t, chunks, 2)
	assert.Equal(t, para1, chunks[0].Content)
	assert.Equal(t, para2, chunks[1].Content)
}

func TestSplitFallsBackToWords(t *testing.T) {
	s := NewSplitter(50, 0)

	// One long line with no paragraph or line breaks
	words := make([]string, 30)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := s.Split([]Page{{Number: 2, Text: text}})

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 50)
		assert.Equal(t, 2, c.Page)
	}
}

func TestSplitUnbreakableTextByCharacters(t *testing.T) {
	s := NewSplitter(40, 0)

	text := strings.Repeat("x", 100)
	chunks := s.Split([]Page{{Number: 1, Text: text}})

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 40), chunks[0].Content)
	assert.Equal(t, strings.Repeat("x", 40), chunks[1].Content)
	assert.Equal(t, strings.Repeat("x", 20), chunks[2].Content)
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := NewSplitter(50, 25)

	lines := []string{
		strings.Repeat("a", 20),
		strings.Repeat("b", 20),
		strings.Repeat("c", 20),
		strings.Repeat("d", 20),
	}
	text := strings.Join(lines, "\n")

	chunks := s.Split([]Page{{Number: 1, Text: text}})
	require.Greater(t, len(chunks), 1)

	// Second chunk starts with overlap from the first
	assert.Contains(t, chunks[1].Content, lines[1])
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter(80, 16)
	pages := []Page{
		{Number: 1, Text: strings.Repeat("alpha beta gamma delta. ", 20)},
		{Number: 2, Text: strings.Repeat("epsilon zeta eta theta. ", 20)},
	}

	first := s.Split(pages)
	second := s.Split(pages)

	assert.Equal(t, first, second)
}

func TestSplitChunksNeverSpanPages(t *testing.T) {
	s := NewSplitter(1000, 200)
	pages := []Page{
		{Number: 1, Text: "first page content"},
		{Number: 2, Text: "second page content"},
	}

	chunks := s.Split(pages)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[1].Page)
}

func TestNewSplitterSanitizesArgs(t *testing.T) {
	s := NewSplitter(0, -5)
	assert.Equal(t, 1000, s.ChunkSize)
	assert.Equal(t, 200, s.ChunkOverlap)

	s = NewSplitter(100, 100)
	assert.Equal(t, 20, s.ChunkOverlap)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/file.pdf")
	assert.Error(t, err)
}
