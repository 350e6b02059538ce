package document

import "strings"

// Chunk is a bounded span of document text plus its page of origin
type Chunk struct {
	Content string
	Page    int
}

// Splitter splits page text into overlapping chunks. It prefers paragraph
// boundaries, then line boundaries, then word boundaries, then falls back to
// arbitrary character positions, never exceeding ChunkSize except when no
// smaller boundary exists.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// separators in priority order; the empty separator means per-character
var separators = []string{"\n\n", "\n", " ", ""}

// NewSplitter creates a splitter with the given target and overlap lengths
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

// Split splits every page into chunks. Chunks never span pages, so each
// chunk keeps an unambiguous page number.
func (s *Splitter) Split(pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, piece := range s.splitText(page.Text, separators) {
			trimmed := strings.TrimSpace(piece)
			if trimmed == "" {
				continue
			}
			chunks = append(chunks, Chunk{Content: trimmed, Page: page.Number})
		}
	}
	return chunks
}

// splitText recursively splits text by the first usable separator and merges
// the pieces back into chunks of at most ChunkSize with ChunkOverlap carry.
func (s *Splitter) splitText(text string, seps []string) []string {
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	sep := seps[len(seps)-1]
	var next []string
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			next = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for start := 0; start < len(text); start += s.ChunkSize {
			end := start + s.ChunkSize
			if end > len(text) {
				end = len(text)
			}
			pieces = append(pieces, text[start:end])
		}
		return pieces
	}

	for _, part := range strings.Split(text, sep) {
		if len(part) > s.ChunkSize {
			pieces = append(pieces, s.splitText(part, next)...)
		} else {
			pieces = append(pieces, part)
		}
	}

	return s.merge(pieces, sep)
}

// merge greedily joins pieces into chunks of at most ChunkSize, keeping a
// tail of up to ChunkOverlap characters between consecutive chunks.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var out []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.Join(current, sep)
		if strings.TrimSpace(joined) != "" {
			out = append(out, joined)
		}

		// Retain trailing pieces for overlap
		for currentLen > s.ChunkOverlap && len(current) > 0 {
			currentLen -= len(current[0]) + len(sep)
			current = current[1:]
		}
	}

	for _, piece := range pieces {
		pieceLen := len(piece)
		if currentLen+pieceLen+len(sep) > s.ChunkSize && currentLen > 0 {
			flush()
		}
		current = append(current, piece)
		currentLen += pieceLen + len(sep)
	}

	if len(current) > 0 {
		joined := strings.Join(current, sep)
		if strings.TrimSpace(joined) != "" {
			out = append(out, joined)
		}
	}

	return out
}
