package index

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/haidar/ragchat/pkg/document"
	"github.com/haidar/ragchat/pkg/embedding"
)

// Builder turns a PDF into a persisted, searchable index
type Builder struct {
	embedder embedding.Provider
	splitter *document.Splitter
	logger   zerolog.Logger
}

// NewBuilder creates a new index builder
func NewBuilder(embedder embedding.Provider, splitter *document.Splitter, logger zerolog.Logger) *Builder {
	return &Builder{
		embedder: embedder,
		splitter: splitter,
		logger:   logger,
	}
}

// Build loads the PDF at pdfPath, chunks it, embeds every chunk and writes a
// fresh index into dir, replacing any prior one. Returns the open index and
// its metadata.
func (b *Builder) Build(ctx context.Context, pdfPath, dir string) (*Index, Metadata, error) {
	start := time.Now()

	pages, err := document.Load(pdfPath)
	if err != nil {
		return nil, Metadata{}, err
	}

	chunks := b.splitter.Split(pages)
	if len(chunks) == 0 {
		return nil, Metadata{}, document.ErrEmptyDocument
	}

	b.logger.Info().
		Str("path", pdfPath).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Msg("Embedding document chunks")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to embed chunks: %w", err)
	}

	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{
			Content:   c.Content,
			Page:      c.Page,
			Embedding: vectors[i],
		}
	}

	ix, err := Create(dir, len(pages), entries, b.embedder)
	if err != nil {
		return nil, Metadata{}, err
	}

	b.logger.Info().
		Str("dir", dir).
		Int("chunks", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Index built")

	return ix, ix.Meta(), nil
}
