package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a fixed vector per known text
type fakeEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func testEntries() []Entry {
	return []Entry{
		{Content: "cats are mammals", Page: 1, Embedding: []float32{1, 0, 0}},
		{Content: "dogs are loyal", Page: 2, Embedding: []float32{0, 1, 0}},
		{Content: "fish live in water", Page: 3, Embedding: []float32{0, 0, 1}},
	}
}

func TestCreateAndSearch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session_test1")
	embedder := &fakeEmbedder{
		dim:     3,
		vectors: map[string][]float32{"about cats": {1, 0, 0}},
	}

	ix, err := Create(dir, 3, testEntries(), embedder)
	require.NoError(t, err)
	defer ix.Close()

	meta := ix.Meta()
	assert.Equal(t, 3, meta.Pages)
	assert.Equal(t, 3, meta.Chunks)
	assert.Equal(t, 3, meta.Dimension)

	results, err := ix.Search(context.Background(), "about cats", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cats are mammals", results[0].Content)
	assert.Equal(t, 1, results[0].Page)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestCreateReplacesExistingIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session_test2")
	embedder := &fakeEmbedder{dim: 3}

	ix, err := Create(dir, 3, testEntries(), embedder)
	require.NoError(t, err)
	ix.Close()

	replacement := []Entry{{Content: "only chunk", Page: 1, Embedding: []float32{1, 1, 1}}}
	ix, err = Create(dir, 1, replacement, embedder)
	require.NoError(t, err)
	defer ix.Close()

	assert.Equal(t, 1, ix.Meta().Chunks)
	assert.Equal(t, 1, ix.Meta().Pages)
}

func TestCreateRejectsEmptyEntries(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "s"), 0, nil, &fakeEmbedder{dim: 3})
	assert.Error(t, err)
}

func TestCreateRejectsMixedDimensions(t *testing.T) {
	entries := []Entry{
		{Content: "a", Page: 1, Embedding: []float32{1, 0}},
		{Content: "b", Page: 1, Embedding: []float32{1, 0, 0}},
	}
	_, err := Create(filepath.Join(t.TempDir(), "s"), 1, entries, &fakeEmbedder{dim: 2})
	assert.Error(t, err)
}

func TestOpenRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session_test3")
	embedder := &fakeEmbedder{
		dim:     3,
		vectors: map[string][]float32{"loyal dogs": {0, 1, 0}},
	}

	ix, err := Create(dir, 3, testEntries(), embedder)
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	reopened, err := Open(dir, embedder)
	require.NoError(t, err)
	defer reopened.Close()

	meta := reopened.Meta()
	assert.Equal(t, 3, meta.Pages)
	assert.Equal(t, 3, meta.Chunks)

	results, err := reopened.Search(context.Background(), "loyal dogs", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dogs are loyal", results[0].Content)
	assert.Equal(t, 2, results[0].Page)
}

func TestOpenMissingDir(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), &fakeEmbedder{dim: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
