package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haidar/ragchat/pkg/llm"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 2}}, nil
}

func (stubEmbedder) Dimension() int { return 2 }

type stubLLM struct {
	err error
}

func (s stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "ok", nil
}

func (s stubLLM) Provider() string { return "stub" }

func TestInstrumentEmbedder(t *testing.T) {
	m := New()
	e := m.InstrumentEmbedder(stubEmbedder{})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, 2, e.Dimension())

	_, err = e.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.EmbeddingDuration))
}

func TestInstrumentLLM(t *testing.T) {
	m := New()

	ok := m.InstrumentLLM(stubLLM{})
	_, err := ok.Complete(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "stub", ok.Provider())

	failing := m.InstrumentLLM(stubLLM{err: errors.New("boom")})
	_, err = failing.Complete(context.Background(), llm.Request{})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("stub", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("stub", "error")))
}
