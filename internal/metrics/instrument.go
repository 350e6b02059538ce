package metrics

import (
	"context"
	"time"

	"github.com/haidar/ragchat/pkg/embedding"
	"github.com/haidar/ragchat/pkg/llm"
)

// instrumentedEmbedder records embedding call latency
type instrumentedEmbedder struct {
	next    embedding.Provider
	metrics *Metrics
}

// InstrumentEmbedder wraps an embedding provider with latency metrics
func (m *Metrics) InstrumentEmbedder(next embedding.Provider) embedding.Provider {
	return &instrumentedEmbedder{next: next, metrics: m}
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.next.Embed(ctx, text)
	e.metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	return vec, err
}

func (e *instrumentedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := e.next.EmbedBatch(ctx, texts)
	e.metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	return vecs, err
}

func (e *instrumentedEmbedder) Dimension() int {
	return e.next.Dimension()
}

// instrumentedLLM counts completion calls per provider and outcome
type instrumentedLLM struct {
	next    llm.Provider
	metrics *Metrics
}

// InstrumentLLM wraps a completion provider with call metrics
func (m *Metrics) InstrumentLLM(next llm.Provider) llm.Provider {
	return &instrumentedLLM{next: next, metrics: m}
}

func (l *instrumentedLLM) Complete(ctx context.Context, request llm.Request) (string, error) {
	text, err := l.next.Complete(ctx, request)
	status := "success"
	if err != nil {
		status = "error"
	}
	l.metrics.LLMCallsTotal.WithLabelValues(l.next.Provider(), status).Inc()
	return text, err
}

func (l *instrumentedLLM) Provider() string {
	return l.next.Provider()
}
