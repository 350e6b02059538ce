package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	// Upload metrics
	UploadsTotal   *prometheus.CounterVec
	UploadDuration prometheus.Histogram
	PagesIndexed   prometheus.Counter
	ChunksIndexed  prometheus.Counter

	// Chat metrics
	ChatRequestsTotal *prometheus.CounterVec
	ChatDuration      prometheus.Histogram

	// Provider metrics
	EmbeddingDuration prometheus.Histogram
	LLMCallsTotal     *prometheus.CounterVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsDeleted prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragchat_uploads_total",
				Help: "Total number of document uploads",
			},
			[]string{"status"},
		),
		UploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragchat_upload_duration_seconds",
				Help:    "Duration of document upload and indexing in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		PagesIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragchat_pages_indexed_total",
				Help: "Total number of document pages indexed",
			},
		),
		ChunksIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragchat_chunks_indexed_total",
				Help: "Total number of chunks indexed",
			},
		),

		ChatRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragchat_chat_requests_total",
				Help: "Total number of chat requests",
			},
			[]string{"status"},
		),
		ChatDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragchat_chat_duration_seconds",
				Help:    "Duration of chat request handling in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		EmbeddingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragchat_embedding_duration_seconds",
				Help:    "Duration of embedding calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		LLMCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragchat_llm_calls_total",
				Help: "Total number of LLM completion calls",
			},
			[]string{"provider", "status"},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragchat_sessions_active",
				Help: "Number of sessions with a cached index",
			},
		),
		SessionsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragchat_sessions_deleted_total",
				Help: "Total number of deleted sessions",
			},
		),
	}

	registry.MustRegister(
		m.UploadsTotal,
		m.UploadDuration,
		m.PagesIndexed,
		m.ChunksIndexed,
		m.ChatRequestsTotal,
		m.ChatDuration,
		m.EmbeddingDuration,
		m.LLMCallsTotal,
		m.SessionsActive,
		m.SessionsDeleted,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
