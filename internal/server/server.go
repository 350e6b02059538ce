// Package server exposes the document chat service over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haidar/ragchat/internal/metrics"
	"github.com/haidar/ragchat/pkg/embedding"
	"github.com/haidar/ragchat/pkg/responder"
	"github.com/haidar/ragchat/pkg/store"
)

// Chat generates answers for a session's prompts
type Chat interface {
	Respond(ctx context.Context, sessionKey, prompt string) (responder.Result, error)
}

// Options configures the HTTP server
type Options struct {
	Host               string
	Port               int
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
	MaxFileBytes       int64
	TempUploadDir      string
	EmbeddingModel     string
	LLMModel           string
}

// Server is the service's HTTP boundary
type Server struct {
	options  Options
	server   *http.Server
	store    *store.Store
	chat     Chat
	embedder embedding.Provider
	metrics  *metrics.Metrics
	limiter  *rateLimiter
	logger   zerolog.Logger

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlightReqs   sync.WaitGroup
}

// New creates an HTTP server
func New(options Options, sessions *store.Store, chat Chat, embedder embedding.Provider, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8050
	}
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 30 * time.Second
	}
	if options.MaxFileBytes == 0 {
		options.MaxFileBytes = 10 * 1024 * 1024
	}

	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat responder is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}

	return &Server{
		options:  options,
		store:    sessions,
		chat:     chat,
		embedder: embedder,
		metrics:  m,
		limiter:  newRateLimiter(options.RateLimitPerMinute),
		logger:   logger,
	}, nil
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}/info", s.handleSessionInfo)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/clear-history", s.handleClearHistory)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return withRequestLogging(s.logger, s.guard(mux))
}

// guard refuses work during shutdown and applies the rate limit
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		ip := clientIP(r)
		if !s.limiter.Allow(ip) {
			retryAfter := s.limiter.RetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start runs the server until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.limiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
