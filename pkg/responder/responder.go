// Package responder answers questions about an uploaded document using
// retrieval-augmented generation over the session's vector index.
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/haidar/ragchat/pkg/index"
	"github.com/haidar/ragchat/pkg/llm"
	"github.com/haidar/ragchat/pkg/store"
)

// GenerationError wraps failures of the retrieve-and-generate pipeline so
// callers can distinguish them from a missing session.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate response (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SessionStore is the slice of the session store the responder needs.
type SessionStore interface {
	GetIndex(sessionKey string) (store.Index, error)
	GetHistory(sessionKey string) *store.History
	LockSession(sessionKey string) func()
}

// Config holds responder tuning parameters
type Config struct {
	TopK        int
	MaxSources  int
	Temperature float64
	MaxTokens   int
}

// Result is a generated answer with its page sources
type Result struct {
	Answer  string
	Sources []string
}

// Responder runs the conversational retrieval pipeline for a session
type Responder struct {
	store  SessionStore
	llm    llm.Provider
	cfg    Config
	logger zerolog.Logger
}

// New creates a responder
func New(sessions SessionStore, provider llm.Provider, cfg Config, logger zerolog.Logger) *Responder {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 3
	}
	return &Responder{
		store:  sessions,
		llm:    provider,
		cfg:    cfg,
		logger: logger,
	}
}

// Respond answers a prompt against the session's indexed document. The
// session is locked for the duration so concurrent turns observe a
// consistent history. Returns store.ErrSessionNotFound when the session has
// no index.
func (r *Responder) Respond(ctx context.Context, sessionKey, prompt string) (Result, error) {
	unlock := r.store.LockSession(sessionKey)
	defer unlock()

	ix, err := r.store.GetIndex(sessionKey)
	if err != nil {
		return Result{}, err
	}

	history := r.store.GetHistory(sessionKey)
	turns := history.Messages()

	query := r.reformulate(ctx, prompt, turns)

	results, err := ix.Search(ctx, query, r.cfg.TopK)
	if err != nil {
		return Result{}, &GenerationError{Stage: "retrieval", Err: err}
	}

	answer, err := r.generate(ctx, prompt, turns, results)
	if err != nil {
		return Result{}, &GenerationError{Stage: "completion", Err: err}
	}

	history.Append("user", prompt)
	history.Append("assistant", answer)

	r.logger.Info().
		Str("session_key", sessionKey).
		Int("retrieved", len(results)).
		Msg("Generated response")

	return Result{Answer: answer, Sources: r.sources(results)}, nil
}

// reformulate rewrites a follow-up question into a standalone one using the
// conversation so far. With no history the prompt is already standalone, and
// a reformulation failure falls back to the original prompt rather than
// failing the turn.
func (r *Responder) reformulate(ctx context.Context, prompt string, turns []store.Message) string {
	if len(turns) == 0 {
		return prompt
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	standalone, err := r.llm.Complete(ctx, llm.Request{
		System:      contextualizePrompt,
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("Query reformulation failed, using original prompt")
		return prompt
	}

	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return prompt
	}
	return standalone
}

func (r *Responder) generate(ctx context.Context, prompt string, turns []store.Message, results []index.Result) (string, error) {
	var contextBlock strings.Builder
	for i, res := range results {
		if i > 0 {
			contextBlock.WriteString("\n\n")
		}
		contextBlock.WriteString(res.Content)
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	return r.llm.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(answerPrompt, contextBlock.String()),
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
}

// sources labels up to MaxSources retrieved chunks by page, deduplicated in
// retrieval order.
func (r *Responder) sources(results []index.Result) []string {
	sources := make([]string, 0, r.cfg.MaxSources)
	seen := make(map[int]bool)
	for _, res := range results {
		if len(sources) == r.cfg.MaxSources {
			break
		}
		if seen[res.Page] {
			continue
		}
		seen[res.Page] = true
		sources = append(sources, fmt.Sprintf("Page %d", res.Page))
	}
	return sources
}
