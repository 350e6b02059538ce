package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haidar/ragchat/pkg/index"
)

// ErrSessionNotFound is returned when a session has no index in the cache or
// on disk.
var ErrSessionNotFound = errors.New("no index found for session")

// Index is the session store's view of a searchable index. *index.Index
// satisfies it; tests may substitute doubles.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
	Meta() index.Metadata
	Close() error
}

// BuildFunc builds a fresh index from a PDF into dir, replacing any prior
// index there.
type BuildFunc func(ctx context.Context, pdfPath, dir string) (Index, index.Metadata, error)

// OpenFunc loads a persisted index from dir. A missing index must surface as
// an error wrapping os.ErrNotExist.
type OpenFunc func(dir string) (Index, error)

// Config holds session store configuration
type Config struct {
	VectorsDir string
	Build      BuildFunc
	Open       OpenFunc
	Logger     zerolog.Logger
}

// Store manages per-session indexes and conversation histories
type Store struct {
	vectorsDir string
	build      BuildFunc
	open       OpenFunc
	logger     zerolog.Logger

	mu        sync.RWMutex
	indexes   map[string]Index
	metadata  map[string]index.Metadata
	histories map[string]*History

	locksMu      sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// New creates a new session store
func New(cfg Config) (*Store, error) {
	if cfg.VectorsDir == "" {
		return nil, errors.New("vectors directory is required")
	}
	if cfg.Build == nil || cfg.Open == nil {
		return nil, errors.New("build and open functions are required")
	}

	if err := os.MkdirAll(cfg.VectorsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create vectors directory: %w", err)
	}

	s := &Store{
		vectorsDir:   cfg.VectorsDir,
		build:        cfg.Build,
		open:         cfg.Open,
		logger:       cfg.Logger,
		indexes:      make(map[string]Index),
		metadata:     make(map[string]index.Metadata),
		histories:    make(map[string]*History),
		sessionLocks: make(map[string]*sync.Mutex),
	}

	s.logger.Info().Str("dir", cfg.VectorsDir).Msg("Session store initialized")
	return s, nil
}

// NewSessionKey generates a fresh session key
func NewSessionKey() string {
	u := uuid.New()
	return "session_" + strings.ReplaceAll(u.String(), "-", "")[:12]
}

// validateSessionKey rejects keys that are unsafe as directory names
func validateSessionKey(sessionKey string) error {
	if sessionKey == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.Contains(sessionKey, "..") {
		return fmt.Errorf("session key cannot contain '..'")
	}
	if strings.ContainsAny(sessionKey, "/\\") {
		return fmt.Errorf("session key cannot contain path separators")
	}
	if strings.Contains(sessionKey, "\x00") {
		return fmt.Errorf("session key cannot contain null bytes")
	}
	return nil
}

// sessionDir returns the durable storage directory for a session
func (s *Store) sessionDir(sessionKey string) string {
	return filepath.Join(s.vectorsDir, sessionKey)
}

// LockSession acquires the per-session mutex and returns the unlock
// function. Chat turns on the same key must run under this lock.
func (s *Store) LockSession(sessionKey string) func() {
	s.locksMu.Lock()
	lock, ok := s.sessionLocks[sessionKey]
	if !ok {
		lock = &sync.Mutex{}
		s.sessionLocks[sessionKey] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// BuildIndex builds and caches a fresh index for the session from the PDF at
// pdfPath. Any prior index for the key, cached or durable, is replaced.
func (s *Store) BuildIndex(ctx context.Context, pdfPath, sessionKey string) (index.Metadata, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return index.Metadata{}, err
	}

	// Drop the stale cache entry before the rebuild clears the directory
	s.mu.Lock()
	if old, ok := s.indexes[sessionKey]; ok {
		old.Close()
		delete(s.indexes, sessionKey)
		delete(s.metadata, sessionKey)
	}
	s.mu.Unlock()

	// Embedding runs without any store lock held
	ix, meta, err := s.build(ctx, pdfPath, s.sessionDir(sessionKey))
	if err != nil {
		return index.Metadata{}, err
	}

	s.mu.Lock()
	if racer, ok := s.indexes[sessionKey]; ok {
		racer.Close()
	}
	s.indexes[sessionKey] = ix
	s.metadata[sessionKey] = meta
	s.mu.Unlock()

	s.logger.Info().
		Str("session_key", sessionKey).
		Int("pages", meta.Pages).
		Int("chunks", meta.Chunks).
		Msg("Index created for session")

	return meta, nil
}

// GetIndex returns the session's index, loading it from durable storage on a
// cache miss. Returns ErrSessionNotFound when neither exists.
func (s *Store) GetIndex(sessionKey string) (Index, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ix, ok := s.indexes[sessionKey]
	s.mu.RUnlock()
	if ok {
		return ix, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have loaded it while we waited
	if ix, ok := s.indexes[sessionKey]; ok {
		return ix, nil
	}

	ix, err := s.open(s.sessionDir(sessionKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load index for session %s: %w", sessionKey, err)
	}

	s.indexes[sessionKey] = ix
	s.metadata[sessionKey] = ix.Meta()

	s.logger.Info().Str("session_key", sessionKey).Msg("Index loaded from disk")
	return ix, nil
}

// HasIndex reports whether the session has an index, cached or durable,
// without forcing a load.
func (s *Store) HasIndex(sessionKey string) bool {
	if validateSessionKey(sessionKey) != nil {
		return false
	}

	s.mu.RLock()
	_, cached := s.indexes[sessionKey]
	s.mu.RUnlock()
	if cached {
		return true
	}

	_, err := os.Stat(filepath.Join(s.sessionDir(sessionKey), index.DBFileName))
	return err == nil
}

// Metadata returns the session's index metadata
func (s *Store) Metadata(sessionKey string) (index.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metadata[sessionKey]
	return meta, ok
}

// Delete removes the session's index (cache and durable storage), metadata
// and history. Idempotent: deleting an unknown session is not an error.
func (s *Store) Delete(sessionKey string) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}

	s.mu.Lock()
	if ix, ok := s.indexes[sessionKey]; ok {
		ix.Close()
		delete(s.indexes, sessionKey)
	}
	delete(s.metadata, sessionKey)
	delete(s.histories, sessionKey)
	s.mu.Unlock()

	if err := os.RemoveAll(s.sessionDir(sessionKey)); err != nil {
		return fmt.Errorf("failed to delete session storage: %w", err)
	}

	s.locksMu.Lock()
	delete(s.sessionLocks, sessionKey)
	s.locksMu.Unlock()

	s.logger.Info().Str("session_key", sessionKey).Msg("Session deleted")
	return nil
}

// GetHistory returns the session's history, creating an empty one on first
// use. Never fails.
func (s *Store) GetHistory(sessionKey string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[sessionKey]
	if !ok {
		h = &History{}
		s.histories[sessionKey] = h
		s.logger.Debug().Str("session_key", sessionKey).Msg("History created")
	}
	return h
}

// ClearHistory resets the session's history to empty. A no-op for sessions
// that never had history.
func (s *Store) ClearHistory(sessionKey string) {
	s.mu.RLock()
	h, ok := s.histories[sessionKey]
	s.mu.RUnlock()
	if ok {
		h.Clear()
		s.logger.Info().Str("session_key", sessionKey).Msg("History cleared")
	}
}

// CountMessages returns the number of turns in the session's history, 0 for
// unknown sessions.
func (s *Store) CountMessages(sessionKey string) int {
	s.mu.RLock()
	h, ok := s.histories[sessionKey]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return h.Len()
}

// Exists reports whether history has been materialized for the session.
// Distinct from HasIndex: after a restart a session can have a durable index
// but no history yet.
func (s *Store) Exists(sessionKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.histories[sessionKey]
	return ok
}

// ActiveSessions returns the number of sessions with a cached index
func (s *Store) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.indexes)
}

// ListSessions lists session keys present in durable storage
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(s.vectorsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read vectors directory: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.vectorsDir, entry.Name(), index.DBFileName)); err != nil {
			continue
		}
		sessions = append(sessions, entry.Name())
	}
	return sessions, nil
}

// Close closes all cached indexes
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for key, ix := range s.indexes {
		if err := ix.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.indexes, key)
	}

	s.logger.Info().Msg("Session store closed")
	return firstErr
}
