package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultMaxSessionAge is how long an untouched session's durable index is
// kept before the janitor prunes it.
const DefaultMaxSessionAge = 7 * 24 * time.Hour

// Janitor prunes stale session indexes and leftover temp uploads on a cron
// schedule. Cleanup is best-effort: failures are logged, never escalated.
type Janitor struct {
	store    *Store
	tempDir  string
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewJanitor creates a janitor for the given store
func NewJanitor(store *Store, tempDir string, maxAge time.Duration, schedule string, logger zerolog.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = DefaultMaxSessionAge
	}
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	return &Janitor{
		store:    store,
		tempDir:  tempDir,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the cleanup job
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, j.Run); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c

	j.logger.Info().
		Str("schedule", j.schedule).
		Dur("max_age", j.maxAge).
		Msg("Janitor started")
	return nil
}

// Stop stops the scheduled job
func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Run performs one cleanup pass
func (j *Janitor) Run() {
	j.pruneSessions()
	j.pruneTempFiles()
}

func (j *Janitor) pruneSessions() {
	sessions, err := j.store.ListSessions()
	if err != nil {
		j.logger.Warn().Err(err).Msg("Janitor failed to list sessions")
		return
	}

	cutoff := time.Now().Add(-j.maxAge)
	pruned := 0

	for _, key := range sessions {
		info, err := os.Stat(j.store.sessionDir(key))
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := j.store.Delete(key); err != nil {
			j.logger.Warn().Err(err).Str("session_key", key).Msg("Janitor failed to delete session")
			continue
		}
		pruned++
	}

	if pruned > 0 {
		j.logger.Info().Int("pruned", pruned).Msg("Stale sessions pruned")
	}
}

func (j *Janitor) pruneTempFiles() {
	if j.tempDir == "" {
		return
	}

	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-j.maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.tempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn().Err(err).Str("file", path).Msg("Janitor failed to remove temp file")
		}
	}
}
