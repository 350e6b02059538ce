package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8050, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 1000, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 200, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.MaxSources)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxFileBytes)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
}

func TestConfigDirs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/ragchat"

	assert.Equal(t, filepath.Join("/data/ragchat", "vectors"), cfg.VectorsDir())
	assert.Equal(t, filepath.Join("/data/ragchat", "temp_uploads"), cfg.TempUploadDir())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		shouldErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad llm provider", func(c *Config) { c.LLM.Provider = "groq" }, true},
		{"bad embedding provider", func(c *Config) { c.Embedding.Provider = "hf" }, true},
		{"zero chunk size", func(c *Config) { c.Retrieval.ChunkSize = 0 }, true},
		{"overlap >= chunk size", func(c *Config) { c.Retrieval.ChunkOverlap = 1000 }, true},
		{"negative overlap", func(c *Config) { c.Retrieval.ChunkOverlap = -1 }, true},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }, true},
		{"zero max file size", func(c *Config) { c.Upload.MaxFileBytes = 0 }, true},
		{"anthropic provider ok", func(c *Config) { c.LLM.Provider = "anthropic" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist.json"))
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 8050, cfg.Server.Port)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ragchat.json")
	content := `{
		"server": {"port": 9000},
		"retrieval": {"chunk_size": 500, "chunk_overlap": 50},
		"data_dir": "` + dir + `"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := NewLoader(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 50, cfg.Retrieval.ChunkOverlap)
	// Untouched fields keep defaults
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, dir, cfg.DataDir)
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ragchat.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"server": {"port": -1}}`), 0600))

	_, err := NewLoader(configPath).Load()
	assert.Error(t, err)
}
