package config

import "path/filepath"

// Config represents the main ragchat configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// LLM completion provider
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Retrieval
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// Upload constraints
	Upload UploadConfig `json:"upload" mapstructure:"upload"`

	// Janitor
	Janitor JanitorConfig `json:"janitor" mapstructure:"janitor"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	ShutdownTimeout    int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
}

// LLMConfig holds completion provider configuration
type LLMConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // ollama, openai
	Model     string `json:"model" mapstructure:"model"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"` // ollama only
	Dimension int    `json:"dimension" mapstructure:"dimension"`
}

// RetrievalConfig holds chunking and retrieval configuration
type RetrievalConfig struct {
	ChunkSize    int `json:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" mapstructure:"chunk_overlap"`
	TopK         int `json:"top_k" mapstructure:"top_k"`
	MaxSources   int `json:"max_sources" mapstructure:"max_sources"`
}

// UploadConfig holds upload constraints
type UploadConfig struct {
	MaxFileBytes int64 `json:"max_file_bytes" mapstructure:"max_file_bytes"`
}

// JanitorConfig holds stale-session cleanup configuration
type JanitorConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Schedule string `json:"schedule" mapstructure:"schedule"` // cron expression
	MaxAge   int    `json:"max_age" mapstructure:"max_age"`   // hours
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8050,
			RateLimitPerMinute: 100,
			ShutdownTimeout:    30,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Retrieval: RetrievalConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         4,
			MaxSources:   3,
		},
		Upload: UploadConfig{
			MaxFileBytes: 10 * 1024 * 1024,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "0 3 * * *",
			MaxAge:   7 * 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// VectorsDir returns the durable index storage directory
func (c *Config) VectorsDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// TempUploadDir returns the temporary upload directory
func (c *Config) TempUploadDir() string {
	return filepath.Join(c.DataDir, "temp_uploads")
}
