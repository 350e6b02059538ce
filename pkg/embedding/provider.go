// Package embedding provides vector embedding providers used to index and
// retrieve document chunks.
package embedding

import (
	"context"
	"fmt"
)

// Provider generates vector embeddings from text
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config selects and configures an embedding provider
type Config struct {
	Provider  string // "openai" or "ollama"
	Model     string
	APIKey    string // openai only
	BaseURL   string // ollama only
	Dimension int    // optional override
}

// NewProvider creates an embedding provider from config
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		p := NewOpenAIProvider(cfg.APIKey, cfg.Model)
		if cfg.Dimension > 0 {
			p.dimension = cfg.Dimension
		}
		return p, nil
	case "ollama":
		p := NewOllamaProvider(cfg.BaseURL, cfg.Model)
		if cfg.Dimension > 0 {
			p.dimension = cfg.Dimension
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
