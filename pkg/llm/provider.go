// Package llm provides completion providers for hosted language-model APIs.
package llm

import (
	"context"
	"fmt"
)

// Message represents a conversation turn sent to the model
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request contains the parameters for a completion call
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider is an interface for LLM completion APIs
type Provider interface {
	// Complete generates text for a structured prompt
	Complete(ctx context.Context, request Request) (string, error)

	// Provider returns the provider name
	Provider() string
}

// Config selects and configures a completion provider
type Config struct {
	Provider    string // "openai" or "anthropic"
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// NewProvider creates a completion provider from config
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
