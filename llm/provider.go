// Package llm holds the remote embedding and text generation clients and the
// ordered fallback chains that walk them.
package llm

import (
	"context"
	"time"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Embedder turns text into a vector. Vectors from different embedders have
// different dimensionality and must never be compared.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

type ClientConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	EmbedModel string        `koanf:"embed_model"`
	ChatModel  string        `koanf:"chat_model"`
	Timeout    time.Duration `koanf:"timeout"`
}

func (c ClientConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
