package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/core"
)

// EmbedChain tries each embedder in order until one returns a vector. The
// result is tagged with the embedder's name.
type EmbedChain struct {
	providers []Embedder
	log       zerolog.Logger
}

//nolint:gocritic // zerolog.Logger passed by value
func NewEmbedChain(log zerolog.Logger, providers ...Embedder) *EmbedChain {
	return &EmbedChain{providers: providers, log: log}
}

func (c *EmbedChain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Embed returns ErrEmbeddingUnavailable once every provider has failed.
func (c *EmbedChain) Embed(ctx context.Context, text string) (core.Embedding, error) {
	if len(c.providers) == 0 {
		return core.Embedding{}, core.ErrNoProviders
	}

	var errs []error
	for _, p := range c.providers {
		values, err := p.Embed(ctx, text)
		if err == nil && len(values) == 0 {
			err = errors.New("empty vector")
		}
		if err == nil {
			return core.Embedding{Source: p.Name(), Values: values}, nil
		}

		c.log.Warn().Err(err).Str("provider", p.Name()).Msg("embedding provider failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return core.Embedding{}, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, errors.Join(errs...))
}

// Generation is generated text and the provider that produced it.
type Generation struct {
	Text   string
	Source string
}

// GenerateChain tries each generator in order until one returns non-blank text.
type GenerateChain struct {
	providers []Generator
	log       zerolog.Logger
}

//nolint:gocritic // zerolog.Logger passed by value
func NewGenerateChain(log zerolog.Logger, providers ...Generator) *GenerateChain {
	return &GenerateChain{providers: providers, log: log}
}

func (c *GenerateChain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

func (c *GenerateChain) Generate(ctx context.Context, p Prompt) (Generation, error) {
	if len(c.providers) == 0 {
		return Generation{}, core.ErrNoProviders
	}

	var errs []error
	for _, g := range c.providers {
		text, err := g.Generate(ctx, p)
		text = strings.TrimSpace(text)
		if err == nil && text == "" {
			err = errors.New("empty response")
		}
		if err == nil {
			return Generation{Text: text, Source: g.Name()}, nil
		}

		c.log.Warn().Err(err).Str("provider", g.Name()).Msg("generation provider failed")
		errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Generation{}, fmt.Errorf("%w: %w", core.ErrProviderUnavailable, errors.Join(errs...))
}
