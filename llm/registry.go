package llm

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/monitor"
)

type Config struct {
	OpenAI        ClientConfig `koanf:"openai"`
	Gemini        ClientConfig `koanf:"gemini"`
	Ollama        ClientConfig `koanf:"ollama"`
	Anthropic     ClientConfig `koanf:"anthropic"`
	Guard         GuardConfig  `koanf:"guard"`
	EmbedOrder    []string     `koanf:"embed_order"`
	GenerateOrder []string     `koanf:"generate_order"`
	BioOrder      []string     `koanf:"bio_order"`
}

func DefaultConfig() Config {
	return Config{
		Guard:         DefaultGuardConfig(),
		EmbedOrder:    []string{ProviderOpenAI, ProviderGemini},
		GenerateOrder: []string{ProviderGemini, ProviderOpenAI},
		BioOrder:      []string{ProviderOpenAI, ProviderGemini},
	}
}

var embedCapable = []string{ProviderOpenAI, ProviderGemini, ProviderOllama}

var generateCapable = []string{ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderAnthropic}

//nolint:gocritic // Config passed by value
func (c Config) Validate() error {
	if len(c.EmbedOrder) == 0 {
		return fmt.Errorf("%w: providers.embed_order is empty", core.ErrInvalidConfig)
	}
	if len(c.GenerateOrder) == 0 {
		return fmt.Errorf("%w: providers.generate_order is empty", core.ErrInvalidConfig)
	}
	for _, name := range c.EmbedOrder {
		if !slices.Contains(embedCapable, name) {
			return fmt.Errorf("%w: %q cannot embed", core.ErrInvalidConfig, name)
		}
	}
	for _, name := range slices.Concat(c.GenerateOrder, c.BioOrder) {
		if !slices.Contains(generateCapable, name) {
			return fmt.Errorf("%w: unknown generator %q", core.ErrInvalidConfig, name)
		}
	}
	return nil
}

// Registry holds one guarded client per provider and operation and builds
// chains from configured orders.
type Registry struct {
	embedders  map[string]Embedder
	generators map[string]Generator
	log        zerolog.Logger
}

//nolint:gocritic // Config passed by value
func NewRegistry(cfg Config, metrics monitor.Collector, log zerolog.Logger) *Registry {
	openai := NewOpenAIClientWithConfig(cfg.OpenAI)
	gemini := NewGeminiClientWithConfig(cfg.Gemini)
	ollama := NewOllamaClientWithConfig(cfg.Ollama)
	anthropic := NewAnthropicClientWithConfig(cfg.Anthropic)

	r := &Registry{
		embedders:  make(map[string]Embedder),
		generators: make(map[string]Generator),
		log:        log,
	}
	for _, e := range []Embedder{openai, gemini, ollama} {
		r.embedders[e.Name()] = GuardEmbedder(e, cfg.Guard, metrics, log)
	}
	for _, g := range []Generator{openai, gemini, ollama, anthropic} {
		r.generators[g.Name()] = GuardGenerator(g, cfg.Guard, metrics, log)
	}
	return r
}

func (r *Registry) EmbedChain(order []string) (*EmbedChain, error) {
	providers := make([]Embedder, 0, len(order))
	for _, name := range order {
		e, ok := r.embedders[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown embedder %q", core.ErrInvalidConfig, name)
		}
		providers = append(providers, e)
	}
	if len(providers) == 0 {
		return nil, core.ErrNoProviders
	}
	return NewEmbedChain(r.log, providers...), nil
}

func (r *Registry) GenerateChain(order []string) (*GenerateChain, error) {
	providers := make([]Generator, 0, len(order))
	for _, name := range order {
		g, ok := r.generators[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown generator %q", core.ErrInvalidConfig, name)
		}
		providers = append(providers, g)
	}
	if len(providers) == 0 {
		return nil, core.ErrNoProviders
	}
	return NewGenerateChain(r.log, providers...), nil
}
