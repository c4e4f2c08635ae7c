package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/monitor"
)

type stubEmbedder struct {
	name  string
	vec   []float64
	err   error
	calls int
}

func (s *stubEmbedder) Name() string { return s.name }

func (s *stubEmbedder) Embed(context.Context, string) ([]float64, error) {
	s.calls++
	return s.vec, s.err
}

type stubGenerator struct {
	name string
	text string
	err  error
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Generate(context.Context, Prompt) (string, error) {
	return s.text, s.err
}

func TestEmbedChain_FallsBackToSecondary(t *testing.T) {
	primary := &stubEmbedder{name: "primary", err: errors.New("quota exceeded")}
	secondary := &stubEmbedder{name: "secondary", vec: []float64{0.1, 0.2, 0.3}}
	chain := NewEmbedChain(zerolog.Nop(), primary, secondary)

	emb, err := chain.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "secondary", emb.Source)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, emb.Values)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, []string{"primary", "secondary"}, chain.Providers())
}

func TestEmbedChain_PrimaryWinsWithoutCallingSecondary(t *testing.T) {
	primary := &stubEmbedder{name: "primary", vec: []float64{1}}
	secondary := &stubEmbedder{name: "secondary", vec: []float64{2}}

	emb, err := NewEmbedChain(zerolog.Nop(), primary, secondary).Embed(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "primary", emb.Source)
	assert.Zero(t, secondary.calls)
}

func TestEmbedChain_AllFail(t *testing.T) {
	chain := NewEmbedChain(zerolog.Nop(),
		&stubEmbedder{name: "a", err: errors.New("down")},
		&stubEmbedder{name: "b"},
	)
	_, err := chain.Embed(context.Background(), "t")
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)

	_, err = NewEmbedChain(zerolog.Nop()).Embed(context.Background(), "t")
	assert.ErrorIs(t, err, core.ErrNoProviders)
}

func TestGenerateChain(t *testing.T) {
	chain := NewGenerateChain(zerolog.Nop(),
		&stubGenerator{name: "gemini", text: "   "},
		&stubGenerator{name: "openai", text: " summary "},
	)
	gen, err := chain.Generate(context.Background(), Prompt{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, Generation{Text: "summary", Source: "openai"}, gen)

	_, err = NewGenerateChain(zerolog.Nop(), &stubGenerator{name: "a", err: errors.New("x")}).
		Generate(context.Background(), Prompt{})
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	metrics := monitor.NewInMemoryCollector()
	inner := &stubEmbedder{name: "openai", err: errors.New("boom")}
	cfg := GuardConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute}
	e := GuardEmbedder(inner, cfg, metrics, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := e.Embed(context.Background(), "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrProviderUnavailable)
	}

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the provider")
	assert.Equal(t, 3, metrics.Count("provider:openai:embed:error"))
	assert.Equal(t, "openai", e.Name())
}

func TestGuard_RateLimitHonorsContext(t *testing.T) {
	inner := &stubGenerator{name: "gemini", text: "ok"}
	g := GuardGenerator(inner, GuardConfig{RatePerSecond: 0.001, Burst: 1}, nil, zerolog.Nop())

	_, err := g.Generate(context.Background(), Prompt{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, Prompt{})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	r := NewRegistry(cfg, nil, zerolog.Nop())

	ec, err := r.EmbedChain(cfg.EmbedOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderOpenAI, ProviderGemini}, ec.Providers())

	gc, err := r.GenerateChain(cfg.GenerateOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderGemini, ProviderOpenAI}, gc.Providers())

	_, err = r.EmbedChain([]string{ProviderAnthropic})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	bad := cfg
	bad.EmbedOrder = []string{ProviderAnthropic}
	assert.ErrorIs(t, bad.Validate(), core.ErrInvalidConfig)

	// no keys configured: the chain reports the embedding as unavailable
	_, err = ec.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}
