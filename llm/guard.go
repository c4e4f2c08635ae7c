package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/monitor"
)

// GuardConfig bounds how hard a single provider is hit. A zero
// RatePerSecond disables rate limiting.
type GuardConfig struct {
	RatePerSecond       float64       `koanf:"rate_per_second"`
	Burst               int           `koanf:"burst"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	MinRequests         uint32        `koanf:"min_requests"`
	FailureRatio        float64       `koanf:"failure_ratio"`
	Interval            time.Duration `koanf:"interval"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RatePerSecond:       5,
		Burst:               5,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
		Interval:            time.Minute,
		OpenTimeout:         2 * time.Minute,
	}
}

// Guard applies a rate limiter and a circuit breaker to one provider
// operation. An open breaker surfaces as ErrProviderUnavailable so chains
// move on to the next provider without waiting on a dead service.
type Guard struct {
	name    string
	op      string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	metrics monitor.Collector
	log     zerolog.Logger
}

//nolint:gocritic // zerolog.Logger passed by value
func NewGuard(name, op string, cfg GuardConfig, metrics monitor.Collector, log zerolog.Logger) *Guard {
	g := &Guard{
		name:    name,
		op:      op,
		metrics: monitor.OrNoOp(metrics),
		log:     log.With().Str("provider", name).Str("op", op).Logger(),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name + "." + op,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.MinRequests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

func guarded[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%s rate limit wait: %w", g.name, err)
		}
	}

	start := time.Now()
	out, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	g.metrics.ProviderCall(g.name, g.op, err, time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w: %w", g.name, core.ErrProviderUnavailable, err)
		}
		return zero, err
	}
	return out.(T), nil
}

type guardedEmbedder struct {
	inner Embedder
	guard *Guard
}

// GuardEmbedder wraps e with its own limiter and breaker.
//
//nolint:gocritic // zerolog.Logger passed by value
func GuardEmbedder(e Embedder, cfg GuardConfig, metrics monitor.Collector, log zerolog.Logger) Embedder {
	return &guardedEmbedder{inner: e, guard: NewGuard(e.Name(), "embed", cfg, metrics, log)}
}

func (g *guardedEmbedder) Name() string { return g.inner.Name() }

func (g *guardedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return guarded(ctx, g.guard, func(ctx context.Context) ([]float64, error) {
		return g.inner.Embed(ctx, text)
	})
}

type guardedGenerator struct {
	inner Generator
	guard *Guard
}

// GuardGenerator wraps gen with its own limiter and breaker.
//
//nolint:gocritic // zerolog.Logger passed by value
func GuardGenerator(gen Generator, cfg GuardConfig, metrics monitor.Collector, log zerolog.Logger) Generator {
	return &guardedGenerator{inner: gen, guard: NewGuard(gen.Name(), "generate", cfg, metrics, log)}
}

func (g *guardedGenerator) Name() string { return g.inner.Name() }

func (g *guardedGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	return guarded(ctx, g.guard, func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, p)
	})
}
