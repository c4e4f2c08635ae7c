// Package shelf wires the book recommendation core: stores, cache, provider
// chains, the recommender, summarizers and the background coordinator.
//
// Example usage:
//
//	cfg, err := config.Load()
//	app, err := shelf.Open(ctx, cfg, logging.New(cfg.Log))
//	defer app.Close()
//	go app.Run(ctx)
//
//	recs, err := app.Service.Recommendations(ctx, userID)
//	if recs.Status == shelf.StatusInProgress {
//	    // poll again later
//	}
package shelf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/config"
	"github.com/hubenschmidt/go-shelf/coordinator"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/embedding"
	"github.com/hubenschmidt/go-shelf/llm"
	"github.com/hubenschmidt/go-shelf/logging"
	"github.com/hubenschmidt/go-shelf/monitor"
	"github.com/hubenschmidt/go-shelf/queue"
	"github.com/hubenschmidt/go-shelf/recommend"
	"github.com/hubenschmidt/go-shelf/service"
	"github.com/hubenschmidt/go-shelf/store"
	"github.com/hubenschmidt/go-shelf/summarize"
	"github.com/hubenschmidt/go-shelf/vector"
)

// Core type aliases
type (
	Book        = core.Book
	User        = core.User
	Interaction = core.Interaction
	Review      = core.Review
	Embedding   = core.Embedding
	ShelfStatus = core.Status
)

// Request status aliases
const (
	StatusReady      = coordinator.StatusReady
	StatusInProgress = coordinator.StatusInProgress
)

type (
	Config  = config.Config
	Service = service.Service
)

// App is a wired process: the request-path service plus the supervised
// background workers.
type App struct {
	Service     *service.Service
	Coordinator *coordinator.Coordinator
	Store       store.Store
	Registry    *prometheus.Registry

	sup     *suture.Supervisor
	closers []func() error
	log     zerolog.Logger
}

// Open builds every component from cfg. Run starts the workers.
//
//nolint:gocritic // zerolog.Logger passed by value
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	app := &App{log: log, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	var metrics monitor.Collector = monitor.NewNoOpCollector()
	if cfg.Metrics.Enabled {
		app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p, err := monitor.NewPrometheus(app.Registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		metrics = p
	}

	st, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.Store = st
	app.closers = append(app.closers, st.Close)

	rawCache, locks, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	app.closers = append(app.closers, rawCache.Close)
	c := cache.Instrument(rawCache, cfg.Cache.Backend, metrics, logging.Component(log, "cache"))

	q, err := queue.Open(ctx, cfg.Queue, log)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	app.closers = append(app.closers, q.Close)

	registry := llm.NewRegistry(cfg.Providers, metrics, logging.Component(log, "llm"))
	embedChain, err := registry.EmbedChain(cfg.Providers.EmbedOrder)
	if err != nil {
		return nil, err
	}
	summaryChain, err := registry.GenerateChain(cfg.Providers.GenerateOrder)
	if err != nil {
		return nil, err
	}
	bioChain, err := registry.GenerateChain(cfg.Providers.BioOrder)
	if err != nil {
		return nil, err
	}

	idx := vector.NewIndex()
	embeddings := embedding.New(embedChain, st, c,
		embedding.WithIndex(idx),
		embedding.WithTTL(cfg.Coordinator.Embedding.ResultTTL),
		embedding.WithLogger(logging.Component(log, "embedding")),
	)
	engine := recommend.NewEngine(cfg.Recommend, embeddings, idx, logging.Component(log, "recommend"))
	summarizer := summarize.New(st, summaryChain, bioChain,
		summarize.NewOpenLibrary(cfg.Authors.OpenLibraryURL, cfg.Authors.Timeout),
		logging.Component(log, "summarize"))

	app.Coordinator = coordinator.New(c, locks, q, cfg.Coordinator, metrics, logging.Component(log, "coordinator"))
	app.Service, err = service.New(service.Deps{
		Store:       st,
		Cache:       c,
		Coordinator: app.Coordinator,
		Engine:      engine,
		Embeddings:  embeddings,
		Summarizer:  summarizer,
		Index:       idx,
		Recommend:   cfg.Recommend,
		Log:         logging.Component(log, "service"),
	})
	if err != nil {
		return nil, err
	}
	q.SetHandler(app.Coordinator.Handle)

	app.sup = queue.NewSupervisor("shelf", cfg.Supervisor, logging.Component(log, "supervisor"))
	app.sup.Add(q)
	app.sup.Add(service.NewIndexService(app.Service, cfg.Recommend.IndexRefresh, log))
	if cfg.Metrics.Enabled {
		app.sup.Add(monitor.NewHTTPService(cfg.Metrics.Addr, app.Registry, logging.Component(log, "metrics")))
	}

	if cfg.Providers.Ollama.BaseURL != "" {
		checkOllama(ctx, cfg.Providers.Ollama, logging.Component(log, "llm"))
	}

	log.Info().
		Str("store", storeKind(cfg.Store.DSN)).
		Str("cache", cfg.Cache.Backend).
		Str("queue", cfg.Queue.Backend).
		Strs("embed_order", embedChain.Providers()).
		Strs("generate_order", summaryChain.Providers()).
		Msg("shelf wired")
	return app, nil
}

// Run supervises the workers until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	err := a.sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		a.log.Info().Msg("shelf stopped")
		return nil
	}
	return err
}

// Unstopped names the services that missed the shutdown timeout.
func (a *App) Unstopped() []string {
	report, err := a.sup.UnstoppedServiceReport()
	if err != nil {
		return nil
	}
	names := make([]string, len(report))
	for i, u := range report {
		names[i] = u.Name
	}
	return names
}

// Close releases the queue, cache and store in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

//nolint:gocritic // zerolog.Logger passed by value
func checkOllama(ctx context.Context, cfg llm.ClientConfig, log zerolog.Logger) {
	missing, err := llm.NewOllamaClientWithConfig(cfg).MissingModels(ctx)
	if err != nil {
		log.Warn().Err(err).Str("base_url", cfg.BaseURL).Msg("ollama unreachable")
		return
	}
	if len(missing) > 0 {
		log.Warn().Strs("models", missing).Msg("ollama models not installed")
	}
}

func storeKind(dsn string) string {
	switch {
	case dsn == "memory":
		return "memory"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}
