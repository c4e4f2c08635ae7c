package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hubenschmidt/go-shelf"
	"github.com/hubenschmidt/go-shelf/config"
	"github.com/hubenschmidt/go-shelf/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := shelf.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open shelf")
	}

	log.Info().Msg("starting supervisor tree")
	runErr := app.Run(ctx)

	for _, name := range app.Unstopped() {
		log.Warn().Str("service", name).Msg("service failed to stop within timeout")
	}
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("close shelf")
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("supervisor tree")
	}
	log.Info().Msg("stopped gracefully")
}
