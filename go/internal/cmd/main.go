package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := setupApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up draft server")
	}

	if err := app.Run(ctx); err != nil {
		log.Error().Err(err).Msg("draft server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("draft server stopped")
}
