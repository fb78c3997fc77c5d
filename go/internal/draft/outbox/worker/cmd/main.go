package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/config"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/store/postgres"
)

// Standalone consumer for draft-result tasks when the server runs with the
// asynq outbox backend.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 8,
		Queues:      map[string]int{cfg.Outbox.AsynqQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("draft result task failed")
		}),
	})

	mux := outbox.NewServeMux(outbox.NewTaskHandlers(postgres.NewResultStore(db)))
	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("start result worker")
	}
	log.Info().
		Str("queue", cfg.Outbox.AsynqQueue).
		Str("redis", cfg.Cache.RedisAddr).
		Msg("result worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down result worker")
	srv.Shutdown()
}
