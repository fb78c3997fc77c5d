package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/partdraft/go/internal/config"
	"github.com/mcdev12/partdraft/go/internal/draft/adminrpc"
	"github.com/mcdev12/partdraft/go/internal/draft/broadcast"
	"github.com/mcdev12/partdraft/go/internal/draft/gateway"
	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/preload"
	"github.com/mcdev12/partdraft/go/internal/draft/registry"
	"github.com/mcdev12/partdraft/go/internal/models"
	"github.com/mcdev12/partdraft/go/internal/store/postgres"
)

// App owns every long-lived component of the draft server.
type App struct {
	cfg config.Config

	pool  *pgxpool.Pool
	db    *sql.DB
	redis *redis.Client
	nc    *nats.Conn

	preloader   *preload.Preloader
	worker      *outbox.Worker
	asynqClient *asynq.Client
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	registry    *registry.Registry
	conns       *gateway.ConnectionManager
	relay       *gateway.Relay
	listener    *postgres.RosterListener
	server      *http.Server
}

func setupApp(ctx context.Context, cfg config.Config) (*App, error) {
	// Wire up dependency injection chain
	// Database → Stores → Preload/Outbox → Registry → Gateway → HTTP
	app := &App{cfg: cfg}
	clock := clockwork.NewRealClock()

	pool, db, err := setupDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.pool, app.db = pool, db

	if cfg.Cache.Backend == "redis" || cfg.Outbox.Backend == "asynq" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	// Preload
	app.preloader = preload.NewPreloader(
		postgres.NewCatalogStore(pool),
		app.caches(clock),
		clock,
		preload.Config{
			LoadTimeout:   cfg.Cache.LoadTimeout,
			MaxParallel:   cfg.Cache.MaxParallel,
			SweepInterval: cfg.Cache.SweepInterval,
		},
	)

	// Outbox
	results := postgres.NewResultStore(db)
	var store outbox.ResultStore = results
	if cfg.Outbox.Backend == "asynq" {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB}
		app.asynqClient = asynq.NewClient(redisOpt)
		store = outbox.NewAsynqStore(app.asynqClient, cfg.Outbox.AsynqQueue, cfg.Outbox.MaxRetries)
		app.asynqServer = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 4,
			Queues:      map[string]int{cfg.Outbox.AsynqQueue: 1},
		})
		app.asynqMux = outbox.NewServeMux(outbox.NewTaskHandlers(results))
	}
	app.worker = outbox.NewWorker(store, outbox.Config{
		QueueSize:  cfg.Outbox.QueueSize,
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
		RetryDelay: cfg.Outbox.RetryDelay,
	}, clock, &outbox.CounterMetrics{})

	// Gateway and rooms. The registry broadcasts through the connection
	// manager, optionally fanned out over NATS.
	connCfg := gateway.DefaultConnectionConfig()
	connCfg.AllowForceStart = cfg.HTTP.AllowForceStart
	app.conns = gateway.NewConnectionManager(connCfg)

	var transport broadcast.Transport = app.conns
	if cfg.NATS.Enabled {
		origin := nodeID()
		jsCfg := gateway.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.StreamName
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		nc, js, err := gateway.ConnectJetStream(ctx, jsCfg)
		if err != nil {
			app.close()
			return nil, err
		}
		app.nc = nc
		transport = gateway.NewNATSTransport(app.conns, js, jsCfg.SubjectPrefix, origin)
		app.relay = gateway.NewRelay(js, app.conns, jsCfg, origin)
	}

	app.registry = registry.New(app.preloader, roomConfig(cfg.Room), registry.Deps{
		Clock:       clock,
		Transport:   transport,
		Sink:        app.worker,
		Results:     results,
		LoadTimeout: cfg.Cache.LoadTimeout,
	})
	app.conns.SetRooms(app.registry)

	if cfg.ListenRoster {
		listenerCfg := postgres.DefaultListenerConfig()
		listenerCfg.DatabaseURL = cfg.Database.DSN()
		app.listener, err = postgres.NewRosterListener(app.registry, listenerCfg)
		if err != nil {
			app.close()
			return nil, err
		}
	}

	router := gateway.NewRouter(
		gateway.NewWebSocketHandler(app.conns),
		gateway.NewStateHandler(app.registry, app.conns, app.worker),
	)
	app.server = setupServer(cfg.HTTP, router, adminrpc.NewService(app.registry, app.conns, app.worker))
	return app, nil
}

func (a *App) caches(clock clockwork.Clock) preload.Caches {
	if a.cfg.Cache.Backend != "redis" {
		return preload.NewMemoryCaches(clock, a.cfg.Cache.TTL)
	}
	return preload.Caches{
		Items:      preload.NewRedisCache[[]models.Item](a.redis, "partdraft", a.cfg.Cache.TTL),
		Roster:     preload.NewRedisCache[[]models.Ticket](a.redis, "partdraft", a.cfg.Cache.TTL),
		Priorities: preload.NewRedisCache[[]models.PriorityEntry](a.redis, "partdraft", a.cfg.Cache.TTL),
	}
}

// Run serves until ctx is cancelled, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	// the worker outlives ctx so Stop can drain it after the rooms close
	if err := a.worker.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if a.asynqServer != nil {
		if err := a.asynqServer.Start(a.asynqMux); err != nil {
			return fmt.Errorf("failed to start asynq server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.conns.Start(gctx)
		return nil
	})
	g.Go(func() error {
		a.preloader.RunSweeper(gctx)
		return nil
	})
	if a.relay != nil {
		g.Go(func() error { return a.relay.Start(gctx) })
	}
	if a.listener != nil {
		g.Go(func() error { return a.listener.Start(gctx) })
	}
	g.Go(func() error {
		log.Info().Str("addr", a.server.Addr).Msg("HTTP server starting")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	log.Info().Msg("shutting down draft server")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	// closing rooms cancels their timers before the outbox drains
	if err := a.registry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("registry shutdown: %w", err))
	}
	if err := a.worker.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("outbox shutdown: %w", err))
	}
	if a.asynqServer != nil {
		a.asynqServer.Shutdown()
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("NATS drain: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) close() {
	if a.asynqClient != nil {
		a.asynqClient.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func roomConfig(c config.RoomConfig) orchestrator.Config {
	return orchestrator.Config{
		TickInterval:        c.TickInterval,
		LobbyCountdownTicks: c.LobbyCountdownTicks,
		TurnTicks:           c.TurnTicks,
		ShuffleDisplay:      c.ShuffleDisplay,
		AutoPickGrace:       c.AutoPickGrace,
		Retention:           c.Retention,
		BroadcastWindow:     c.BroadcastWindow,
		InboxSize:           c.InboxSize,
	}
}

// nodeID tags events this process publishes so its relay can skip them.
func nodeID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "partdraft"
	}
	return host + "-" + uuid.NewString()[:8]
}
