// Package config loads server settings from a YAML file, the environment
// (optionally seeded from a .env file) and command-line flags, in that order
// of precedence from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/partdraft/go/internal/dbconfig"
)

type Config struct {
	HTTP     HTTPConfig      `yaml:"http"`
	Log      LogConfig       `yaml:"log"`
	Room     RoomConfig      `yaml:"room"`
	Cache    CacheConfig     `yaml:"cache"`
	Outbox   OutboxConfig    `yaml:"outbox"`
	NATS     NATSConfig      `yaml:"nats"`
	Database dbconfig.Config `yaml:"database"`
	// ListenRoster subscribes to ticket-table notifications.
	ListenRoster bool `yaml:"listen_roster"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowForceStart bool          `yaml:"allow_force_start"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type RoomConfig struct {
	TickInterval        time.Duration `yaml:"tick_interval"`
	LobbyCountdownTicks int           `yaml:"lobby_countdown_ticks"`
	TurnTicks           int           `yaml:"turn_ticks"`
	ShuffleDisplay      time.Duration `yaml:"shuffle_display"`
	AutoPickGrace       time.Duration `yaml:"auto_pick_grace"`
	Retention           time.Duration `yaml:"retention"`
	BroadcastWindow     time.Duration `yaml:"broadcast_window"`
	InboxSize           int           `yaml:"inbox_size"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory or redis
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
	MaxParallel   int           `yaml:"max_parallel"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisDB       int           `yaml:"redis_db"`
}

type OutboxConfig struct {
	Backend    string        `yaml:"backend"` // worker or asynq
	QueueSize  int           `yaml:"queue_size"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	AsynqQueue string        `yaml:"asynq_queue"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Room: RoomConfig{
			TickInterval:        time.Second,
			LobbyCountdownTicks: 10,
			TurnTicks:           15,
			ShuffleDisplay:      3 * time.Second,
			AutoPickGrace:       2 * time.Second,
			Retention:           5 * time.Minute,
			BroadcastWindow:     100 * time.Millisecond,
			InboxSize:           64,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           30 * time.Second,
			SweepInterval: time.Minute,
			LoadTimeout:   10 * time.Second,
			MaxParallel:   8,
			RedisAddr:     "localhost:6379",
		},
		Outbox: OutboxConfig{
			Backend:    "worker",
			QueueSize:  1024,
			BatchSize:  50,
			MaxRetries: 3,
			RetryDelay: time.Second,
			AsynqQueue: "draft_results",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			StreamName:    "DRAFT_ROOMS",
			SubjectPrefix: "draft.rooms",
		},
		Database: dbconfig.Default(),
	}
}

// Load builds the configuration from args (without the program name).
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("partdraft", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	envFile := fs.String("env-file", ".env", "dotenv file to load into the environment")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	allowForce := fs.Bool("allow-force-start", false, "let websocket clients force-start a draft")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := Default()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.overlayEnv()

	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("http-addr") {
		cfg.HTTP.Addr = *httpAddr
	}
	if fs.Changed("allow-force-start") {
		cfg.HTTP.AllowForceStart = *allowForce
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Outbox.Backend = getEnv("OUTBOX_BACKEND", c.Outbox.Backend)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.ListenRoster = getEnvAsBool("LISTEN_ROSTER", c.ListenRoster)
	c.Database = c.Database.OverlayEnv()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Room.TickInterval <= 0 {
		errs = append(errs, errors.New("room.tick_interval must be positive"))
	}
	if c.Room.LobbyCountdownTicks < 0 || c.Room.TurnTicks <= 0 {
		errs = append(errs, errors.New("room countdown ticks must not be negative and turn_ticks must be positive"))
	}
	if c.Room.BroadcastWindow < 0 {
		errs = append(errs, errors.New("room.broadcast_window must not be negative"))
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	switch c.Outbox.Backend {
	case "worker", "asynq":
	default:
		errs = append(errs, fmt.Errorf("unknown outbox backend %q", c.Outbox.Backend))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
