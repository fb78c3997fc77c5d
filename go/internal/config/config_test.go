package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--env-file", ""})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10, cfg.Room.LobbyCountdownTicks)
	assert.Equal(t, 15, cfg.Room.TurnTicks)
	assert.Equal(t, 100*time.Millisecond, cfg.Room.BroadcastWindow)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "partdraft.yaml", `
http:
  addr: ":9000"
log:
  level: debug
room:
  turn_ticks: 20
  auto_pick_grace: 500ms
cache:
  backend: redis
database:
  database: drafts
`)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load([]string{"--config", path, "--env-file", "", "--http-addr", ":7000"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Room.TurnTicks)
	assert.Equal(t, 500*time.Millisecond, cfg.Room.AutoPickGrace)
	assert.Equal(t, 10, cfg.Room.LobbyCountdownTicks)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "drafts", cfg.Database.Database)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoad_EnvFile(t *testing.T) {
	path := writeFile(t, ".env", "NATS_ENABLED=true\nNATS_URL=nats://bus:4222\n")
	t.Cleanup(func() {
		os.Unsetenv("NATS_ENABLED")
		os.Unsetenv("NATS_URL")
	})

	cfg, err := Load([]string{"--env-file", path})
	require.NoError(t, err)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	_, err := Load([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "outbox:\n  backend: kafka\nroom:\n  turn_ticks: 0\n")
	_, err := Load([]string{"--config", path, "--env-file", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown outbox backend "kafka"`)
	assert.Contains(t, err.Error(), "turn_ticks")

	_, err = Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}
