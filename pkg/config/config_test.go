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

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"engine": {"driver": "loopback"},
		"poller": {"batch_size": 8, "drain_timeout": "250ms", "idle_interval": 2},
		"bot": {"function_prefixes": ["."], "cancel_keyword": "stop"},
		"persist": {"store": "memory", "timeout": "90m"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "loopback", cfg.Engine.Driver)
	assert.Equal(t, 8, cfg.Poller.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Poller.DrainTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.Poller.IdleInterval.Std())
	assert.Equal(t, []string{"."}, cfg.Bot.FunctionPrefixes)
	assert.Equal(t, "stop", cfg.Bot.CancelKeyword)
	assert.Equal(t, "Cancelled.", cfg.Bot.CancelText, "unset fields keep defaults")
	assert.Equal(t, 90*time.Minute, cfg.Persist.Timeout.Std())
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
engine:
  driver: loopback
telegram:
  token: "123:abc"
  requests_per_second: 5
persist:
  store: redis
  redis_addr: localhost:6379
  sweep_schedule: "0 * * * *"
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, 5.0, cfg.Telegram.RequestsPerSecond)
	assert.Equal(t, "redis", cfg.Persist.Store)
	assert.Equal(t, "localhost:6379", cfg.Persist.RedisAddr)
	assert.Equal(t, "0 * * * *", cfg.Persist.SweepSchedule)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.Persist.Timeout.Std())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram": {"token": "from-file"}}`)
	t.Setenv("PICOTD_TELEGRAM_TOKEN", "from-env")
	t.Setenv("PICOTD_BOT_FUNCTION_PREFIXES", "/,#")
	t.Setenv("PICOTD_POLLER_DRAIN_TIMEOUT", "40ms")
	t.Setenv("PICOTD_PERSIST_STORE", "memory")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, []string{"/", "#"}, cfg.Bot.FunctionPrefixes)
	assert.Equal(t, 40*time.Millisecond, cfg.Poller.DrainTimeout.Std())
	assert.Equal(t, "memory", cfg.Persist.Store)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad json", `{"engine": `},
		{"unknown driver", `{"engine": {"driver": "smoke-signals"}}`},
		{"unknown store", `{"persist": {"store": "floppy"}}`},
		{"redis without addr", `{"persist": {"store": "redis"}}`},
		{"sqlite without path", `{"persist": {"store": "sqlite", "path": ""}}`},
		{"no prefixes", `{"bot": {"function_prefixes": []}}`},
		{"bad duration", `{"persist": {"timeout": "soon"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.json", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Engine.Driver = "loopback"
			cfg.Poller.DrainTimeout = Duration(75 * time.Millisecond)

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveConfig(path, cfg))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(home, ".picotd/persists.db"), cfg.PersistPath())
	assert.Equal(t, "", cfg.LogPath())

	cfg.Log.File = "/var/log/picotd.log"
	assert.Equal(t, "/var/log/picotd.log", cfg.LogPath())
}
