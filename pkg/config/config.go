package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "30s" in config files and env vars.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts "1m30s" or a bare number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

type Config struct {
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Poller   PollerConfig   `json:"poller" yaml:"poller"`
	Bot      BotConfig      `json:"bot" yaml:"bot"`
	Persist  PersistConfig  `json:"persist" yaml:"persist"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

type EngineConfig struct {
	Driver            string `json:"driver" yaml:"driver" env:"PICOTD_ENGINE_DRIVER"` // telegram | loopback
	DatabaseDirectory string `json:"database_directory" yaml:"database_directory" env:"PICOTD_ENGINE_DATABASE_DIRECTORY"`
	EncryptionKey     string `json:"encryption_key" yaml:"encryption_key" env:"PICOTD_ENGINE_ENCRYPTION_KEY"`
	UseTestDC         bool   `json:"use_test_dc" yaml:"use_test_dc" env:"PICOTD_ENGINE_USE_TEST_DC"`
}

type TelegramConfig struct {
	Token             string  `json:"token" yaml:"token" env:"PICOTD_TELEGRAM_TOKEN"`
	Proxy             string  `json:"proxy" yaml:"proxy" env:"PICOTD_TELEGRAM_PROXY"`
	APIServer         string  `json:"api_server" yaml:"api_server" env:"PICOTD_TELEGRAM_API_SERVER"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"PICOTD_TELEGRAM_REQUESTS_PER_SECOND"` // 0 = unlimited
	PerChatPerMinute  int     `json:"per_chat_per_minute" yaml:"per_chat_per_minute" env:"PICOTD_TELEGRAM_PER_CHAT_PER_MINUTE"`
	LongPollTimeout   int     `json:"long_poll_timeout" yaml:"long_poll_timeout" env:"PICOTD_TELEGRAM_LONG_POLL_TIMEOUT"` // seconds
}

type PollerConfig struct {
	BatchSize    int      `json:"batch_size" yaml:"batch_size" env:"PICOTD_POLLER_BATCH_SIZE"`
	DrainTimeout Duration `json:"drain_timeout" yaml:"drain_timeout" env:"PICOTD_POLLER_DRAIN_TIMEOUT"`
	IdleInterval Duration `json:"idle_interval" yaml:"idle_interval" env:"PICOTD_POLLER_IDLE_INTERVAL"`
	Workers      int      `json:"workers" yaml:"workers" env:"PICOTD_POLLER_WORKERS"` // 0 = NumCPU
	QueueSize    int      `json:"queue_size" yaml:"queue_size" env:"PICOTD_POLLER_QUEUE_SIZE"`
}

type BotConfig struct {
	FunctionPrefixes []string `json:"function_prefixes" yaml:"function_prefixes" env:"PICOTD_BOT_FUNCTION_PREFIXES" envSeparator:","`
	CancelKeyword    string   `json:"cancel_keyword" yaml:"cancel_keyword" env:"PICOTD_BOT_CANCEL_KEYWORD"`
	CancelText       string   `json:"cancel_text" yaml:"cancel_text" env:"PICOTD_BOT_CANCEL_TEXT"`
	InvalidDataText  string   `json:"invalid_data_text" yaml:"invalid_data_text" env:"PICOTD_BOT_INVALID_DATA_TEXT"`
	PublishCommands  bool     `json:"publish_commands" yaml:"publish_commands" env:"PICOTD_BOT_PUBLISH_COMMANDS"`
}

type PersistConfig struct {
	Store         string   `json:"store" yaml:"store" env:"PICOTD_PERSIST_STORE"` // memory | sqlite | redis
	Path          string   `json:"path" yaml:"path" env:"PICOTD_PERSIST_PATH"`
	RedisAddr     string   `json:"redis_addr" yaml:"redis_addr" env:"PICOTD_PERSIST_REDIS_ADDR"`
	RedisKey      string   `json:"redis_key" yaml:"redis_key" env:"PICOTD_PERSIST_REDIS_KEY"`
	Timeout       Duration `json:"timeout" yaml:"timeout" env:"PICOTD_PERSIST_TIMEOUT"` // 0 disables the sweeper
	SweepSchedule string   `json:"sweep_schedule" yaml:"sweep_schedule" env:"PICOTD_PERSIST_SWEEP_SCHEDULE"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"PICOTD_LOG_LEVEL"`
	File   string `json:"file" yaml:"file" env:"PICOTD_LOG_FILE"`
	Redact bool   `json:"redact" yaml:"redact" env:"PICOTD_LOG_REDACT"`
}

// LoadConfig reads path (JSON, or YAML for .yaml/.yml) over the defaults and
// applies PICOTD_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Config) Validate() error {
	switch c.Engine.Driver {
	case "telegram", "loopback":
	default:
		return fmt.Errorf("engine.driver: unknown driver %q", c.Engine.Driver)
	}
	switch c.Persist.Store {
	case "memory":
	case "sqlite":
		if c.Persist.Path == "" {
			return fmt.Errorf("persist.path is required for the sqlite store")
		}
	case "redis":
		if c.Persist.RedisAddr == "" {
			return fmt.Errorf("persist.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("persist.store: unknown store %q", c.Persist.Store)
	}
	if len(c.Bot.FunctionPrefixes) == 0 {
		return fmt.Errorf("bot.function_prefixes must not be empty")
	}
	if c.Persist.Timeout < 0 {
		return fmt.Errorf("persist.timeout must not be negative")
	}
	return nil
}

func (c *Config) PersistPath() string {
	return expandHome(c.Persist.Path)
}

func (c *Config) DatabasePath() string {
	return expandHome(c.Engine.DatabaseDirectory)
}

func (c *Config) LogPath() string {
	return expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
