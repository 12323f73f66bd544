package config

import "time"

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Driver:            "telegram",
			DatabaseDirectory: "~/.picotd/engine",
		},
		Telegram: TelegramConfig{
			RequestsPerSecond: 30,
			PerChatPerMinute:  20,
			LongPollTimeout:   30,
		},
		Poller: PollerConfig{
			BatchSize:    64,
			IdleInterval: Duration(10 * time.Millisecond),
			QueueSize:    1024,
		},
		Bot: BotConfig{
			FunctionPrefixes: []string{"/", "!"},
			CancelKeyword:    "cancel",
			CancelText:       "Cancelled.",
			InvalidDataText:  "This button is no longer valid.",
			PublishCommands:  true,
		},
		Persist: PersistConfig{
			Store:         "sqlite",
			Path:          "~/.picotd/persists.db",
			RedisKey:      "picotd:persists",
			Timeout:       Duration(24 * time.Hour),
			SweepSchedule: "*/5 * * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Redact: true,
		},
	}
}
