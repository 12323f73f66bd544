// Package app wires config, engine, client, router and persist store into a
// running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picotd/pkg/bot"
	"github.com/sipeed/picotd/pkg/bot/store"
	"github.com/sipeed/picotd/pkg/client"
	"github.com/sipeed/picotd/pkg/config"
	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/engine/loopback"
	"github.com/sipeed/picotd/pkg/engine/telegram"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/ratelimit"
	"github.com/sipeed/picotd/pkg/redaction"
	"github.com/sipeed/picotd/pkg/td"
)

const shutdownTimeout = 10 * time.Second

// LoopbackToken logs the bot in when the loopback engine runs without a
// configured telegram.token.
const LoopbackToken = "loopback"

// RouterFactory builds the bot's router from the configured router settings.
type RouterFactory func(cfg bot.Config) (*bot.Router, error)

type App struct {
	Config  *config.Config
	Engine  engine.Engine
	Poller  *client.Poller
	Client  *client.Client
	Router  *bot.Router
	Sweeper *bot.Sweeper

	closers []func() error
}

// SetupLogging applies the log section of cfg.
func SetupLogging(cfg *config.Config, debug bool) error {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	logger.SetLevel(logger.ParseLevel(level))

	rc := redaction.DefaultConfig()
	rc.Enabled = cfg.Log.Redact
	if cfg.Telegram.Token != "" {
		rc.Secrets = append(rc.Secrets, cfg.Telegram.Token)
	}
	if cfg.Engine.EncryptionKey != "" {
		rc.Secrets = append(rc.Secrets, cfg.Engine.EncryptionKey)
	}
	logger.ConfigureRedaction(rc)

	if path := cfg.LogPath(); path != "" {
		if err := logger.EnableFileLogging(path); err != nil {
			return fmt.Errorf("enabling file logging: %w", err)
		}
	}
	return nil
}

// NewEngine builds the engine named by engine.driver.
func NewEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Driver {
	case "telegram":
		if cfg.Telegram.Token == "" {
			return nil, fmt.Errorf("telegram.token is required for the telegram engine")
		}
		rl := ratelimit.DefaultConfig()
		rl.Enabled = cfg.Telegram.RequestsPerSecond > 0
		rl.RequestsPerSecond = cfg.Telegram.RequestsPerSecond
		rl.Burst = max(1, int(cfg.Telegram.RequestsPerSecond))
		rl.PerChatPerMinute = cfg.Telegram.PerChatPerMinute
		return telegram.New(telegram.Options{
			Token:           cfg.Telegram.Token,
			Proxy:           cfg.Telegram.Proxy,
			APIServer:       cfg.Telegram.APIServer,
			LongPollTimeout: cfg.Telegram.LongPollTimeout,
			QueueCapacity:   cfg.Poller.QueueSize,
			RateLimit:       rl,
		}), nil
	case "loopback":
		return loopback.New(loopback.Options{QueueCapacity: cfg.Poller.QueueSize}), nil
	default:
		return nil, fmt.Errorf("unknown engine driver %q", cfg.Engine.Driver)
	}
}

// OpenStore opens the configured persist store. The memory store is nil:
// records then live only as long as the process.
func OpenStore(cfg *config.Config) (bot.PersistStore, func() error, error) {
	switch cfg.Persist.Store {
	case "memory":
		return nil, func() error { return nil }, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.PersistPath())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		s := store.NewRedisStore(cfg.Persist.RedisAddr, cfg.Persist.RedisKey)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Persist.RedisAddr, err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown persist store %q", cfg.Persist.Store)
	}
}

func BotConfig(cfg *config.Config, st bot.PersistStore) bot.Config {
	return bot.Config{
		FunctionPrefixes: cfg.Bot.FunctionPrefixes,
		CancelKeyword:    cfg.Bot.CancelKeyword,
		CancelText:       cfg.Bot.CancelText,
		InvalidDataText:  cfg.Bot.InvalidDataText,
		PublishCommands:  cfg.Bot.PublishCommands,
		Store:            st,
	}
}

// BotToken is the token the client logs in with.
func BotToken(cfg *config.Config) string {
	if cfg.Telegram.Token == "" && cfg.Engine.Driver == "loopback" {
		return LoopbackToken
	}
	return cfg.Telegram.Token
}

func PollerConfig(cfg *config.Config) client.PollerConfig {
	return client.PollerConfig{
		BatchSize:    cfg.Poller.BatchSize,
		DrainTimeout: cfg.Poller.DrainTimeout.Std(),
		IdleInterval: cfg.Poller.IdleInterval.Std(),
		Workers:      cfg.Poller.Workers,
		QueueSize:    cfg.Poller.QueueSize,
	}
}

// New assembles an App on eng. Extra client handlers are added after the
// router.
func New(cfg *config.Config, eng engine.Engine, newRouter RouterFactory, extra ...client.Handler) (*App, error) {
	st, closeStore, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	r, err := newRouter(BotConfig(cfg, st))
	if err != nil {
		closeStore()
		return nil, err
	}

	var sweeper *bot.Sweeper
	if ttl := cfg.Persist.Timeout.Std(); ttl > 0 {
		sweeper, err = bot.NewSweeper(r, cfg.Persist.SweepSchedule, ttl)
		if err != nil {
			closeStore()
			return nil, err
		}
	}

	p := client.NewPoller(eng, PollerConfig(cfg))
	c := client.New(p, client.Options{
		Parameters: td.SetTdlibParameters{
			DatabaseDirectory: cfg.DatabasePath(),
			UseTestDC:         cfg.Engine.UseTestDC,
			SystemLanguage:    "en",
			ApplicationVer:    "picotd",
		},
		EncryptionKey: []byte(cfg.Engine.EncryptionKey),
		BotToken:      BotToken(cfg),
		OnAuthorizationError: func(c *client.Client, err error) {
			logger.ErrorCF("app", "Authorization failed, stopping", map[string]any{"error": err.Error()})
			_ = c.Stop()
		},
	})
	c.AddHandler(r)
	for _, h := range extra {
		c.AddHandler(h)
	}

	return &App{
		Config:  cfg,
		Engine:  eng,
		Poller:  p,
		Client:  c,
		Router:  r,
		Sweeper: sweeper,
		closers: []func() error{closeStore},
	}, nil
}

// Run starts the client and blocks until ctx is cancelled or the engine
// closes the session. On cancellation the client is stopped gracefully so
// persist records reach the store.
func (a *App) Run(ctx context.Context) error {
	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()

	g, gctx := errgroup.WithContext(pollCtx)
	g.Go(func() error { return a.Poller.Run(gctx) })
	if a.Sweeper != nil {
		g.Go(func() error { return a.Sweeper.Run(gctx) })
	}

	if err := a.Client.Start(); err != nil {
		stopPolling()
		_ = g.Wait()
		return fmt.Errorf("starting client: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.InfoC("app", "Shutting down")
		if err := a.Client.Stop(); err != nil && !errors.Is(err, client.ErrAlreadyStopped) {
			logger.WarnCF("app", "Stop failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-a.Client.Done():
		case <-time.After(shutdownTimeout):
			logger.WarnC("app", "Client did not close in time")
		}
	case <-a.Client.Done():
		logger.InfoC("app", "Session closed by engine")
	case <-gctx.Done():
	}

	stopPolling()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *App) Close() error {
	var errs []error
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
