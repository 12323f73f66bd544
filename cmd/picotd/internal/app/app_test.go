package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotd/cmd/picotd/internal/demo"
	"github.com/sipeed/picotd/pkg/bot/store"
	"github.com/sipeed/picotd/pkg/config"
	"github.com/sipeed/picotd/pkg/engine/loopback"
	"github.com/sipeed/picotd/pkg/engine/telegram"
)

const (
	waitFor       = 2 * time.Second
	tick          = time.Millisecond
	user          = int64(7)
	loopbackBotID = int64(1000)
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.Driver = "loopback"
	cfg.Persist.Store = "sqlite"
	cfg.Persist.Path = filepath.Join(t.TempDir(), "persists.db")
	cfg.Bot.PublishCommands = false
	cfg.Poller.IdleInterval = config.Duration(tick)
	return cfg
}

func TestNewEngine(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Engine.Driver = "loopback"
	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	assert.IsType(t, &loopback.Engine{}, eng)

	cfg.Engine.Driver = "telegram"
	_, err = NewEngine(cfg)
	assert.Error(t, err, "token required")

	cfg.Telegram.Token = "123:abc"
	eng, err = NewEngine(cfg)
	require.NoError(t, err)
	assert.IsType(t, &telegram.Engine{}, eng)

	cfg.Engine.Driver = "carrier-pigeon"
	_, err = NewEngine(cfg)
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t)

	st, closeFn, err := OpenStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, st)
	require.NoError(t, closeFn())

	cfg.Persist.Store = "memory"
	st, closeFn, err = OpenStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, st)
	require.NoError(t, closeFn())

	cfg.Persist.Store = "tape"
	_, _, err = OpenStore(cfg)
	assert.Error(t, err)
}

func TestBotConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bot.CancelKeyword = "stop"

	bc := BotConfig(cfg, nil)
	assert.Equal(t, []string{"/", "!"}, bc.FunctionPrefixes)
	assert.Equal(t, "stop", bc.CancelKeyword)
	assert.True(t, bc.PublishCommands)
	assert.Nil(t, bc.Store)
}

func TestBotToken(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Engine.Driver = "loopback"
	assert.Equal(t, LoopbackToken, BotToken(cfg))
	cfg.Telegram.Token = "123:abc"
	assert.Equal(t, "123:abc", BotToken(cfg))

	cfg.Engine.Driver = "telegram"
	cfg.Telegram.Token = ""
	assert.Empty(t, BotToken(cfg))
}

type running struct {
	app    *App
	eng    *loopback.Engine
	cancel context.CancelFunc
	errc   chan error
}

func start(t *testing.T, cfg *config.Config) *running {
	t.Helper()

	eng := loopback.New(loopback.Options{})
	a, err := New(cfg, eng, demo.NewRouter)
	require.NoError(t, err)
	require.NotNil(t, a.Sweeper)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	require.Eventually(t, func() bool { return a.Client.Me() != nil }, waitFor, tick)

	return &running{app: a, eng: eng, cancel: cancel, errc: errc}
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.errc:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	require.NoError(t, r.app.Close())
}

func TestApp_PersistsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)

	first := start(t, cfg)
	h := first.app.Client.Handle()
	_, err := first.eng.InjectText(h, user, user, "/survey")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return first.app.Router.Persist(user) != nil }, waitFor, tick)
	first.stop(t)

	s, err := store.NewSQLiteStore(cfg.PersistPath())
	require.NoError(t, err)
	records, err := s.LoadPersists(context.Background(), loopbackBotID)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Len(t, records, 1)

	second := start(t, cfg)
	require.Eventually(t, func() bool { return second.app.Router.Persist(user) != nil }, waitFor, tick)

	h = second.app.Client.Handle()
	_, err = second.eng.InjectText(h, user, user, "Grace")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		sent := second.eng.Sent(h)
		return len(sent) == 1 && sent[0].Text == "Nice to meet you, Grace. Pick a color:"
	}, waitFor, tick)
	second.stop(t)
}

func TestApp_LoopbackLogsInWithoutToken(t *testing.T) {
	cfg := testConfig(t)
	require.Empty(t, cfg.Telegram.Token)

	r := start(t, cfg)
	assert.Equal(t, loopbackBotID, r.app.Client.Me().ID)
	r.stop(t)
}

func TestApp_RunReturnsWhenSessionCloses(t *testing.T) {
	r := start(t, testConfig(t))

	require.NoError(t, r.app.Client.Stop())
	select {
	case err := <-r.errc:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after the session closed")
	}
	require.NoError(t, r.app.Close())
	r.cancel()
}
