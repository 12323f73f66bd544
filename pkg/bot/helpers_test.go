package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotd/pkg/client"
	"github.com/sipeed/picotd/pkg/engine/loopback"
	"github.com/sipeed/picotd/pkg/td"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
	user    = int64(42)
	chat    = int64(4200)
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// feature is a configurable bot handler that records every hook.
type feature struct {
	BaseHandler
	name       string
	log        *eventLog
	functions  []Definition
	payloads   []string
	callbacks  []int
	persistIDs []int

	// onFunction replaces the default OnFunction recording.
	onFunction func(ctx context.Context, ev *Event, cmd *Command) error
}

func (f *feature) Functions() []Definition { return f.functions }
func (f *feature) Payloads() []string      { return f.payloads }
func (f *feature) CallbackIDs() []int      { return f.callbacks }
func (f *feature) PersistIDs() []int       { return f.persistIDs }

func (f *feature) OnFunction(ctx context.Context, ev *Event, cmd *Command) error {
	f.log.add("%s:function:%s:%s", f.name, cmd.Name, cmd.Params)
	if f.onFunction != nil {
		return f.onFunction(ctx, ev, cmd)
	}
	return nil
}

func (f *feature) OnUndefinedFunction(_ context.Context, _ *Event, cmd *Command) error {
	f.log.add("%s:undefined_function:%s", f.name, cmd.Name)
	return nil
}

func (f *feature) OnStartPayload(_ context.Context, _ *Event, p *Payload) error {
	f.log.add("%s:start_payload:%s:%s", f.name, p.Prefix, strings.Join(p.Args, ","))
	return nil
}

func (f *feature) OnUndefinedPayload(_ context.Context, _ *Event, p *Payload) error {
	f.log.add("%s:undefined_payload:%s", f.name, p.Prefix)
	return nil
}

func (f *feature) OnCallbackQuery(_ context.Context, q *CallbackQuery) error {
	f.log.add("%s:callback:%d:%d:%s", f.name, q.Data.ID, q.Data.SubID, q.Data.String(0))
	return nil
}

func (f *feature) OnPersistMessage(_ context.Context, ev *Event, _ *Persist) error {
	f.log.add("%s:persist_message:%s", f.name, ev.Text)
	return nil
}

func (f *feature) OnPersistFunction(_ context.Context, _ *Event, _ *Persist, cmd *Command) error {
	f.log.add("%s:persist_function:%s", f.name, cmd.Name)
	return nil
}

func (f *feature) OnPersistCancel(_ context.Context, rec *Persist) error {
	f.log.add("%s:persist_cancel:%d", f.name, rec.UserID)
	return nil
}

func (f *feature) OnPersistRemove(_ context.Context, rec *Persist) error {
	f.log.add("%s:persist_remove:%d:%d", f.name, rec.UserID, rec.SubID)
	return nil
}

func (f *feature) OnPersistTimeout(_ context.Context, rec *Persist) error {
	f.log.add("%s:persist_timeout:%d", f.name, rec.UserID)
	return nil
}

func (f *feature) OnPersistStore(_ context.Context, rec *Persist) error {
	f.log.add("%s:persist_store:%d", f.name, rec.UserID)
	return nil
}

func (f *feature) OnPersistRestore(_ context.Context, rec *Persist) error {
	f.log.add("%s:persist_restore:%d", f.name, rec.UserID)
	return nil
}

type fallback struct {
	log *eventLog
}

func (d *fallback) OnLaunch(_ context.Context, ev *Event) error {
	d.log.add("default:launch:%d", ev.SenderID)
	return nil
}

func (d *fallback) OnUndefinedFunction(_ context.Context, _ *Event, cmd *Command) error {
	d.log.add("default:undefined_function:%s", cmd.Name)
	return nil
}

func (d *fallback) OnUndefinedPayload(_ context.Context, _ *Event, p *Payload) error {
	d.log.add("default:undefined_payload:%s:%t", p.Prefix, p.Owned)
	return nil
}

// tail sits after the router and records what the router lets through.
type tail struct {
	client.BaseHandler
	log      *eventLog
	loggedIn chan struct{}
	once     sync.Once
}

func (t *tail) OnLogin(context.Context) error {
	t.once.Do(func() { close(t.loggedIn) })
	return nil
}

func (t *tail) OnNewMessage(_ context.Context, u *td.UpdateNewMessage) error {
	t.log.add("tail:%s", u.Message.Text())
	return nil
}

type harness struct {
	t      *testing.T
	eng    *loopback.Engine
	client *client.Client
	router *Router
	log    *eventLog
}

func newHarness(t *testing.T, cfg Config, def DefaultHandler, log *eventLog, handlers ...Handler) *harness {
	t.Helper()

	r, err := NewRouter(cfg, def, handlers...)
	require.NoError(t, err)
	r.backoff = []time.Duration{tick}

	eng := loopback.New(loopback.Options{})
	p := client.NewPoller(eng, client.PollerConfig{IdleInterval: tick, Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	tl := &tail{log: log, loggedIn: make(chan struct{})}
	c := client.New(p, client.Options{BotToken: "token"})
	c.AddHandler(r)
	c.AddHandler(tl)
	require.NoError(t, c.Start())

	select {
	case <-tl.loggedIn:
	case <-time.After(waitFor):
		t.Fatal("bot did not log in")
	}
	return &harness{t: t, eng: eng, client: c, router: r, log: log}
}

func (h *harness) say(text string) {
	h.t.Helper()
	_, err := h.eng.InjectText(h.client.Handle(), chat, user, text)
	require.NoError(h.t, err)
}

// expect waits until the log holds exactly want.
func (h *harness) expect(want ...string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.log.all()) >= len(want) }, waitFor, tick)
	// let stragglers arrive before comparing
	time.Sleep(20 * time.Millisecond)
	require.Equal(h.t, want, h.log.all())
	h.log.reset()
}

func (h *harness) sentTexts() []string {
	var out []string
	for _, m := range h.eng.Sent(h.client.Handle()) {
		out = append(out, m.Text)
	}
	return out
}
