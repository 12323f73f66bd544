// Package bot routes the messages and button presses of a bot client to the
// features (handlers) hosting its commands, deep-link payloads, inline
// buttons and multi-step conversations.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sipeed/picotd/pkg/client"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeHandled
)

const startFunction = "start"

type Config struct {
	FunctionPrefixes []string
	CancelKeyword    string
	CancelText       string
	InvalidDataText  string

	// PublishCommands sends the function menu to the engine after login.
	PublishCommands bool

	// Store, when set, keeps persist records across restarts.
	Store PersistStore
}

func DefaultConfig() Config {
	return Config{
		FunctionPrefixes: []string{"/", "!"},
		CancelKeyword:    "cancel",
		CancelText:       "Cancelled.",
		InvalidDataText:  "This button is no longer valid.",
		PublishCommands:  true,
	}
}

// Router is a client.Handler. Add it to the bot's client after the handlers
// that must see every message, and before those that should only see what
// the router lets through.
type Router struct {
	client.BaseHandler

	cfg      Config
	def      DefaultHandler
	handlers []Handler
	reg      *registries
	now      func() time.Time

	mu       sync.Mutex
	persists map[int64]*Persist

	menuMu     sync.Mutex
	menuCancel context.CancelFunc
	backoff    []time.Duration
}

// NewRouter builds the routing tables from handlers. It fails with an error
// wrapping ErrDuplicateRegistration when two handlers claim the same key.
// def may be nil.
func NewRouter(cfg Config, def DefaultHandler, handlers ...Handler) (*Router, error) {
	defaults := DefaultConfig()
	if len(cfg.FunctionPrefixes) == 0 {
		cfg.FunctionPrefixes = defaults.FunctionPrefixes
	}
	if cfg.CancelKeyword == "" {
		cfg.CancelKeyword = defaults.CancelKeyword
	}
	if cfg.CancelText == "" {
		cfg.CancelText = defaults.CancelText
	}
	if cfg.InvalidDataText == "" {
		cfg.InvalidDataText = defaults.InvalidDataText
	}

	reg, err := buildRegistries(handlers)
	if err != nil {
		return nil, err
	}

	r := &Router{
		cfg:      cfg,
		def:      def,
		handlers: handlers,
		reg:      reg,
		now:      time.Now,
		persists: make(map[int64]*Persist),
		backoff:  commandPublishBackoff,
	}
	for _, h := range handlers {
		h.attach(r)
	}
	return r, nil
}

// Menu is the function menu in registration order.
func (r *Router) Menu() []Definition {
	return append([]Definition(nil), r.reg.menu...)
}

func (r *Router) botName() string {
	if c := r.Client(); c != nil {
		if me := c.Me(); me != nil {
			return me.Username
		}
	}
	return ""
}

func (r *Router) isSelf(userID int64) bool {
	if c := r.Client(); c != nil {
		if me := c.Me(); me != nil {
			return me.ID == userID
		}
	}
	return false
}

func (r *Router) OnNewMessage(ctx context.Context, u *td.UpdateNewMessage) error {
	msg := u.Message
	if msg == nil || r.isSelf(msg.SenderUserID) {
		return nil
	}
	ev := &Event{
		Message:  msg,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderUserID,
		Text:     msg.Text(),
	}
	if r.Route(ctx, ev) == OutcomeHandled {
		return client.Finish
	}
	return nil
}

// Route classifies and dispatches one message.
func (r *Router) Route(ctx context.Context, ev *Event) Outcome {
	cmd, foreign := parseCommand(ev.Text, r.cfg.FunctionPrefixes, r.botName())
	ev.Command = cmd

	if rec := r.Persist(ev.SenderID); rec != nil {
		if owner := r.reg.persists[rec.PersistID]; owner != nil {
			if r.routePersist(ctx, ev, rec, owner, cmd) {
				return OutcomeHandled
			}
		} else {
			logger.WarnCF("bot", "Dropping persist without handler", map[string]any{
				"user_id":    rec.UserID,
				"persist_id": rec.PersistID,
			})
			r.take(ev.SenderID)
		}
	}

	if cmd == nil {
		if foreign {
			logger.DebugCF("bot", "Function addressed to another bot", map[string]any{"chat_id": ev.ChatID})
		}
		return OutcomeContinue
	}

	logger.DebugCF("bot", "Function received", map[string]any{
		"chat_id":  ev.ChatID,
		"user_id":  ev.SenderID,
		"function": cmd.Name,
	})

	if cmd.Name == startFunction {
		r.routeStart(ctx, ev, cmd)
		return OutcomeHandled
	}

	if owner, ok := r.reg.functions[cmd.Name]; ok {
		r.invoke("function", owner, func() error { return owner.OnFunction(ctx, ev, cmd) })
		return OutcomeHandled
	}

	for _, h := range r.handlers {
		r.invoke("undefined_function", h, func() error { return h.OnUndefinedFunction(ctx, ev, cmd) })
	}
	if r.def != nil {
		r.invoke("undefined_function", r.def, func() error { return r.def.OnUndefinedFunction(ctx, ev, cmd) })
	}
	return OutcomeHandled
}

// routePersist offers ev to the persist owner, then applies the function
// cases. It reports false when a function falls through to normal dispatch,
// which happens when the record allows neither functions nor cancellation.
func (r *Router) routePersist(ctx context.Context, ev *Event, rec *Persist, owner Handler, cmd *Command) bool {
	r.invoke("persist_message", owner, func() error { return owner.OnPersistMessage(ctx, ev, rec.clone()) })
	if cmd == nil {
		return true
	}

	switch {
	case rec.AllowCancel && cmd.Name == r.cfg.CancelKeyword:
		r.cancelFromChat(ctx, ev)
	case rec.AllowCancel && !rec.AllowFunction:
		r.cancelFromChat(ctx, ev)
	case rec.AllowFunction:
		r.invoke("persist_function", owner, func() error { return owner.OnPersistFunction(ctx, ev, rec, cmd) })
	default:
		return false
	}
	return true
}

func (r *Router) cancelFromChat(ctx context.Context, ev *Event) {
	if !r.CancelPersist(ctx, ev.SenderID) {
		return
	}
	if err := r.Send(ev.ChatID, r.cfg.CancelText, nil); err != nil {
		logger.WarnCF("bot", "Cancel acknowledgement not sent", map[string]any{
			"chat_id": ev.ChatID,
			"error":   err.Error(),
		})
	}
}

func (r *Router) routeStart(ctx context.Context, ev *Event, cmd *Command) {
	if cmd.Params == "" {
		if r.def != nil {
			r.invoke("launch", r.def, func() error { return r.def.OnLaunch(ctx, ev) })
		}
		return
	}

	p := parsePayload(cmd.Params)
	owner := r.reg.payloads[p.Prefix]
	p.Owned = owner != nil
	if owner != nil {
		r.invoke("start_payload", owner, func() error { return owner.OnStartPayload(ctx, ev, p) })
	}
	for _, h := range r.handlers {
		if h == owner {
			continue
		}
		r.invoke("undefined_payload", h, func() error { return h.OnUndefinedPayload(ctx, ev, p) })
	}
	if r.def != nil {
		r.invoke("undefined_payload", r.def, func() error { return r.def.OnUndefinedPayload(ctx, ev, p) })
	}
}

func (r *Router) OnNewCallbackQuery(ctx context.Context, u *td.UpdateNewCallbackQuery) error {
	if r.isSelf(u.SenderUserID) {
		return nil
	}

	data, err := DecodeData(u.Payload)
	var owner Handler
	if err == nil {
		owner = r.reg.callbacks[data.ID]
	}
	if owner == nil {
		logger.DebugCF("bot", "Invalid callback data", map[string]any{
			"user_id": u.SenderUserID,
			"bytes":   len(u.Payload),
		})
		if err := r.AnswerCallback(u.ID, r.cfg.InvalidDataText, false); err != nil {
			logger.WarnCF("bot", "Callback answer not sent", map[string]any{"error": err.Error()})
		}
		return client.Finish
	}

	q := &CallbackQuery{Update: u, Data: data}
	r.invoke("callback_query", owner, func() error { return owner.OnCallbackQuery(ctx, q) })
	return client.Finish
}

// Send sends text to a chat without waiting for delivery.
func (r *Router) Send(chatID int64, text string, markup *td.InlineKeyboard) error {
	_, err := r.Client().SendMessage(&td.SendMessage{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	}, client.Continuation{})
	return err
}

// Reply answers ev in its chat.
func (r *Router) Reply(ev *Event, text string, markup *td.InlineKeyboard) error {
	req := &td.SendMessage{ChatID: ev.ChatID, Text: text, ReplyMarkup: markup}
	if ev.Message != nil {
		req.ReplyToMessageID = ev.Message.ID
	}
	_, err := r.Client().SendMessage(req, client.Continuation{})
	return err
}

func (r *Router) AnswerCallback(queryID, text string, alert bool) error {
	_, err := r.Client().Send(&td.AnswerCallbackQuery{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       alert,
	}, client.Continuation{})
	return err
}

func (r *Router) OnLogin(ctx context.Context) error {
	r.restore(ctx)
	if r.cfg.PublishCommands {
		r.publishCommands(ctx)
	}
	return nil
}

func (r *Router) OnDestroy(ctx context.Context) error {
	r.menuMu.Lock()
	if r.menuCancel != nil {
		r.menuCancel()
		r.menuCancel = nil
	}
	r.menuMu.Unlock()

	return r.save(ctx)
}

func (r *Router) restore(ctx context.Context) {
	me := r.Client().Me()
	if r.cfg.Store == nil || me == nil {
		return
	}

	records, err := r.cfg.Store.LoadPersists(ctx, me.ID)
	if err != nil {
		logger.ErrorCF("bot", "Failed to load persists", map[string]any{"error": err.Error()})
		return
	}

	restored := 0
	for _, fields := range records {
		rec, err := ParsePersist(fields)
		if err != nil {
			logger.WarnCF("bot", "Skipping malformed persist", map[string]any{"error": err.Error()})
			continue
		}
		owner := r.reg.persists[rec.PersistID]
		if owner == nil {
			logger.WarnCF("bot", "Skipping persist without handler", map[string]any{"persist_id": rec.PersistID})
			continue
		}

		r.mu.Lock()
		_, live := r.persists[rec.UserID]
		if !live {
			r.persists[rec.UserID] = rec
		}
		r.mu.Unlock()
		if live {
			continue
		}

		r.invoke("persist_restore", owner, func() error { return owner.OnPersistRestore(ctx, rec.clone()) })
		restored++
	}
	logger.InfoCF("bot", "Persists restored", map[string]any{"count": restored})
}

func (r *Router) save(ctx context.Context) error {
	me := r.Client().Me()
	if r.cfg.Store == nil || me == nil {
		return nil
	}

	recs := r.Persists()
	records := make([][]string, 0, len(recs))
	for _, rec := range recs {
		if owner := r.reg.persists[rec.PersistID]; owner != nil {
			r.invoke("persist_store", owner, func() error { return owner.OnPersistStore(ctx, rec.clone()) })
		}
		records = append(records, rec.Fields())
	}

	if err := r.cfg.Store.SavePersists(ctx, me.ID, records); err != nil {
		return fmt.Errorf("saving persists: %w", err)
	}
	logger.InfoCF("bot", "Persists saved", map[string]any{"count": len(records)})
	return nil
}

// invoke runs one handler hook, logging its error or panic.
func (r *Router) invoke(event string, h any, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("bot", "Handler panic", map[string]any{
				"handler": fmt.Sprintf("%T", h),
				"event":   event,
				"panic":   fmt.Sprintf("%v", rec),
			})
		}
	}()
	if err := fn(); err != nil {
		logger.WarnCF("bot", "Handler error", map[string]any{
			"handler": fmt.Sprintf("%T", h),
			"event":   event,
			"error":   err.Error(),
		})
	}
}
