package bot

import (
	"context"

	"github.com/sipeed/picotd/pkg/td"
)

// Event is one inbound message seen by the router.
type Event struct {
	Message  *td.Message
	ChatID   int64
	SenderID int64
	Text     string

	// Command is the parsed function, nil for plain text.
	Command *Command
}

// Command is a parsed function call such as "/echo  hello   world".
type Command struct {
	Prefix string // "/" or "!"
	Name   string // "echo"
	Target string // bot name after '@', if any
	Raw    string // " hello   world" trimmed of the leading separator
	Params string // "hello world"
	Args   []string
}

// Payload is the deep-link argument of "/start <prefix>-<arg>-<arg>".
type Payload struct {
	Raw    string
	Prefix string
	Args   []string

	// Owned reports whether a handler claimed Prefix.
	Owned bool
}

// CallbackQuery is a decoded inline-button press.
type CallbackQuery struct {
	Update *td.UpdateNewCallbackQuery
	Data   *CallbackData
}

// Handler is a bot feature hosted by a Router.
//
// Embed BaseHandler and implement any of FunctionProvider, PayloadProvider,
// CallbackProvider and PersistProvider to claim routing keys.
//
// Hooks run one at a time on the client's ordered executor, sweeper timeouts
// included, so a handler needs no locking of its own against other hooks.
type Handler interface {
	OnFunction(ctx context.Context, ev *Event, cmd *Command) error
	OnUndefinedFunction(ctx context.Context, ev *Event, cmd *Command) error
	OnStartPayload(ctx context.Context, ev *Event, p *Payload) error
	OnUndefinedPayload(ctx context.Context, ev *Event, p *Payload) error
	OnCallbackQuery(ctx context.Context, q *CallbackQuery) error

	OnPersistMessage(ctx context.Context, ev *Event, rec *Persist) error
	OnPersistFunction(ctx context.Context, ev *Event, rec *Persist, cmd *Command) error
	OnPersistCancel(ctx context.Context, rec *Persist) error
	OnPersistRemove(ctx context.Context, rec *Persist) error
	OnPersistTimeout(ctx context.Context, rec *Persist) error
	OnPersistStore(ctx context.Context, rec *Persist) error
	OnPersistRestore(ctx context.Context, rec *Persist) error

	attach(r *Router)
}

// DefaultHandler receives what no bot handler claims.
type DefaultHandler interface {
	OnLaunch(ctx context.Context, ev *Event) error
	OnUndefinedFunction(ctx context.Context, ev *Event, cmd *Command) error
	OnUndefinedPayload(ctx context.Context, ev *Event, p *Payload) error
}

type FunctionProvider interface {
	Functions() []Definition
}

type PayloadProvider interface {
	Payloads() []string
}

type CallbackProvider interface {
	CallbackIDs() []int
}

type PersistProvider interface {
	PersistIDs() []int
}

type BaseHandler struct {
	router *Router
}

func (b *BaseHandler) attach(r *Router) { b.router = r }

// Router returns the router hosting the handler.
func (b *BaseHandler) Router() *Router { return b.router }

func (b *BaseHandler) OnFunction(context.Context, *Event, *Command) error          { return nil }
func (b *BaseHandler) OnUndefinedFunction(context.Context, *Event, *Command) error { return nil }
func (b *BaseHandler) OnStartPayload(context.Context, *Event, *Payload) error      { return nil }
func (b *BaseHandler) OnUndefinedPayload(context.Context, *Event, *Payload) error  { return nil }
func (b *BaseHandler) OnCallbackQuery(context.Context, *CallbackQuery) error       { return nil }

func (b *BaseHandler) OnPersistMessage(context.Context, *Event, *Persist) error { return nil }
func (b *BaseHandler) OnPersistFunction(context.Context, *Event, *Persist, *Command) error {
	return nil
}
func (b *BaseHandler) OnPersistCancel(context.Context, *Persist) error  { return nil }
func (b *BaseHandler) OnPersistRemove(context.Context, *Persist) error  { return nil }
func (b *BaseHandler) OnPersistTimeout(context.Context, *Persist) error { return nil }
func (b *BaseHandler) OnPersistStore(context.Context, *Persist) error   { return nil }
func (b *BaseHandler) OnPersistRestore(context.Context, *Persist) error { return nil }
