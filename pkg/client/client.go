// Package client correlates requests and responses over an engine.Engine and
// broadcasts push updates to ordered handler chains.
//
// A Client is bound to one Poller. Start registers it, after which the
// poller drains its engine queue: responses complete the continuation stored
// under their request id, push updates go to the client's handlers on the
// poller's single executor goroutine.
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

type State int32

const (
	StateCreated State = iota
	StateStarted
	StateAuthenticating
	StateAuthenticated
	StateLoggingOut
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Authenticator answers the phone-number step for user sessions.
type Authenticator interface {
	Authenticate(ctx context.Context, c *Client) error
}

type Options struct {
	Parameters    td.SetTdlibParameters
	EncryptionKey []byte

	// BotToken logs the client in as a bot. When empty, Authenticator is used.
	BotToken      string
	Authenticator Authenticator

	// OnAuthorizationError replaces the default logging of failed
	// authorization steps.
	OnAuthorizationError func(c *Client, err error)
}

type Client struct {
	id     string
	poller *Poller
	opts   Options
	handle engine.Handle

	state    atomic.Int32
	stopping atomic.Bool
	me       atomic.Pointer[td.User]

	counter atomic.Int64
	pending sync.Map // request id -> *pendingCall
	acks    sync.Map // temporary message id -> *pendingCall

	mu       sync.RWMutex
	handlers []Handler

	destroyOnce sync.Once
	releaseOnce sync.Once
	done        chan struct{}
}

// New creates a client bound to p. Handler 0 is the client's own
// authorization handler.
func New(p *Poller, opts Options) *Client {
	c := &Client{
		id:     uuid.NewString(),
		poller: p,
		opts:   opts,
		done:   make(chan struct{}),
	}
	c.AddHandler(&authHandler{})
	return c
}

func (c *Client) ID() string { return c.id }

// Handle is the engine session handle, valid once Start succeeded.
func (c *Client) Handle() engine.Handle { return c.handle }

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		logger.DebugCF("client", "State changed", map[string]any{
			"client": c.id,
			"from":   old.String(),
			"to":     s.String(),
		})
	}
}

// Me is the logged-in user, or nil before login completes.
func (c *Client) Me() *td.User { return c.me.Load() }

func (c *Client) Poller() *Poller { return c.poller }

// Done is closed once the engine session has been released.
func (c *Client) Done() <-chan struct{} { return c.done }

// AddHandler appends h to the handler chain. Safe to call at any time; the
// new handler sees events delivered after the call returns.
func (c *Client) AddHandler(h Handler) {
	h.attach(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]Handler, len(c.handlers), len(c.handlers)+1)
	copy(next, c.handlers)
	c.handlers = append(next, h)
}

// Handlers returns the handler chain in registration order.
func (c *Client) Handlers() []Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// Start creates the engine session and registers the client with its poller.
func (c *Client) Start() error {
	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateStarted)) {
		return ErrAlreadyStarted
	}

	h, err := c.poller.engine.CreateClient()
	if err != nil {
		c.setState(StateClosed)
		c.releaseOnce.Do(func() { close(c.done) })
		return err
	}
	c.handle = h
	c.poller.register(c)

	logger.InfoCF("client", "Client started", map[string]any{
		"client": c.id,
		"handle": int64(h),
	})
	return nil
}

// Stop runs OnDestroy on every handler and then asks the engine to close the
// session. It returns immediately; wait on Done for the release.
func (c *Client) Stop() error {
	if c.State() == StateCreated {
		return ErrNotStarted
	}
	if c.State() == StateClosed || !c.stopping.CompareAndSwap(false, true) {
		return ErrAlreadyStopped
	}

	c.poller.schedule(func(ctx context.Context) {
		c.destroy(ctx)
		if _, err := c.Send(&td.Close{}, Continuation{}); err != nil {
			logger.WarnCF("client", "Close request not sent", map[string]any{
				"client": c.id,
				"error":  err.Error(),
			})
		}
	})
	return nil
}

// destroy runs OnDestroy on every handler at most once.
func (c *Client) destroy(ctx context.Context) {
	c.destroyOnce.Do(func() {
		c.lifecycle(ctx, "destroy", Handler.OnDestroy)
	})
}

// release destroys the engine session. Called by the poller only.
func (c *Client) release() {
	c.releaseOnce.Do(func() {
		c.poller.engine.DestroyClient(c.handle)
		close(c.done)
		logger.InfoCF("client", "Client released", map[string]any{
			"client":  c.id,
			"handle":  int64(c.handle),
			"pending": c.PendingRequests(),
		})
	})
}
