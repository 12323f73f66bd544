package client

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

type PollerConfig struct {
	// BatchSize bounds the envelopes drained from one client per tick.
	BatchSize int
	// DrainTimeout is passed to Engine.Drain for each client.
	DrainTimeout time.Duration
	// IdleInterval is how long the poller sleeps after a tick that drained
	// nothing.
	IdleInterval time.Duration
	// Workers runs response continuations.
	Workers int
	// QueueSize bounds both the continuation and the update queues.
	QueueSize int
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		BatchSize:    64,
		DrainTimeout: 0,
		IdleInterval: 10 * time.Millisecond,
		Workers:      runtime.NumCPU(),
		QueueSize:    1024,
	}
}

type task func(ctx context.Context)

// Poller multiplexes many clients over one engine. One goroutine drains the
// engine; continuations run on a bounded worker pool; push updates of every
// client run on one ordered executor goroutine.
type Poller struct {
	engine engine.Engine
	cfg    PollerConfig

	regMu   sync.Mutex
	starts  []*Client
	removes []*Client
	wake    chan struct{}

	clients []*Client // owned by the poll goroutine

	work    chan task
	updates chan task
	running atomic.Bool
}

func NewPoller(e engine.Engine, cfg PollerConfig) *Poller {
	def := DefaultPollerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Poller{
		engine:  e,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
		work:    make(chan task, cfg.QueueSize),
		updates: make(chan task, cfg.QueueSize),
	}
}

func (p *Poller) Engine() engine.Engine { return p.engine }

// Run drives the poller until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer p.running.Store(false)

	logger.InfoCF("poller", "Poller started", map[string]any{
		"batch_size": p.cfg.BatchSize,
		"workers":    p.cfg.Workers,
	})

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		eg.Go(func() error {
			p.consume(ctx, p.work)
			return nil
		})
	}
	eg.Go(func() error {
		p.consume(ctx, p.updates)
		return nil
	})
	eg.Go(func() error {
		p.poll(ctx)
		return nil
	})
	err := eg.Wait()

	logger.InfoC("poller", "Poller stopped")
	return err
}

func (p *Poller) register(c *Client) {
	p.regMu.Lock()
	p.starts = append(p.starts, c)
	p.regMu.Unlock()
	p.signal()
}

func (p *Poller) unregister(c *Client) {
	p.regMu.Lock()
	p.removes = append(p.removes, c)
	p.regMu.Unlock()
	p.signal()
}

func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// schedule queues t on the ordered executor.
func (p *Poller) schedule(t task) {
	p.updates <- t
}

// Execute runs fn on the ordered executor, after every update already queued,
// and waits for it to return. Calling it from the executor itself deadlocks.
func (p *Poller) Execute(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	t := func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}
	if !p.enqueue(ctx, p.updates, t) {
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients is the number of clients in rotation.
func (p *Poller) Clients() int {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	return len(p.clients)
}

func (p *Poller) integrate() {
	p.regMu.Lock()
	starts, removes := p.starts, p.removes
	p.starts, p.removes = nil, nil

	p.clients = append(p.clients, starts...)
	for _, r := range removes {
		for i, c := range p.clients {
			if c == r {
				p.clients = append(p.clients[:i:i], p.clients[i+1:]...)
				break
			}
		}
	}
	p.regMu.Unlock()

	for _, r := range removes {
		r.release()
	}
}

func (p *Poller) poll(ctx context.Context) {
	idle := time.NewTimer(p.cfg.IdleInterval)
	defer idle.Stop()

	for {
		p.integrate()

		drained := 0
		for _, c := range p.clients {
			envs := p.engine.Drain(c.handle, p.cfg.BatchSize, p.cfg.DrainTimeout)
			for _, env := range envs {
				if !p.dispatch(ctx, c, env) {
					return
				}
			}
			drained += len(envs)
		}

		if drained > 0 {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		if len(p.clients) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		idle.Reset(p.cfg.IdleInterval)
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-idle.C:
		}
	}
}

// dispatch routes one envelope. It returns false once ctx is done.
func (p *Poller) dispatch(ctx context.Context, c *Client, env engine.Envelope) bool {
	if env.IsUpdate() {
		u, ok := env.Payload.(td.Update)
		if !ok {
			logger.WarnCF("poller", "Dropping non-update push", map[string]any{
				"client": c.id,
				"type":   env.Payload.Type(),
			})
			return true
		}
		return p.enqueue(ctx, p.updates, func(ctx context.Context) { c.deliver(ctx, u) })
	}

	pc, ok := c.take(env.RequestID)
	if !ok {
		logger.DebugCF("poller", "Response without pending request", map[string]any{
			"client":     c.id,
			"request_id": env.RequestID,
		})
		return true
	}

	if pc.awaitSent {
		if msg, ok := env.Payload.(*td.Message); ok {
			c.awaitSent(msg.ID, pc)
			return true
		}
	}
	return p.enqueue(ctx, p.work, func(context.Context) { pc.complete(c, env.Payload) })
}

func (p *Poller) enqueue(ctx context.Context, q chan task, t task) bool {
	select {
	case q <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Poller) consume(ctx context.Context, q chan task) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q:
			runTask(ctx, t)
		}
	}
}

func runTask(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("poller", "Task panic", map[string]any{"panic": fmt.Sprintf("%v", r)})
		}
	}()
	t(ctx)
}
