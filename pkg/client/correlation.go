package client

import (
	"github.com/pkg/errors"

	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

// Continuation receives the outcome of one request. Either field may be nil;
// a nil OnError logs the failure.
type Continuation struct {
	OnSuccess func(td.Object)
	OnError   func(*Error)
}

type pendingCall struct {
	id      int64
	request td.Function
	cont    Continuation
	stack   errors.StackTrace

	// awaitSent marks a SendMessage whose first response is the temporary
	// message. The continuation then waits in the ack table for the
	// send-succeeded or send-failed update.
	awaitSent bool
}

func (pc *pendingCall) complete(c *Client, payload td.Object) {
	if e, ok := payload.(*td.Error); ok {
		pc.fail(c, e)
		return
	}
	if pc.cont.OnSuccess != nil {
		pc.cont.OnSuccess(payload)
	}
}

func (pc *pendingCall) fail(c *Client, e *td.Error) {
	err := newError(e, pc.request, pc.stack)
	if pc.cont.OnError != nil {
		pc.cont.OnError(err)
		return
	}
	logger.WarnCF("client", "Request failed", map[string]any{
		"client":     c.ID(),
		"request_id": pc.id,
		"request":    err.Request,
		"code":       err.Code,
		"error":      err.Message,
	})
}

// register claims the next free request id for pc.
func (c *Client) register(pc *pendingCall) int64 {
	for {
		id := c.counter.Add(1)
		if id <= 0 {
			c.counter.CompareAndSwap(id, 0)
			continue
		}
		pc.id = id
		if _, busy := c.pending.LoadOrStore(id, pc); busy {
			continue
		}
		return id
	}
}

func (c *Client) take(id int64) (*pendingCall, bool) {
	v, ok := c.pending.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	return v.(*pendingCall), true
}

// PendingRequests is the number of requests still waiting for a response.
func (c *Client) PendingRequests() int {
	n := 0
	c.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Client) awaitSent(tempID int64, pc *pendingCall) {
	c.acks.Store(tempID, pc)
}

func (c *Client) takeSent(tempID int64) (*pendingCall, bool) {
	v, ok := c.acks.LoadAndDelete(tempID)
	if !ok {
		return nil, false
	}
	return v.(*pendingCall), true
}
