package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sipeed/picotd/pkg/td"
)

// Send submits req and returns its request id without waiting. cont runs on
// the poller's worker pool when the response arrives.
func (c *Client) Send(req td.Function, cont Continuation) (int64, error) {
	return c.send(&pendingCall{request: req, cont: cont, stack: callerStack()})
}

// SendMessage submits req. onDelivered runs when the engine confirms the
// message was sent (with the final message) or reports that sending failed,
// not when the temporary message is returned.
func (c *Client) SendMessage(req *td.SendMessage, onDelivered Continuation) (int64, error) {
	return c.send(&pendingCall{request: req, cont: onDelivered, stack: callerStack(), awaitSent: true})
}

func (c *Client) send(pc *pendingCall) (int64, error) {
	switch c.State() {
	case StateCreated:
		return 0, ErrNotStarted
	case StateClosed:
		return 0, ErrAlreadyStopped
	}
	id := c.register(pc)
	c.poller.engine.Submit(c.handle, id, pc.request)
	return id, nil
}

type result struct {
	obj td.Object
	err error
}

// Sync sends req and waits for its response. Engine failures are returned as
// *Error. No timeout is imposed; cancel ctx to stop waiting. The request
// itself is not cancelled.
func (c *Client) Sync(ctx context.Context, req td.Function) (td.Object, error) {
	ch := make(chan result, 1)
	_, err := c.send(&pendingCall{
		request: req,
		stack:   callerStack(),
		cont: Continuation{
			OnSuccess: func(obj td.Object) { ch <- result{obj: obj} },
			OnError:   func(e *Error) { ch <- result{err: e} },
		},
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.obj, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SyncOrNil is Sync with every failure mapped to nil.
func (c *Client) SyncOrNil(ctx context.Context, req td.Function) td.Object {
	obj, err := c.Sync(ctx, req)
	if err != nil {
		return nil
	}
	return obj
}

// Call is the typed form of Sync.
func Call[T td.Object](ctx context.Context, c *Client, req td.Function) (T, error) {
	var zero T
	obj, err := c.Sync(ctx, req)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("client: %s returned unexpected %s", req.Type(), obj.Type())
	}
	return v, nil
}

// CallOrNil is the typed form of SyncOrNil.
func CallOrNil[T td.Object](ctx context.Context, c *Client, req td.Function) T {
	v, _ := Call[T](ctx, c, req)
	return v
}

// CallAsync is the typed form of Send.
func CallAsync[T td.Object](c *Client, req td.Function, onSuccess func(T), onError func(*Error)) (int64, error) {
	pc := &pendingCall{request: req, stack: callerStack()}
	pc.cont = Continuation{
		OnError: onError,
		OnSuccess: func(obj td.Object) {
			v, ok := obj.(T)
			if !ok {
				pc.fail(c, td.NewError(0, "unexpected result %s", obj.Type()))
				return
			}
			if onSuccess != nil {
				onSuccess(v)
			}
		},
	}
	return c.send(pc)
}
