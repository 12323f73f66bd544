package client

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

// deliver runs on the executor.
func (c *Client) deliver(ctx context.Context, u td.Update) {
	switch v := u.(type) {
	case *td.UpdateMessageSendSucceeded:
		c.resolveSent(ctx, v.OldMessageID, v.Message, nil)
	case *td.UpdateMessageSendFailed:
		c.resolveSent(ctx, v.OldMessageID, v.Message, v.Error)
	}

	event := u.Type()
	for _, h := range c.Handlers() {
		if c.visit(event, h, func(h Handler) error { return route(ctx, h, u) }, true) {
			return
		}
	}
}

func route(ctx context.Context, h Handler, u td.Update) error {
	switch v := u.(type) {
	case *td.UpdateAuthorizationState:
		return h.OnAuthorizationState(ctx, v)
	case *td.UpdateNewMessage:
		return h.OnNewMessage(ctx, v)
	case *td.UpdateMessageEdited:
		return h.OnMessageEdited(ctx, v)
	case *td.UpdateDeleteMessages:
		return h.OnDeleteMessages(ctx, v)
	case *td.UpdateMessageSendAcknowledged:
		return h.OnMessageSendAcknowledged(ctx, v)
	case *td.UpdateMessageSendSucceeded:
		return h.OnMessageSendSucceeded(ctx, v)
	case *td.UpdateMessageSendFailed:
		return h.OnMessageSendFailed(ctx, v)
	case *td.UpdateNewCallbackQuery:
		return h.OnNewCallbackQuery(ctx, v)
	case *td.UpdateChatTitle:
		return h.OnChatTitle(ctx, v)
	case *td.UpdateUser:
		return h.OnUser(ctx, v)
	case *td.UpdateFile:
		return h.OnFile(ctx, v)
	case *td.UpdateNotification:
		return h.OnNotification(ctx, v)
	case *td.UpdateConnectionState:
		return h.OnConnectionState(ctx, v)
	case *td.UpdateOption:
		return h.OnOption(ctx, v)
	default:
		panic(fmt.Sprintf("client: unhandled update %T", u))
	}
}

// lifecycle runs fn on every handler. Finish does not stop lifecycle events.
func (c *Client) lifecycle(ctx context.Context, event string, fn func(Handler, context.Context) error) {
	for _, h := range c.Handlers() {
		c.visit(event, h, func(h Handler) error { return fn(h, ctx) }, false)
	}
}

// visit calls fn on h, isolating panics and errors. It reports whether the
// remaining handlers should be skipped.
func (c *Client) visit(event string, h Handler, fn func(Handler) error, honorFinish bool) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("client", "Handler panic", map[string]any{
				"client":  c.id,
				"handler": fmt.Sprintf("%T", h),
				"event":   event,
				"panic":   fmt.Sprintf("%v", r),
			})
			stop = false
		}
	}()

	err := fn(h)
	switch {
	case err == nil:
		return false
	case errors.Is(err, Finish):
		return honorFinish
	default:
		logger.WarnCF("client", "Handler error", map[string]any{
			"client":  c.id,
			"handler": fmt.Sprintf("%T", h),
			"event":   event,
			"error":   err.Error(),
		})
		return false
	}
}

func (c *Client) resolveSent(ctx context.Context, tempID int64, msg *td.Message, failure *td.Error) {
	pc, ok := c.takeSent(tempID)
	if !ok {
		return
	}
	c.poller.enqueue(ctx, c.poller.work, func(context.Context) {
		if failure != nil {
			pc.fail(c, failure)
			return
		}
		pc.complete(c, msg)
	})
}
