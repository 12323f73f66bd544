package client

import (
	"context"

	"github.com/sipeed/picotd/pkg/td"
)

// Handler receives the push updates and lifecycle events of one client.
//
// Implementations embed BaseHandler and override what they need. Handlers
// run on the poller's single executor goroutine, in registration order.
// Returning Finish stops the current event from reaching later handlers;
// any other error is logged and the next handler still runs.
type Handler interface {
	// Lifecycle
	OnLogin(ctx context.Context) error
	OnLogout(ctx context.Context) error
	OnDestroy(ctx context.Context) error

	// Updates
	OnAuthorizationState(ctx context.Context, u *td.UpdateAuthorizationState) error
	OnNewMessage(ctx context.Context, u *td.UpdateNewMessage) error
	OnMessageEdited(ctx context.Context, u *td.UpdateMessageEdited) error
	OnDeleteMessages(ctx context.Context, u *td.UpdateDeleteMessages) error
	OnMessageSendAcknowledged(ctx context.Context, u *td.UpdateMessageSendAcknowledged) error
	OnMessageSendSucceeded(ctx context.Context, u *td.UpdateMessageSendSucceeded) error
	OnMessageSendFailed(ctx context.Context, u *td.UpdateMessageSendFailed) error
	OnNewCallbackQuery(ctx context.Context, u *td.UpdateNewCallbackQuery) error
	OnChatTitle(ctx context.Context, u *td.UpdateChatTitle) error
	OnUser(ctx context.Context, u *td.UpdateUser) error
	OnFile(ctx context.Context, u *td.UpdateFile) error
	OnNotification(ctx context.Context, u *td.UpdateNotification) error
	OnConnectionState(ctx context.Context, u *td.UpdateConnectionState) error
	OnOption(ctx context.Context, u *td.UpdateOption) error

	attach(c *Client)
}

// BaseHandler implements every Handler method as a no-op.
type BaseHandler struct {
	client *Client
}

func (b *BaseHandler) attach(c *Client) { b.client = c }

// Client returns the client the handler was added to.
func (b *BaseHandler) Client() *Client { return b.client }

func (b *BaseHandler) OnLogin(context.Context) error   { return nil }
func (b *BaseHandler) OnLogout(context.Context) error  { return nil }
func (b *BaseHandler) OnDestroy(context.Context) error { return nil }

func (b *BaseHandler) OnAuthorizationState(context.Context, *td.UpdateAuthorizationState) error {
	return nil
}
func (b *BaseHandler) OnNewMessage(context.Context, *td.UpdateNewMessage) error       { return nil }
func (b *BaseHandler) OnMessageEdited(context.Context, *td.UpdateMessageEdited) error { return nil }
func (b *BaseHandler) OnDeleteMessages(context.Context, *td.UpdateDeleteMessages) error {
	return nil
}
func (b *BaseHandler) OnMessageSendAcknowledged(context.Context, *td.UpdateMessageSendAcknowledged) error {
	return nil
}
func (b *BaseHandler) OnMessageSendSucceeded(context.Context, *td.UpdateMessageSendSucceeded) error {
	return nil
}
func (b *BaseHandler) OnMessageSendFailed(context.Context, *td.UpdateMessageSendFailed) error {
	return nil
}
func (b *BaseHandler) OnNewCallbackQuery(context.Context, *td.UpdateNewCallbackQuery) error {
	return nil
}
func (b *BaseHandler) OnChatTitle(context.Context, *td.UpdateChatTitle) error   { return nil }
func (b *BaseHandler) OnUser(context.Context, *td.UpdateUser) error             { return nil }
func (b *BaseHandler) OnFile(context.Context, *td.UpdateFile) error             { return nil }
func (b *BaseHandler) OnNotification(context.Context, *td.UpdateNotification) error {
	return nil
}
func (b *BaseHandler) OnConnectionState(context.Context, *td.UpdateConnectionState) error {
	return nil
}
func (b *BaseHandler) OnOption(context.Context, *td.UpdateOption) error { return nil }
