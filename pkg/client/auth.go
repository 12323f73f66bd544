package client

import (
	"context"

	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

// authHandler is handler 0 of every client. It answers the authorization
// states and drives the lifecycle hooks of the whole chain.
type authHandler struct {
	BaseHandler
}

func (a *authHandler) OnAuthorizationState(ctx context.Context, u *td.UpdateAuthorizationState) error {
	c := a.Client()

	switch u.State.(type) {
	case *td.AuthorizationStateWaitTdlibParameters:
		c.setState(StateAuthenticating)
		params := c.opts.Parameters
		a.step(&params)

	case *td.AuthorizationStateWaitEncryptionKey:
		a.step(&td.CheckDatabaseEncryptionKey{EncryptionKey: c.opts.EncryptionKey})

	case *td.AuthorizationStateWaitPhoneNumber:
		switch {
		case c.opts.BotToken != "":
			a.step(&td.CheckAuthenticationBotToken{Token: c.opts.BotToken})
		case c.opts.Authenticator != nil:
			if err := c.opts.Authenticator.Authenticate(ctx, c); err != nil {
				c.authorizationError(err)
			}
		default:
			c.authorizationError(ErrNoCredentials)
		}

	case *td.AuthorizationStateReady:
		c.setState(StateAuthenticated)
		me, err := Call[*td.User](ctx, c, &td.GetMe{})
		if err != nil {
			c.authorizationError(err)
		} else {
			c.me.Store(me)
			logger.InfoCF("client", "Logged in", map[string]any{
				"client":   c.id,
				"user_id":  me.ID,
				"username": me.Username,
			})
		}
		c.lifecycle(ctx, "login", Handler.OnLogin)

	case *td.AuthorizationStateLoggingOut:
		c.setState(StateLoggingOut)
		c.lifecycle(ctx, "logout", Handler.OnLogout)

	case *td.AuthorizationStateClosing:

	case *td.AuthorizationStateClosed:
		c.setState(StateClosed)
		c.destroy(ctx)
		c.poller.unregister(c)
	}
	return nil
}

func (a *authHandler) step(req td.Function) {
	c := a.Client()
	_, err := c.Send(req, Continuation{
		OnError: func(e *Error) { c.authorizationError(e) },
	})
	if err != nil {
		c.authorizationError(err)
	}
}

func (c *Client) authorizationError(err error) {
	if c.opts.OnAuthorizationError != nil {
		c.opts.OnAuthorizationError(c, err)
		return
	}
	logger.ErrorCF("client", "Authorization failed", map[string]any{
		"client": c.id,
		"error":  err.Error(),
	})
}
