package bot

import (
	"context"
	"time"

	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

var commandPublishBackoff = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	10 * time.Minute,
}

func (r *Router) menuCommands() []td.BotCommand {
	out := make([]td.BotCommand, 0, len(r.reg.menu))
	for _, def := range r.reg.menu {
		if def.Name == "" || def.Description == "" {
			continue
		}
		out = append(out, td.BotCommand{Command: def.Name, Description: def.Description})
	}
	return out
}

// publishCommands sends the menu in the background, retrying on the backoff
// ladder until it succeeds or the client is destroyed.
func (r *Router) publishCommands(ctx context.Context) {
	commands := r.menuCommands()
	if len(commands) == 0 {
		return
	}

	pubCtx, cancel := context.WithCancel(ctx)
	r.menuMu.Lock()
	if r.menuCancel != nil {
		r.menuCancel()
	}
	r.menuCancel = cancel
	r.menuMu.Unlock()

	c := r.Client()
	go func() {
		attempt := 0
		for {
			_, err := c.Sync(pubCtx, &td.SetCommands{Commands: commands})
			if err == nil {
				logger.InfoCF("bot", "Bot commands published", map[string]any{
					"count": len(commands),
				})
				return
			}
			if pubCtx.Err() != nil {
				return
			}

			delay := r.backoff[min(attempt, len(r.backoff)-1)]
			logger.WarnCF("bot", "Bot command publishing failed; will retry", map[string]any{
				"error":       err.Error(),
				"retry_after": delay.String(),
			})
			attempt++

			select {
			case <-pubCtx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}
