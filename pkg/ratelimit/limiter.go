// Package ratelimit throttles outbound Bot API calls.
//
// Telegram enforces a global request rate per bot token and a much lower
// message rate per chat. Limiter keeps one token bucket for the token and one
// lazily created bucket per chat.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	PerChatPerMinute  int
}

// DefaultConfig matches the limits documented for the Bot API.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerSecond: 30,
		Burst:             30,
		PerChatPerMinute:  20,
	}
}

// Limiter implements global plus per-chat token buckets.
type Limiter struct {
	config Config
	global *rate.Limiter
	chats  sync.Map // int64 -> *chatBucket
}

type chatBucket struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastUsed time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	l := &Limiter{config: config}
	if config.Enabled {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		l.global = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return l
}

// Allow reports whether a call for chatID may go out now. chatID 0 only
// consumes the global bucket.
func (l *Limiter) Allow(chatID int64) bool {
	if !l.config.Enabled {
		return true
	}
	if !l.global.Allow() {
		return false
	}
	if b := l.chat(chatID); b != nil {
		return b.limiter.Allow()
	}
	return true
}

// Wait blocks until a call for chatID may go out or ctx is done.
func (l *Limiter) Wait(ctx context.Context, chatID int64) error {
	if !l.config.Enabled {
		return nil
	}
	if err := l.global.Wait(ctx); err != nil {
		return err
	}
	if b := l.chat(chatID); b != nil {
		return b.limiter.Wait(ctx)
	}
	return nil
}

func (l *Limiter) chat(chatID int64) *chatBucket {
	if chatID == 0 || l.config.PerChatPerMinute <= 0 {
		return nil
	}

	var b *chatBucket
	if cached, ok := l.chats.Load(chatID); ok {
		b = cached.(*chatBucket)
	} else {
		perChat := l.config.PerChatPerMinute
		newB := &chatBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perChat)), perChat),
		}
		actual, _ := l.chats.LoadOrStore(chatID, newB)
		b = actual.(*chatBucket)
	}

	b.mu.Lock()
	b.lastUsed = time.Now()
	b.mu.Unlock()
	return b
}

// Chats returns the number of chats with a live bucket.
func (l *Limiter) Chats() int {
	n := 0
	l.chats.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Cleanup removes chat buckets unused for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	now := time.Now()

	l.chats.Range(func(key, value any) bool {
		b := value.(*chatBucket)
		b.mu.Lock()
		if now.Sub(b.lastUsed) > maxAge {
			l.chats.Delete(key)
		}
		b.mu.Unlock()
		return true
	})
}
