package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/picotd/pkg/logger"
)

// Sweeper times out persist records older than a TTL on a cron schedule.
type Sweeper struct {
	router   *Router
	schedule string
	ttl      time.Duration
	now      func() time.Time
}

func NewSweeper(r *Router, schedule string, ttl time.Duration) (*Sweeper, error) {
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("bot: invalid sweep schedule %q", schedule)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("bot: persist ttl must be positive, got %s", ttl)
	}
	return &Sweeper{router: r, schedule: schedule, ttl: ttl, now: time.Now}, nil
}

// Next is the first sweep strictly after ref.
func (s *Sweeper) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.schedule, ref, false)
}

// Sweep times out every record created more than ttl before now. With a
// client attached the timeouts run on its ordered executor, so handler hooks
// never race the update they would otherwise interleave with.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.ttl)
	c := s.router.Client()
	if c == nil {
		return s.report(s.router.ExpirePersists(ctx, cutoff))
	}

	n := 0
	err := c.Poller().Execute(ctx, func(ctx context.Context) {
		n = s.router.ExpirePersists(ctx, cutoff)
	})
	if err != nil {
		logger.WarnCF("sweeper", "Sweep skipped", map[string]any{"error": err.Error()})
		return 0
	}
	return s.report(n)
}

func (s *Sweeper) report(n int) int {
	if n > 0 {
		logger.InfoCF("sweeper", "Persists timed out", map[string]any{
			"count": n,
			"ttl":   s.ttl.String(),
		})
	}
	return n
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	logger.InfoCF("sweeper", "Sweeper started", map[string]any{
		"schedule": s.schedule,
		"ttl":      s.ttl.String(),
	})
	for {
		next, err := s.Next(s.now())
		if err != nil {
			return fmt.Errorf("bot: next sweep: %w", err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.Sweep(ctx, s.now())
		}
	}
}
