package engine

import (
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/sipeed/picotd/pkg/logger"
)

// Queue is a bounded envelope queue with any number of producers and a single
// consumer. Producers are serialized by a mutex in front of a lock-free SPSC
// ring; a full ring is waited out rather than dropped.
type Queue struct {
	produce sync.Mutex
	ring    lfq.SPSC[Envelope]
}

func NewQueue(capacity int) *Queue {
	q := &Queue{}
	q.ring.Init(capacity)
	return q
}

// Push enqueues env, blocking while the ring is full.
func (q *Queue) Push(env Envelope) error {
	q.produce.Lock()
	defer q.produce.Unlock()

	var bo iox.Backoff
	for {
		err := q.ring.Enqueue(&env)
		if err == nil {
			return nil
		}
		if !iox.IsWouldBlock(err) {
			return err
		}
		bo.Wait()
	}
}

// MustPush is Push for producers that can only log a failure.
func (q *Queue) MustPush(component string, env Envelope) {
	if err := q.Push(env); err != nil {
		logger.ErrorCF(component, "Envelope dropped", map[string]any{
			"request_id": env.RequestID,
			"error":      err.Error(),
		})
	}
}

// Drain returns up to max envelopes. It waits at most timeout for the first
// one and never waits once something was dequeued.
func (q *Queue) Drain(max int, timeout time.Duration) []Envelope {
	if max <= 0 {
		return nil
	}

	deadline := time.Now().Add(timeout)
	var bo iox.Backoff
	var out []Envelope
	for len(out) < max {
		env, err := q.ring.Dequeue()
		if err == nil {
			out = append(out, env)
			continue
		}
		if !iox.IsWouldBlock(err) || len(out) > 0 || !time.Now().Before(deadline) {
			break
		}
		bo.Wait()
	}
	return out
}
