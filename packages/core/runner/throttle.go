package runner

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency  = 10
	DefaultPollInterval = 300 * time.Millisecond
)

// Throttle bounds the number of network calls in flight. Acquire polls the
// shared counter at a fixed interval instead of waiting for a release, so
// slots are not handed out in FIFO order.
type Throttle struct {
	limit    int64
	interval time.Duration
	active   atomic.Int64
	peak     atomic.Int64
	limiter  *rate.Limiter
}

// NewThrottle creates a throttle allowing limit concurrent calls. A positive
// rps additionally paces calls to that many per second.
func NewThrottle(limit int, interval time.Duration, rps float64) *Throttle {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := &Throttle{limit: int64(limit), interval: interval}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return t
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with exactly one Release.
func (t *Throttle) Acquire(ctx context.Context) error {
	for {
		cur := t.active.Load()
		if cur < t.limit && t.active.CompareAndSwap(cur, cur+1) {
			t.observe(cur + 1)
			break
		}
		timer := time.NewTimer(t.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			t.Release()
			return err
		}
	}
	return nil
}

func (t *Throttle) Release() {
	t.active.Add(-1)
}

// Active returns the number of calls currently holding a slot.
func (t *Throttle) Active() int {
	return int(t.active.Load())
}

// Peak returns the highest number of simultaneously held slots.
func (t *Throttle) Peak() int {
	return int(t.peak.Load())
}

func (t *Throttle) Limit() int {
	return int(t.limit)
}

func (t *Throttle) observe(n int64) {
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			return
		}
	}
}
