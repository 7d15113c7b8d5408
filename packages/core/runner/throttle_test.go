package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_Bound(t *testing.T) {
	th := NewThrottle(3, 2*time.Millisecond, 0)

	var current, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, th.Acquire(context.Background())) {
				return
			}
			defer th.Release()

			n := current.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(3))
	assert.LessOrEqual(t, th.Peak(), 3)
	assert.Equal(t, 0, th.Active())
}

func TestThrottle_Cancel(t *testing.T) {
	th := NewThrottle(1, time.Millisecond, 0)
	require.NoError(t, th.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := th.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, th.Active())

	th.Release()
	assert.Equal(t, 0, th.Active())
}

func TestThrottle_Defaults(t *testing.T) {
	th := NewThrottle(0, 0, 0)
	assert.Equal(t, DefaultConcurrency, th.Limit())
	assert.Equal(t, DefaultPollInterval, th.interval)
	assert.Nil(t, th.limiter)
}

func TestThrottle_Rate(t *testing.T) {
	th := NewThrottle(10, time.Millisecond, 20)

	start := time.Now()
	for i := 0; i < 25; i++ {
		require.NoError(t, th.Acquire(context.Background()))
		th.Release()
	}
	// a burst of 20 passes immediately, the remaining 5 are paced at 20/s
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestChain(t *testing.T) {
	c := chain{}.with("a")
	d := c.with("b")
	assert.True(t, d.has("a"))
	assert.True(t, d.has("b"))
	assert.False(t, c.has("b"))
}
