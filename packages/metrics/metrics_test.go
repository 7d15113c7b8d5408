package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Summary(t *testing.T) {
	r := NewRecorder()
	r.Start()

	for i := 1; i <= 100; i++ {
		r.Record("app.users.list", time.Duration(i)*time.Millisecond, true)
	}
	r.Record("app.users.create", 500*time.Millisecond, false)
	r.Stop()

	s := r.Summary()
	assert.Equal(t, int64(101), s.Total)
	assert.Equal(t, int64(1), s.Failed)
	assert.InDelta(t, float64(51*time.Millisecond), float64(s.Latency.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(500*time.Millisecond), float64(s.Latency.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(time.Millisecond), float64(s.Latency.Min), float64(10*time.Microsecond))

	require.Len(t, s.Endpoints, 2)
	assert.Equal(t, "app.users.create", s.Endpoints[0].Name)
	assert.Equal(t, int64(1), s.Endpoints[0].Failed)
	assert.Equal(t, int64(100), s.Endpoints[1].Total)
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.Endpoints[1].Latency.P99), float64(time.Millisecond))
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record("e", time.Millisecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	s := r.Summary()
	assert.Equal(t, int64(1000), s.Total)
	assert.Equal(t, int64(500), s.Failed)
}

func TestRecorder_Empty(t *testing.T) {
	s := NewRecorder().Summary()
	assert.Zero(t, s.Total)
	assert.Equal(t, Latency{}, s.Latency)
	assert.Zero(t, s.Duration)
}
