// Package metrics aggregates endpoint latencies of a job into percentile
// summaries.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are tracked in microseconds from 1us to 60s.
const (
	minLatency = 1
	maxLatency = 60_000_000
	precision  = 3
)

// Recorder collects latencies. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	endpoints map[string]*endpointStats

	total  atomic.Int64
	failed atomic.Int64

	startTime time.Time
	endTime   time.Time
}

type endpointStats struct {
	histogram *hdrhistogram.Histogram
	total     int64
	failed    int64
}

func NewRecorder() *Recorder {
	return &Recorder{
		histogram: hdrhistogram.New(minLatency, maxLatency, precision),
		endpoints: make(map[string]*endpointStats),
	}
}

func (r *Recorder) Start() {
	r.mu.Lock()
	r.startTime = time.Now()
	r.mu.Unlock()
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	r.endTime = time.Now()
	r.mu.Unlock()
}

// Record adds one endpoint execution.
func (r *Recorder) Record(endpoint string, d time.Duration, passed bool) {
	r.total.Add(1)
	if !passed {
		r.failed.Add(1)
	}

	us := clamp(d.Microseconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.histogram.RecordValue(us)

	if endpoint == "" {
		return
	}
	es, ok := r.endpoints[endpoint]
	if !ok {
		es = &endpointStats{histogram: hdrhistogram.New(minLatency, maxLatency, precision)}
		r.endpoints[endpoint] = es
	}
	es.total++
	if !passed {
		es.failed++
	}
	_ = es.histogram.RecordValue(us)
}

func clamp(us int64) int64 {
	if us < minLatency {
		return minLatency
	}
	if us > maxLatency {
		return maxLatency
	}
	return us
}

type Latency struct {
	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`
}

type EndpointSummary struct {
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Failed  int64   `json:"failed"`
	Latency Latency `json:"latency"`
}

type Summary struct {
	Duration  time.Duration     `json:"duration"`
	Total     int64             `json:"total"`
	Failed    int64             `json:"failed"`
	Latency   Latency           `json:"latency"`
	Endpoints []EndpointSummary `json:"endpoints,omitempty"`
}

// Summary returns the aggregate so far; endpoints are sorted by name.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := r.endTime
	if end.IsZero() {
		end = time.Now()
	}
	var duration time.Duration
	if !r.startTime.IsZero() {
		duration = end.Sub(r.startTime)
	}

	s := Summary{
		Duration: duration,
		Total:    r.total.Load(),
		Failed:   r.failed.Load(),
		Latency:  latency(r.histogram),
	}
	for name, es := range r.endpoints {
		s.Endpoints = append(s.Endpoints, EndpointSummary{
			Name:    name,
			Total:   es.total,
			Failed:  es.failed,
			Latency: latency(es.histogram),
		})
	}
	sort.Slice(s.Endpoints, func(i, j int) bool { return s.Endpoints[i].Name < s.Endpoints[j].Name })
	return s
}

func latency(h *hdrhistogram.Histogram) Latency {
	if h.TotalCount() == 0 {
		return Latency{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Latency{
		Min:  us(h.Min()),
		Max:  us(h.Max()),
		Mean: us(int64(h.Mean())),
		P50:  us(h.ValueAtQuantile(50)),
		P95:  us(h.ValueAtQuantile(95)),
		P99:  us(h.ValueAtQuantile(99)),
	}
}
