package runner

import (
	"context"
	"sync"
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/metrics"
)

// Transport sends one request. *http.Client implements it.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*http.Response, error)
}

// SystemChecker is implemented by transports that know their systems.
type SystemChecker interface {
	HasSystem(name string) bool
}

// Lookup finds a compiled endpoint. *compiler.Compiler implements it.
type Lookup interface {
	Lookup(ctx context.Context, ref scenario.Ref) (*scenario.Scenario, *scenario.Endpoint, error)
}

// ResponseCache stores responses of endpoints marked cache.
type ResponseCache interface {
	Get(ctx context.Context, ref scenario.Ref) (*http.Response, bool, error)
	Put(ctx context.Context, ref scenario.Ref, resp *http.Response) error
}

// JobStore persists execution history.
type JobStore interface {
	RecordJob(ctx context.Context, job JobRecord) error
	RecordExecution(ctx context.Context, exec ExecutionRecord) error
}

type JobRecord struct {
	ID                  string
	StartedAt           time.Time
	Duration            time.Duration
	Scenarios           int
	EndpointsExecuted   int
	EndpointsPassed     int
	AssertionsProcessed int
	AssertionsPassed    int
	Passed              bool
	Latency             metrics.Latency
}

type ExecutionRecord struct {
	ID         string
	JobID      string
	Ref        scenario.Ref
	Repeat     int
	Method     string
	URL        string
	StatusCode int
	Passed     bool
	Cached     bool
	Duration   time.Duration
	Message    string
	Assertions []assertions.Result
	ExecutedAt time.Time
}

// MemoryCache is a process-local ResponseCache.
type MemoryCache struct {
	mu        sync.RWMutex
	responses map[string]*http.Response
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{responses: make(map[string]*http.Response)}
}

func (c *MemoryCache) Get(_ context.Context, ref scenario.Ref) (*http.Response, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.responses[ref.Key()]
	if !ok {
		return nil, false, nil
	}
	cp := *resp
	return &cp, true, nil
}

func (c *MemoryCache) Put(_ context.Context, ref scenario.Ref, resp *http.Response) error {
	cp := *resp
	c.mu.Lock()
	c.responses[ref.Key()] = &cp
	c.mu.Unlock()
	return nil
}
