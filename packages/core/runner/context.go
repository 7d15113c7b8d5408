package runner

import (
	"sync/atomic"

	"github.com/sarathm09/vibranium/packages/metrics"
)

// ExecutionContext holds the state owned by one job. It is created by RunJob
// and passed explicitly through the call graph.
type ExecutionContext struct {
	JobID    string
	Throttle *Throttle
	Metrics  *metrics.Recorder

	lookup Lookup
	sync   bool
	system string

	endpointsExecuted   atomic.Int64
	endpointsPassed     atomic.Int64
	assertionsProcessed atomic.Int64
	assertionsPassed    atomic.Int64
}

func (ec *ExecutionContext) record(res *EndpointResult) {
	ec.endpointsExecuted.Add(1)
	if res.Passed {
		ec.endpointsPassed.Add(1)
	}
	ec.assertionsProcessed.Add(int64(len(res.Assertions)))
	for _, a := range res.Assertions {
		if a.Passed {
			ec.assertionsPassed.Add(1)
		}
	}
	ec.Metrics.Record(res.Ref.String(), res.Duration, res.Passed)
}

// chain is the set of endpoints on the current dependency path.
type chain map[string]struct{}

func (c chain) with(key string) chain {
	out := make(chain, len(c)+1)
	for k := range c {
		out[k] = struct{}{}
	}
	out[key] = struct{}{}
	return out
}

func (c chain) has(key string) bool {
	_, ok := c[key]
	return ok
}
