package runner

import (
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/metrics"
)

// State is a stage of the endpoint pipeline.
type State string

const (
	StatePending      State = "PENDING"
	StateBeforeHooks  State = "BEFORE_HOOKS"
	StateDependencies State = "DEPENDENCIES"
	StateThrottleWait State = "THROTTLE_WAIT"
	StateInFlight     State = "IN_FLIGHT"
	StateAsserting    State = "ASSERTING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

type EndpointResult struct {
	Ref        scenario.Ref        `json:"ref"`
	Repeat     int                 `json:"repeat"`
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	StatusCode int                 `json:"statusCode,omitempty"`
	Response   any                 `json:"response,omitempty"`
	Timing     map[string]float64  `json:"timing,omitempty"`
	Assertions []assertions.Result `json:"expect"`
	Passed     bool                `json:"status"`
	State      State               `json:"state"`
	// FailedAt is the stage that failed when State is StateFailed.
	FailedAt     State             `json:"failedAt,omitempty"`
	Message      string            `json:"message,omitempty"`
	Cached       bool              `json:"cached,omitempty"`
	Attempts     int               `json:"attempts,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	Duration     time.Duration     `json:"duration"`
	Dependencies []*EndpointResult `json:"dependencies,omitempty"`
}

// FailedAssertions returns the failing checks.
func (r *EndpointResult) FailedAssertions() []assertions.Result {
	var out []assertions.Result
	for _, a := range r.Assertions {
		if !a.Passed {
			out = append(out, a)
		}
	}
	return out
}

// ScenarioStatus is the terminal status of a scenario.
type ScenarioStatus string

const (
	ScenarioPassed ScenarioStatus = "PASS"
	ScenarioFailed ScenarioStatus = "FAIL"
	ScenarioError  ScenarioStatus = "ERROR"
)

type ScenarioResult struct {
	Collection string            `json:"collection"`
	Name       string            `json:"name"`
	FileID     string            `json:"fileId,omitempty"`
	Status     ScenarioStatus    `json:"status"`
	Message    string            `json:"message,omitempty"`
	Endpoints  []*EndpointResult `json:"endpoints"`
	StartedAt  time.Time         `json:"startedAt"`
	Duration   time.Duration     `json:"duration"`
}

func (s *ScenarioResult) Passed() bool {
	return s.Status == ScenarioPassed
}

type JobResult struct {
	ID                  string            `json:"id"`
	StartedAt           time.Time         `json:"startedAt"`
	Duration            time.Duration     `json:"duration"`
	Scenarios           []*ScenarioResult `json:"scenarios"`
	EndpointsExecuted   int               `json:"endpointsExecuted"`
	EndpointsPassed     int               `json:"endpointsPassed"`
	AssertionsProcessed int               `json:"assertionsProcessed"`
	AssertionsPassed    int               `json:"assertionsPassed"`
	Summary             metrics.Summary   `json:"summary"`
}

// Passed reports whether every scenario that ran passed. Ignored scenarios
// do not count against the job.
func (j *JobResult) Passed() bool {
	for _, s := range j.Scenarios {
		if s.Status == ScenarioFailed {
			return false
		}
	}
	return true
}

// Failed returns the failing endpoint results across all scenarios.
func (j *JobResult) Failed() []*EndpointResult {
	var out []*EndpointResult
	for _, s := range j.Scenarios {
		for _, ep := range s.Endpoints {
			if !ep.Passed {
				out = append(out, ep)
			}
		}
	}
	return out
}
