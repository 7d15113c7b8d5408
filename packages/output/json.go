package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/runner"
	"github.com/sarathm09/vibranium/packages/metrics"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Jobs     []JSONJob `json:"jobs"`
	Duration float64   `json:"duration"`
	Time     string    `json:"time"`
}

type JSONJob struct {
	ID        string         `json:"id"`
	Passed    bool           `json:"passed"`
	Summary   JSONSummary    `json:"summary"`
	Latency   JSONLatency    `json:"latency"`
	Scenarios []JSONScenario `json:"scenarios"`
	Duration  float64        `json:"duration"`
}

// JSONSummary represents the job counts
type JSONSummary struct {
	Endpoints        int `json:"endpoints"`
	EndpointsPassed  int `json:"endpointsPassed"`
	Assertions       int `json:"assertions"`
	AssertionsPassed int `json:"assertionsPassed"`
}

// JSONLatency holds latency percentiles in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

func newJSONLatency(l metrics.Latency) JSONLatency {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return JSONLatency{Min: ms(l.Min), Max: ms(l.Max), Mean: ms(l.Mean), P50: ms(l.P50), P95: ms(l.P95), P99: ms(l.P99)}
}

type JSONScenario struct {
	Collection string         `json:"collection"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Duration   float64        `json:"duration"`
	Endpoints  []JSONEndpoint `json:"endpoints"`
}

type JSONEndpoint struct {
	Name       string              `json:"name"`
	Repeat     int                 `json:"repeat"`
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	StatusCode int                 `json:"statusCode,omitempty"`
	Passed     bool                `json:"status"`
	Cached     bool                `json:"cached,omitempty"`
	Message    string              `json:"message,omitempty"`
	Duration   float64             `json:"duration"`
	Timing     map[string]float64  `json:"timing,omitempty"`
	Response   any                 `json:"response,omitempty"`
	Assertions []assertions.Result `json:"expect"`
}

// JSONFormatter formats job results as JSON
type JSONFormatter struct {
	writer io.Writer
	jobs   []JSONJob
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		jobs:   make([]JSONJob, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatJob(job *runner.JobResult) {
	out := JSONJob{
		ID:     job.ID,
		Passed: job.Passed(),
		Summary: JSONSummary{
			Endpoints:        job.EndpointsExecuted,
			EndpointsPassed:  job.EndpointsPassed,
			Assertions:       job.AssertionsProcessed,
			AssertionsPassed: job.AssertionsPassed,
		},
		Latency:   newJSONLatency(job.Summary.Latency),
		Scenarios: make([]JSONScenario, 0, len(job.Scenarios)),
		Duration:  float64(job.Duration.Milliseconds()),
	}

	for _, s := range job.Scenarios {
		if s == nil {
			continue
		}
		js := JSONScenario{
			Collection: s.Collection,
			Name:       s.Name,
			Status:     string(s.Status),
			Message:    s.Message,
			Duration:   float64(s.Duration.Milliseconds()),
			Endpoints:  make([]JSONEndpoint, 0, len(s.Endpoints)),
		}
		for _, r := range s.Endpoints {
			js.Endpoints = append(js.Endpoints, JSONEndpoint{
				Name:       r.Ref.Endpoint,
				Repeat:     r.Repeat,
				Method:     r.Method,
				URL:        r.URL,
				StatusCode: r.StatusCode,
				Passed:     r.Passed,
				Cached:     r.Cached,
				Message:    r.Message,
				Duration:   float64(r.Duration.Milliseconds()),
				Timing:     r.Timing,
				Response:   r.Response,
				Assertions: r.Assertions,
			})
		}
		out.Scenarios = append(out.Scenarios, js)
	}

	f.jobs = append(f.jobs, out)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual endpoint results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	output := JSONOutput{
		Jobs:     f.jobs,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
