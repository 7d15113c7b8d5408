package scenario

import (
	"net/http"
	"sort"
	"strings"
)

const (
	DefaultStatus = http.StatusOK
	DefaultMethod = http.MethodGet
)

type Endpoint struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	URL          string         `json:"url"`
	Method       string         `json:"method,omitempty"`
	Payload      any            `json:"payload,omitempty"`
	Headers      map[string]any `json:"headers,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	Dependencies []Dependency   `json:"dependencies,omitempty"`
	Expect       Expect         `json:"expect"`
	RepeatUntil  *RepeatUntil   `json:"repeat-until,omitempty"`
	System       string         `json:"system,omitempty"`
	Language     string         `json:"language,omitempty"`
	Cache        bool           `json:"cache,omitempty"`
	Async        bool           `json:"async,omitempty"`
	Ignore       bool           `json:"ignore,omitempty"`
	Repeat       int            `json:"repeat,omitempty"`
	Delay        int            `json:"delay,omitempty"`
	Mock         *Mock          `json:"mock,omitempty"`
	Scripts      Scripts        `json:"scripts,omitempty"`
}

// HTTPMethod returns the upper-cased method, GET when unset.
func (e *Endpoint) HTTPMethod() string {
	if e.Method == "" {
		return DefaultMethod
	}
	return strings.ToUpper(e.Method)
}

// Repetitions returns how many times the endpoint runs.
func (e *Endpoint) Repetitions() int {
	if e.Repeat < 1 {
		return 1
	}
	return e.Repeat
}

// PayloadRef returns the payload file name for "!name" payloads.
func (e *Endpoint) PayloadRef() (string, bool) {
	s, ok := e.Payload.(string)
	if !ok || !strings.HasPrefix(s, "!") {
		return "", false
	}
	return strings.TrimPrefix(s, "!"), true
}

func (e *Endpoint) Clone() *Endpoint {
	out := *e
	out.Dependencies = append([]Dependency(nil), e.Dependencies...)
	return &out
}

type Expect struct {
	Status   int               `json:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Response map[string]any    `json:"response,omitempty"`
	Timing   map[string]any    `json:"timing,omitempty"`
}

// SchemaKey is the reserved entry of Expect.Response naming a JSON schema.
const SchemaKey = "schema"

// StatusCode returns the expected HTTP status.
func (x Expect) StatusCode() int {
	if x.Status == 0 {
		return DefaultStatus
	}
	return x.Status
}

// Schema returns the schema reference: a document name or an inline schema.
func (x Expect) Schema() (any, bool) {
	v, ok := x.Response[SchemaKey]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// BodyChecks returns the body expressions keyed by name in sorted order.
func (x Expect) BodyChecks() []Check {
	names := make([]string, 0, len(x.Response))
	for k := range x.Response {
		if k != SchemaKey {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	out := make([]Check, 0, len(names))
	for _, name := range names {
		out = append(out, Check{Name: name, Value: x.Response[name]})
	}
	return out
}

// TimingChecks returns the timing bounds in sorted order.
func (x Expect) TimingChecks() []Check {
	names := make([]string, 0, len(x.Timing))
	for k := range x.Timing {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]Check, 0, len(names))
	for _, name := range names {
		out = append(out, Check{Name: name, Value: x.Timing[name]})
	}
	return out
}

// Check is one named expectation.
type Check struct {
	Name  string
	Value any
}

// RepeatUntil re-runs an endpoint until its expectations hold.
type RepeatUntil struct {
	Expect
	Timeout  int `json:"timeout,omitempty"`
	Interval int `json:"interval,omitempty"`
}

// Mock is the canned response served for an endpoint by the mock server.
type Mock struct {
	Status  int               `json:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
	Delay   int               `json:"delay,omitempty"`
}
