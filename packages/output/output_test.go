package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"testing"
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/runner"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob() *runner.JobResult {
	ref := func(name string) scenario.Ref {
		return scenario.Ref{Collection: "shop", Scenario: "orders", Endpoint: name}
	}
	return &runner.JobResult{
		ID:                  "1700000000000",
		Duration:            250 * time.Millisecond,
		EndpointsExecuted:   3,
		EndpointsPassed:     1,
		AssertionsProcessed: 2,
		AssertionsPassed:    1,
		Scenarios: []*runner.ScenarioResult{
			{
				Collection: "shop",
				Name:       "orders",
				Status:     runner.ScenarioFailed,
				Endpoints: []*runner.EndpointResult{
					{Ref: ref("list"), Method: "GET", URL: "/orders", StatusCode: 200, Passed: true, State: runner.StateDone,
						Assertions: []assertions.Result{{Test: assertions.StatusTest, Expected: 200, Obtained: 200, Passed: true}}},
					{Ref: ref("create"), Method: "POST", URL: "/orders", StatusCode: 500, State: runner.StateDone,
						Assertions: []assertions.Result{{Test: assertions.StatusTest, Expected: 201, Obtained: 500}}},
					{Ref: ref("details"), Repeat: 1, State: runner.StateFailed, FailedAt: runner.StateDependencies,
						Message: "dependency not found: shop.orders.ghost"},
				},
			},
			{Collection: "shop", Name: "legacy", Status: runner.ScenarioError, Message: "scenario is ignored"},
		},
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range []string{"", "console", "JSON", "junit"} {
		f, err := New(format, &buf, false, true)
		require.NoError(t, err, format)
		assert.NotNil(t, f)
	}
	_, err := New("html", &buf, false, true)
	assert.Error(t, err)
}

func TestConsoleFormatter_FormatJob(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatJob(sampleJob())

	out := buf.String()
	assert.Contains(t, out, "Job 1700000000000")
	assert.Contains(t, out, "✗ orders")
	assert.Contains(t, out, "✓ list")
	assert.Contains(t, out, "✗ create")
	assert.Contains(t, out, "Expected: 201")
	assert.Contains(t, out, "Obtained: 500")
	assert.Contains(t, out, "details #2")
	assert.Contains(t, out, "dependency not found")
	assert.Contains(t, out, "- legacy (scenario is ignored)")
	assert.Contains(t, out, "1 passed, 2 failed, 3 total")
	assert.Contains(t, out, "Assertions: 1/2 passed")
}

func TestConsoleFormatter_FormatTree(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatTree([]*compiler.Node{{
		Name: "shop",
		Children: []*compiler.Node{
			{Name: "orders", Children: []*compiler.Node{{Name: "list"}, {Name: "create"}}},
			{Name: "users", Children: []*compiler.Node{{Name: "me"}}},
		},
	}})

	expected := "shop\n" +
		"├── orders\n" +
		"│   ├── list\n" +
		"│   └── create\n" +
		"└── users\n" +
		"    └── me\n"
	assert.Equal(t, expected, buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatJob(sampleJob())
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Jobs, 1)
	job := out.Jobs[0]
	assert.False(t, job.Passed)
	assert.Equal(t, 3, job.Summary.Endpoints)
	require.Len(t, job.Scenarios, 2)
	assert.Equal(t, "FAIL", job.Scenarios[0].Status)
	assert.Equal(t, "ERROR", job.Scenarios[1].Status)
	require.Len(t, job.Scenarios[0].Endpoints, 3)
	create := job.Scenarios[0].Endpoints[1]
	assert.Equal(t, "create", create.Name)
	assert.False(t, create.Passed)
	require.Len(t, create.Assertions, 1)
	assert.Equal(t, float64(201), create.Assertions[0].Expected)
	assert.Equal(t, float64(1000), out.Duration)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatJob(sampleJob())
	require.NoError(t, f.Flush(time.Second))

	assert.Contains(t, buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`)

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)

	require.Len(t, suites.TestSuites, 2)
	orders := suites.TestSuites[0]
	assert.Equal(t, "shop.orders", orders.Name)
	require.Len(t, orders.TestCases, 3)
	assert.Nil(t, orders.TestCases[0].Failure)
	require.NotNil(t, orders.TestCases[1].Failure)
	assert.Contains(t, orders.TestCases[1].Failure.Content, "Response status: expected 201, obtained 500")
	require.NotNil(t, orders.TestCases[2].Error)
	assert.Equal(t, "DEPENDENCIES", orders.TestCases[2].Error.Type)
	assert.Equal(t, "details #2", orders.TestCases[2].Name)
}
