package assertions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemaMap map[string]string

func (m schemaMap) LoadSchema(name string) ([]byte, error) {
	s, ok := m[name]
	if !ok {
		return nil, errors.New("no such schema")
	}
	return []byte(s), nil
}

const userSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "additionalProperties": false,
  "properties": {"id": {"type": "string"}, "name": {"type": "string"}}
}`

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Timing:     http.Timing{Total: 120 * time.Millisecond, FirstByte: 80 * time.Millisecond},
	}
}

func newEvaluator() *Evaluator {
	return NewEvaluator(WithSchemaLoader(schemaMap{"user": userSchema}))
}

func TestEvaluator_Status(t *testing.T) {
	e := newEvaluator()

	results := e.Evaluate(context.Background(), scenario.Expect{Status: 201}, createResponse(500, `{}`, nil), template.Scope{})
	require.Len(t, results, 1)
	assert.Equal(t, Result{Test: StatusTest, Expected: 201, Obtained: 500, Passed: false}, results[0])
	assert.False(t, AllPassed(results))

	results = e.Evaluate(context.Background(), scenario.Expect{}, createResponse(200, `{}`, nil), template.Scope{})
	require.Len(t, results, 1)
	assert.Equal(t, 200, results[0].Expected)
	assert.True(t, AllPassed(results))
}

func TestEvaluator_Headers(t *testing.T) {
	e := newEvaluator()
	resp := createResponse(200, `{}`, map[string]string{"Content-Type": "application/json; charset=utf-8"})

	results := e.Evaluate(context.Background(), scenario.Expect{Headers: map[string]string{
		"content-type": "application/json",
		"X-Missing":    "x",
	}}, resp, template.Scope{})

	require.Len(t, results, 3)
	assert.Equal(t, "Header X-Missing", results[1].Test)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "Header content-type", results[2].Test)
	assert.True(t, results[2].Passed)
}

func TestEvaluator_Body(t *testing.T) {
	e := newEvaluator()
	resp := createResponse(200, `{"items": [1, 2, 3], "name": "john"}`, nil)
	scope := template.NewScope(map[string]any{"expectedName": "john"})

	tests := []struct {
		name   string
		expr   any
		passed bool
	}{
		{name: "placeholder comparison", expr: "{response.items.length} === 3", passed: true},
		{name: "scope variable", expr: "'{response.name}' === '{expectedName}'", passed: true},
		{name: "strings are substituted raw", expr: "{response.name} === 'john'", passed: false},
		{name: "response global", expr: "response.items[0] === 1", passed: true},
		{name: "false result", expr: "{response.items.length} > 5", passed: false},
		{name: "truthy non-boolean fails", expr: "1", passed: false},
		{name: "syntax error fails", expr: "((", passed: false},
		{name: "literal true", expr: true, passed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect := scenario.Expect{Response: map[string]any{"check": tt.expr}}
			results := e.Evaluate(context.Background(), expect, resp, scope)
			require.Len(t, results, 2)
			assert.Equal(t, "check", results[1].Test)
			assert.Equal(t, tt.passed, results[1].Passed, results[1].Message)
		})
	}
}

func TestEvaluator_Schema(t *testing.T) {
	e := newEvaluator()
	expect := scenario.Expect{Response: map[string]any{"schema": "user"}}

	results := e.Evaluate(context.Background(), expect, createResponse(200, `{"id": "1", "name": "a"}`, nil), template.Scope{})
	require.Len(t, results, 2)
	assert.True(t, results[1].Passed)
	assert.Equal(t, "Schema user", results[1].Test)

	results = e.Evaluate(context.Background(), expect, createResponse(200, `{"id": "1", "extra": true}`, nil), template.Scope{})
	require.Len(t, results, 3)
	var obtained []any
	for _, r := range results[1:] {
		assert.False(t, r.Passed)
		obtained = append(obtained, r.Obtained)
	}
	assert.ElementsMatch(t, []any{"missing required property name", "property extra is not allowed"}, obtained)

	inline := scenario.Expect{Response: map[string]any{"schema": map[string]any{"type": "array"}}}
	results = e.Evaluate(context.Background(), inline, createResponse(200, `[]`, nil), template.Scope{})
	require.Len(t, results, 2)
	assert.True(t, results[1].Passed)

	missing := scenario.Expect{Response: map[string]any{"schema": "nope"}}
	results = e.Evaluate(context.Background(), missing, createResponse(200, `{}`, nil), template.Scope{})
	require.Len(t, results, 2)
	assert.False(t, results[1].Passed)
	assert.Contains(t, results[1].Message, "failed to load schema")
}

func TestEvaluator_Timing(t *testing.T) {
	e := newEvaluator()
	resp := createResponse(200, `{}`, nil)

	results := e.Evaluate(context.Background(), scenario.Expect{Timing: map[string]any{
		"total":     "< 2000",
		"firstByte": "> 1000",
		"connect":   float64(0),
		"warp":      "< 1",
	}}, resp, template.Scope{})

	require.Len(t, results, 5)
	byTest := map[string]Result{}
	for _, r := range results[1:] {
		byTest[r.Test] = r
	}
	assert.True(t, byTest["Timing total"].Passed)
	assert.Equal(t, float64(120), byTest["Timing total"].Obtained)
	assert.False(t, byTest["Timing firstByte"].Passed)
	assert.True(t, byTest["Timing connect"].Passed)
	assert.False(t, byTest["Timing warp"].Passed)
}

func TestEvaluator_Order(t *testing.T) {
	e := newEvaluator()
	expect := scenario.Expect{
		Status:   200,
		Headers:  map[string]string{"Content-Type": "json"},
		Response: map[string]any{"ok": "true", "schema": map[string]any{"type": "object"}},
		Timing:   map[string]any{"total": "> 0"},
	}
	results := e.Evaluate(context.Background(), expect, createResponse(200, `{}`, nil), template.Scope{})

	var tests []string
	for _, r := range results {
		tests = append(tests, r.Test)
	}
	assert.Equal(t, []string{StatusTest, "Header Content-Type", "ok", "Schema inline", "Timing total"}, tests)
	assert.True(t, AllPassed(results))
}
