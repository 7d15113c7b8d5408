package assertions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/sandbox"
	"github.com/xeipuuv/gojsonschema"
)

// StatusTest names the status assertion.
const StatusTest = "Response status"

type Result struct {
	Test     string `json:"test"`
	Expected any    `json:"expected"`
	Obtained any    `json:"obtained"`
	Passed   bool   `json:"result"`
	Message  string `json:"message,omitempty"`
}

// SchemaLoader returns a named JSON schema document.
type SchemaLoader interface {
	LoadSchema(name string) ([]byte, error)
}

// ExpressionEvaluator evaluates a JavaScript expression with globals bound.
type ExpressionEvaluator interface {
	Evaluate(ctx context.Context, expr string, globals map[string]any) (any, error)
}

type Evaluator struct {
	templates *template.Engine
	exprs     ExpressionEvaluator
	schemas   SchemaLoader
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

func WithTemplates(t *template.Engine) EvaluatorOption {
	return func(e *Evaluator) {
		e.templates = t
	}
}

func WithExpressions(x ExpressionEvaluator) EvaluatorOption {
	return func(e *Evaluator) {
		e.exprs = x
	}
}

func WithSchemaLoader(l SchemaLoader) EvaluatorOption {
	return func(e *Evaluator) {
		e.schemas = l
	}
}

func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	if e.templates == nil {
		e.templates = template.New()
	}
	if e.exprs == nil {
		e.exprs = sandbox.New()
	}
	return e
}

// Evaluate runs every check of expect against resp.
func (e *Evaluator) Evaluate(ctx context.Context, expect scenario.Expect, resp *http.Response, scope template.Scope) []Result {
	results := []Result{e.status(expect, resp)}
	results = append(results, e.headers(expect, resp)...)

	body := resp.Data()
	results = append(results, e.body(ctx, expect, body, scope)...)
	if ref, ok := expect.Schema(); ok {
		results = append(results, e.schema(ref, resp.Body, body)...)
	}
	results = append(results, e.timing(ctx, expect, resp)...)
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (e *Evaluator) status(expect scenario.Expect, resp *http.Response) Result {
	want := expect.StatusCode()
	return Result{
		Test:     StatusTest,
		Expected: want,
		Obtained: resp.StatusCode,
		Passed:   resp.StatusCode == want,
	}
}

func (e *Evaluator) headers(expect scenario.Expect, resp *http.Response) []Result {
	names := make([]string, 0, len(expect.Headers))
	for name := range expect.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		want := expect.Headers[name]
		got := resp.Header(name)
		r := Result{
			Test:     "Header " + name,
			Expected: want,
			Obtained: got,
			Passed:   got != "" && strings.Contains(got, want),
		}
		if got == "" {
			r.Message = fmt.Sprintf("header %s not present", name)
		}
		results = append(results, r)
	}
	return results
}

func (e *Evaluator) body(ctx context.Context, expect scenario.Expect, body any, scope template.Scope) []Result {
	checks := expect.BodyChecks()
	if len(checks) == 0 {
		return nil
	}
	bound := scope.With(map[string]any{"response": body})
	globals := map[string]any{"response": body}

	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		expr := expression(check.Value)
		resolved := e.templates.Substitute(expr, bound)
		results = append(results, e.truthy(ctx, check.Name, expr, resolved, globals))
	}
	return results
}

func (e *Evaluator) timing(ctx context.Context, expect scenario.Expect, resp *http.Response) []Result {
	checks := expect.TimingChecks()
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		test := "Timing " + check.Name
		observed, ok := resp.Timing.Value(check.Name)
		if !ok {
			results = append(results, Result{
				Test:     test,
				Expected: check.Value,
				Message:  fmt.Sprintf("unknown timing phase %q", check.Name),
			})
			continue
		}

		if bound, numeric := toFloat64(check.Value); numeric {
			results = append(results, Result{
				Test:     test,
				Expected: bound,
				Obtained: observed,
				Passed:   observed == bound,
			})
			continue
		}

		expr := strconv.FormatFloat(observed, 'f', -1, 64) + " " + expression(check.Value)
		r := e.truthy(ctx, test, check.Value, expr, nil)
		r.Obtained = observed
		results = append(results, r)
	}
	return results
}

// truthy evaluates expr and passes only on a boolean true.
func (e *Evaluator) truthy(ctx context.Context, test string, expected any, expr string, globals map[string]any) Result {
	r := Result{Test: test, Expected: expected}
	v, err := e.exprs.Evaluate(ctx, expr, globals)
	if err != nil {
		r.Obtained = expr
		r.Message = err.Error()
		return r
	}
	r.Obtained = v
	b, ok := v.(bool)
	r.Passed = ok && b
	if !r.Passed {
		r.Message = fmt.Sprintf("%s evaluated to %v", expr, v)
	}
	return r
}

func (e *Evaluator) schema(ref any, raw []byte, body any) []Result {
	name := "inline"
	var schemaLoader gojsonschema.JSONLoader
	switch v := ref.(type) {
	case string:
		name = v
		if e.schemas == nil {
			return []Result{schemaFailure(name, "no schema source configured")}
		}
		data, err := e.schemas.LoadSchema(v)
		if err != nil {
			return []Result{schemaFailure(name, fmt.Sprintf("failed to load schema: %v", err))}
		}
		schemaLoader = gojsonschema.NewBytesLoader(data)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return []Result{schemaFailure(name, fmt.Sprintf("invalid inline schema: %v", err))}
		}
		schemaLoader = gojsonschema.NewBytesLoader(data)
	}

	doc := raw
	if !json.Valid(doc) {
		encoded, err := json.Marshal(body)
		if err != nil {
			return []Result{schemaFailure(name, fmt.Sprintf("failed to marshal body: %v", err))}
		}
		doc = encoded
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return []Result{schemaFailure(name, fmt.Sprintf("schema validation error: %v", err))}
	}
	if result.Valid() {
		return []Result{{Test: "Schema " + name, Expected: "valid", Obtained: "valid", Passed: true}}
	}

	results := make([]Result, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		results = append(results, Result{
			Test:     "Schema " + name + ": " + desc.Field(),
			Expected: "valid",
			Obtained: describe(desc),
			Message:  desc.String(),
		})
	}
	return results
}

func describe(desc gojsonschema.ResultError) string {
	property, _ := desc.Details()["property"].(string)
	switch desc.Type() {
	case "required":
		return "missing required property " + property
	case "additional_property_not_allowed":
		return "property " + property + " is not allowed"
	}
	return desc.String()
}

func schemaFailure(name, msg string) Result {
	return Result{Test: "Schema " + name, Expected: "valid", Obtained: "error", Message: msg}
}

func expression(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
