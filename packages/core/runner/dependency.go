package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sarathm09/vibranium/packages/capture"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/logging"
)

// resolveDependency executes the endpoint dep points at and returns scope
// extended with the variables extracted from its response, plus the results
// of the dependency executions.
func (r *Runner) resolveDependency(ctx context.Context, ec *ExecutionContext, from scenario.Ref, dep scenario.Dependency, scope template.Scope, seen chain) (template.Scope, []*EndpointResult, error) {
	target := dep.Target(from)
	if seen.has(target.Key()) {
		return scope, nil, fmt.Errorf("%w: %s -> %s", ErrCyclicDependency, from, target)
	}

	s, ep, err := ec.lookup.Lookup(ctx, target)
	if err != nil {
		return scope, nil, fmt.Errorf("%w: %s: %v", ErrDependencyNotFound, target, err)
	}

	depScope, err := r.resolveVariables(dep.Variables, scope)
	if err != nil {
		return scope, nil, fmt.Errorf("dependency %s: %w", target, err)
	}

	logging.Debug("Runner", "%s: resolving dependency %s", from, target)
	var results []*EndpointResult
	var last *EndpointResult
	for i := range dep.Repetitions() {
		var res *EndpointResult
		res, depScope = r.runOnce(ctx, ec, s, ep, i, depScope, seen)
		results = append(results, res)
		if !res.Passed {
			return scope, results, fmt.Errorf("%w: %s: %s", ErrDependencyExecutionFailed, target, res.Message)
		}
		last = res
	}

	extracted := make(map[string]any)
	for _, name := range sortedKeys(dep.Extractions()) {
		path := dep.Extractions()[name]
		if sibling, ok := scenario.SiblingVariable(path); ok {
			if v, found := depScope.Lookup(sibling); found {
				extracted[name] = v
				continue
			}
			logging.Warn("Runner", "%s: dependency %s: variable {%s} is not defined", from, target, sibling)
			extracted[name] = capture.NotFound
			continue
		}
		extracted[name] = capture.Extract(last.Response, path)
	}
	return scope.With(extracted), results, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func remarshal(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
