package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/logging"
	"github.com/sarathm09/vibranium/packages/sandbox"
)

type namedScript struct {
	name   scenario.Hook
	script string
}

// beforeHooks returns the scripts run ahead of an endpoint: the scenario's
// before-each, then the endpoint's own before-endpoint.
func beforeHooks(s *scenario.Scenario, ep *scenario.Endpoint) []namedScript {
	return collect(
		namedScript{scenario.BeforeEach, s.Scripts[scenario.BeforeEach]},
		namedScript{scenario.BeforeEndpoint, ep.Scripts[scenario.BeforeEndpoint]},
	)
}

func afterHooks(s *scenario.Scenario, ep *scenario.Endpoint) []namedScript {
	return collect(
		namedScript{scenario.AfterEndpoint, ep.Scripts[scenario.AfterEndpoint]},
		namedScript{scenario.AfterEach, s.Scripts[scenario.AfterEach]},
	)
}

func collect(scripts ...namedScript) []namedScript {
	out := scripts[:0]
	for _, s := range scripts {
		if strings.TrimSpace(s.script) != "" {
			out = append(out, s)
		}
	}
	return out
}

// runHook runs one lifecycle script against scope and returns the scope with
// the script's variables merged back. Generator variables keep generating;
// values a script assigns to their names are ignored.
func (r *Runner) runHook(ctx context.Context, ec *ExecutionContext, hook scenario.Hook, script string, scope template.Scope, info map[string]any, seen chain) (template.Scope, error) {
	if strings.TrimSpace(script) == "" {
		return scope, nil
	}
	logging.Debug("Runner", "running %s hook", hook)

	vars, err := r.scripts.Run(ctx, script, sandbox.Env{
		Variables: scope.Values(),
		Endpoint:  info,
		CallAPI:   r.callAPI(ec, scope, seen),
	})
	if err != nil {
		return scope, fmt.Errorf("%w: %s hook: %v", ErrScriptExecution, hook, err)
	}

	updates := make(map[string]any, len(vars))
	for k, v := range vars {
		if existing, ok := scope[k]; ok && existing.IsGenerator() {
			continue
		}
		updates[k] = v
	}
	return scope.With(updates), nil
}

// callAPI lets a script run an endpoint through the executor and read its
// response body.
func (r *Runner) callAPI(ec *ExecutionContext, scope template.Scope, seen chain) sandbox.APIFunc {
	return func(ctx context.Context, collection, scenarioName, endpoint string) (any, error) {
		ref := scenario.Ref{Collection: collection, Scenario: scenarioName, Endpoint: endpoint}
		if seen.has(ref.Key()) {
			return nil, fmt.Errorf("%w: %s", ErrCyclicDependency, ref)
		}
		s, ep, err := ec.lookup.Lookup(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDependencyNotFound, ref, err)
		}
		res, _ := r.runOnce(ctx, ec, s, ep, 0, scope, seen)
		if !res.Passed {
			return res.Response, fmt.Errorf("%w: %s: %s", ErrDependencyExecutionFailed, ref, res.Message)
		}
		return res.Response, nil
	}
}
