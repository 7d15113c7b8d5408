package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/sarathm09/vibranium/packages/logging"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a script exceeds its time budget.
var ErrTimeout = errors.New("script timed out")

// APIFunc runs an endpoint on behalf of a script and returns its response body.
type APIFunc func(ctx context.Context, collection, scenario, endpoint string) (any, error)

// Env is what a lifecycle script sees.
type Env struct {
	Variables map[string]any
	Endpoint  map[string]any
	CallAPI   APIFunc
}

type Sandbox struct {
	timeout time.Duration
}

type Option func(*Sandbox)

func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(opts ...Option) *Sandbox {
	s := &Sandbox{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes script and returns the variables as the script left them.
// The script works on a deep copy, so the input map is never modified.
func (s *Sandbox) Run(ctx context.Context, script string, env Env) (map[string]any, error) {
	vars := normalize(env.Variables)
	if strings.TrimSpace(script) == "" {
		return vars, nil
	}

	vm := s.newVM()
	if err := vm.Set("variables", vars); err != nil {
		return nil, err
	}
	endpoint := env.Endpoint
	if endpoint == nil {
		endpoint = map[string]any{}
	}
	if err := vm.Set("endpoint", endpoint); err != nil {
		return nil, err
	}
	if env.CallAPI != nil {
		call := env.CallAPI
		err := vm.Set("callApi", func(collection, scenario, name string) (any, error) {
			return call(ctx, collection, scenario, name)
		})
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.run(ctx, vm, script); err != nil {
		return nil, err
	}

	exported, ok := vm.Get("variables").Export().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("script replaced variables with a non-object value")
	}
	return normalize(exported), nil
}

// Evaluate runs a single expression with globals bound as top-level names.
func (s *Sandbox) Evaluate(ctx context.Context, expr string, globals map[string]any) (any, error) {
	vm := s.newVM()
	for k, v := range globals {
		if err := vm.Set(k, v); err != nil {
			return nil, err
		}
	}
	v, err := s.run(ctx, vm, expr)
	if err != nil {
		return nil, err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func (s *Sandbox) newVM() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	logFn := func(args ...any) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		logging.Info("Sandbox", "%s", strings.Join(parts, " "))
	}
	_ = vm.Set("log", logFn)
	console := vm.NewObject()
	_ = console.Set("log", logFn)
	_ = vm.Set("console", console)
	return vm
}

func (s *Sandbox) run(ctx context.Context, vm *goja.Runtime, src string) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	v, err := vm.RunString(src)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return nil, cause
			}
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("script error: %w", err)
	}
	return v, nil
}

// normalize converts exported values to plain JSON types. Values that cannot
// be represented, such as functions, are dropped.
func normalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		raw, err := json.Marshal(v)
		if err != nil {
			logging.Debug("Sandbox", "dropping variable %q: %v", k, err)
			continue
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			continue
		}
		out[k] = decoded
	}
	return out
}
