package runner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/config"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/logging"
	"github.com/sarathm09/vibranium/packages/metrics"
	"github.com/sarathm09/vibranium/packages/sandbox"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRepeatUntilTimeout  = 2 * time.Minute
	DefaultRepeatUntilInterval = time.Second
)

// Config is the job-scoped configuration.
type Config struct {
	Concurrency         int
	PollInterval        time.Duration
	RequestsPerSecond   float64
	RepeatUntilTimeout  time.Duration
	RepeatUntilInterval time.Duration
	// Sync forces every scenario, endpoint and repeat to run sequentially.
	Sync bool
	// System is used by endpoints that do not name their own.
	System    string
	Language  string
	Variables map[string]any
	JobID     string
}

// ScriptRunner runs lifecycle scripts. *sandbox.Sandbox implements it.
type ScriptRunner interface {
	Run(ctx context.Context, script string, env sandbox.Env) (map[string]any, error)
}

type Runner struct {
	config    *Config
	transport Transport
	lookup    Lookup
	templates *template.Engine
	evaluator *assertions.Evaluator
	scripts   ScriptRunner
	cache     ResponseCache
	store     JobStore
}

type Option func(*Runner)

func WithTransport(t Transport) Option {
	return func(r *Runner) { r.transport = t }
}

// WithLookup sets where dependencies are found. Without it only the
// scenarios of the job itself are searched.
func WithLookup(l Lookup) Option {
	return func(r *Runner) { r.lookup = l }
}

func WithTemplates(e *template.Engine) Option {
	return func(r *Runner) { r.templates = e }
}

func WithEvaluator(e *assertions.Evaluator) Option {
	return func(r *Runner) { r.evaluator = e }
}

func WithScripts(s ScriptRunner) Option {
	return func(r *Runner) { r.scripts = s }
}

func WithResponseCache(c ResponseCache) Option {
	return func(r *Runner) { r.cache = c }
}

func WithJobStore(s JobStore) Option {
	return func(r *Runner) { r.store = s }
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Runner{config: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.transport == nil {
		r.transport = http.NewClient()
	}
	if r.templates == nil {
		r.templates = template.New()
	}
	if r.evaluator == nil {
		r.evaluator = assertions.NewEvaluator(assertions.WithTemplates(r.templates))
	}
	if r.scripts == nil {
		r.scripts = sandbox.New()
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	return r
}

// RunJob executes scenarios and returns their results in input order.
// Endpoint failures are part of the result; the error is reserved for
// configuration problems and cancellation.
func (r *Runner) RunJob(ctx context.Context, scenarios []*scenario.Scenario) (*JobResult, error) {
	if err := r.checkSystems(scenarios); err != nil {
		return nil, err
	}

	ec := r.newExecutionContext(scenarios)
	job := &JobResult{
		ID:        ec.JobID,
		StartedAt: time.Now(),
		Scenarios: make([]*ScenarioResult, len(scenarios)),
	}
	logging.Info("Runner", "job %s: running %d scenarios", job.ID, len(scenarios))

	globals := r.templates.Globals().With(r.config.Variables)

	ec.Metrics.Start()
	g, gctx := errgroup.WithContext(ctx)
	if ec.sync {
		g.SetLimit(1)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			job.Scenarios[i] = r.runScenario(gctx, ec, s, globals)
			return nil
		})
	}
	_ = g.Wait()
	ec.Metrics.Stop()

	job.Duration = time.Since(job.StartedAt)
	job.EndpointsExecuted = int(ec.endpointsExecuted.Load())
	job.EndpointsPassed = int(ec.endpointsPassed.Load())
	job.AssertionsProcessed = int(ec.assertionsProcessed.Load())
	job.AssertionsPassed = int(ec.assertionsPassed.Load())
	job.Summary = ec.Metrics.Summary()

	if err := ctx.Err(); err != nil {
		return job, err
	}

	if r.store != nil {
		rec := JobRecord{
			ID:                  job.ID,
			StartedAt:           job.StartedAt,
			Duration:            job.Duration,
			Scenarios:           len(job.Scenarios),
			EndpointsExecuted:   job.EndpointsExecuted,
			EndpointsPassed:     job.EndpointsPassed,
			AssertionsProcessed: job.AssertionsProcessed,
			AssertionsPassed:    job.AssertionsPassed,
			Passed:              job.Passed(),
			Latency:             job.Summary.Latency,
		}
		if err := r.store.RecordJob(context.WithoutCancel(ctx), rec); err != nil {
			logging.Warn("Runner", "job %s: recording job failed: %v", job.ID, err)
		}
	}

	logging.Info("Runner", "job %s: %d/%d endpoints passed in %s",
		job.ID, job.EndpointsPassed, job.EndpointsExecuted, job.Duration.Round(time.Millisecond))
	return job, nil
}

func (r *Runner) newExecutionContext(scenarios []*scenario.Scenario) *ExecutionContext {
	id := r.config.JobID
	if id == "" {
		id = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	lookup := r.lookup
	if lookup == nil {
		cache := compiler.NewCache()
		for _, s := range scenarios {
			cache.Add(s)
		}
		lookup = compiler.New(nil, compiler.WithCache(cache))
	}
	return &ExecutionContext{
		JobID:    id,
		Throttle: NewThrottle(r.config.Concurrency, r.config.PollInterval, r.config.RequestsPerSecond),
		Metrics:  metrics.NewRecorder(),
		lookup:   lookup,
		sync:     r.config.Sync,
		system:   r.config.System,
	}
}

// checkSystems rejects system names the transport does not know before
// anything runs.
func (r *Runner) checkSystems(scenarios []*scenario.Scenario) error {
	checker, ok := r.transport.(SystemChecker)
	if !ok {
		return nil
	}
	if !checker.HasSystem(r.config.System) {
		return fmt.Errorf("%w: unknown system %q", config.ErrConfiguration, r.config.System)
	}
	for _, s := range scenarios {
		for _, ep := range s.Endpoints {
			if ep.System != "" && !checker.HasSystem(ep.System) {
				return fmt.Errorf("%w: endpoint %s uses unknown system %q",
					config.ErrConfiguration, s.Ref(ep.Name), ep.System)
			}
		}
	}
	return nil
}

func (r *Runner) runScenario(ctx context.Context, ec *ExecutionContext, s *scenario.Scenario, globals template.Scope) *ScenarioResult {
	result := &ScenarioResult{
		Collection: s.Collection,
		Name:       s.Name,
		FileID:     s.FileID,
		StartedAt:  time.Now(),
	}
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	if s.Ignore {
		result.Status = ScenarioError
		result.Message = "scenario is ignored"
		logging.Debug("Runner", "skipping ignored scenario %s.%s", s.Collection, s.Name)
		return result
	}

	scope, err := r.resolveVariables(s.Variables, globals)
	if err != nil {
		return failScenario(result, fmt.Errorf("scenario variables: %w", err))
	}

	base := s.Ref("")
	scope, err = r.runHook(ctx, ec, scenario.BeforeScenario, s.Scripts[scenario.BeforeScenario], scope, r.scenarioInfo(s), chain{})
	if err != nil {
		return failScenario(result, err)
	}
	scope, err = r.generate(ctx, ec, s, base, scope)
	if err != nil {
		return failScenario(result, err)
	}
	scope, err = r.runHook(ctx, ec, scenario.AfterGlobals, s.Scripts[scenario.AfterGlobals], scope, r.scenarioInfo(s), chain{})
	if err != nil {
		return failScenario(result, err)
	}

	var endpoints []*scenario.Endpoint
	for _, ep := range s.Endpoints {
		if ep.Ignore {
			logging.Debug("Runner", "skipping ignored endpoint %s", s.Ref(ep.Name))
			continue
		}
		endpoints = append(endpoints, ep)
	}

	perEndpoint := make([][]*EndpointResult, len(endpoints))
	g, gctx := errgroup.WithContext(ctx)
	if ec.sync {
		g.SetLimit(1)
	}
	for i, ep := range endpoints {
		g.Go(func() error {
			perEndpoint[i] = r.runEndpoint(gctx, ec, s, ep, scope, chain{})
			return nil
		})
	}
	_ = g.Wait()

	result.Status = ScenarioPassed
	for _, results := range perEndpoint {
		for _, res := range results {
			result.Endpoints = append(result.Endpoints, res)
			if !res.Passed {
				result.Status = ScenarioFailed
			}
		}
	}

	if _, err := r.runHook(ctx, ec, scenario.AfterScenario, s.Scripts[scenario.AfterScenario], scope, r.scenarioInfo(s), chain{}); err != nil {
		logging.Warn("Runner", "scenario %s.%s: %v", s.Collection, s.Name, err)
	}
	return result
}

func failScenario(result *ScenarioResult, err error) *ScenarioResult {
	result.Status = ScenarioFailed
	result.Message = err.Error()
	logging.Warn("Runner", "scenario %s.%s failed: %v", result.Collection, result.Name, err)
	return result
}

// generate resolves the scenario's generate block once. Entries are literal
// templates, or dependency declarations whose extracted value is bound
// under the entry name.
func (r *Runner) generate(ctx context.Context, ec *ExecutionContext, s *scenario.Scenario, base scenario.Ref, scope template.Scope) (template.Scope, error) {
	names := make([]string, 0, len(s.Generate))
	for name := range s.Generate {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := s.Generate[name]
		if dep, ok := generatorDependency(spec); ok {
			if dep.Variable.Name == "" && len(dep.Variable.Paths) == 0 {
				dep.Variable = scenario.Mapping{Name: name}
			}
			next, _, err := r.resolveDependency(ctx, ec, base, dep, scope, chain{})
			if err != nil {
				return scope, fmt.Errorf("generating %s: %w", name, err)
			}
			scope = next
			continue
		}

		value, err := r.templates.Resolve(spec, scope)
		if err != nil {
			return scope, fmt.Errorf("generating %s: %w", name, err)
		}
		scope = scope.With(map[string]any{name: value})
	}
	return scope, nil
}

func generatorDependency(spec any) (scenario.Dependency, bool) {
	m, ok := spec.(map[string]any)
	if !ok {
		return scenario.Dependency{}, false
	}
	if _, ok := m["api"]; !ok {
		return scenario.Dependency{}, false
	}
	var dep scenario.Dependency
	if err := remarshal(m, &dep); err != nil {
		logging.Warn("Runner", "generate entry looks like a dependency but does not decode: %v", err)
		return scenario.Dependency{}, false
	}
	return dep, true
}

// resolveVariables resolves a variables block against scope and returns the
// overlaid scope.
func (r *Runner) resolveVariables(vars map[string]any, scope template.Scope) (template.Scope, error) {
	if len(vars) == 0 {
		return scope, nil
	}
	resolved := make(map[string]any, len(vars))
	for k, v := range vars {
		value, err := r.templates.Resolve(v, scope)
		if err != nil {
			return scope, fmt.Errorf("variable %s: %w", k, err)
		}
		resolved[k] = value
	}
	return scope.With(resolved), nil
}

func (r *Runner) scenarioInfo(s *scenario.Scenario) map[string]any {
	return map[string]any{
		"collection": s.Collection,
		"scenario":   s.Name,
	}
}
