package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/logging"
	"golang.org/x/sync/errgroup"
)

// runEndpoint applies the repeat policy. Async repeats run concurrently
// unless the job is synchronous; sequential repeats carry the scope built by
// dependency resolution from one repeat to the next.
func (r *Runner) runEndpoint(ctx context.Context, ec *ExecutionContext, s *scenario.Scenario, ep *scenario.Endpoint, scope template.Scope, seen chain) []*EndpointResult {
	reps := ep.Repetitions()
	results := make([]*EndpointResult, reps)

	if ep.Async && !ec.sync && reps > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i := range reps {
			g.Go(func() error {
				results[i], _ = r.runOnce(gctx, ec, s, ep, i, scope, seen)
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for i := range reps {
		if i > 0 && ep.Delay > 0 {
			if err := sleep(ctx, time.Duration(ep.Delay)*time.Millisecond); err != nil {
				results = results[:i]
				break
			}
		}
		results[i], scope = r.runOnce(ctx, ec, s, ep, i, scope, seen)
	}
	return results
}

// runOnce drives one execution of ep through the pipeline. It returns the
// result and the scope after dependency resolution.
func (r *Runner) runOnce(ctx context.Context, ec *ExecutionContext, s *scenario.Scenario, ep *scenario.Endpoint, repeat int, scope template.Scope, seen chain) (*EndpointResult, template.Scope) {
	ref := s.Ref(ep.Name)
	res := &EndpointResult{
		Ref:       ref,
		Repeat:    repeat,
		Method:    ep.HTTPMethod(),
		State:     StatePending,
		StartedAt: time.Now(),
	}
	seen = seen.with(ref.Key())

	finish := func() (*EndpointResult, template.Scope) {
		res.Duration = time.Since(res.StartedAt)
		ec.record(res)
		r.recordExecution(ctx, ec, res)
		return res, scope
	}

	r.advance(res, StateBeforeHooks)
	info := r.endpointInfo(ref, ep, nil)
	var err error
	for _, hook := range beforeHooks(s, ep) {
		scope, err = r.runHook(ctx, ec, hook.name, hook.script, scope, info, seen)
		if err != nil {
			r.fail(res, err)
			return finish()
		}
	}

	r.advance(res, StateDependencies)
	for _, dep := range ep.Dependencies {
		var depResults []*EndpointResult
		scope, depResults, err = r.resolveDependency(ctx, ec, ref, dep, scope, seen)
		res.Dependencies = append(res.Dependencies, depResults...)
		if err != nil {
			r.fail(res, err)
			return finish()
		}
	}

	local, err := r.resolveVariables(ep.Variables, scope)
	if err != nil {
		r.fail(res, err)
		return finish()
	}

	resp, err := r.exchange(ctx, ec, ep, ref, local, res, true)
	if err != nil {
		r.fail(res, err)
		return finish()
	}

	if ep.RepeatUntil != nil {
		resp, err = r.repeatUntil(ctx, ec, ep, ref, local, res, resp)
		if err != nil {
			r.fail(res, err)
			return finish()
		}
	}

	r.advance(res, StateAsserting)
	res.Assertions = r.evaluator.Evaluate(ctx, ep.Expect, resp, local)
	res.Passed = assertions.AllPassed(res.Assertions)
	r.advance(res, StateDone)
	if !res.Passed {
		res.Message = describeFailures(res.FailedAssertions())
	}

	info = r.endpointInfo(ref, ep, resp)
	for _, hook := range afterHooks(s, ep) {
		if _, err := r.runHook(ctx, ec, hook.name, hook.script, local, info, seen); err != nil {
			logging.Warn("Runner", "%s: %v", ref, err)
		}
	}
	return finish()
}

// exchange builds and sends the request, serving cached endpoints from the
// response cache without consuming a throttle slot.
// exchange sends the request for ep. A cached response is served only when
// readCache is set; fresh responses of cached endpoints always refresh the cache.
func (r *Runner) exchange(ctx context.Context, ec *ExecutionContext, ep *scenario.Endpoint, ref scenario.Ref, scope template.Scope, res *EndpointResult, readCache bool) (*http.Response, error) {
	req, err := r.buildRequest(ec, ep, scope)
	if err != nil {
		return nil, err
	}
	res.URL = req.URL
	res.Attempts++

	if ep.Cache && readCache {
		cached, ok, err := r.cache.Get(ctx, ref)
		if err != nil {
			logging.Warn("Runner", "%s: response cache read failed: %v", ref, err)
		}
		if ok {
			logging.Debug("Runner", "%s: served from response cache", ref)
			r.observe(res, cached)
			res.Cached = true
			return cached, nil
		}
	}

	r.advance(res, StateThrottleWait)
	if err := ec.Throttle.Acquire(ctx); err != nil {
		return nil, err
	}
	r.advance(res, StateInFlight)
	resp, err := func() (*http.Response, error) {
		defer ec.Throttle.Release()
		return r.transport.Send(ctx, req)
	}()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, req.Method, req.URL, err)
	}
	r.observe(res, resp)

	if ep.Cache {
		if err := r.cache.Put(ctx, ref, resp); err != nil {
			logging.Warn("Runner", "%s: response cache write failed: %v", ref, err)
		}
	}
	return resp, nil
}

func (r *Runner) buildRequest(ec *ExecutionContext, ep *scenario.Endpoint, scope template.Scope) (*http.Request, error) {
	url, err := r.templates.Resolve(ep.URL, scope)
	if err != nil {
		return nil, fmt.Errorf("resolving url: %w", err)
	}
	req := http.NewRequest(ep.HTTPMethod(), fmt.Sprint(url))

	system := ep.System
	if system == "" {
		system = ec.system
	}
	req.SetSystem(system)

	lang := ep.Language
	if lang == "" {
		lang = r.config.Language
	}
	req.SetLanguage(lang)

	for k, v := range ep.Headers {
		value, err := r.templates.Resolve(v, scope)
		if err != nil {
			return nil, fmt.Errorf("resolving header %s: %w", k, err)
		}
		req.SetHeader(k, fmt.Sprint(value))
	}

	if ep.Payload != nil {
		payload, err := r.templates.Resolve(ep.Payload, scope)
		if err != nil {
			return nil, fmt.Errorf("resolving payload: %w", err)
		}
		if err := req.SetPayload(payload); err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
	}
	return req, nil
}

// repeatUntil re-sends the request until the repeat-until expectations hold
// or the timeout elapses. The last response is returned either way.
func (r *Runner) repeatUntil(ctx context.Context, ec *ExecutionContext, ep *scenario.Endpoint, ref scenario.Ref, scope template.Scope, res *EndpointResult, resp *http.Response) (*http.Response, error) {
	timeout := r.config.RepeatUntilTimeout
	if timeout <= 0 {
		timeout = DefaultRepeatUntilTimeout
	}
	if ep.RepeatUntil.Timeout > 0 {
		timeout = time.Duration(ep.RepeatUntil.Timeout) * time.Millisecond
	}
	interval := r.config.RepeatUntilInterval
	if interval <= 0 {
		interval = DefaultRepeatUntilInterval
	}
	if ep.RepeatUntil.Interval > 0 {
		interval = time.Duration(ep.RepeatUntil.Interval) * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	for {
		r.advance(res, StateAsserting)
		if untilSatisfied(r.evaluator.Evaluate(ctx, ep.RepeatUntil.Expect, resp, scope), ep.RepeatUntil.Status != 0) {
			return resp, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			logging.Debug("Runner", "%s: repeat-until gave up after %d attempts", ref, res.Attempts)
			return resp, nil
		}
		if err := sleep(ctx, min(interval, remaining)); err != nil {
			return resp, nil
		}
		if time.Now().After(deadline) {
			return resp, nil
		}

		next, err := r.exchange(ctx, ec, ep, ref, scope, res, false)
		if err != nil {
			return nil, err
		}
		resp = next
	}
}

// untilSatisfied reports whether the repeat-until checks hold. The status
// result only counts when a status was declared.
func untilSatisfied(results []assertions.Result, statusDeclared bool) bool {
	for _, res := range results {
		if res.Test == assertions.StatusTest && !statusDeclared {
			continue
		}
		if !res.Passed {
			return false
		}
	}
	return true
}

func (r *Runner) observe(res *EndpointResult, resp *http.Response) {
	res.StatusCode = resp.StatusCode
	res.Cached = false
	res.Response = resp.Data()
	res.Timing = resp.Timing.Milliseconds()
}

func (r *Runner) advance(res *EndpointResult, state State) {
	res.State = state
	logging.Debug("Runner", "%s[%d] -> %s", res.Ref, res.Repeat, state)
}

func (r *Runner) fail(res *EndpointResult, err error) {
	res.FailedAt = res.State
	res.State = StateFailed
	res.Passed = false
	res.Message = err.Error()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logging.Debug("Runner", "%s[%d] cancelled: %v", res.Ref, res.Repeat, err)
		return
	}
	logging.Warn("Runner", "%s[%d] failed at %s: %v", res.Ref, res.Repeat, res.FailedAt, err)
}

func (r *Runner) recordExecution(ctx context.Context, ec *ExecutionContext, res *EndpointResult) {
	if r.store == nil {
		return
	}
	rec := ExecutionRecord{
		ID:         uuid.NewString(),
		JobID:      ec.JobID,
		Ref:        res.Ref,
		Repeat:     res.Repeat,
		Method:     res.Method,
		URL:        res.URL,
		StatusCode: res.StatusCode,
		Passed:     res.Passed,
		Cached:     res.Cached,
		Duration:   res.Duration,
		Message:    res.Message,
		Assertions: res.Assertions,
		ExecutedAt: res.StartedAt,
	}
	if err := r.store.RecordExecution(context.WithoutCancel(ctx), rec); err != nil {
		logging.Warn("Runner", "%s: recording execution failed: %v", res.Ref, err)
	}
}

func (r *Runner) endpointInfo(ref scenario.Ref, ep *scenario.Endpoint, resp *http.Response) map[string]any {
	info := map[string]any{
		"collection": ref.Collection,
		"scenario":   ref.Scenario,
		"name":       ep.Name,
		"url":        ep.URL,
		"method":     ep.HTTPMethod(),
	}
	if resp != nil {
		info["status"] = resp.StatusCode
		info["response"] = resp.Data()
		info["timing"] = resp.Timing.Milliseconds()
	}
	return info
}

func describeFailures(failed []assertions.Result) string {
	if len(failed) == 0 {
		return ""
	}
	first := failed[0]
	msg := fmt.Sprintf("%s: expected %v, obtained %v", first.Test, first.Expected, first.Obtained)
	if first.Message != "" {
		msg = first.Test + ": " + first.Message
	}
	if len(failed) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(failed)-1)
	}
	return msg
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
