package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/config"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	vhttp "github.com/sarathm09/vibranium/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testService is a mock API recording every request it serves.
type testService struct {
	mu       sync.Mutex
	hits     map[string]int
	order    []string
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	server   *httptest.Server
}

func newTestService(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *testService {
	t.Helper()
	ts := &testService{hits: make(map[string]int)}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.inFlight.Add(1)
		defer ts.inFlight.Add(-1)
		for {
			m := ts.maxSeen.Load()
			if n <= m || ts.maxSeen.CompareAndSwap(m, n) {
				break
			}
		}

		ts.mu.Lock()
		ts.hits[r.URL.Path]++
		ts.order = append(ts.order, r.URL.Path)
		ts.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testService) count(path string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hits[path]
}

func (ts *testService) requests() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.order...)
}

func (ts *testService) runner(t *testing.T, cfg *Config, opts ...Option) *Runner {
	t.Helper()
	client := vhttp.NewClient(vhttp.WithDefaultSystem("api"))
	require.NoError(t, client.AddSystem(vhttp.System{Name: "api", BaseURL: ts.server.URL}))
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	return NewRunner(cfg, append([]Option{WithTransport(client)}, opts...)...)
}

func decode(t *testing.T, doc string) *scenario.Scenario {
	t.Helper()
	s, err := scenario.Decode([]byte(doc), "shop", "")
	require.NoError(t, err)
	return s
}

func run(t *testing.T, r *Runner, scenarios ...*scenario.Scenario) *JobResult {
	t.Helper()
	job, err := r.RunJob(context.Background(), scenarios)
	require.NoError(t, err)
	return job
}

func endpointResults(s *ScenarioResult, name string) []*EndpointResult {
	var out []*EndpointResult
	for _, ep := range s.Endpoints {
		if ep.Ref.Endpoint == name {
			out = append(out, ep)
		}
	}
	return out
}

func TestRunJob_AsyncRepeat(t *testing.T) {
	svc := newTestService(t, nil)
	s := decode(t, `{
		"name": "catalog",
		"endpoints": [
			{"name": "health", "url": "/health"},
			{"name": "items", "url": "/items", "async": true, "repeat": 3}
		]
	}`)

	job := run(t, svc.runner(t, nil), s)

	require.Len(t, job.Scenarios, 1)
	sr := job.Scenarios[0]
	assert.Equal(t, ScenarioPassed, sr.Status)
	assert.Len(t, endpointResults(sr, "items"), 3)
	assert.Equal(t, 3, svc.count("/items"))
	assert.Equal(t, 4, job.EndpointsExecuted)
	assert.Equal(t, 4, job.EndpointsPassed)
	assert.True(t, job.Passed())
	for _, res := range sr.Endpoints {
		assert.True(t, res.Passed)
		assert.Equal(t, StateDone, res.State)
	}
}

func TestRunJob_StatusMismatch(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s := decode(t, `{
		"name": "orders",
		"endpoints": [{"name": "create", "url": "/orders", "method": "post", "expect": {"status": 201}}]
	}`)

	job := run(t, svc.runner(t, nil), s)

	res := job.Scenarios[0].Endpoints[0]
	assert.False(t, res.Passed)
	assert.Equal(t, ScenarioFailed, job.Scenarios[0].Status)
	require.Len(t, res.Assertions, 1)
	assert.Equal(t, assertions.Result{
		Test:     assertions.StatusTest,
		Expected: 201,
		Obtained: 500,
		Passed:   false,
	}, res.Assertions[0])
	assert.Equal(t, "POST", res.Method)
	assert.False(t, job.Passed())
	assert.Len(t, job.Failed(), 1)
}

func TestRunJob_StatusInvariant(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 3}`))
	})
	s := decode(t, `{
		"name": "inventory",
		"endpoints": [
			{"name": "ok", "url": "/a", "expect": {"response": {"count": "{response.count} === 3"}}},
			{"name": "body-fails", "url": "/b", "expect": {"response": {"count": "{response.count} > 5"}}},
			{"name": "status-fails", "url": "/c", "expect": {"status": 204}}
		]
	}`)

	job := run(t, svc.runner(t, nil), s)

	for _, res := range job.Scenarios[0].Endpoints {
		assert.Equal(t, res.StatusCode == 200 && assertions.AllPassed(res.Assertions), res.Passed, res.Ref.Endpoint)
	}
	assert.Equal(t, 3, job.EndpointsExecuted)
	assert.Equal(t, 1, job.EndpointsPassed)
	assert.Equal(t, 5, job.AssertionsProcessed)
	assert.Equal(t, 3, job.AssertionsPassed)
}

func TestRunJob_DependencyOrdering(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 42}`))
		default:
			_, _ = w.Write([]byte(`{"name": "alice"}`))
		}
	})
	s := decode(t, `{
		"name": "users",
		"endpoints": [
			{"name": "create-user", "url": "/users", "method": "POST", "payload": {"name": "alice"}, "expect": {"status": 201}},
			{
				"name": "get-user",
				"url": "/users/{userId}",
				"dependencies": [{"api": "create-user", "variable": "userId", "path": "response.id"}],
				"expect": {"response": {"name": "'{response.name}' === 'alice'"}}
			}
		]
	}`)

	job := run(t, svc.runner(t, &Config{Sync: true}), s)

	sr := job.Scenarios[0]
	require.Equal(t, ScenarioPassed, sr.Status, sr.Message)
	get := endpointResults(sr, "get-user")
	require.Len(t, get, 1)
	require.Len(t, get[0].Dependencies, 1)
	assert.Equal(t, "create-user", get[0].Dependencies[0].Ref.Endpoint)

	order := svc.requests()
	require.Len(t, order, 3)
	// create-user runs on its own and again as the dependency of get-user
	assert.Equal(t, []string{"/users", "/users", "/users/42"}, order)
}

func TestRunJob_DependencyFailures(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		doc     string
		message string
		silent  string
	}{
		{
			name: "not found",
			doc: `{"name": "s", "endpoints": [
				{"name": "dependent", "url": "/dependent", "dependencies": [{"api": "missing"}]}
			]}`,
			message: "dependency not found",
			silent:  "/dependent",
		},
		{
			name: "not found in other scenario",
			doc: `{"name": "s", "endpoints": [
				{"name": "dependent", "url": "/dependent", "dependencies": [{"scenario": "elsewhere", "api": "ghost"}]}
			]}`,
			message: "shop.elsewhere.ghost",
			silent:  "/dependent",
		},
		{
			name: "execution failed",
			doc: `{"name": "s", "endpoints": [
				{"name": "broken", "url": "/broken", "ignore": true},
				{"name": "dependent", "url": "/dependent", "dependencies": [{"api": "broken"}]}
			]}`,
			message: "dependency execution failed",
			silent:  "/dependent",
		},
		{
			name: "cycle",
			doc: `{"name": "s", "endpoints": [
				{"name": "a", "url": "/a", "dependencies": [{"api": "b"}]},
				{"name": "b", "url": "/b", "dependencies": [{"api": "a"}]}
			]}`,
			message: "cyclic dependency",
			silent:  "/a",
		},
		{
			name: "self reference",
			doc: `{"name": "s", "endpoints": [
				{"name": "self", "url": "/self", "dependencies": [{"api": "self"}]}
			]}`,
			message: "cyclic dependency",
			silent:  "/self",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := run(t, svc.runner(t, nil), decode(t, tt.doc))
			sr := job.Scenarios[0]
			assert.Equal(t, ScenarioFailed, sr.Status)
			for _, res := range sr.Endpoints {
				assert.False(t, res.Passed)
				assert.Equal(t, StateFailed, res.State)
				assert.Equal(t, StateDependencies, res.FailedAt)
				assert.Contains(t, res.Message, tt.message)
			}
			assert.Equal(t, 0, svc.count(tt.silent))
		})
	}
}

func TestRunJob_DependencyOverridesAndSiblings(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path": "` + r.URL.Path + `"}`))
	})
	s := decode(t, `{
		"name": "tenants",
		"variables": {"tenant": "acme"},
		"endpoints": [
			{"name": "lookup", "url": "/tenants/{tenant}", "ignore": true},
			{
				"name": "use",
				"url": "/use{path}/{copied}",
				"dependencies": [
					{"api": "lookup", "variables": {"tenant": "globex"}, "variable": {"path": "path", "copied": "{tenant}"}}
				]
			}
		]
	}`)

	job := run(t, svc.runner(t, nil), s)

	require.Equal(t, ScenarioPassed, job.Scenarios[0].Status, job.Scenarios[0].Endpoints[0].Message)
	assert.Equal(t, 1, svc.count("/tenants/globex"))
	assert.Equal(t, 1, svc.count("/use/tenants/globex/globex"))
}

func TestRunJob_ThrottleBound(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	a := decode(t, `{"name": "a", "endpoints": [
		{"name": "burst", "url": "/burst", "async": true, "repeat": 6},
		{"name": "single", "url": "/single"}
	]}`)
	b := decode(t, `{"name": "b", "endpoints": [
		{"name": "other", "url": "/other", "async": true, "repeat": 4}
	]}`)

	job := run(t, svc.runner(t, &Config{Concurrency: 2}), a, b)

	assert.True(t, job.Passed())
	assert.Equal(t, 11, job.EndpointsExecuted)
	assert.LessOrEqual(t, svc.maxSeen.Load(), int64(2))
}

func TestRunJob_Sync(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	s := decode(t, `{"name": "s", "endpoints": [
		{"name": "a", "url": "/a", "async": true, "repeat": 3},
		{"name": "b", "url": "/b"}
	]}`)

	job := run(t, svc.runner(t, &Config{Sync: true}), s)

	assert.True(t, job.Passed())
	assert.Equal(t, int64(1), svc.maxSeen.Load())
	assert.Equal(t, []string{"/a", "/a", "/a", "/b"}, svc.requests())
}

func TestRunJob_RepeatUntilTimeout(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ready": false}`))
	})
	s := decode(t, `{"name": "jobs", "endpoints": [{
		"name": "poll",
		"url": "/status",
		"repeat-until": {"response": {"ready": "{response.ready} === true"}, "timeout": 500, "interval": 50},
		"expect": {"response": {"ready": "{response.ready} === true"}}
	}]}`)

	start := time.Now()
	job := run(t, svc.runner(t, nil), s)
	elapsed := time.Since(start)

	res := job.Scenarios[0].Endpoints[0]
	assert.False(t, res.Passed)
	assert.Equal(t, StateDone, res.State)
	assert.GreaterOrEqual(t, elapsed, 450*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Greater(t, res.Attempts, 3)
	assert.Equal(t, res.Attempts, svc.count("/status"))
	assert.Equal(t, map[string]any{"ready": false}, res.Response)
}

func TestRunJob_RepeatUntilSucceeds(t *testing.T) {
	var calls atomic.Int64
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) >= 3 {
			_, _ = w.Write([]byte(`{"state": "done"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state": "running"}`))
	})
	s := decode(t, `{"name": "jobs", "endpoints": [{
		"name": "poll",
		"url": "/status",
		"repeat-until": {"response": {"state": "'{response.state}' === 'done'"}, "interval": 10}
	}]}`)

	job := run(t, svc.runner(t, nil), s)

	res := job.Scenarios[0].Endpoints[0]
	assert.True(t, res.Passed)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, map[string]any{"state": "done"}, res.Response)
}

func TestRunJob_RepeatUntilIgnoresUndeclaredStatus(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ready": true}`))
	})
	s := decode(t, `{"name": "jobs", "endpoints": [{
		"name": "poll",
		"url": "/status",
		"repeat-until": {"response": {"ready": "{response.ready} === true"}, "timeout": 2000, "interval": 50},
		"expect": {"status": 202}
	}]}`)

	start := time.Now()
	job := run(t, svc.runner(t, nil), s)

	res := job.Scenarios[0].Endpoints[0]
	assert.True(t, res.Passed, res.Message)
	assert.Equal(t, 1, res.Attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunJob_RepeatUntilBypassesCache(t *testing.T) {
	var calls atomic.Int64
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) >= 3 {
			_, _ = w.Write([]byte(`{"state": "done"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state": "running"}`))
	})
	s := decode(t, `{"name": "jobs", "endpoints": [{
		"name": "poll",
		"url": "/status",
		"cache": true,
		"repeat-until": {"response": {"state": "'{response.state}' === 'done'"}, "timeout": 2000, "interval": 10}
	}]}`)

	job := run(t, svc.runner(t, nil, WithResponseCache(NewMemoryCache())), s)

	res := job.Scenarios[0].Endpoints[0]
	assert.True(t, res.Passed, res.Message)
	assert.False(t, res.Cached)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, svc.count("/status"))
}

func TestUntilSatisfied(t *testing.T) {
	results := []assertions.Result{
		{Test: assertions.StatusTest, Expected: 200, Obtained: 202},
		{Test: "ready", Passed: true},
	}
	assert.True(t, untilSatisfied(results, false))
	assert.False(t, untilSatisfied(results, true))
	assert.False(t, untilSatisfied(append(results, assertions.Result{Test: "other"}), false))
}

func TestRunJob_Cache(t *testing.T) {
	svc := newTestService(t, nil)
	doc := `{"name": "config", "endpoints": [
		{"name": "settings", "url": "/settings", "cache": true, "repeat": 2}
	]}`
	cache := NewMemoryCache()

	job := run(t, svc.runner(t, nil, WithResponseCache(cache)), decode(t, doc))
	results := job.Scenarios[0].Endpoints
	require.Len(t, results, 2)
	assert.False(t, results[0].Cached)
	assert.True(t, results[1].Cached)
	assert.True(t, results[1].Passed)
	assert.Equal(t, 1, svc.count("/settings"))

	// a second job with the same cache never touches the network
	job = run(t, svc.runner(t, nil, WithResponseCache(cache)), decode(t, doc))
	assert.True(t, job.Passed())
	assert.Equal(t, 1, svc.count("/settings"))
}

func TestRunJob_Hooks(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	s := decode(t, `{
		"name": "secure",
		"scripts": {
			"before-scenario": "variables.token = 'abc';",
			"after-each": "throw new Error('cleanup failed');"
		},
		"endpoints": [
			{"name": "profile", "url": "/profile", "headers": {"Authorization": "Bearer {token}"}},
			{"name": "guarded", "url": "/guarded", "scripts": {"before-endpoint": "throw new Error('nope');"}}
		]
	}`)

	job := run(t, svc.runner(t, nil), s)

	sr := job.Scenarios[0]
	profile := endpointResults(sr, "profile")[0]
	assert.True(t, profile.Passed, profile.Message)

	guarded := endpointResults(sr, "guarded")[0]
	assert.False(t, guarded.Passed)
	assert.Equal(t, StateBeforeHooks, guarded.FailedAt)
	assert.Contains(t, guarded.Message, "script execution failed")
	assert.Equal(t, 0, svc.count("/guarded"))
}

func TestRunJob_FailingBeforeScenarioHook(t *testing.T) {
	svc := newTestService(t, nil)
	s := decode(t, `{
		"name": "broken",
		"scripts": {"before-scenario": "undefinedFunction();"},
		"endpoints": [{"name": "never", "url": "/never"}]
	}`)

	job := run(t, svc.runner(t, nil), s)

	sr := job.Scenarios[0]
	assert.Equal(t, ScenarioFailed, sr.Status)
	assert.Contains(t, sr.Message, "before-scenario")
	assert.Empty(t, sr.Endpoints)
	assert.Equal(t, 0, svc.count("/never"))
}

func TestRunJob_CallAPI(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/login" {
			_, _ = w.Write([]byte(`{"token": "t-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"auth": "` + r.Header.Get("X-Token") + `"}`))
	})
	s := decode(t, `{
		"name": "session",
		"endpoints": [
			{"name": "login", "url": "/login", "ignore": true},
			{
				"name": "me",
				"url": "/me",
				"headers": {"X-Token": "{token}"},
				"scripts": {"before-endpoint": "variables.token = callApi('shop', 'session', 'login').token;"},
				"expect": {"response": {"auth": "'{response.auth}' === 't-1'"}}
			}
		]
	}`)

	job := run(t, svc.runner(t, nil), s)

	sr := job.Scenarios[0]
	require.Len(t, sr.Endpoints, 1)
	assert.True(t, sr.Endpoints[0].Passed, sr.Endpoints[0].Message)
	assert.Equal(t, 1, svc.count("/login"))
}

func TestRunJob_Generate(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/token" {
			_, _ = w.Write([]byte(`{"value": "gen-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	s := decode(t, `{
		"name": "generated",
		"generate": {
			"code": "code_[0-9]{4}",
			"token": {"api": "token", "path": "response.value"}
		},
		"endpoints": [
			{"name": "token", "url": "/token", "ignore": true},
			{"name": "first", "url": "/items/{token}/{code}"},
			{"name": "second", "url": "/items/{token}/{code}"}
		]
	}`)

	job := run(t, svc.runner(t, &Config{Sync: true}), s)

	require.True(t, job.Passed())
	order := svc.requests()
	require.Len(t, order, 3)
	assert.Equal(t, "/token", order[0])
	assert.Regexp(t, `^/items/gen-1/code_[0-9]{4}$`, order[1])
	// generated once per scenario, so both endpoints see the same value
	assert.Equal(t, order[1], order[2])
}

func TestRunJob_IgnoredScenario(t *testing.T) {
	svc := newTestService(t, nil)
	s := decode(t, `{"name": "skip", "ignore": true, "endpoints": [{"name": "x", "url": "/x"}]}`)

	job := run(t, svc.runner(t, nil), s)

	assert.Equal(t, ScenarioError, job.Scenarios[0].Status)
	assert.True(t, job.Passed())
	assert.Equal(t, 0, svc.count("/x"))
	assert.Equal(t, 0, job.EndpointsExecuted)
}

func TestRunJob_NetworkError(t *testing.T) {
	svc := newTestService(t, nil)
	r := svc.runner(t, nil)
	svc.server.Close()

	s := decode(t, `{"name": "down", "endpoints": [{"name": "ping", "url": "/ping", "async": true, "repeat": 2}]}`)
	job := run(t, r, s)

	for _, res := range job.Scenarios[0].Endpoints {
		assert.False(t, res.Passed)
		assert.Equal(t, StateInFlight, res.FailedAt)
		assert.Contains(t, res.Message, "network error")
	}
}

func TestRunJob_TemplateError(t *testing.T) {
	svc := newTestService(t, nil)
	s := decode(t, `{
		"name": "bad",
		"variables": {"obj": {"k": "v"}},
		"endpoints": [{"name": "post", "url": "/post", "method": "POST", "payload": {"{obj}": 1}}]
	}`)

	job := run(t, svc.runner(t, nil), s)

	res := job.Scenarios[0].Endpoints[0]
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "template parse error")
	assert.Equal(t, 0, svc.count("/post"))
}

func TestRunJob_UnknownSystem(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.runner(t, &Config{System: "nope"}).RunJob(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))

	s := decode(t, `{"name": "s", "endpoints": [{"name": "x", "url": "/x", "system": "ghost"}]}`)
	_, err = svc.runner(t, nil).RunJob(context.Background(), []*scenario.Scenario{s})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
	assert.Equal(t, 0, svc.count("/x"))
}

type recordingStore struct {
	mu         sync.Mutex
	jobs       []JobRecord
	executions []ExecutionRecord
}

func (s *recordingStore) RecordJob(_ context.Context, job JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingStore) RecordExecution(_ context.Context, exec ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, exec)
	return nil
}

func TestRunJob_JobStore(t *testing.T) {
	svc := newTestService(t, nil)
	store := &recordingStore{}
	s := decode(t, `{"name": "s", "endpoints": [{"name": "x", "url": "/x", "repeat": 2}]}`)

	job := run(t, svc.runner(t, &Config{JobID: "job-1"}, WithJobStore(store)), s)

	require.Len(t, store.jobs, 1)
	assert.Equal(t, "job-1", store.jobs[0].ID)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, 2, store.jobs[0].EndpointsExecuted)
	assert.True(t, store.jobs[0].Passed)

	require.Len(t, store.executions, 2)
	for i, exec := range store.executions {
		assert.Equal(t, "job-1", exec.JobID)
		assert.Equal(t, scenario.Ref{Collection: "shop", Scenario: "s", Endpoint: "x"}, exec.Ref)
		assert.Equal(t, i, exec.Repeat)
		assert.Equal(t, 200, exec.StatusCode)
		assert.NotEmpty(t, exec.ID)
	}
	assert.Equal(t, int64(2), job.Summary.Total)
}

func TestEndpointResult_JSON(t *testing.T) {
	res := &EndpointResult{
		Ref:    scenario.Ref{Collection: "c", Scenario: "s", Endpoint: "e"},
		Passed: true,
		State:  StateDone,
	}
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":true`)
	assert.Contains(t, string(raw), `"state":"DONE"`)
}
