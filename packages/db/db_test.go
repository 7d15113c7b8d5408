package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/runner"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "vibranium.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Jobs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"job-1", "job-2"} {
		require.NoError(t, store.RecordJob(ctx, runner.JobRecord{
			ID:                id,
			StartedAt:         base.Add(time.Duration(i) * time.Minute),
			Duration:          1500 * time.Millisecond,
			Scenarios:         2,
			EndpointsExecuted: 4,
			EndpointsPassed:   4 - i,
			Passed:            i == 0,
			Latency:           metrics.Latency{P50: 12500 * time.Microsecond, P95: 40 * time.Millisecond, P99: 80 * time.Millisecond},
		}))
	}

	jobs, err := store.Jobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.False(t, jobs[0].Passed)
	assert.Equal(t, 3, jobs[0].EndpointsPassed)

	assert.Equal(t, "job-1", jobs[1].ID)
	assert.True(t, jobs[1].Passed)
	assert.Equal(t, base, jobs[1].StartedAt)
	assert.Equal(t, 1500*time.Millisecond, jobs[1].Duration)
	assert.Equal(t, 12500*time.Microsecond, jobs[1].Latency.P50)
	assert.Equal(t, 80*time.Millisecond, jobs[1].Latency.P99)

	limited, err := store.Jobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Executions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ref := scenario.Ref{Collection: "shop", Scenario: "orders", Endpoint: "create"}
	checks := []assertions.Result{{Test: assertions.StatusTest, Expected: float64(201), Obtained: float64(500)}}

	require.NoError(t, store.RecordExecution(ctx, runner.ExecutionRecord{
		ID: "e1", JobID: "job-1", Ref: ref, Repeat: 0, Method: "POST", URL: "/orders",
		StatusCode: 500, Duration: 20 * time.Millisecond, Message: "Response status: expected 201, obtained 500",
		Assertions: checks, ExecutedAt: time.UnixMilli(1000),
	}))
	require.NoError(t, store.RecordExecution(ctx, runner.ExecutionRecord{
		ID: "e2", JobID: "job-1", Ref: ref, Repeat: 1, Method: "POST", URL: "/orders",
		StatusCode: 201, Passed: true, Cached: true, ExecutedAt: time.UnixMilli(2000),
	}))
	require.NoError(t, store.RecordExecution(ctx, runner.ExecutionRecord{
		ID: "e3", JobID: "job-2", Ref: ref, ExecutedAt: time.UnixMilli(3000),
	}))

	execs, err := store.Executions(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, execs, 2)

	assert.Equal(t, ref, execs[0].Ref)
	assert.False(t, execs[0].Passed)
	assert.Equal(t, 20*time.Millisecond, execs[0].Duration)
	assert.Equal(t, checks, execs[0].Assertions)
	assert.Equal(t, 1, execs[1].Repeat)
	assert.True(t, execs[1].Passed)
	assert.True(t, execs[1].Cached)
	assert.Empty(t, execs[1].Assertions)
}

func TestStore_ResponseCache(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ref := scenario.Ref{Collection: "shop", Scenario: "config", Endpoint: "settings"}

	_, ok, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	resp := &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"theme":"dark"}`),
		Timing:     http.Timing{Total: 15 * time.Millisecond},
	}
	require.NoError(t, store.Put(ctx, ref, resp))

	got, ok, err := store.Get(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp, got)
	assert.Equal(t, map[string]any{"theme": "dark"}, got.Data())

	resp.StatusCode = 202
	require.NoError(t, store.Put(ctx, ref, resp))
	got, _, err = store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 202, got.StatusCode)

	require.NoError(t, store.ClearCache(ctx))
	_, ok, err = store.Get(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "sqlite://data/test.db", want: "data/test.db"},
		{input: "sqlite:./test.db", want: "./test.db"},
		{input: "  history.db ", want: "history.db"},
		{input: "sqlite::memory:", want: ":memory:"},
		{input: "postgres://localhost/db", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseConnectionString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
