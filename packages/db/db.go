// Package db persists job history and cached responses in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/runner"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	started_at           INTEGER NOT NULL,
	duration_ms          INTEGER NOT NULL,
	scenarios            INTEGER NOT NULL,
	endpoints_executed   INTEGER NOT NULL,
	endpoints_passed     INTEGER NOT NULL,
	assertions_processed INTEGER NOT NULL,
	assertions_passed    INTEGER NOT NULL,
	passed               INTEGER NOT NULL,
	p50_ms               REAL NOT NULL DEFAULT 0,
	p95_ms               REAL NOT NULL DEFAULT 0,
	p99_ms               REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS executions (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	collection  TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	repeat      INTEGER NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	cached      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	message     TEXT NOT NULL,
	assertions  TEXT NOT NULL,
	executed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_job ON executions(job_id);
CREATE TABLE IF NOT EXISTS response_cache (
	key       TEXT PRIMARY KEY,
	response  TEXT NOT NULL,
	stored_at INTEGER NOT NULL
);
`

// Store implements runner.JobStore and runner.ResponseCache.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

var (
	_ runner.JobStore      = (*Store)(nil)
	_ runner.ResponseCache = (*Store)(nil)
)

// Open opens or creates the database behind a connection string such as
// "sqlite://vibranium.db" or a plain file path.
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Debug("Store", "opened %s", dsn)
	return &Store{db: db, queryTimeout: 30 * time.Second}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) RecordJob(ctx context.Context, job runner.JobRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs (id, started_at, duration_ms, scenarios, endpoints_executed,
			endpoints_passed, assertions_processed, assertions_passed, passed, p50_ms, p95_ms, p99_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.StartedAt.UnixMilli(), job.Duration.Milliseconds(), job.Scenarios,
		job.EndpointsExecuted, job.EndpointsPassed, job.AssertionsProcessed, job.AssertionsPassed,
		job.Passed, millis(job.Latency.P50), millis(job.Latency.P95), millis(job.Latency.P99))
	if err != nil {
		return fmt.Errorf("recording job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) RecordExecution(ctx context.Context, exec runner.ExecutionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	checks, err := json.Marshal(exec.Assertions)
	if err != nil {
		return fmt.Errorf("encoding assertions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (id, job_id, collection, scenario, endpoint, repeat, method, url,
			status_code, passed, cached, duration_ms, message, assertions, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.JobID, exec.Ref.Collection, exec.Ref.Scenario, exec.Ref.Endpoint, exec.Repeat,
		exec.Method, exec.URL, exec.StatusCode, exec.Passed, exec.Cached, exec.Duration.Milliseconds(),
		exec.Message, string(checks), exec.ExecutedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording execution of %s: %w", exec.Ref, err)
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

// Jobs returns the most recent jobs, newest first.
func (s *Store) Jobs(ctx context.Context, limit int) ([]runner.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, scenarios, endpoints_executed, endpoints_passed,
			assertions_processed, assertions_passed, passed, p50_ms, p95_ms, p99_ms
		FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var jobs []runner.JobRecord
	for rows.Next() {
		var job runner.JobRecord
		var started, duration int64
		var p50, p95, p99 float64
		if err := rows.Scan(&job.ID, &started, &duration, &job.Scenarios, &job.EndpointsExecuted,
			&job.EndpointsPassed, &job.AssertionsProcessed, &job.AssertionsPassed, &job.Passed,
			&p50, &p95, &p99); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		job.Latency.P50 = fromMillis(p50)
		job.Latency.P95 = fromMillis(p95)
		job.Latency.P99 = fromMillis(p99)
		job.StartedAt = time.UnixMilli(started)
		job.Duration = time.Duration(duration) * time.Millisecond
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return jobs, nil
}

// Executions returns the endpoint executions of a job in execution order.
func (s *Store) Executions(ctx context.Context, jobID string) ([]runner.ExecutionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, collection, scenario, endpoint, repeat, method, url, status_code,
			passed, cached, duration_ms, message, assertions, executed_at
		FROM executions WHERE job_id = ? ORDER BY executed_at, rowid`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []runner.ExecutionRecord
	for rows.Next() {
		var exec runner.ExecutionRecord
		var duration, executed int64
		var checks string
		if err := rows.Scan(&exec.ID, &exec.JobID, &exec.Ref.Collection, &exec.Ref.Scenario,
			&exec.Ref.Endpoint, &exec.Repeat, &exec.Method, &exec.URL, &exec.StatusCode, &exec.Passed,
			&exec.Cached, &duration, &exec.Message, &checks, &executed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		exec.Duration = time.Duration(duration) * time.Millisecond
		exec.ExecutedAt = time.UnixMilli(executed)
		var results []assertions.Result
		if err := json.Unmarshal([]byte(checks), &results); err != nil {
			return nil, fmt.Errorf("decoding assertions of %s: %w", exec.ID, err)
		}
		exec.Assertions = results
		out = append(out, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Get returns the cached response of ref.
func (s *Store) Get(ctx context.Context, ref scenario.Ref) (*http.Response, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT response FROM response_cache WHERE key = ?`, ref.Key()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached response of %s: %w", ref, err)
	}

	var cached cachedResponse
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false, fmt.Errorf("decoding cached response of %s: %w", ref, err)
	}
	return &http.Response{
		StatusCode: cached.StatusCode,
		Status:     cached.Status,
		Headers:    cached.Headers,
		Body:       cached.Body,
		Timing:     cached.Timing,
	}, true, nil
}

// cachedResponse is the stored form of a response, body included.
type cachedResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	Timing     http.Timing       `json:"timing"`
}

// Put stores resp as the cached response of ref, replacing any previous one.
func (s *Store) Put(ctx context.Context, ref scenario.Ref, resp *http.Response) error {
	raw, err := json.Marshal(cachedResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Timing:     resp.Timing,
	})
	if err != nil {
		return fmt.Errorf("encoding response of %s: %w", ref, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO response_cache (key, response, stored_at) VALUES (?, ?, ?)`,
		ref.Key(), string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("caching response of %s: %w", ref, err)
	}
	return nil
}

// ClearCache drops every cached response.
func (s *Store) ClearCache(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM response_cache`)
	return err
}

// parseConnectionString returns the sqlite DSN of a connection string.
// Supported formats:
//   - sqlite://path/to/db.sqlite
//   - sqlite:./test.db
//   - path/to/db.sqlite
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", fmt.Errorf("empty connection string")
	}

	if rest, ok := strings.CutPrefix(connStr, "sqlite://"); ok {
		return rest, nil
	}
	if rest, ok := strings.CutPrefix(connStr, "sqlite:"); ok {
		return rest, nil
	}
	if scheme, _, ok := strings.Cut(connStr, "://"); ok {
		return "", fmt.Errorf("unsupported database scheme: %s", scheme)
	}
	return connStr, nil
}
