// Package postgres keeps a history of probe runs in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fruitsalade/renterprobe/internal/harness"
)

const schema = `
CREATE TABLE IF NOT EXISTS probe_runs (
	run_id       UUID PRIMARY KEY,
	suite        TEXT NOT NULL,
	base_url     TEXT NOT NULL,
	seed         BIGINT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	passed       BOOLEAN NOT NULL,
	uploads      INTEGER NOT NULL,
	missing      TEXT[] NOT NULL DEFAULT '{}',
	failed_phase TEXT NOT NULL DEFAULT '',
	status_code  INTEGER NOT NULL DEFAULT 0,
	report       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS probe_runs_started_at_idx ON probe_runs (started_at DESC);
`

// Store is a PostgreSQL run history.
type Store struct {
	db *sql.DB
}

// Run is one row of the history.
type Run struct {
	RunID       string
	Suite       string
	BaseURL     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Passed      bool
	Uploads     int
	Missing     []string
	FailedPhase string
	StatusCode  int
}

// New opens the database and checks the connection.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Name implements results.Sink.
func (s *Store) Name() string { return "postgres" }

// Save records a finished run. Saving the same run twice overwrites it.
func (s *Store) Save(ctx context.Context, rep *harness.Report) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	var phase string
	var status int
	if rep.Failure != nil {
		phase = rep.Failure.Phase
		status = rep.Failure.StatusCode
	}
	missing := rep.Missing
	if missing == nil {
		missing = []string{}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO probe_runs
		   (run_id, suite, base_url, seed, started_at, finished_at, passed, uploads, missing, failed_phase, status_code, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (run_id) DO UPDATE SET
		   finished_at = EXCLUDED.finished_at,
		   passed = EXCLUDED.passed,
		   uploads = EXCLUDED.uploads,
		   missing = EXCLUDED.missing,
		   failed_phase = EXCLUDED.failed_phase,
		   status_code = EXCLUDED.status_code,
		   report = EXCLUDED.report`,
		rep.RunID, rep.Suite, rep.BaseURL, rep.Seed, rep.StartedAt, rep.FinishedAt,
		rep.Passed, rep.Uploads, pq.Array(missing), phase, status, doc)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, suite, base_url, started_at, finished_at, passed, uploads, missing, failed_phase, status_code
		 FROM probe_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Suite, &r.BaseURL, &r.StartedAt, &r.FinishedAt,
			&r.Passed, &r.Uploads, pq.Array(&r.Missing), &r.FailedPhase, &r.StatusCode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Report loads the full stored report of a run.
func (s *Store) Report(ctx context.Context, runID string) (*harness.Report, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM probe_runs WHERE run_id = $1`, runID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	var rep harness.Report
	if err := json.Unmarshal(doc, &rep); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &rep, nil
}
