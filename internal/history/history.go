// Package history keeps a durable ledger of task attempts in SQLite.
// The ledger is append-only from the pipeline's point of view: each
// attempt produces exactly one row regardless of outcome.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	embedsql "github.com/ldi/forge/embed/sql"
	"github.com/ldi/forge/pkg/models"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Run is one recorded attempt.
type Run struct {
	ID         int64
	TaskID     string
	Directive  string
	Outcome    models.Outcome
	Branch     string
	BuildExit  sql.NullInt64
	TestExit   sql.NullInt64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Open opens the ledger at the given path, creating parent directories
// as needed.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// RecordRun inserts the ledger row for one finished attempt.
func (db *DB) RecordRun(ctx context.Context, report *models.Report, directive string, startedAt time.Time) error {
	query := `
		INSERT INTO runs (task_id, directive, outcome, branch, build_exit, test_exit, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		report.TaskID, directive, string(report.Outcome), report.Branch,
		checkExit(report.Build), checkExit(report.Tests),
		report.Err, startedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func checkExit(r models.CheckResult) sql.NullInt64 {
	if r.Skipped {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(r.ExitCode), Valid: true}
}

// ListRecent returns the newest attempts first, up to limit.
func (db *DB) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT id, task_id, directive, outcome, branch, build_exit, test_exit, error, started_at, finished_at
		FROM runs
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var outcome string
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Directive, &outcome, &r.Branch,
			&r.BuildExit, &r.TestExit, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountByOutcome returns the total attempts recorded per outcome.
func (db *DB) CountByOutcome(ctx context.Context) (map[models.Outcome]int, error) {
	query := `SELECT outcome, COUNT(*) FROM runs GROUP BY outcome`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
