// Package storage persists the load log: one row per load run plus one row
// per source read in that run, in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("load run not found")

// Run summarizes one load/merge/validate pass.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Trigger     string
	FilesOK     int
	FilesFailed int
	TotalRows   int
	FatalError  string
}

func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// FileOutcome is the result of reading one source during a run.
type FileOutcome struct {
	Position int
	Year     string
	Source   string
	Rows     int
	Error    string
	Duration time.Duration
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the load log is tiny.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordRun stores a run and its per-file outcomes atomically.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run Run, files []FileOutcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO load_runs (id, started_at, finished_at, trigger, files_ok, files_failed, total_rows, fatal_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Trigger,
		run.FilesOK, run.FilesFailed, run.TotalRows, run.FatalError)
	if err != nil {
		return fmt.Errorf("insert load run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO load_files (run_id, position, year, source, row_count, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare load file insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, run.ID, f.Position, f.Year, f.Source, f.Rows, f.Error, f.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("insert load file %s/%s: %w", run.ID, f.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRepository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, trigger, files_ok, files_failed, total_rows, fatal_error
		FROM load_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query load runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by id.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, trigger, files_ok, files_failed, total_rows, fatal_error
		FROM load_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// RunFiles returns the per-file outcomes of a run in configured order.
func (r *SQLiteRepository) RunFiles(ctx context.Context, runID string) ([]FileOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, year, source, row_count, error, duration_ms
		FROM load_files WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query load files: %w", err)
	}
	defer rows.Close()

	var out []FileOutcome
	for rows.Next() {
		var f FileOutcome
		var ms int64
		if err := rows.Scan(&f.Position, &f.Year, &f.Source, &f.Rows, &f.Error, &ms); err != nil {
			return nil, fmt.Errorf("scan load file: %w", err)
		}
		f.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load files: %w", err)
	}
	return out, nil
}

// PruneRuns keeps the newest keep runs and deletes the rest.
func (r *SQLiteRepository) PruneRuns(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM load_runs WHERE id NOT IN (
			SELECT id FROM load_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune load runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var started, finished string
	if err := s.Scan(&run.ID, &started, &finished, &run.Trigger, &run.FilesOK, &run.FilesFailed, &run.TotalRows, &run.FatalError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan load run: %w", err)
	}
	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return run, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
