package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RunStatus is the outcome of an update run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one row of update history
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	ProcessedOn time.Time
	Rows        int
	Columns     int
	Sources     []string
	Status      RunStatus
	Error       string
}

// History records update runs
type History interface {
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

const (
	processedOnLayout = "2006-01-02"
	// fixed width so started_at sorts as text
	timestampLayout   = "2006-01-02T15:04:05.000000000Z07:00"
)

// RecordRun inserts or replaces a run record
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	var completed interface{}
	if !run.CompletedAt.IsZero() {
		completed = run.CompletedAt.UTC().Format(timestampLayout)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, started_at, completed_at, processed_on, row_count, column_count, sources, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID,
		run.StartedAt.UTC().Format(timestampLayout),
		completed,
		run.ProcessedOn.Format(processedOnLayout),
		run.Rows, run.Columns,
		strings.Join(run.Sources, ","),
		string(run.Status), run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, COALESCE(completed_at, ''), processed_on,
		       row_count, column_count, COALESCE(sources, ''), status, COALESCE(error, '')
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
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
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run                              Run
		started, completed, day, sources string
		status                           string
	)
	err := rows.Scan(&run.ID, &started, &completed, &day, &run.Rows, &run.Columns, &sources, &status, &run.Error)
	if err != nil {
		return Run{}, err
	}

	if run.StartedAt, err = time.Parse(timestampLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s: bad started_at %q: %w", run.ID, started, err)
	}
	if completed != "" {
		if run.CompletedAt, err = time.Parse(timestampLayout, completed); err != nil {
			return Run{}, fmt.Errorf("run %s: bad completed_at %q: %w", run.ID, completed, err)
		}
	}
	if run.ProcessedOn, err = time.Parse(processedOnLayout, day); err != nil {
		return Run{}, fmt.Errorf("run %s: bad processed_on %q: %w", run.ID, day, err)
	}
	if sources != "" {
		run.Sources = strings.Split(sources, ",")
	}
	run.Status = RunStatus(status)
	return run, nil
}
