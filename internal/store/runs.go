package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one import attempt for a business date.
type Run struct {
	ID            string
	BusinessDate  string
	Source        string // "gateway" or "archive"
	Status        string
	ErrorKind     string
	ErrorMessage  string
	StartedAt     string
	FinishedAt    string
	FeedRows      int64
	DroppedRows   int64
	Stores        int64
	AggregateRows int64
}

// RunStats summarises the run log.
type RunStats struct {
	Total       int64
	Succeeded   int64
	Failed      int64
	LastSuccess string
}

// StartRun records a new run in the running state. The caller supplies
// a unique ID (a UUID).
func (s *Store) StartRun(ctx context.Context, r *Run) error {
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	r.Status = RunRunning
	_, err := s.writer.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, business_date, source, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.BusinessDate, r.Source, r.Status, r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("store: start run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome and counters of a run started by StartRun.
func (s *Store) FinishRun(ctx context.Context, r *Run) error {
	if r.FinishedAt == "" {
		r.FinishedAt = nowUTC()
	}
	res, err := s.writer.ExecContext(ctx, `
		UPDATE ingest_runs SET
			status = ?, error_kind = ?, error_message = ?, finished_at = ?,
			feed_rows = ?, dropped_rows = ?, stores = ?, aggregate_rows = ?
		WHERE id = ?`,
		r.Status, r.ErrorKind, r.ErrorMessage, r.FinishedAt,
		r.FeedRows, r.DroppedRows, r.Stores, r.AggregateRows,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: finish run %s: %w", r.ID, sql.ErrNoRows)
	}
	return nil
}

const runColumns = `id, business_date, source, status, error_kind, error_message,
	started_at, finished_at, feed_rows, dropped_rows, stores, aggregate_rows`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	err := row.Scan(
		&r.ID, &r.BusinessDate, &r.Source, &r.Status, &r.ErrorKind, &r.ErrorMessage,
		&r.StartedAt, &r.FinishedAt, &r.FeedRows, &r.DroppedRows, &r.Stores, &r.AggregateRows,
	)
	return r, err
}

// GetRun returns a run by ID, or an error wrapping sql.ErrNoRows.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.reader.QueryRowContext(ctx, "SELECT "+runColumns+" FROM ingest_runs WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	rows, err := s.reader.QueryContext(ctx,
		"SELECT "+runColumns+" FROM ingest_runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs iteration: %w", err)
	}
	return out, nil
}

// GetRunStats counts runs by outcome.
func (s *Store) GetRunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	var last sql.NullString
	err := s.reader.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			MAX(CASE WHEN status = ? THEN finished_at END)
		FROM ingest_runs`, RunSucceeded, RunFailed, RunSucceeded,
	).Scan(&stats.Total, &stats.Succeeded, &stats.Failed, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get run stats: %w", err)
	}
	stats.LastSuccess = last.String
	return stats, nil
}
