package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// readerConns sizes the export read pool.
const readerConns = 4

// Store is the SQLite persistence layer for raw feeds, aggregates and the
// run log. It keeps a single writer connection (MaxOpenConns=1) so every
// upsert batch is serialised, and a separate query_only reader pool for
// exports.
type Store struct {
	writer    *sql.DB
	reader    *sql.DB
	path      string
	closeOnce sync.Once
}

// dsn builds a modernc connection string with the shared pragmas.
func dsn(path string, readOnly bool) string {
	q := "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	if readOnly {
		q += "&_pragma=query_only(ON)"
	}
	return path + q
}

// openHandle opens and pings one pool of at most conns connections.
func openHandle(path string, readOnly bool, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path, readOnly))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open creates the parent directory if needed, opens the writer and reader
// handles in WAL mode and applies pending migrations. The writer opens
// first so WAL mode is set before any reader attaches.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}

	writer, err := openHandle(path, false, 1)
	if err != nil {
		return nil, fmt.Errorf("store: open writer: %w", err)
	}
	reader, err := openHandle(path, true, readerConns)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: open reader: %w", err)
	}

	s := &Store{writer: writer, reader: reader, path: path}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes both handles. It is safe to call Close multiple times.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, db := range []*sql.DB{s.reader, s.writer} {
			if db == nil {
				continue
			}
			if cerr := db.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// Writer returns the single-connection write handle.
func (s *Store) Writer() *sql.DB { return s.writer }

// Reader returns the query_only pool used by exports.
func (s *Store) Reader() *sql.DB { return s.reader }

// Path is the database file location.
func (s *Store) Path() string { return s.path }

// Ping verifies that both handles are alive.
func (s *Store) Ping() error {
	if err := s.writer.Ping(); err != nil {
		return fmt.Errorf("store: writer ping: %w", err)
	}
	if err := s.reader.Ping(); err != nil {
		return fmt.Errorf("store: reader ping: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in one of the managed tables.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if _, ok := tablesByName[table]; !ok && table != "ingest_runs" {
		return 0, fmt.Errorf("store: count rows: unknown table %q", table)
	}
	var n int64
	if err := s.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", table, err)
	}
	return n, nil
}

// Prune removes finished run-log entries older than retentionDays and
// returns how many were deleted. Feed and aggregate rows are never pruned.
func (s *Store) Prune(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	result, err := s.writer.Exec("DELETE FROM ingest_runs WHERE started_at < ? AND status != ?", cutoff, RunRunning)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: prune rows affected: %w", err)
	}
	return n, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
