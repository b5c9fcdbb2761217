package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// migration is one schema step. Steps run in order, each in its own
// transaction, and are recorded in the migrations table.
type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

func execAll(stmts ...string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.Exec(s); err != nil {
				return err
			}
		}
		return nil
	}
}

var migrations = []migration{
	{version: 1, name: "feed, aggregate and run tables", up: execAll(allSchemas...)},
	{version: 2, name: "hourly sales by hour", up: execAll(
		`CREATE INDEX IF NOT EXISTS idx_hourly_sales_hour ON hourly_sales(hour);`,
	)},
	{version: 3, name: "run log by status", up: execAll(
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_status ON ingest_runs(status, started_at);`,
	)},
}

// Migrate brings the database up to the latest schema version.
func (s *Store) Migrate() error {
	if _, err := s.writer.Exec(schemaMigrations); err != nil {
		return fmt.Errorf("store: create migrations table: %w", err)
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(m); err != nil {
			return fmt.Errorf("store: migration v%d (%s): %w", m.version, m.name, err)
		}
		log.Debug().Int("version", m.version).Str("migration", m.name).Msg("store: migration applied")
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 on a new file.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	if err := s.writer.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("store: read migration version: %w", err)
	}
	return v, nil
}

func (s *Store) apply(m migration) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.up(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}
