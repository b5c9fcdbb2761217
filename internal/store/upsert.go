package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/temporal"
)

// upsertSQL is an insert that, on a natural-key conflict, overwrites every
// value column and updated_at while leaving created_at untouched.
func (t *tableDef) upsertSQL() string {
	cols := names(t.columns())
	all := append(append([]string{}, cols...), "created_at", "updated_at")

	set := make([]string, 0, len(t.cols)+1)
	for _, c := range t.cols {
		set = append(set, fmt.Sprintf("%s = excluded.%s", c.name, c.name))
	}
	set = append(set, "updated_at = excluded.updated_at")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		t.name,
		strings.Join(all, ", "),
		placeholders(len(all)),
		strings.Join(names(t.key), ", "),
		strings.Join(set, ", "),
	)
}

// upsert writes rows to t in a single transaction. values must return the
// key columns followed by the value columns, in table order.
func upsert[T any](ctx context.Context, s *Store, t *tableDef, rows []T, values func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	width := len(t.key) + len(t.cols)

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s upsert: %w", t.name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, t.upsertSQL())
	if err != nil {
		return fmt.Errorf("store: prepare %s upsert: %w", t.name, err)
	}
	defer stmt.Close()

	now := nowUTC()
	for _, r := range rows {
		args := values(r)
		if len(args) != width {
			return fmt.Errorf("store: upsert %s: got %d values, want %d", t.name, len(args), width)
		}
		args = append(args, now, now)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("store: upsert %s: %w", t.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s upsert: %w", t.name, err)
	}
	return nil
}

func money(d decimal.Decimal) float64 { return d.InexactFloat64() }

// stamp stores an unknown time as NULL.
func stamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return temporal.Format(t)
}

// keyStamp stores an unknown time as "" so it still takes part in the
// natural key; NULLs never conflict in a UNIQUE index.
func keyStamp(t *time.Time) string { return temporal.Format(t) }

func flagInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
