package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownDataset is returned by QueryDataset for names not in Datasets.
var ErrUnknownDataset = errors.New("store: unknown dataset")

// exportable lists the tables readable through QueryDataset.
var exportable = map[string]*tableDef{
	tableFinanceData.name:     tableFinanceData,
	tableFinalSummary.name:    tableFinalSummary,
	tableHourlySales.name:     tableHourlySales,
	tableChannelData.name:     tableChannelData,
	tableBreadBoost.name:      tableBreadBoost,
	tableDeliverySummary.name: tableDeliverySummary,
	tableMarketplace.name:     tableMarketplace,
	tableDiscountProgram.name: tableDiscountProgram,
	tableOrderLines.name:      tableOrderLines,
	tableDetailOrders.name:    tableDetailOrders,
}

// Datasets returns the exportable dataset names in sorted order.
func Datasets() []string {
	out := make([]string, 0, len(exportable))
	for name := range exportable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Filter narrows a dataset query. The date range applies only when both
// ends are set. Hours only applies to datasets with an hour column.
type Filter struct {
	StartDate string
	EndDate   string
	Stores    []string
	Hours     []int
}

// Table is a dataset query result with a fixed column order.
type Table struct {
	Columns []string
	Rows    [][]any
}

func hasColumn(t *tableDef, name string) bool {
	for _, c := range t.columns() {
		if c.name == name {
			return true
		}
	}
	return false
}

// QueryDataset reads dataset rows matching f, ordered by date, store and id.
func (s *Store) QueryDataset(ctx context.Context, dataset string, f Filter) (*Table, error) {
	t, ok := exportable[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}

	columns := append([]string{"id"}, names(t.columns())...)
	columns = append(columns, "created_at", "updated_at")

	var (
		where []string
		args  []any
	)
	if f.StartDate != "" && f.EndDate != "" {
		where = append(where, "business_date BETWEEN ? AND ?")
		args = append(args, f.StartDate, f.EndDate)
	}
	if len(f.Stores) > 0 {
		where = append(where, "franchise_store IN ("+placeholders(len(f.Stores))+")")
		for _, st := range f.Stores {
			args = append(args, st)
		}
	}
	if len(f.Hours) > 0 && hasColumn(t, "hour") {
		where = append(where, "hour IN ("+placeholders(len(f.Hours))+")")
		for _, h := range f.Hours {
			args = append(args, h)
		}
	}

	q := "SELECT " + strings.Join(columns, ", ") + " FROM " + t.name
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY business_date, franchise_store, id"

	rows, err := s.reader.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", dataset, err)
	}
	defer rows.Close()

	out := &Table{Columns: columns}
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan %s row: %w", dataset, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query %s iteration: %w", dataset, err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
