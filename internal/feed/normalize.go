package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBatchSize bounds the rows committed per upsert transaction.
const DefaultBatchSize = 500

// Stats describes what one feed contributed to a batch.
type Stats struct {
	Files     int `json:"files"`
	Rows      int `json:"rows"`
	Dropped   int `json:"dropped"`
	Malformed int `json:"malformed"`
}

// Batch holds every normalized record for one business date.
type Batch struct {
	Date                string
	CashManagement      []CashManagement
	FinancialView       []FinancialView
	SummaryItems        []SummaryItem
	SummarySales        []SummarySale
	SummaryTransactions []SummaryTransaction
	DetailOrders        []DetailOrder
	OrderLines          []OrderLine
	Waste               []Waste
	Stats               map[Kind]Stats
}

// Rows returns the total number of records across all feeds.
func (b *Batch) Rows() int {
	n := 0
	for _, s := range b.Stats {
		n += s.Rows
	}
	return n
}

// Stores returns the distinct store ids that appear in detail orders,
// the financial view, or waste, sorted.
func (b *Batch) Stores() []string {
	seen := map[string]struct{}{}
	for _, r := range b.DetailOrders {
		seen[r.Store] = struct{}{}
	}
	for _, r := range b.FinancialView {
		seen[r.Store] = struct{}{}
	}
	for _, r := range b.Waste {
		seen[r.Store] = struct{}{}
	}
	stores := make([]string, 0, len(seen))
	for s := range seen {
		stores = append(stores, s)
	}
	sort.Strings(stores)
	return stores
}

// Sink receives normalized records. Every method must be an
// insert-or-update keyed on the record's natural key.
type Sink interface {
	UpsertCashManagement(ctx context.Context, rows []CashManagement) error
	UpsertFinancialView(ctx context.Context, rows []FinancialView) error
	UpsertSummaryItems(ctx context.Context, rows []SummaryItem) error
	UpsertSummarySales(ctx context.Context, rows []SummarySale) error
	UpsertSummaryTransactions(ctx context.Context, rows []SummaryTransaction) error
	UpsertDetailOrders(ctx context.Context, rows []DetailOrder) error
	UpsertOrderLines(ctx context.Context, rows []OrderLine) error
	UpsertWaste(ctx context.Context, rows []Waste) error
}

// Normalizer turns an extracted report directory into a Batch and commits it.
type Normalizer struct {
	batchSize int
}

// NewNormalizer returns a Normalizer committing batchSize rows per upsert.
// A non-positive size falls back to DefaultBatchSize.
func NewNormalizer(batchSize int) *Normalizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Normalizer{batchSize: batchSize}
}

// Load reads every feed for date under dir. A feed with no matching files
// contributes nothing; a file that cannot be read fails the load.
func (n *Normalizer) Load(ctx context.Context, dir, date string) (*Batch, error) {
	b := &Batch{Date: date, Stats: make(map[Kind]Stats, len(Kinds))}
	for _, kind := range Kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.load(dir, kind); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Batch) load(dir string, kind Kind) error {
	files, err := Discover(dir, kind, b.Date)
	if err != nil {
		return err
	}
	var st Stats
	st.Files = len(files)
	for _, path := range files {
		rows, rs, err := ReadFile(path)
		if err != nil {
			return err
		}
		st.Dropped += rs.Dropped
		if rs.Dropped > 0 {
			log.Warn().Str("feed", kind.String()).Str("file", path).
				Int("dropped", rs.Dropped).Msg("feed: dropped rows with wrong column count")
		}

		d := newDecoder(kind)
		switch kind {
		case KindCashManagement:
			b.CashManagement = append(b.CashManagement, decode(rows, cashManagementColumns, d)...)
		case KindFinancialView:
			b.FinancialView = append(b.FinancialView, decode(rows, financialViewColumns, d)...)
		case KindSummaryItems:
			b.SummaryItems = append(b.SummaryItems, decode(rows, summaryItemColumns, d)...)
		case KindSummarySales:
			b.SummarySales = append(b.SummarySales, decode(rows, summarySaleColumns, d)...)
		case KindSummaryTransactions:
			b.SummaryTransactions = append(b.SummaryTransactions, decode(rows, summaryTransactionColumns, d)...)
		case KindDetailOrders:
			b.DetailOrders = append(b.DetailOrders, decode(rows, detailOrderColumns, d)...)
		case KindWaste:
			b.Waste = append(b.Waste, decode(rows, wasteColumns, d)...)
		case KindOrderLines:
			b.OrderLines = append(b.OrderLines, decode(rows, orderLineColumns, d)...)
		default:
			return fmt.Errorf("feed: unknown kind %d", int(kind))
		}
		st.Rows += len(rows)
		st.Malformed += d.report(path)
	}
	b.Stats[kind] = st
	if st.Files > 0 {
		log.Debug().Str("feed", kind.String()).Int("files", st.Files).
			Int("rows", st.Rows).Msg("feed: normalized")
	}
	return nil
}

// Persist commits every feed in the batch through sink in chunks.
// The first failing chunk aborts the remaining writes.
func (n *Normalizer) Persist(ctx context.Context, sink Sink, b *Batch) error {
	start := time.Now()
	steps := []struct {
		kind Kind
		run  func() error
	}{
		{KindCashManagement, func() error { return chunked(ctx, b.CashManagement, n.batchSize, sink.UpsertCashManagement) }},
		{KindFinancialView, func() error { return chunked(ctx, b.FinancialView, n.batchSize, sink.UpsertFinancialView) }},
		{KindSummaryItems, func() error { return chunked(ctx, b.SummaryItems, n.batchSize, sink.UpsertSummaryItems) }},
		{KindSummarySales, func() error { return chunked(ctx, b.SummarySales, n.batchSize, sink.UpsertSummarySales) }},
		{KindSummaryTransactions, func() error {
			return chunked(ctx, b.SummaryTransactions, n.batchSize, sink.UpsertSummaryTransactions)
		}},
		{KindDetailOrders, func() error { return chunked(ctx, b.DetailOrders, n.batchSize, sink.UpsertDetailOrders) }},
		{KindWaste, func() error { return chunked(ctx, b.Waste, n.batchSize, sink.UpsertWaste) }},
		{KindOrderLines, func() error { return chunked(ctx, b.OrderLines, n.batchSize, sink.UpsertOrderLines) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("feed: persist %s: %w", s.kind, err)
		}
	}
	log.Info().Str("date", b.Date).Int("rows", b.Rows()).
		Dur("elapsed", time.Since(start)).Msg("feed: persisted raw feeds")
	return nil
}

func chunked[T any](ctx context.Context, rows []T, size int, write func(context.Context, []T) error) error {
	for start := 0; start < len(rows); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(rows))
		if err := write(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}
