// Package aggregate derives per-store daily aggregates from normalized feeds
// and writes them through a Sink as insert-or-update rows.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/feed"
)

// ErrPersistence wraps the first aggregate write that fails.
var ErrPersistence = errors.New("aggregate: persistence failed")

// Sink receives computed aggregates. Every method must upsert by the row's
// natural key so that re-running a date replaces rather than duplicates.
type Sink interface {
	UpsertChannelRows(ctx context.Context, rows []ChannelRow) error
	UpsertBreadBoost(ctx context.Context, row BreadBoost) error
	UpsertDeliverySummary(ctx context.Context, row DeliverySummary) error
	UpsertMarketplaceOrders(ctx context.Context, row MarketplaceOrders) error
	UpsertDiscountOrders(ctx context.Context, rows []DiscountOrder) error
	UpsertFinanceData(ctx context.Context, row FinanceData) error
	UpsertFinalSummary(ctx context.Context, row FinalSummary) error
	UpsertHourlySales(ctx context.Context, rows []HourlySales) error
}

// Options tunes aggregation. Zero fields take the defaults below.
type Options struct {
	ChannelBatchSize int
	LateFeeGrace     time.Duration
	LateFeeRate      decimal.Decimal
}

const (
	DefaultChannelBatchSize = 1000
	DefaultLateFeeGrace     = 5 * time.Minute
)

// DefaultLateFeeRate is charged per delivery order loaded late into the portal.
var DefaultLateFeeRate = decimal.RequireFromString("0.50")

func (o Options) withDefaults() Options {
	if o.ChannelBatchSize <= 0 {
		o.ChannelBatchSize = DefaultChannelBatchSize
	}
	if o.LateFeeGrace <= 0 {
		o.LateFeeGrace = DefaultLateFeeGrace
	}
	if o.LateFeeRate.IsZero() {
		o.LateFeeRate = DefaultLateFeeRate
	}
	return o
}

// StoreInput is every normalized row of one store for the business date.
type StoreInput struct {
	Orders  []feed.DetailOrder
	Lines   []feed.OrderLine
	Finance []feed.FinancialView
	Waste   []feed.Waste
}

// StoreResult is everything derived for one store.
type StoreResult struct {
	Store         string
	Channel       []ChannelRow
	Bread         BreadBoost
	Delivery      DeliverySummary
	Marketplace   MarketplaceOrders
	Discounts     []DiscountOrder
	Finance       FinanceData
	Summary       FinalSummary
	Hourly        []HourlySales
	SkippedHourly int
	LateOrders    int64
}

// ComputeStore derives all aggregates for one store. It performs no I/O.
func ComputeStore(date, store string, in StoreInput, opts Options) StoreResult {
	opts = opts.withDefaults()

	// The late fee covers the same online delivery orders as the delivery summary.
	delivery := filter(in.Orders, all(placedIn(onlinePlaced...), fulfilledIn(fulfilledDelivery)))
	late := lateToPortal(delivery, opts.LateFeeGrace)
	lateFee := decimal.NewFromInt(late).Mul(opts.LateFeeRate).Round(2)

	fin := newLedger(in.Finance)
	hourly, skipped := hourlySales(date, store, in.Orders)

	return StoreResult{
		Store:         store,
		Channel:       channelMatrix(date, store, in.Orders, ChannelMetrics),
		Bread:         breadBoost(date, store, in.Lines),
		Delivery:      deliverySummary(date, store, in.Orders, lateFee),
		Marketplace:   marketplace(date, store, in.Orders),
		Discounts:     discountLedger(date, store, in.Orders),
		Finance:       financeData(date, store, in.Orders, fin, lateFee),
		Summary:       finalSummary(date, store, in.Orders, fin, in.Waste),
		Hourly:        hourly,
		SkippedHourly: skipped,
		LateOrders:    late,
	}
}

// Summary reports what one engine run wrote.
type Summary struct {
	Date          string
	Stores        int
	ChannelRows   int
	DiscountRows  int
	HourlyRows    int
	SkippedHourly int
	Elapsed       time.Duration
}

// Engine computes and persists aggregates for a whole batch.
type Engine struct {
	sink Sink
	opts Options
}

func NewEngine(sink Sink, opts Options) *Engine {
	return &Engine{sink: sink, opts: opts.withDefaults()}
}

// splitByStore partitions a batch into per-store inputs.
func splitByStore(b *feed.Batch) map[string]*StoreInput {
	out := map[string]*StoreInput{}
	get := func(store string) *StoreInput {
		in, ok := out[store]
		if !ok {
			in = &StoreInput{}
			out[store] = in
		}
		return in
	}
	for _, o := range b.DetailOrders {
		in := get(o.Store)
		in.Orders = append(in.Orders, o)
	}
	for _, l := range b.OrderLines {
		in := get(l.Store)
		in.Lines = append(in.Lines, l)
	}
	for _, f := range b.FinancialView {
		in := get(f.Store)
		in.Finance = append(in.Finance, f)
	}
	for _, w := range b.Waste {
		in := get(w.Store)
		in.Waste = append(in.Waste, w)
	}
	return out
}

// Run aggregates every store in the batch. Per-store aggregates are written
// as each store completes; channel rows are written last in chunks. The first
// failed write stops the run; rows already written stay committed.
func (e *Engine) Run(ctx context.Context, b *feed.Batch, date string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Date: date}

	inputs := splitByStore(b)
	var channel []ChannelRow
	for _, store := range b.Stores() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		in := inputs[store]
		if in == nil {
			in = &StoreInput{}
		}
		res := ComputeStore(date, store, *in, e.opts)
		if err := e.writeStore(ctx, res); err != nil {
			return sum, fmt.Errorf("%w: store %s: %w", ErrPersistence, store, err)
		}

		channel = append(channel, res.Channel...)
		sum.Stores++
		sum.DiscountRows += len(res.Discounts)
		sum.HourlyRows += len(res.Hourly)
		sum.SkippedHourly += res.SkippedHourly

		log.Debug().
			Str("date", date).
			Str("store", store).
			Int("orders", len(in.Orders)).
			Int64("late_orders", res.LateOrders).
			Int("skipped_hourly", res.SkippedHourly).
			Msg("store aggregated")
	}

	for i := 0; i < len(channel); i += e.opts.ChannelBatchSize {
		end := min(i+e.opts.ChannelBatchSize, len(channel))
		if err := e.sink.UpsertChannelRows(ctx, channel[i:end]); err != nil {
			return sum, fmt.Errorf("%w: channel rows: %w", ErrPersistence, err)
		}
		sum.ChannelRows += end - i
	}

	sum.Elapsed = time.Since(start)
	if sum.SkippedHourly > 0 {
		log.Warn().Str("date", date).Int("orders", sum.SkippedHourly).Msg("orders without promise time left out of hourly sales")
	}
	return sum, nil
}

func (e *Engine) writeStore(ctx context.Context, r StoreResult) error {
	steps := []struct {
		name  string
		write func() error
	}{
		{"discount orders", func() error {
			if len(r.Discounts) == 0 {
				return nil
			}
			return e.sink.UpsertDiscountOrders(ctx, r.Discounts)
		}},
		{"bread boost", func() error { return e.sink.UpsertBreadBoost(ctx, r.Bread) }},
		{"delivery summary", func() error { return e.sink.UpsertDeliverySummary(ctx, r.Delivery) }},
		{"marketplace orders", func() error { return e.sink.UpsertMarketplaceOrders(ctx, r.Marketplace) }},
		{"finance data", func() error { return e.sink.UpsertFinanceData(ctx, r.Finance) }},
		{"final summary", func() error { return e.sink.UpsertFinalSummary(ctx, r.Summary) }},
		{"hourly sales", func() error {
			if len(r.Hourly) == 0 {
				return nil
			}
			return e.sink.UpsertHourlySales(ctx, r.Hourly)
		}},
	}
	for _, s := range steps {
		if err := s.write(); err != nil {
			return fmt.Errorf("write %s: %w", s.name, err)
		}
	}
	return nil
}
