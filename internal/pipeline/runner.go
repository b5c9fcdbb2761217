// Package pipeline runs one import for a business date: download the report
// archive, stage it, normalize and persist the feeds, then aggregate.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/aggregate"
	"github.com/allaspectsdev/storepulse/internal/archive"
	"github.com/allaspectsdev/storepulse/internal/feed"
	"github.com/allaspectsdev/storepulse/internal/metrics"
	"github.com/allaspectsdev/storepulse/internal/store"
	"github.com/allaspectsdev/storepulse/internal/tracing"
)

// Fetcher downloads the report archive for a date into destDir.
type Fetcher interface {
	FetchReportArchive(ctx context.Context, date, destDir string) (string, error)
}

// Sink persists normalized feeds and aggregates.
type Sink interface {
	feed.Sink
	aggregate.Sink
}

// RunLog records each run's lifecycle.
type RunLog interface {
	StartRun(ctx context.Context, r *store.Run) error
	FinishRun(ctx context.Context, r *store.Run) error
}

// Options tune a Runner.
type Options struct {
	WorkDir       string
	FeedBatchSize int
	Aggregate     aggregate.Options
}

// Runner executes import runs. Runs for different dates may execute
// concurrently; runs for the same date are last-writer-wins.
type Runner struct {
	fetcher   Fetcher
	sink      Sink
	runs      RunLog
	collector *metrics.Collector
	opts      Options

	mu        sync.Mutex
	listeners []func(*Result)
}

// New returns a Runner. fetcher may be nil for archive-only use; collector
// and runs may be nil to skip metrics and the run log.
func New(fetcher Fetcher, sink Sink, runs RunLog, collector *metrics.Collector, opts Options) *Runner {
	return &Runner{
		fetcher:   fetcher,
		sink:      sink,
		runs:      runs,
		collector: collector,
		opts:      opts,
	}
}

// OnFinish registers fn to be called after every run, successful or not.
func (r *Runner) OnFinish(fn func(*Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Run imports date from the gateway and reports whether it succeeded.
// Failures are logged with their kind; Run never panics.
func (r *Runner) Run(ctx context.Context, date string) bool {
	return r.Execute(ctx, Request{Date: date, Source: SourceGateway}).OK
}

// RunArchive imports date from a local zip. The zip is left in place.
func (r *Runner) RunArchive(ctx context.Context, zipPath, date string) bool {
	return r.Execute(ctx, Request{Date: date, Source: SourceArchive, Archive: zipPath}).OK
}

// runState carries values between stages of one run.
type runState struct {
	req     Request
	zipPath string
	ws      *archive.Workspace
	batch   *feed.Batch
	summary *aggregate.Summary
}

// Execute performs one run and returns its full result.
func (r *Runner) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := &Result{
		RunID:   uuid.NewString(),
		Date:    req.Date,
		Source:  req.Source,
		Timings: map[string]time.Duration{},
	}
	logger := log.With().Str("run_id", res.RunID).Str("date", req.Date).Str("source", string(req.Source)).Logger()

	if r.collector != nil {
		r.collector.RunStarted()
	}

	runRow := &store.Run{ID: res.RunID, BusinessDate: req.Date, Source: string(req.Source)}
	if r.runs != nil {
		if err := r.runs.StartRun(context.WithoutCancel(ctx), runRow); err != nil {
			logger.Warn().Err(err).Msg("pipeline: could not record run start")
			runRow = nil
		}
	}

	ctx, span := tracing.StartRunSpan(ctx, res.RunID, req.Date, string(req.Source))
	st := &runState{req: req}
	defer func() {
		if st.ws != nil {
			st.ws.Close()
		}
	}()

	if err := ValidateDate(req.Date); err != nil {
		res.Kind, res.Err = KindInput, err
	} else {
		res.Kind, res.Err = r.runStages(ctx, r.stages(st), res.Timings)
	}
	if res.Err != nil {
		tracing.RecordError(ctx, res.Err)
	}
	span.End()

	res.OK = res.Err == nil
	res.Elapsed = time.Since(start)
	if st.batch != nil {
		res.FeedRows = st.batch.Rows()
		for _, s := range st.batch.Stats {
			res.DroppedRows += s.Dropped
		}
	}
	if st.summary != nil {
		res.Stores = st.summary.Stores
		res.AggregateRows = aggregateRows(st.summary)
	}

	r.finish(ctx, res, runRow)

	if res.OK {
		logger.Info().
			Int("feed_rows", res.FeedRows).
			Int("stores", res.Stores).
			Int("aggregate_rows", res.AggregateRows).
			Dur("elapsed", res.Elapsed).
			Msg("pipeline: import succeeded")
	} else {
		logger.Error().Err(res.Err).Str("kind", string(res.Kind)).
			Dur("elapsed", res.Elapsed).
			Msg("pipeline: import failed")
	}
	return res
}

func (r *Runner) stages(st *runState) []stage {
	var stages []stage
	if st.req.Source == SourceArchive {
		st.zipPath = st.req.Archive
	} else {
		stages = append(stages, stage{name: StageDownload, kind: KindTransfer, run: func(ctx context.Context) error {
			if r.fetcher == nil {
				return ErrGatewayDisabled
			}
			path, err := r.fetcher.FetchReportArchive(ctx, st.req.Date, r.opts.WorkDir)
			if err != nil {
				return err
			}
			st.zipPath = path
			return nil
		}})
	}

	return append(stages,
		stage{name: StageExtraction, kind: KindArchive, run: func(context.Context) error {
			var opts []archive.Option
			if st.req.Source == SourceArchive {
				opts = append(opts, archive.KeepArchive())
			}
			ws, err := archive.Stage(st.zipPath, r.opts.WorkDir, opts...)
			if err != nil {
				return err
			}
			st.ws = ws
			return nil
		}},
		stage{name: StageNormalization, kind: KindPersistence, run: func(ctx context.Context) error {
			n := feed.NewNormalizer(r.opts.FeedBatchSize)
			b, err := n.Load(ctx, st.ws.Dir, st.req.Date)
			if err != nil {
				// Unreadable feed files are a bad bundle, not a storage failure.
				if ctx.Err() == nil {
					return errors.Join(archive.ErrArchive, err)
				}
				return err
			}
			st.batch = b
			r.recordFeeds(b)
			tracing.SetRows(ctx, b.Rows())
			return n.Persist(ctx, r.sink, b)
		}},
		stage{name: StageAggregation, kind: KindPersistence, run: func(ctx context.Context) error {
			sum, err := aggregate.NewEngine(r.sink, r.opts.Aggregate).Run(ctx, st.batch, st.req.Date)
			st.summary = sum
			if err != nil {
				return err
			}
			tracing.SetRows(ctx, aggregateRows(sum))
			return nil
		}},
	)
}

func (r *Runner) recordFeeds(b *feed.Batch) {
	if r.collector == nil {
		return
	}
	for _, kind := range feed.Kinds {
		s := b.Stats[kind]
		r.collector.RecordFeed(kind.String(), s.Rows, s.Dropped, s.Malformed)
	}
}

// finish closes out the run in metrics, the run log and listeners. Run log
// writes ignore cancellation so an aborted run is still recorded.
func (r *Runner) finish(ctx context.Context, res *Result, runRow *store.Run) {
	if r.collector != nil {
		r.collector.RunFinished(string(res.Source), string(res.Kind), res.Elapsed)
		if res.OK {
			r.collector.RecordAggregates(res.AggregateRows)
		}
	}

	if r.runs != nil && runRow != nil {
		runRow.Status = store.RunSucceeded
		if !res.OK {
			runRow.Status = store.RunFailed
			runRow.ErrorKind = string(res.Kind)
			runRow.ErrorMessage = res.Err.Error()
		}
		runRow.FeedRows = int64(res.FeedRows)
		runRow.DroppedRows = int64(res.DroppedRows)
		runRow.Stores = int64(res.Stores)
		runRow.AggregateRows = int64(res.AggregateRows)
		if err := r.runs.FinishRun(context.WithoutCancel(ctx), runRow); err != nil {
			log.Warn().Err(err).Str("run_id", res.RunID).Msg("pipeline: could not record run result")
		}
	}

	r.mu.Lock()
	listeners := append([]func(*Result){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(res)
	}
}

// aggregateRows counts rows written: five single-row aggregates per store
// plus the multi-row ones.
func aggregateRows(s *aggregate.Summary) int {
	if s == nil {
		return 0
	}
	return 5*s.Stores + s.ChannelRows + s.DiscountRows + s.HourlyRows
}
