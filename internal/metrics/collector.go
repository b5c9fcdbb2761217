package metrics

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks import activity with atomic counters plus labeled vecs
// for per-feed, per-stage and per-failure-kind breakdowns.
type Collector struct {
	runsTotal     int64
	runsSucceeded int64
	runsFailed    int64
	activeRuns    int64

	feedRows       int64
	droppedRows    int64
	malformedCells int64
	aggregateRows  int64

	lastSuccessUnix int64

	startTime time.Time

	failures    *counterVec   // kind
	feedByKind  *counterVec   // feed
	stageTime   *histogramVec // stage
	runTime     *histogramVec // source, status
	lastRunRows *gaugeVec     // feed
}

// Stats is a point-in-time snapshot of the collector's counters.
type Stats struct {
	Uptime         string `json:"uptime"`
	RunsTotal      int64  `json:"runs_total"`
	RunsSucceeded  int64  `json:"runs_succeeded"`
	RunsFailed     int64  `json:"runs_failed"`
	ActiveRuns     int64  `json:"active_runs"`
	FeedRows       int64  `json:"feed_rows"`
	DroppedRows    int64  `json:"dropped_rows"`
	MalformedCells int64  `json:"malformed_cells"`
	AggregateRows  int64  `json:"aggregate_rows"`
	LastSuccess    string `json:"last_success,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		startTime:   time.Now(),
		failures:    newCounterVec(),
		feedByKind:  newCounterVec(),
		stageTime:   newHistogramVec(durationBuckets),
		runTime:     newHistogramVec(durationBuckets),
		lastRunRows: newGaugeVec(),
	}
}

// RunStarted marks a run as in flight. Pair with RunFinished.
func (c *Collector) RunStarted() {
	atomic.AddInt64(&c.activeRuns, 1)
}

// RunFinished records a completed run. An empty errKind means success.
func (c *Collector) RunFinished(source, errKind string, d time.Duration) {
	atomic.AddInt64(&c.activeRuns, -1)
	atomic.AddInt64(&c.runsTotal, 1)

	status := "succeeded"
	if errKind == "" {
		atomic.AddInt64(&c.runsSucceeded, 1)
		atomic.StoreInt64(&c.lastSuccessUnix, time.Now().Unix())
	} else {
		status = "failed"
		atomic.AddInt64(&c.runsFailed, 1)
		c.failures.add(map[string]string{"kind": errKind}, 1)
	}
	c.runTime.observe(map[string]string{"source": source, "status": status}, d.Seconds())
}

// RecordStage records how long one pipeline stage took.
func (c *Collector) RecordStage(stage string, d time.Duration) {
	c.stageTime.observe(map[string]string{"stage": stage}, d.Seconds())
}

// RecordFeed records the normalized row counts for one feed.
func (c *Collector) RecordFeed(feed string, rows, dropped, malformed int) {
	atomic.AddInt64(&c.feedRows, int64(rows))
	atomic.AddInt64(&c.droppedRows, int64(dropped))
	atomic.AddInt64(&c.malformedCells, int64(malformed))
	c.feedByKind.add(map[string]string{"feed": feed}, int64(rows))
	c.lastRunRows.set(map[string]string{"feed": feed}, float64(rows))
}

// RecordAggregates adds to the count of aggregate rows written.
func (c *Collector) RecordAggregates(rows int) {
	atomic.AddInt64(&c.aggregateRows, int64(rows))
}

// Stats returns a point-in-time snapshot of all counters.
func (c *Collector) Stats() *Stats {
	s := &Stats{
		Uptime:         formatDuration(time.Since(c.startTime)),
		RunsTotal:      atomic.LoadInt64(&c.runsTotal),
		RunsSucceeded:  atomic.LoadInt64(&c.runsSucceeded),
		RunsFailed:     atomic.LoadInt64(&c.runsFailed),
		ActiveRuns:     atomic.LoadInt64(&c.activeRuns),
		FeedRows:       atomic.LoadInt64(&c.feedRows),
		DroppedRows:    atomic.LoadInt64(&c.droppedRows),
		MalformedCells: atomic.LoadInt64(&c.malformedCells),
		AggregateRows:  atomic.LoadInt64(&c.aggregateRows),
	}
	if ts := atomic.LoadInt64(&c.lastSuccessUnix); ts > 0 {
		s.LastSuccess = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return s
}

// formatDuration produces a compact duration like "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
