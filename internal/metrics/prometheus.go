package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// PrometheusHandler returns an http.HandlerFunc that writes metrics in
// Prometheus text exposition format (version 0.0.4).
func PrometheusHandler(collector *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		WritePrometheus(w, collector)
	}
}

// WritePrometheus writes every collector metric to w.
func WritePrometheus(w io.Writer, collector *Collector) {
	stats := collector.Stats()

	writeMetric(w, "storepulse_runs_total",
		"Total number of import runs.",
		"counter", stats.RunsTotal)

	writeMetric(w, "storepulse_runs_succeeded_total",
		"Import runs that committed all feeds and aggregates.",
		"counter", stats.RunsSucceeded)

	writeMetric(w, "storepulse_runs_failed_total",
		"Import runs that stopped on an error.",
		"counter", stats.RunsFailed)

	writeMetric(w, "storepulse_active_runs",
		"Import runs currently in progress.",
		"gauge", stats.ActiveRuns)

	writeMetric(w, "storepulse_feed_rows_total",
		"Normalized feed rows persisted.",
		"counter", stats.FeedRows)

	writeMetric(w, "storepulse_dropped_rows_total",
		"CSV rows dropped for a column count mismatch.",
		"counter", stats.DroppedRows)

	writeMetric(w, "storepulse_malformed_cells_total",
		"Numeric cells that could not be parsed and were stored as zero.",
		"counter", stats.MalformedCells)

	writeMetric(w, "storepulse_aggregate_rows_total",
		"Aggregate rows upserted.",
		"counter", stats.AggregateRows)

	var lastSuccess float64
	if ts := atomic.LoadInt64(&collector.lastSuccessUnix); ts > 0 {
		lastSuccess = float64(ts)
	}
	writeMetricFloat(w, "storepulse_last_success_timestamp_seconds",
		"Unix time of the last successful import.",
		"gauge", lastSuccess)

	writeMetricFloat(w, "storepulse_uptime_seconds",
		"Number of seconds since the process started.",
		"gauge", time.Since(collector.startTime).Seconds())

	writeCounterVec(w, "storepulse_run_failures_total",
		"Failed runs by error kind.",
		collector.failures)

	writeCounterVec(w, "storepulse_feed_rows_by_feed_total",
		"Normalized rows persisted per feed.",
		collector.feedByKind)

	writeGaugeVec(w, "storepulse_last_run_feed_rows",
		"Rows per feed in the most recent run.",
		collector.lastRunRows)

	writeHistogramVec(w, "storepulse_stage_duration_seconds",
		"Pipeline stage duration in seconds.",
		collector.stageTime)

	writeHistogramVec(w, "storepulse_run_duration_seconds",
		"Whole-run duration in seconds by source and status.",
		collector.runTime)
}

// writeMetric writes a single integer metric in Prometheus text format.
func writeMetric(w io.Writer, name, help, metricType string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// writeMetricFloat writes a single float64 metric in Prometheus text format.
func writeMetricFloat(w io.Writer, name, help, metricType string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %g\n", name, value)
}

// formatLabels formats a label map as Prometheus label string, e.g. {type="foo",provider="bar"}.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// writeCounterVec writes a labeled counter vec in Prometheus text format.
func writeCounterVec(w io.Writer, name, help string, cv *counterVec) {
	entries := cv.snapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s %d\n", name, formatLabels(e.labels), e.value)
	}
}

// writeHistogramVec writes a labeled histogram vec in Prometheus text format.
func writeHistogramVec(w io.Writer, name, help string, hv *histogramVec) {
	histograms := hv.snapshot()
	if len(histograms) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", name)
	for _, h := range histograms {
		labels := formatLabels(h.labels)
		// Cumulative bucket counts.
		var cumulative int64
		for i, bound := range h.buckets {
			cumulative += h.counts[i]
			le := fmt.Sprintf("%g", bound)
			if len(h.labels) == 0 {
				fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", name, le, cumulative)
			} else {
				// Insert le into existing labels.
				lbl := formatLabelsWithLe(h.labels, le)
				fmt.Fprintf(w, "%s_bucket%s %d\n", name, lbl, cumulative)
			}
		}
		// +Inf bucket.
		if len(h.labels) == 0 {
			fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
		} else {
			lbl := formatLabelsWithLe(h.labels, "+Inf")
			fmt.Fprintf(w, "%s_bucket%s %d\n", name, lbl, h.count)
		}
		fmt.Fprintf(w, "%s_sum%s %g\n", name, labels, h.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", name, labels, h.count)
	}
}

// formatLabelsWithLe formats labels with an additional "le" label for histogram buckets.
func formatLabelsWithLe(labels map[string]string, le string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	fmt.Fprintf(&b, ",le=%q", le)
	b.WriteByte('}')
	return b.String()
}

// writeGaugeVec writes a labeled gauge vec in Prometheus text format.
func writeGaugeVec(w io.Writer, name, help string, gv *gaugeVec) {
	entries := gv.snapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s %g\n", name, formatLabels(e.labels), e.value)
	}
}
