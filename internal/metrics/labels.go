package metrics

import (
	"sort"
	"strings"
	"sync"
)

// labelKey renders labels in sorted order so equal label sets share a key.
func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(0)
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

type counterEntry struct {
	labels map[string]string
	value  int64
}

// counterVec is a set of counters keyed by label values.
type counterVec struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
}

func newCounterVec() *counterVec {
	return &counterVec{entries: map[string]*counterEntry{}}
}

func (cv *counterVec) add(labels map[string]string, delta int64) {
	key := labelKey(labels)
	cv.mu.Lock()
	defer cv.mu.Unlock()
	e, ok := cv.entries[key]
	if !ok {
		e = &counterEntry{labels: copyLabels(labels)}
		cv.entries[key] = e
	}
	e.value += delta
}

// snapshot returns entries sorted by label key.
func (cv *counterVec) snapshot() []counterEntry {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	keys := make([]string, 0, len(cv.entries))
	for k := range cv.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]counterEntry, 0, len(keys))
	for _, k := range keys {
		e := cv.entries[k]
		out = append(out, counterEntry{labels: copyLabels(e.labels), value: e.value})
	}
	return out
}

type gaugeEntry struct {
	labels map[string]string
	value  float64
}

// gaugeVec is a set of gauges keyed by label values.
type gaugeVec struct {
	mu      sync.Mutex
	entries map[string]*gaugeEntry
}

func newGaugeVec() *gaugeVec {
	return &gaugeVec{entries: map[string]*gaugeEntry{}}
}

func (gv *gaugeVec) set(labels map[string]string, value float64) {
	key := labelKey(labels)
	gv.mu.Lock()
	defer gv.mu.Unlock()
	e, ok := gv.entries[key]
	if !ok {
		e = &gaugeEntry{labels: copyLabels(labels)}
		gv.entries[key] = e
	}
	e.value = value
}

func (gv *gaugeVec) snapshot() []gaugeEntry {
	gv.mu.Lock()
	defer gv.mu.Unlock()
	keys := make([]string, 0, len(gv.entries))
	for k := range gv.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]gaugeEntry, 0, len(keys))
	for _, k := range keys {
		e := gv.entries[k]
		out = append(out, gaugeEntry{labels: copyLabels(e.labels), value: e.value})
	}
	return out
}

// Default buckets for stage and run durations, in seconds.
var durationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

type histogram struct {
	labels  map[string]string
	buckets []float64
	counts  []int64
	count   int64
	sum     float64
}

// histogramVec is a set of fixed-bucket histograms keyed by label values.
type histogramVec struct {
	mu      sync.Mutex
	buckets []float64
	entries map[string]*histogram
}

func newHistogramVec(buckets []float64) *histogramVec {
	return &histogramVec{buckets: buckets, entries: map[string]*histogram{}}
}

func (hv *histogramVec) observe(labels map[string]string, v float64) {
	key := labelKey(labels)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	h, ok := hv.entries[key]
	if !ok {
		h = &histogram{labels: copyLabels(labels), buckets: hv.buckets, counts: make([]int64, len(hv.buckets))}
		hv.entries[key] = h
	}
	// counts are per bucket; the writer accumulates them.
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
	h.count++
	h.sum += v
}

func (hv *histogramVec) snapshot() []histogram {
	hv.mu.Lock()
	defer hv.mu.Unlock()
	keys := make([]string, 0, len(hv.entries))
	for k := range hv.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]histogram, 0, len(keys))
	for _, k := range keys {
		h := hv.entries[k]
		counts := make([]int64, len(h.counts))
		copy(counts, h.counts)
		out = append(out, histogram{labels: copyLabels(h.labels), buckets: h.buckets, counts: counts, count: h.count, sum: h.sum})
	}
	return out
}
