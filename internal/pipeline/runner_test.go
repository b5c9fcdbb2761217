package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/allaspectsdev/storepulse/internal/aggregate"
	"github.com/allaspectsdev/storepulse/internal/gateway"
	"github.com/allaspectsdev/storepulse/internal/metrics"
	"github.com/allaspectsdev/storepulse/internal/store"
	"github.com/allaspectsdev/storepulse/internal/testutil"
)

// fakeFetcher copies a prepared zip into destDir, the way the gateway
// client leaves a downloaded archive behind.
type fakeFetcher struct {
	src   string
	err   error
	panic bool
	calls int
}

func (f *fakeFetcher) FetchReportArchive(_ context.Context, date, destDir string) (string, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", err
	}
	dst := filepath.Join(destDir, "temp_report_"+date+".zip")
	in, err := os.Open(f.src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}
	return dst, nil
}

// failingSink fails the finance aggregate write.
type failingSink struct {
	*store.Store
}

func (f failingSink) UpsertFinanceData(context.Context, aggregate.FinanceData) error {
	return errors.New("disk full")
}

type harness struct {
	runner    *Runner
	store     *store.Store
	collector *metrics.Collector
	workDir   string
}

func newHarness(t *testing.T, fetcher Fetcher, wrap func(*store.Store) Sink) *harness {
	t.Helper()
	st := testutil.NewTestStore(t)
	var sink Sink = st
	if wrap != nil {
		sink = wrap(st)
	}
	h := &harness{store: st, collector: metrics.NewCollector(), workDir: t.TempDir()}
	h.runner = New(fetcher, sink, st, h.collector, Options{WorkDir: h.workDir, FeedBatchSize: 2})
	return h
}

func (h *harness) onlyRun(t *testing.T) *store.Run {
	t.Helper()
	runs, err := h.store.ListRuns(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run row, got %d", len(runs))
	}
	return runs[0]
}

func (h *harness) count(t *testing.T, table string) int64 {
	t.Helper()
	n, err := h.store.CountRows(context.Background(), table)
	if err != nil {
		t.Fatalf("CountRows(%s): %v", table, err)
	}
	return n
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("work dir should be cleaned up, found %s", e.Name())
	}
}

func TestRunArchive_Success(t *testing.T) {
	h := newHarness(t, nil, nil)
	zipPath := testutil.SampleZip(t, t.TempDir())

	if !h.runner.RunArchive(context.Background(), zipPath, testutil.SampleDate) {
		t.Fatal("RunArchive returned false")
	}

	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("user-supplied archive should be kept: %v", err)
	}
	assertWorkDirEmpty(t, h.workDir)

	if n := h.count(t, "channel_data"); n != 34 {
		t.Errorf("channel_data rows: got %d, want 34", n)
	}
	if n := h.count(t, "finance_data"); n != 2 {
		t.Errorf("finance_data rows: got %d, want 2", n)
	}
	if n := h.count(t, "detail_orders"); n == 0 {
		t.Error("detail_orders should be persisted")
	}

	run := h.onlyRun(t)
	if run.Status != store.RunSucceeded || run.Source != "archive" || run.BusinessDate != testutil.SampleDate {
		t.Errorf("run row: %+v", run)
	}
	if run.Stores != 2 || run.AggregateRows != 48 || run.FeedRows == 0 {
		t.Errorf("run counters: %+v", run)
	}

	stats := h.collector.Stats()
	if stats.RunsSucceeded != 1 || stats.AggregateRows != 48 {
		t.Errorf("collector: %+v", stats)
	}
}

func TestRun_DownloadedArchiveRemoved(t *testing.T) {
	fetcher := &fakeFetcher{src: testutil.SampleZip(t, t.TempDir())}
	h := newHarness(t, fetcher, nil)

	res := h.runner.Execute(context.Background(), Request{Date: testutil.SampleDate, Source: SourceGateway})
	if !res.OK {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	assertWorkDirEmpty(t, h.workDir)

	for _, s := range []string{StageDownload, StageExtraction, StageNormalization, StageAggregation} {
		if _, ok := res.Timings[s]; !ok {
			t.Errorf("missing timing for stage %s", s)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	fetcher := &fakeFetcher{src: testutil.SampleZip(t, t.TempDir())}
	h := newHarness(t, fetcher, nil)

	for i := 0; i < 2; i++ {
		if !h.runner.Run(context.Background(), testutil.SampleDate) {
			t.Fatalf("run %d failed", i+1)
		}
	}
	if n := h.count(t, "channel_data"); n != 34 {
		t.Errorf("channel_data rows after rerun: got %d, want 34", n)
	}
	if n := h.count(t, "hourly_sales"); n != 3 {
		t.Errorf("hourly_sales rows after rerun: got %d, want 3", n)
	}
}

func TestRun_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"auth", fmt.Errorf("%w: missing access_token", gateway.ErrAuth), KindAuth},
		{"transfer", fmt.Errorf("%w: connection reset", gateway.ErrTransfer), KindTransfer},
		{"blob", fmt.Errorf("%w: empty listing", gateway.ErrBlobNotFound), KindBlobNotFound},
		{"unclassified", errors.New("mystery"), KindTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeFetcher{err: tt.err}, nil)

			res := h.runner.Execute(context.Background(), Request{Date: testutil.SampleDate, Source: SourceGateway})
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Kind != tt.want {
				t.Errorf("kind: got %q, want %q", res.Kind, tt.want)
			}

			run := h.onlyRun(t)
			if run.Status != store.RunFailed || run.ErrorKind != string(tt.want) {
				t.Errorf("run row: %+v", run)
			}
			if h.count(t, "detail_orders") != 0 {
				t.Error("a failed download must not write feeds")
			}
		})
	}
}

func TestRun_CorruptArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(bad, []byte("not a zip"), 0o600); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, &fakeFetcher{src: bad}, nil)

	res := h.runner.Execute(context.Background(), Request{Date: testutil.SampleDate, Source: SourceGateway})
	if res.OK || res.Kind != KindArchive {
		t.Fatalf("expected archive failure, got ok=%v kind=%q err=%v", res.OK, res.Kind, res.Err)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestRun_NoGatewayConfigured(t *testing.T) {
	h := newHarness(t, nil, nil)

	res := h.runner.Execute(context.Background(), Request{Date: testutil.SampleDate, Source: SourceGateway})
	if res.OK || res.Kind != KindAuth {
		t.Errorf("expected auth failure, got ok=%v kind=%q", res.OK, res.Kind)
	}
	if !errors.Is(res.Err, ErrGatewayDisabled) {
		t.Errorf("err: %v", res.Err)
	}
}

func TestRun_InvalidDate(t *testing.T) {
	fetcher := &fakeFetcher{}
	h := newHarness(t, fetcher, nil)

	if h.runner.Run(context.Background(), "03/07/2025") {
		t.Fatal("expected failure for bad date")
	}
	if fetcher.calls != 0 {
		t.Error("gateway must not be called for an invalid date")
	}
	if run := h.onlyRun(t); run.ErrorKind != string(KindInput) {
		t.Errorf("ErrorKind: got %q", run.ErrorKind)
	}
}

func TestRun_PersistenceFailure(t *testing.T) {
	h := newHarness(t, nil, func(st *store.Store) Sink { return failingSink{st} })
	zipPath := testutil.SampleZip(t, t.TempDir())

	res := h.runner.Execute(context.Background(), Request{Date: testutil.SampleDate, Source: SourceArchive, Archive: zipPath})
	if res.OK || res.Kind != KindPersistence {
		t.Fatalf("expected persistence failure, got ok=%v kind=%q err=%v", res.OK, res.Kind, res.Err)
	}
	if !strings.Contains(res.Err.Error(), "disk full") {
		t.Errorf("err should carry the cause: %v", res.Err)
	}
	// Earlier per-store writes stay committed.
	if n := h.count(t, "bread_boost"); n == 0 {
		t.Error("aggregates written before the failure should remain")
	}
	if n := h.count(t, "channel_data"); n != 0 {
		t.Errorf("channel rows are written last, got %d", n)
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	h := newHarness(t, &fakeFetcher{panic: true}, nil)

	res := h.runner.Execute(context.Background(), Request{Date: testutil.SampleDate, Source: SourceGateway})
	if res.OK || res.Kind != KindInternal {
		t.Errorf("expected internal failure, got ok=%v kind=%q", res.OK, res.Kind)
	}
	if h.collector.Stats().ActiveRuns != 0 {
		t.Error("active runs should return to zero")
	}
}

func TestRun_CanceledContext(t *testing.T) {
	h := newHarness(t, &fakeFetcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.runner.Execute(ctx, Request{Date: testutil.SampleDate, Source: SourceGateway})
	if res.OK || res.Kind != KindCanceled {
		t.Errorf("expected canceled, got ok=%v kind=%q", res.OK, res.Kind)
	}
	// The run row is still closed out.
	if run := h.onlyRun(t); run.Status != store.RunFailed {
		t.Errorf("run status: got %q", run.Status)
	}
}

func TestRunner_OnFinish(t *testing.T) {
	h := newHarness(t, nil, nil)
	var got []*Result
	h.runner.OnFinish(func(r *Result) { got = append(got, r) })

	h.runner.RunArchive(context.Background(), testutil.SampleZip(t, t.TempDir()), testutil.SampleDate)
	h.runner.Run(context.Background(), testutil.SampleDate)

	if len(got) != 2 || !got[0].OK || got[1].OK {
		t.Errorf("listener results: %+v", got)
	}
}

func TestValidateDate(t *testing.T) {
	for _, d := range []string{"2025-03-07", "2024-02-29"} {
		if err := ValidateDate(d); err != nil {
			t.Errorf("ValidateDate(%q): %v", d, err)
		}
	}
	for _, d := range []string{"", "2025-3-7", "2025-02-30", "03/07/2025", "2025-03-07T00:00:00"} {
		if err := ValidateDate(d); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ValidateDate(%q): expected ErrInvalidDate, got %v", d, err)
		}
	}
}

func TestYesterday(t *testing.T) {
	now := time.Date(2025, 3, 1, 6, 0, 0, 0, time.Local)
	if got := Yesterday(now); got != "2025-02-28" {
		t.Errorf("Yesterday: got %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("wrap: %w", aggregate.ErrPersistence), KindPersistence},
		{context.DeadlineExceeded, KindCanceled},
		{fmt.Errorf("%w: x", errStagePanicked), KindInternal},
		{errors.New("other"), KindArchive},
	}
	for _, tt := range tests {
		if got := Classify(tt.err, KindArchive); got != tt.want {
			t.Errorf("Classify(%v): got %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRecoverStage(t *testing.T) {
	err := recoverStage("download", func() error { panic("kaboom") })
	if !errors.Is(err, errStagePanicked) || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("recoverStage: %v", err)
	}
	if err := recoverStage("download", func() error { return nil }); err != nil {
		t.Errorf("recoverStage(nil): %v", err)
	}
}
