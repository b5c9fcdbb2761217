package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/allaspectsdev/storepulse/internal/config"
	"github.com/allaspectsdev/storepulse/internal/metrics"
	"github.com/allaspectsdev/storepulse/internal/pipeline"
	"github.com/allaspectsdev/storepulse/internal/store"
	"github.com/allaspectsdev/storepulse/internal/testutil"
)

// fakeImporter records requests and notifies listeners like the real runner.
type fakeImporter struct {
	requests  []pipeline.Request
	fail      bool
	listeners []func(*pipeline.Result)
}

func (f *fakeImporter) Execute(_ context.Context, req pipeline.Request) *pipeline.Result {
	f.requests = append(f.requests, req)
	res := &pipeline.Result{RunID: "run-1", Date: req.Date, Source: req.Source, OK: !f.fail}
	if f.fail {
		res.Kind = pipeline.KindTransfer
		res.Err = errors.New("gateway unreachable")
	}
	for _, fn := range f.listeners {
		fn(res)
	}
	return res
}

func (f *fakeImporter) OnFinish(fn func(*pipeline.Result)) {
	f.listeners = append(f.listeners, fn)
}

type testEnv struct {
	server    *Server
	store     *store.Store
	collector *metrics.Collector
	importer  *fakeImporter
	cfg       *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testutil.NewTestConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	env := &testEnv{
		store:     testutil.NewTestStore(t),
		collector: metrics.NewCollector(),
		importer:  &fakeImporter{},
		cfg:       cfg,
	}
	srv, err := New(env.store, env.collector, env.importer, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.server = srv
	return env
}

// seed loads the sample bundle through the real pipeline.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	r := pipeline.New(nil, e.store, e.store, nil, pipeline.Options{WorkDir: t.TempDir(), FeedBatchSize: 100})
	if !r.RunArchive(context.Background(), testutil.SampleZip(t, t.TempDir()), testutil.SampleDate) {
		t.Fatal("seeding sample data failed")
	}
}

func (e *testEnv) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal: %v (body %q)", err, w.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if body := decode(t, w); body["status"] != "ok" {
		t.Errorf("status: got %v, want ok", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.collector.RunStarted()
	w := env.do(t, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "storepulse_active_runs 1") {
		t.Errorf("metrics output missing in-flight gauge:\n%s", w.Body.String())
	}
}

func TestDatasets(t *testing.T) {
	env := newTestEnv(t, nil)
	body := decode(t, env.do(t, "GET", "/api/v1/datasets", nil))
	list, ok := body["datasets"].([]any)
	if !ok || len(list) != 10 {
		t.Fatalf("datasets: got %v", body["datasets"])
	}
}

func TestExportJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	w := env.do(t, "GET", "/api/v1/export/channel_data.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true {
		t.Errorf("success: got %v", body["success"])
	}
	if body["record_count"] != float64(34) {
		t.Errorf("record_count: got %v, want 34", body["record_count"])
	}
	data := body["data"].([]any)
	first := data[0].(map[string]any)
	for _, col := range []string{"id", "franchise_store", "business_date", "created_at"} {
		if _, ok := first[col]; !ok {
			t.Errorf("row missing column %q", col)
		}
	}
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	w := env.do(t, "GET", "/api/v1/export/finance_data.csv?start_date=2025-03-01&end_date=2025-03-31&franchise_store=03795,null,,undefined", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type: got %q", ct)
	}
	wantDisp := `attachment; filename="finance_data_2025-03-01_to_2025-03-31_stores_1.csv"`
	if got := w.Header().Get("Content-Disposition"); got != wantDisp {
		t.Errorf("Content-Disposition: got %q, want %q", got, wantDisp)
	}

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("csv records: got %d, want header + 1 row", len(records))
	}
	if records[0][0] != "id" {
		t.Errorf("first column: got %q, want id", records[0][0])
	}
	storeCol := -1
	for i, c := range records[0] {
		if c == "franchise_store" {
			storeCol = i
		}
	}
	if storeCol < 0 || records[1][storeCol] != "03795" {
		t.Errorf("franchise_store: got row %v", records[1])
	}
}

func TestExport_DateRangeExcludes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	body := decode(t, env.do(t, "GET", "/api/v1/export/channel_data.json?start_date=2024-01-01&end_date=2024-01-31", nil))
	if body["record_count"] != float64(0) {
		t.Errorf("record_count: got %v, want 0", body["record_count"])
	}

	// One bound alone does not filter.
	body = decode(t, env.do(t, "GET", "/api/v1/export/channel_data.json?start_date=2024-01-01", nil))
	if body["record_count"] != float64(34) {
		t.Errorf("record_count with half range: got %v, want 34", body["record_count"])
	}
}

func TestExport_HoursFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	body := decode(t, env.do(t, "GET", "/api/v1/export/hourly_sales.json?hours=12,abc", nil))
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("rows: got %d, want 1", len(data))
	}
	if hr := data[0].(map[string]any)["hour"]; hr != float64(12) {
		t.Errorf("hour: got %v, want 12", hr)
	}
}

func TestExport_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, target := range []string{
		"/api/v1/export/bogus.csv",
		"/api/v1/export/channel_data.xml",
		"/api/v1/export/channel_data",
	} {
		w := env.do(t, "GET", target, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", target, w.Code)
			continue
		}
		if body := decode(t, w); body["success"] != false {
			t.Errorf("%s: success should be false", target)
		}
	}
}

func TestExport_CachedUntilImport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	env.do(t, "GET", "/api/v1/export/bread_boost.json", nil)
	if n := env.server.cache.len(); n != 1 {
		t.Fatalf("cache entries: got %d, want 1", n)
	}
	env.do(t, "GET", "/api/v1/export/bread_boost.json", nil)
	if n := env.server.cache.len(); n != 1 {
		t.Fatalf("repeat request should hit the cache, entries: %d", n)
	}

	env.do(t, "POST", "/api/v1/import?date=2025-03-07", nil)
	if n := env.server.cache.len(); n != 0 {
		t.Errorf("cache should be purged after an import, entries: %d", n)
	}
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.now = func() time.Time { return time.Date(2025, 3, 8, 6, 0, 0, 0, time.Local) }

	w := env.do(t, "POST", "/api/v1/import", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	if len(env.importer.requests) != 1 || env.importer.requests[0].Date != "2025-03-07" {
		t.Errorf("default date should be yesterday, got %+v", env.importer.requests)
	}

	w = env.do(t, "POST", "/api/v1/import?date=2025-02-30", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid date: got %d, want 400", w.Code)
	}
	if len(env.importer.requests) != 1 {
		t.Error("invalid date must not start a run")
	}

	env.importer.fail = true
	w = env.do(t, "POST", "/api/v1/import?date=2025-03-06", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failed run: got %d, want 500", w.Code)
	}
	if body := decode(t, w); body["kind"] != string(pipeline.KindTransfer) {
		t.Errorf("kind: got %v", body["kind"])
	}
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	body := decode(t, env.do(t, "GET", "/api/v1/runs?limit=10", nil))
	runs := body["runs"].([]any)
	if len(runs) != 1 {
		t.Fatalf("runs: got %d, want 1", len(runs))
	}
	run := runs[0].(map[string]any)
	if run["status"] != store.RunSucceeded || run["source"] != "archive" {
		t.Errorf("run: got %v", run)
	}

	w := env.do(t, "GET", "/api/v1/runs/"+run["id"].(string), nil)
	if w.Code != http.StatusOK {
		t.Errorf("get run: got %d", w.Code)
	}
	w = env.do(t, "GET", "/api/v1/runs/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run: got %d, want 404", w.Code)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	body := decode(t, env.do(t, "GET", "/api/stats", nil))
	runs := body["runs"].(map[string]any)
	if runs["total"] != float64(1) || runs["succeeded"] != float64(1) {
		t.Errorf("runs: got %v", runs)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.Token = "s3cret"
	})

	if w := env.do(t, "GET", "/api/v1/datasets", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", w.Code)
	} else if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 should carry WWW-Authenticate")
	}

	bad := http.Header{"Authorization": {"Bearer nope"}}
	if w := env.do(t, "GET", "/api/v1/datasets", bad); w.Code != http.StatusForbidden {
		t.Errorf("wrong token: got %d, want 403", w.Code)
	}

	good := http.Header{"Authorization": {"Bearer s3cret"}}
	if w := env.do(t, "GET", "/api/v1/datasets", good); w.Code != http.StatusOK {
		t.Errorf("valid token: got %d, want 200", w.Code)
	}

	// Health and metrics stay open for probes.
	if w := env.do(t, "GET", "/api/health", nil); w.Code != http.StatusOK {
		t.Errorf("health with auth: got %d, want 200", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "OPTIONS", "/api/v1/datasets", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
