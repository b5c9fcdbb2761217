// Package api serves stored aggregates as CSV/JSON exports, exposes the run
// log, and lets an operator trigger an import over HTTP.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/config"
	"github.com/allaspectsdev/storepulse/internal/metrics"
	"github.com/allaspectsdev/storepulse/internal/pipeline"
	"github.com/allaspectsdev/storepulse/internal/store"
	"github.com/allaspectsdev/storepulse/internal/tracing"
	"github.com/allaspectsdev/storepulse/internal/version"
)

// Importer runs the import pipeline.
type Importer interface {
	Execute(ctx context.Context, req pipeline.Request) *pipeline.Result
	OnFinish(fn func(*pipeline.Result))
}

// Server is the HTTP read surface.
type Server struct {
	router    chi.Router
	store     *store.Store
	collector *metrics.Collector
	importer  Importer
	cache     *exportCache
	cfg       *config.Config
	server    *http.Server
	now       func() time.Time
}

// New wires a Server. importer may be nil, which disables POST /api/v1/import.
func New(st *store.Store, collector *metrics.Collector, importer Importer, cfg *config.Config) (*Server, error) {
	cache, err := newExportCache(cfg.Metrics.CacheSize, time.Duration(cfg.Metrics.CacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:     st,
		collector: collector,
		importer:  importer,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
	}
	if importer != nil {
		importer.OnFinish(func(res *pipeline.Result) {
			if res.OK {
				s.cache.purge()
			}
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if cfg.Tracing.Enabled {
		r.Use(tracing.HTTPMiddleware)
	}
	r.Use(corsMiddleware)
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", metrics.PrometheusHandler(collector))

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(authMiddleware(cfg.Auth.Token))
		}
		r.Get("/api/stats", s.handleStats)
		r.Get("/api/v1/datasets", s.handleDatasets)
		r.Get("/api/v1/export/{file}", s.handleExport)
		r.Get("/api/v1/runs", s.handleListRuns)
		r.Get("/api/v1/runs/{id}", s.handleGetRun)
		r.Post("/api/v1/import", s.handleImport)
	})

	s.router = r
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and blocks until the server is
// shut down or fails. The export cache purger runs for the server's lifetime.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}

	purgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cache.startPurger(purgeCtx, time.Minute)

	log.Info().Str("addr", s.server.Addr).Msg("api server starting")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Ping(); err != nil {
		log.Error().Err(err).Msg("health check: database unreachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

// handleStats returns collector counters plus run-log totals.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRunStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read run stats")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collector": s.collector.Stats(),
		"runs": map[string]any{
			"total":        runs.Total,
			"succeeded":    runs.Succeeded,
			"failed":       runs.Failed,
			"last_success": runs.LastSuccess,
		},
		"cached_exports": s.cache.len(),
	})
}

func (s *Server) handleDatasets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"datasets": store.Datasets()})
}

type runEntry struct {
	ID            string `json:"id"`
	BusinessDate  string `json:"business_date"`
	Source        string `json:"source"`
	Status        string `json:"status"`
	ErrorKind     string `json:"error_kind,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
	FeedRows      int64  `json:"feed_rows"`
	DroppedRows   int64  `json:"dropped_rows"`
	Stores        int64  `json:"stores"`
	AggregateRows int64  `json:"aggregate_rows"`
}

func toRunEntry(r *store.Run) runEntry {
	return runEntry{
		ID:            r.ID,
		BusinessDate:  r.BusinessDate,
		Source:        r.Source,
		Status:        r.Status,
		ErrorKind:     r.ErrorKind,
		ErrorMessage:  r.ErrorMessage,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		FeedRows:      r.FeedRows,
		DroppedRows:   r.DroppedRows,
		Stores:        r.Stores,
		AggregateRows: r.AggregateRows,
	}
}

// handleListRuns returns a page of the run log, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	runs, err := s.store.ListRuns(r.Context(), limit, (page-1)*limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	entries := make([]runEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, toRunEntry(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":  page,
		"limit": limit,
		"runs":  entries,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		log.Error().Err(err).Str("run_id", id).Msg("failed to get run")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, toRunEntry(run))
}

// handleImport runs the pipeline for ?date= (default yesterday). The run is
// detached from the request so a dropped connection cannot abort it halfway.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "import is not available")
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = pipeline.Yesterday(s.now())
	}
	if err := pipeline.ValidateDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.importer.Execute(context.WithoutCancel(r.Context()), pipeline.Request{Date: date, Source: pipeline.SourceGateway})

	body := map[string]any{
		"success":        res.OK,
		"run_id":         res.RunID,
		"date":           res.Date,
		"feed_rows":      res.FeedRows,
		"stores":         res.Stores,
		"aggregate_rows": res.AggregateRows,
		"elapsed_ms":     res.Elapsed.Milliseconds(),
	}
	if !res.OK {
		body["kind"] = res.Kind
		body["message"] = res.Err.Error()
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// --- helpers ---

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// queryInt reads an integer query parameter with a default fallback.
func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}

// corsMiddleware adds permissive CORS headers for spreadsheet and BI clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
