// Package daemon assembles storepulse's subsystems for the long-running API
// server and for one-shot CLI imports.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/api"
	"github.com/allaspectsdev/storepulse/internal/config"
	"github.com/allaspectsdev/storepulse/internal/metrics"
	"github.com/allaspectsdev/storepulse/internal/store"
	"github.com/allaspectsdev/storepulse/internal/tracing"
	"github.com/allaspectsdev/storepulse/internal/vault"
	"github.com/allaspectsdev/storepulse/internal/version"
)

// startTracing installs the global tracer provider when tracing is enabled.
// The returned shutdown is always safe to call.
func startTracing(ctx context.Context, cfg *config.Config) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Tracing.Enabled {
		return noop
	}
	shutdown, err := tracing.Init(ctx, tracing.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version.Version,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
		StoreID:     cfg.Gateway.StoreID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled: exporter setup failed")
		return noop
	}
	return shutdown
}

// Import runs a single import for date, from archivePath when set or from
// the gateway otherwise, and reports whether it succeeded.
func Import(ctx context.Context, cfg *config.Config, date, archivePath string) bool {
	st, err := store.Open(cfg.Server.DBPath())
	if err != nil {
		log.Error().Err(err).Msg("opening store")
		return false
	}
	defer st.Close()

	shutdown := startTracing(ctx, cfg)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	runner := NewRunner(cfg, st, metrics.NewCollector(), vault.New())
	if archivePath != "" {
		return runner.RunArchive(ctx, archivePath, date)
	}
	return runner.Run(ctx, date)
}

// Serve runs the HTTP API until SIGINT or SIGTERM. Logging must already be
// set up by the caller.
func Serve(cfg *config.Config) error {
	dataDir := cfg.Server.DataDir

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Msg("storepulse starting")

	pidFile := NewPIDFile(dataDir)
	if _, running := pidFile.Running(); running {
		return fmt.Errorf("storepulse is already running (PID file exists at %s)", pidFile.Path())
	}

	st, err := store.Open(cfg.Server.DBPath())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	log.Info().Str("db_path", st.Path()).Msg("store opened")

	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := startTracing(ctx, cfg)

	collector := metrics.NewCollector()
	runner := NewRunner(cfg, st, collector, vault.New())

	server, err := api.New(st, collector, runner, cfg)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	if watcher := watchConfig(dataDir); watcher != nil {
		defer watcher.Close()
	}

	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		runPruner(ctx, st, cfg.Metrics.RetentionDays, time.Hour)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errCh <- err
		}
	}()
	log.Info().Str("addr", cfg.Server.Addr()).Bool("auth", cfg.Auth.Enabled).Msg("storepulse is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown error")
	}

	// Wait for background goroutines before the deferred store close.
	cancel()
	<-prunerDone

	log.Info().Msg("storepulse stopped")
	return nil
}

// watchConfig hot-reloads the log level when the config file changes.
func watchConfig(dataDir string) *config.Watcher {
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil
	}
	w, err := config.Watch(configFile)
	if err != nil {
		log.Warn().Err(err).Msg("failed to start config watcher; continuing without hot-reload")
		return nil
	}
	w.OnChange(func(_, newCfg *config.Config) {
		log.Info().Msg("configuration reloaded")
		zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
	})
	log.Info().Str("file", configFile).Msg("config watcher started")
	return w
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop(cfg *config.Config) error {
	pidFile := NewPIDFile(cfg.Server.DataDir)

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("storepulse does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		if rmErr := pidFile.Remove(); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("storepulse is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to storepulse (PID %d)\n", pid)

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}
	return nil
}

// Status prints whether the daemon is running and, if reachable, its stats.
func Status(cfg *config.Config) error {
	pid, running := NewPIDFile(cfg.Server.DataDir).Running()
	if !running {
		fmt.Println("storepulse is not running")
		return nil
	}
	fmt.Printf("storepulse is running (PID %d)\n", pid)

	host := cfg.Server.BindAddress
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s:%d/api/stats", host, cfg.Server.Port), nil)
	if err != nil {
		return nil
	}
	if cfg.Auth.Enabled {
		req.Header.Set("Authorization", "Bearer "+cfg.Auth.Token)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("  (api unreachable)")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var stats struct {
		Collector metrics.Stats `json:"collector"`
		Runs      struct {
			Total       int64  `json:"total"`
			Succeeded   int64  `json:"succeeded"`
			Failed      int64  `json:"failed"`
			LastSuccess string `json:"last_success"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil
	}

	fmt.Printf("\n  Uptime:          %s\n", stats.Collector.Uptime)
	fmt.Printf("  Runs (logged):   %d (%d ok, %d failed)\n", stats.Runs.Total, stats.Runs.Succeeded, stats.Runs.Failed)
	fmt.Printf("  Last success:    %s\n", orDash(stats.Runs.LastSuccess))
	fmt.Printf("  Active runs:     %d\n", stats.Collector.ActiveRuns)
	fmt.Printf("  Feed rows:       %d (%d dropped)\n", stats.Collector.FeedRows, stats.Collector.DroppedRows)
	fmt.Printf("  Aggregate rows:  %d\n", stats.Collector.AggregateRows)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// runPruner periodically drops run-log rows older than retentionDays.
func runPruner(ctx context.Context, st *store.Store, retentionDays int, interval time.Duration) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("run log pruner: recovered from panic")
					}
				}()
				n, err := st.Prune(retentionDays)
				if err != nil {
					log.Error().Err(err).Msg("run log pruning failed")
				} else if n > 0 {
					log.Info().Int64("rows", n).Int("retention_days", retentionDays).Msg("pruned old runs")
				}
			}()
		}
	}
}
