package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allaspectsdev/storepulse/internal/daemon"
	"github.com/allaspectsdev/storepulse/internal/pipeline"
)

// cmdImport runs one import and returns the process exit code.
func cmdImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	date := fs.String("date", "", "business date YYYY-MM-DD (default: yesterday)")
	archive := fs.String("archive", "", "import from a local report zip")
	quiet := fs.Bool("quiet", false, "log to file only")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *date == "" {
		*date = pipeline.Yesterday(time.Now())
	}
	if err := pipeline.ValidateDate(*date); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if *archive != "" {
		if _, err := os.Stat(*archive); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
	}

	cfg := mustLoadConfig()
	closer, err := daemon.SetupLogging(cfg, !*quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !daemon.Import(ctx, cfg, *date, *archive) {
		return 1
	}
	return 0
}
