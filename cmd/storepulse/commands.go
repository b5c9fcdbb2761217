package main

import (
	"fmt"
	"os"

	"github.com/allaspectsdev/storepulse/internal/config"
	"github.com/allaspectsdev/storepulse/internal/daemon"
	"github.com/allaspectsdev/storepulse/internal/vault"
)

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func cmdServe(args []string) {
	quiet := false
	for _, a := range args {
		if a == "--quiet" || a == "-q" {
			quiet = true
		}
	}

	cfg := mustLoadConfig()
	closer, err := daemon.SetupLogging(cfg, !quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := daemon.Serve(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}

func cmdStop() {
	if err := daemon.Stop(mustLoadConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping server: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("storepulse stopped")
}

func cmdStatus() {
	if err := daemon.Status(mustLoadConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func cmdSetup(args []string) {
	nonInteractive := false
	for _, a := range args {
		if a == "--non-interactive" {
			nonInteractive = true
		}
	}

	if nonInteractive {
		cmdInitConfig()
		fmt.Println("Setup complete. Run 'storepulse import' or 'storepulse serve' to begin.")
		return
	}

	fmt.Println("storepulse setup")
	fmt.Println("================")
	fmt.Println()

	cmdInitConfig()

	fmt.Println("\nEdit the [gateway] section with your portal URL, user, app id and store id.")
	fmt.Println("Then store the gateway secrets:")
	for _, name := range vault.KnownSecrets {
		fmt.Printf("  storepulse keys set %s\n", name)
	}
	fmt.Println("\nFor a daily import of the previous day, run: storepulse install-timer")
	fmt.Println()
	fmt.Println("Setup complete.")
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error generating config: %v\n", err)
		os.Exit(1)
	}
}

func cmdInstallTimer() {
	if err := daemon.InstallTimer(mustLoadConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "error installing timer: %v\n", err)
		os.Exit(1)
	}
}

func cmdUninstallTimer() {
	if err := daemon.UninstallTimer(); err != nil {
		fmt.Fprintf(os.Stderr, "error removing timer: %v\n", err)
		os.Exit(1)
	}
}

func cmdConfigExport(args []string) {
	path := "storepulse-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	mustLoadConfig()
	if err := config.ExportConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "error exporting config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config exported to %s\n", path)
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: storepulse config-import <file>")
		os.Exit(1)
	}
	// Loading first records which file the import should overwrite.
	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: current config invalid, import will not be persisted: %v\n", err)
	}
	if err := config.ImportConfig(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "error importing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}
