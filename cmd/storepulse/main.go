package main

import (
	"fmt"
	"os"

	"github.com/allaspectsdev/storepulse/internal/version"
)

// configPath is set by a leading --config flag.
var configPath string

func main() {
	args := os.Args[1:]
	if len(args) >= 2 && (args[0] == "--config" || args[0] == "-c") {
		configPath = args[1]
		args = args[2:]
	}
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "import":
		os.Exit(cmdImport(args[1:]))
	case "serve":
		cmdServe(args[1:])
	case "stop":
		cmdStop()
	case "status":
		cmdStatus()
	case "setup":
		cmdSetup(args[1:])
	case "keys":
		cmdKeys(args[1:])
	case "init-config":
		cmdInitConfig()
	case "install-timer":
		cmdInstallTimer()
	case "uninstall-timer":
		cmdUninstallTimer()
	case "config-export":
		cmdConfigExport(args[1:])
	case "config-import":
		cmdConfigImport(args[1:])
	case "version":
		fmt.Println(version.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: storepulse [--config file] <command> [options]

Commands:
  import           Import one business date (default: yesterday)
  serve            Run the export API in the foreground
  stop             Stop the running API server
  status           Show server status and run totals
  setup            Write a default config and explain secret setup
  keys             Manage gateway secrets (list|get|set|delete <name>)
  init-config      Generate default config file
  config-export    Export current config to a TOML file
  config-import    Import config from a TOML file
  install-timer    Install a systemd user timer for the daily import
  uninstall-timer  Remove the systemd user timer
  version          Print version information
  help             Show this help message

Import options:
  --date YYYY-MM-DD  Business date to import
  --archive FILE     Import from a local report zip instead of the gateway

Setup options:
  --non-interactive  Skip the explanatory text`)
}
