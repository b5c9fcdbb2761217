package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/allaspectsdev/storepulse/internal/config"
)

const unitName = "storepulse-import"

// The service runs one import for the previous business date; the timer
// fires it on the configured calendar expression.
const serviceUnitTemplate = `[Unit]
Description=storepulse daily report import
After=network-online.target
Wants=network-online.target

[Service]
Type=oneshot
WorkingDirectory={{.DataDir}}
ExecStart={{.ProgramPath}}{{if .ConfigPath}} --config {{.ConfigPath}}{{end}} import
StandardOutput=append:{{.DataDir}}/storepulse-import.out.log
StandardError=append:{{.DataDir}}/storepulse-import.err.log
`

const timerUnitTemplate = `[Unit]
Description=Run storepulse import on a schedule

[Timer]
OnCalendar={{.OnCalendar}}
Persistent=true
Unit={{.Unit}}.service

[Install]
WantedBy=timers.target
`

type unitData struct {
	Unit        string
	ProgramPath string
	ConfigPath  string
	DataDir     string
	OnCalendar  string
}

var (
	serviceTmpl = template.Must(template.New("service").Parse(serviceUnitTemplate))
	timerTmpl   = template.Must(template.New("timer").Parse(timerUnitTemplate))
)

// renderUnits returns the .service and .timer file contents.
func renderUnits(d unitData) (service, timer []byte, err error) {
	var sb, tb bytes.Buffer
	if err := serviceTmpl.Execute(&sb, d); err != nil {
		return nil, nil, fmt.Errorf("rendering service unit: %w", err)
	}
	if err := timerTmpl.Execute(&tb, d); err != nil {
		return nil, nil, fmt.Errorf("rendering timer unit: %w", err)
	}
	return sb.Bytes(), tb.Bytes(), nil
}

// userUnitDir is ~/.config/systemd/user, honouring XDG_CONFIG_HOME.
func userUnitDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "systemd", "user"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// writeUnits renders and writes both unit files into dir.
func writeUnits(dir string, d unitData) (servicePath, timerPath string, err error) {
	service, timer, err := renderUnits(d)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating unit directory: %w", err)
	}
	servicePath = filepath.Join(dir, d.Unit+".service")
	timerPath = filepath.Join(dir, d.Unit+".timer")
	if err := os.WriteFile(servicePath, service, 0o644); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", servicePath, err)
	}
	if err := os.WriteFile(timerPath, timer, 0o644); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", timerPath, err)
	}
	return servicePath, timerPath, nil
}

// InstallTimer installs and enables a systemd user timer that imports the
// previous business date on cfg.Pipeline.TimerOnCalendar.
func InstallTimer(cfg *config.Config) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable symlinks: %w", err)
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	dir, err := userUnitDir()
	if err != nil {
		return err
	}

	_, timerPath, err := writeUnits(dir, unitData{
		Unit:        unitName,
		ProgramPath: execPath,
		ConfigPath:  config.ConfigFilePath(),
		DataDir:     cfg.Server.DataDir,
		OnCalendar:  cfg.Pipeline.TimerOnCalendar,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Timer written to %s\n", timerPath)

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if err := systemctl("enable", "--now", unitName+".timer"); err != nil {
		return err
	}

	fmt.Printf("Timer %s enabled (OnCalendar=%s)\n", unitName, cfg.Pipeline.TimerOnCalendar)
	return nil
}

// UninstallTimer disables the timer and removes both unit files.
func UninstallTimer() error {
	dir, err := userUnitDir()
	if err != nil {
		return err
	}

	_ = systemctl("disable", "--now", unitName+".timer")

	for _, ext := range []string{".timer", ".service"} {
		path := filepath.Join(dir, unitName+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	_ = systemctl("daemon-reload")

	fmt.Printf("Timer %s uninstalled\n", unitName)
	return nil
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl --user %v: %w", args, err)
	}
	return nil
}
