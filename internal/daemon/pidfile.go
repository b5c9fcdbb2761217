package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFilename = "storepulse.pid"

// PIDFile guards against two servers sharing one data directory.
type PIDFile struct {
	path string
}

// NewPIDFile returns the PID file inside dataDir.
func NewPIDFile(dataDir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dataDir, pidFilename)}
}

// Path is the file location.
func (p *PIDFile) Path() string { return p.path }

// Write records the current process ID, replacing any previous file
// atomically.
func (p *PIDFile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory for PID file: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing PID file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing PID file %s: %w", p.path, err)
	}
	return nil
}

// Read returns the recorded process ID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file %s: %w", p.path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("parsing PID from %s: invalid content %q", p.path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Remove deletes the file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing PID file %s: %w", p.path, err)
	}
	return nil
}

// Running reports the recorded PID and whether that process is alive.
func (p *PIDFile) Running() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, isProcessAlive(pid)
}

// isProcessAlive probes pid with signal 0.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
