package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile_WriteReadRemove(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "nested"))

	if err := p.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pid, err := p.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Read got %d, want %d", pid, os.Getpid())
	}
	if _, err := os.Stat(p.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary PID file left behind")
	}

	if got, ok := p.Running(); !ok || got != os.Getpid() {
		t.Errorf("Running: got (%d, %v), want our own PID alive", got, ok)
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p.Path()); !os.IsNotExist(err) {
		t.Error("PID file still exists after Remove")
	}
	if err := p.Remove(); err != nil {
		t.Errorf("second Remove should be a no-op: %v", err)
	}
}

func TestPIDFile_ReadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		write   bool
	}{
		{name: "missing"},
		{name: "garbage", content: "not-a-number", write: true},
		{name: "zero", content: "0", write: true},
		{name: "negative", content: "-5", write: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPIDFile(t.TempDir())
			if tt.write {
				if err := os.WriteFile(p.Path(), []byte(tt.content), 0o644); err != nil {
					t.Fatalf("WriteFile: %v", err)
				}
			}
			if _, err := p.Read(); err == nil {
				t.Error("expected error")
			}
			if _, ok := p.Running(); ok {
				t.Error("Running should be false")
			}
		})
	}
}
