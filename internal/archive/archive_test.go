package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/allaspectsdev/storepulse/internal/testutil"
)

func TestStage_ExtractsAndCleansUp(t *testing.T) {
	tmp := t.TempDir()
	zipPath := testutil.BuildZip(t, filepath.Join(tmp, "bundle.zip"), map[string]string{
		"Detail-Orders-A_2025-03-07.csv": "a,b\n1,2\n",
		"nested/Waste-Report-A_2025-03-07.csv": "a\n1\n",
	})
	work := filepath.Join(tmp, "work")

	ws, err := Stage(zipPath, work)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Dir), "temp_report_") {
		t.Errorf("work dir name: %s", ws.Dir)
	}
	data, err := os.ReadFile(filepath.Join(ws.Dir, "Detail-Orders-A_2025-03-07.csv"))
	if err != nil || string(data) != "a,b\n1,2\n" {
		t.Fatalf("extracted content: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(ws.Dir, "nested", "Waste-Report-A_2025-03-07.csv")); err != nil {
		t.Errorf("nested entry missing: %v", err)
	}

	ws.Close()
	ws.Close()
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Error("work dir should be removed")
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Error("zip should be removed")
	}
}

func TestStage_KeepArchive(t *testing.T) {
	tmp := t.TempDir()
	zipPath := testutil.BuildZip(t, filepath.Join(tmp, "bundle.zip"), map[string]string{"x.csv": "a\n"})

	ws, err := Stage(zipPath, filepath.Join(tmp, "work"), KeepArchive())
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	ws.Close()
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("kept archive was removed: %v", err)
	}
}

func TestStage_CorruptArchive(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "broken.zip")
	if err := os.WriteFile(zipPath, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	work := filepath.Join(tmp, "work")

	_, err := Stage(zipPath, work)
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("expected ErrArchive, got %v", err)
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Error("zip should be removed after a failed stage")
	}
	entries, _ := os.ReadDir(work)
	if len(entries) != 0 {
		t.Errorf("work root should be empty, found %d entries", len(entries))
	}
}

func TestStage_RejectsZipSlip(t *testing.T) {
	tmp := t.TempDir()
	zipPath := testutil.BuildZip(t, filepath.Join(tmp, "evil.zip"), map[string]string{"../escape.csv": "a\n"})

	_, err := Stage(zipPath, filepath.Join(tmp, "work"))
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("expected ErrArchive, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "escape.csv")); !os.IsNotExist(err) {
		t.Error("entry escaped the work dir")
	}
}

func TestStage_UniqueDirs(t *testing.T) {
	tmp := t.TempDir()
	work := filepath.Join(tmp, "work")
	a, err := Stage(testutil.BuildZip(t, filepath.Join(tmp, "a.zip"), map[string]string{"x": "1"}), work)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Stage(testutil.BuildZip(t, filepath.Join(tmp, "b.zip"), map[string]string{"x": "1"}), work)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if a.Dir == b.Dir {
		t.Error("concurrent stages must not share a work dir")
	}
}
