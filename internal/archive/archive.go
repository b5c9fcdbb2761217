// Package archive stages a downloaded report zip into a private working
// directory and guarantees both are removed afterwards.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

// ErrArchive reports an archive that could not be opened or extracted.
var ErrArchive = errors.New("archive: unreadable report archive")

// maxEntrySize caps a single extracted file.
const maxEntrySize = 1 << 30

// Workspace is an extracted report bundle. Close removes it.
type Workspace struct {
	Dir string

	zipPath     string
	keepArchive bool
	once        sync.Once
}

type Option func(*Workspace)

// KeepArchive leaves the source zip in place on Close. Used for archives the
// caller supplied rather than downloaded.
func KeepArchive() Option {
	return func(w *Workspace) { w.keepArchive = true }
}

// Stage extracts zipPath into a new temp_report_* directory under workRoot.
// On failure everything Stage created is removed, including the zip unless
// KeepArchive was given.
func Stage(zipPath, workRoot string, opts ...Option) (*Workspace, error) {
	w := &Workspace{zipPath: zipPath}
	for _, opt := range opts {
		opt(w)
	}

	if err := os.MkdirAll(workRoot, 0o700); err != nil {
		w.Close()
		return nil, fmt.Errorf("archive: create work root: %w", err)
	}
	dir, err := os.MkdirTemp(workRoot, fmt.Sprintf("temp_report_%d_", time.Now().Unix()))
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("archive: create work dir: %w", err)
	}
	w.Dir = dir

	start := time.Now()
	n, err := extract(zipPath, dir)
	if err != nil {
		w.Close()
		return nil, err
	}
	log.Info().Str("dir", dir).Int("files", n).Dur("elapsed", time.Since(start)).
		Msg("archive: extracted report bundle")
	return w, nil
}

func extract(zipPath, dir string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrArchive, filepath.Base(zipPath), err)
	}
	defer zr.Close()

	root := filepath.Clean(dir) + string(os.PathSeparator)
	files := 0
	for _, f := range zr.File {
		target := filepath.Join(dir, f.Name)
		if !strings.HasPrefix(target, root) {
			return files, fmt.Errorf("%w: entry %q escapes work dir", ErrArchive, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o700); err != nil {
				return files, fmt.Errorf("archive: create %s: %w", f.Name, err)
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("archive: create %s: %w", filepath.Dir(f.Name), err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %v", ErrArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", f.Name, err)
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: extract %s: %v", ErrArchive, f.Name, err)
	}
	if n > maxEntrySize {
		return fmt.Errorf("%w: entry %s exceeds %d bytes", ErrArchive, f.Name, maxEntrySize)
	}
	return nil
}

// Close deletes the extracted directory and the source zip. It is safe to
// call more than once; deletion failures are logged.
func (w *Workspace) Close() {
	w.once.Do(func() {
		if w.Dir != "" {
			if err := os.RemoveAll(w.Dir); err != nil {
				log.Warn().Err(err).Str("dir", w.Dir).Msg("archive: remove work dir")
			}
		}
		if w.zipPath != "" && !w.keepArchive {
			if err := os.Remove(w.zipPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("file", w.zipPath).Msg("archive: remove zip")
			}
		}
	})
}
