package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// OnReload is called after a successful hot-reload with the previous and
// the new config.
type OnReload func(old, new *Config)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	filePath  string

	mu        sync.Mutex
	callbacks []OnReload

	done     chan struct{}
	stopped  chan struct{}
	closeErr error
	once     sync.Once
}

// Watch reloads the config whenever filePath changes. A reload that fails
// validation keeps the previous config.
func Watch(filePath string) (*Watcher, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config watcher: file path must not be empty")
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("config watcher: resolving path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: creating fsnotify watcher: %w", err)
	}
	// Atomic saves replace the inode, so watch the directory.
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: watching %s: %w", filepath.Dir(absPath), err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		filePath:  absPath,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers fn to run after each successful reload.
func (w *Watcher) OnChange(fn OnReload) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops the watcher and waits for its loop to exit. Safe to call twice.
func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
		w.closeErr = w.fsWatcher.Close()
		<-w.stopped
	})
	return w.closeErr
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDebounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher: fsnotify error")
		}
	}
}

func (w *Watcher) reload() {
	old := Get()

	newCfg, err := Load(w.filePath)
	if err != nil {
		log.Error().Err(err).Str("file", w.filePath).Msg("config watcher: reload failed, keeping previous config")
		return
	}

	changed := ChangedSections(old, newCfg)
	if len(changed) == 0 {
		return
	}
	log.Info().Str("file", w.filePath).Strs("sections", changed).Msg("config watcher: config reloaded")

	w.mu.Lock()
	cbs := append([]OnReload(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("config watcher: reload callback panicked")
				}
			}()
			cb(old, newCfg)
		}()
	}
}

// ChangedSections lists the top-level sections (by their TOML names) that
// differ between a and b. A nil a counts every section as changed.
func ChangedSections(a, b *Config) []string {
	bv := reflect.ValueOf(b).Elem()
	t := bv.Type()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		if a != nil && reflect.DeepEqual(reflect.ValueOf(a).Elem().Field(i).Interface(), bv.Field(i).Interface()) {
			continue
		}
		out = append(out, t.Field(i).Tag.Get("toml"))
	}
	return out
}
