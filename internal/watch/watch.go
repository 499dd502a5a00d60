// Package watch drops cached templates when files under the view directory
// change, so a development server picks up edits without a restart.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-viewrender/pkg/render/template"
)

const defaultDebounce = 200 * time.Millisecond

type Config struct {
	// Dir is the template root. Every directory below it is watched.
	Dir string

	// Extensions limits reloads to files with these extensions ("tpl",
	// ".html"). Empty means every file.
	Extensions []string

	// Debounce coalesces bursts of events. Zero uses 200ms.
	Debounce time.Duration

	Logger *log.Logger

	// OnReload is called after the caches were updated with the changed
	// files relative to Dir.
	OnReload func(changed []string)
}

// Watcher drops cached templates of its targets after edits.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	targets  []template.Resettable
	exts     map[string]bool
	logger   *log.Logger
	debounce time.Duration
	baseDir  string
	started  atomic.Bool
}

// New watches cfg.Dir recursively. Changed files are invalidated on every
// target; removing or renaming a directory resets the targets.
func New(cfg Config, targets ...template.Resettable) (*Watcher, error) {
	if len(targets) == 0 {
		return nil, errors.New("watch: no cache targets")
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	absBase, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		targets:  targets,
		exts:     exts,
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
	}
	if err := w.addDirectories(); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done. It must be called once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		reset   bool
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		changed := make([]string, 0, len(pending))
		for file := range pending {
			changed = append(changed, file)
		}
		clear(pending)
		full := reset
		reset = false
		mu.Unlock()
		if len(changed) == 0 && !full {
			return
		}
		sort.Strings(changed)

		for _, target := range w.targets {
			if full {
				target.Reset()
				continue
			}
			for _, file := range changed {
				target.Invalidate(file)
			}
		}
		w.logger.Info("templates reloaded", "files", changed, "reset", full)
		if w.cfg.OnReload != nil {
			w.cfg.OnReload(changed)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			dirGone := (evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)) && w.isDir(evt.Name)
			if !dirGone && !w.relevant(evt.Name) {
				continue
			}
			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}

			mu.Lock()
			if dirGone {
				reset = true
			} else {
				pending[filepath.ToSlash(rel)] = struct{}{}
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			w.logger.Error("watch error", "err", err)
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[filepath.Ext(name)]
}

// isDir reports whether name was a directory. Removed paths can no longer
// be stat'ed and their watch may already be gone, so names without an
// extension count as directories too.
func (w *Watcher) isDir(name string) bool {
	if filepath.Ext(name) == "" {
		return true
	}
	return slices.Contains(w.fsw.WatchList(), filepath.Clean(name))
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skipping path", "path", path, "err", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.baseDir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", w.baseDir, err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("watch new directory", "path", path, "err", err)
	}
}
