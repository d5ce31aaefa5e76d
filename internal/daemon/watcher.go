package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Watcher triggers a callback after filesystem activity below a set of roots
// settles for the debounce window.
type Watcher struct {
	roots    []string
	ignore   []string
	debounce time.Duration
	onChange func(reason string)
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	stopped bool
}

// NewWatcher watches roots recursively. Paths below any ignore directory
// (typically the output tree) never trigger.
func NewWatcher(roots, ignore []string, debounce time.Duration, onChange func(reason string), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
	}
	for _, p := range ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolve watch root %s: %w", root, err)
		}
		w.roots = append(w.roots, abs)
		if err := w.addTree(abs); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree registers dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) || (path != dir && d.Name() == ".git") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("Watching source roots", slog.Any("roots", w.roots), slog.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var (
		pending <-chan time.Time
		last    string
	)

	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || w.ignored(ev.Name) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
					}
				}
			}
			w.logger.Debug("Source change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			last = ev.Name
			timer.Reset(w.debounce)
			pending = timer.C
		case <-pending:
			pending = nil
			w.onChange("change: " + last)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// Close releases the underlying watcher. It is safe to call more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("Error closing file watcher", logfields.Error(err))
	}
}
