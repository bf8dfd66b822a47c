// Package watcher watches inbox directories for product export files and hands each settled
// file to a callback.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Skynet843/IntentSearch/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Suffixes appended to processed inbox files.
const (
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

// Watcher watches inbox roots recursively and calls onFile for files matching the patterns
// once they stop changing for the debounce interval.
type Watcher struct {
	roots       []string
	patterns    []string
	onFile      func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, etc.).
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = utils.LoggerOrNop(l) }
}

// WithDebounce overrides how long a file must be quiet before it is handed over.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over roots. patterns are doublestar globs matched against the
// slash-separated path relative to its root (empty = every file). Invalid patterns are rejected.
func NewWatcher(roots, patterns []string, onFile func(path string), opts ...WatcherOption) (*Watcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid inbox pattern %q", p)
		}
	}
	w := &Watcher{
		patterns:    patterns,
		onFile:      onFile,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		logger:      zap.NewNop(),
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		w.roots = append(w.roots, filepath.Clean(abs))
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start creates missing roots, starts watching them and runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Strings("patterns", w.patterns))
	for _, root := range w.roots {
		if err := w.addTreeLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	done := make(chan struct{})
	w.done = done
	w.mu.Unlock()
	go w.run(ctx, done, watcher.Events, watcher.Errors)
	return nil
}

// run receives the channels of one Start so it never reads w.watcher, which Stop clears.
func (w *Watcher) run(ctx context.Context, done <-chan struct{}, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.Match(path) {
			w.debounceFile(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

// handleNewDirectory watches a directory created or moved into an inbox and picks up its files.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	err := w.addTreeLocked(dir)
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.syncDirectory(dir)
}

// Match reports whether path is an inbox file to import: under a root, not hidden, not yet
// processed and matching a pattern.
func (w *Watcher) Match(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, DoneSuffix) || strings.HasSuffix(base, FailedSuffix) {
		return false
	}
	clean := filepath.Clean(path)
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(w.patterns) == 0 {
			return true
		}
		rel = filepath.ToSlash(rel)
		for _, p := range w.patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) debounceFile(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watcher handing over file", zap.String("path", path))
		if w.onFile != nil {
			w.onFile(path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) addTreeLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.Match(path) && w.onFile != nil {
			w.onFile(path)
		}
		return nil
	})
}

// Directories returns the watched inbox roots.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles hands over every matching file already present in the roots.
// Call this after Start() to pick up files dropped while the server was down.
func (w *Watcher) SyncExistingFiles() {
	w.logger.Debug("watcher syncing existing files", zap.Strings("roots", w.roots))
	for _, root := range w.roots {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for _, t := range w.debounceMap {
		t.Stop()
	}
	w.debounceMap = make(map[string]*time.Timer)
	watcher, done := w.watcher, w.done
	w.watcher, w.done = nil, nil
	w.started = false
	w.mu.Unlock()
	close(done)
	_ = watcher.Close()
}

// MarkProcessed renames an inbox file with DoneSuffix, or FailedSuffix when ok is false,
// so that it is not imported again.
func MarkProcessed(path string, ok bool) (string, error) {
	suffix := DoneSuffix
	if !ok {
		suffix = FailedSuffix
	}
	dst := path + suffix
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("mark %s: %w", path, err)
	}
	return dst, nil
}
