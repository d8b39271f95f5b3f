package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/keyscope/keyscope/internal/adapters/outbound/scanner"
)

// DefaultDebounce is how long the tree must stay quiet before a rerun.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reruns a callback after .dart files below a root change.
type Watcher struct {
	root     string
	run      func(context.Context)
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New registers watches on every directory below root that a scan would
// visit. Events arriving after New returns are observed by Run.
func New(root string, run func(context.Context), opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		run:      run,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
		fsw:      fsw,
	}
	for _, o := range opts {
		o(w)
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return w, nil
}

// Run blocks until ctx is cancelled. Callbacks run on this goroutine so
// they never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			if pending {
				pending = false
				w.run(ctx)
			}
		}
	}
}

// relevant filters events down to .dart edits and new directories, which
// are registered on the fly.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if err := w.addRecursive(ev.Name); err != nil {
			w.logger.Debug("not watching new path", "path", ev.Name, "error", err)
		}
	}
	if w.underSkippedDir(ev.Name) {
		return false
	}
	return strings.HasSuffix(ev.Name, ".dart")
}

func (w *Watcher) underSkippedDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if scanner.IsSkippedDir(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && scanner.IsSkippedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
