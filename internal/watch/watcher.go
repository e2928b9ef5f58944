// Package watch turns filesystem notifications into raw change events
// for the aggregator.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op classifies a raw change.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Event sources.
const (
	SourceWatcher = "watcher"
	SourceHook    = "hook"
)

// RawChange is one observed file event, before debouncing.
type RawChange struct {
	Path   string // relative to the watched root, slash-separated
	Op     Op
	Source string
	Time   time.Time
}

const changeBuffer = 1024

// Watcher recursively watches a root directory and forwards tracked
// file changes. Watcher errors are recoverable: they are logged and
// watching continues.
type Watcher struct {
	root    string
	fs      *fsnotify.Watcher
	tracked func(relPath string) bool
	log     *slog.Logger
	changes chan RawChange
}

// NewWatcher creates a watcher for root. tracked filters relative
// paths before forwarding; nil tracks everything.
func NewWatcher(root string, tracked func(string) bool, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if tracked == nil {
		tracked = func(string) bool { return true }
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	return &Watcher{
		root:    root,
		fs:      fsw,
		tracked: tracked,
		log:     log,
		changes: make(chan RawChange, changeBuffer),
	}, nil
}

// Changes returns the channel of forwarded file changes. Closed when
// Run returns.
func (w *Watcher) Changes() <-chan RawChange {
	return w.changes
}

// Run watches until ctx is canceled. Newly created directories are
// added to the watch set; a full channel drops the event with a log
// line rather than blocking ingestion.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer w.fs.Close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.log.Info("watching", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !w.tracked(rel) {
		return
	}

	op, ok := convertOp(event.Op)
	if !ok {
		return
	}
	ch := RawChange{Path: rel, Op: op, Source: SourceWatcher, Time: time.Now()}
	select {
	case w.changes <- ch:
	default:
		w.log.Warn("change buffer full, dropping event", "path", rel, "op", op)
	}
}

func convertOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete, true
	default:
		// Chmod and friends carry no content change.
		return "", false
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(filepath.Base(path)) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// skipDir prunes directories that are never worth watching. Per-file
// include/ignore filtering still happens on each event.
func skipDir(base string) bool {
	switch base {
	case ".git", "node_modules", "__pycache__", "vendor", ".idea":
		return true
	}
	return false
}
