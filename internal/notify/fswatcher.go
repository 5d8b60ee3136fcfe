package notify

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/wikindex/internal/content/fsstore"
)

// DefaultDebounceWindow is the quiet period before watched changes are
// handled.
const DefaultDebounceWindow = 200 * time.Millisecond

// FSWatcher watches an fsstore tree and turns file changes into events.
type FSWatcher struct {
	store   *fsstore.Store
	handler EventHandler
	window  time.Duration
	logger  *slog.Logger
}

// NewFSWatcher creates a watcher. A zero window selects
// DefaultDebounceWindow.
func NewFSWatcher(store *fsstore.Store, handler EventHandler, window time.Duration, logger *slog.Logger) *FSWatcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSWatcher{
		store:   store,
		handler: handler,
		window:  window,
		logger:  logger.With(slog.String("component", "fswatcher")),
	}
}

// Run watches until ctx is done.
func (w *FSWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addRecursive(fsw, w.store.Root()); err != nil {
		return err
	}

	deb := NewDebouncer(w.window, w.logger)
	defer deb.Stop()

	w.logger.Info("watcher_started", slog.String("root", w.store.Root()))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher_stopped")
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(fsw, deb, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher_error", slog.String("error", err.Error()))

		case batch := <-deb.Output():
			for _, ev := range batch {
				w.dispatch(ctx, ev)
			}
		}
	}
}

func (w *FSWatcher) handleFSEvent(fsw *fsnotify.Watcher, deb *Debouncer, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New wiki, space, page or attachments directory: watch it and
			// pick up anything written before the watch was in place.
			if err := w.addRecursive(fsw, ev.Name); err != nil {
				w.logger.Warn("watcher_add_failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			w.scan(ev.Name, deb)
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if e, ok := w.toEvent(ev.Name); ok {
		deb.Add(e)
	}
}

func (w *FSWatcher) toEvent(path string) (Event, bool) {
	loc, ok := w.store.Locate(path)
	if !ok {
		return Event{}, false
	}
	ev := Event{
		Type:      UnitChanged,
		Wiki:      loc.Ref.Wiki,
		Container: loc.Ref.Container,
		Name:      loc.Ref.Name,
		Language:  loc.Language,
	}
	if loc.Change == fsstore.ChangeAttachment {
		ev.Type = AttachmentUploaded
		ev.Filename = loc.Filename
	}
	return ev, true
}

func (w *FSWatcher) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("notification_panic", slog.Any("panic", p))
		}
	}()
	if err := w.handler.Handle(ctx, ev); err != nil {
		w.logger.Warn("notification_failed",
			slog.String("type", string(ev.Type)),
			slog.String("unit", ev.Ref().String()),
			slog.String("error", err.Error()))
	}
}

func (w *FSWatcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// scan queues an event for every content file below dir.
func (w *FSWatcher) scan(dir string, deb *Debouncer) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if e, ok := w.toEvent(path); ok {
			deb.Add(e)
		}
		return nil
	})
}
