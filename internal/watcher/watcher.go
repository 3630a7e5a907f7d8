package watcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is the settle time after the last file event
// before a rebuild fires. Dataset drops write many files back to back.
const DefaultDebounceWindow = 2 * time.Second

// Watcher watches one dataset directory (non-recursive) and emits a
// rebuild signal after its .jsonl files stop changing.
type Watcher struct {
	dir     string
	fs      *fsnotify.Watcher
	trigger *Trigger
	logger  *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher for dir. A zero window uses the default; a nil
// logger uses the process default.
func New(dir string, window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}

	return &Watcher{
		dir:     dir,
		fs:      fs,
		trigger: NewTrigger(window),
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start runs the event loop until the context is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Rebuilds returns the channel that fires when the directory has
// settled after a change.
func (w *Watcher) Rebuilds() <-chan struct{} {
	return w.trigger.C()
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.trigger.Stop()
		_ = w.fs.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("dataset_changed",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			w.trigger.Notify()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// relevant filters for dataset file changes. Editors and sync tools
// touch temp files in the same directory; only .jsonl content counts.
func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
