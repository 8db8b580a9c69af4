// Package watch signals when another process commits a jj operation.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between two signals.
const DefaultInterval = 500 * time.Millisecond

// Watcher reports changes to a directory, coalesced and rate limited.
type Watcher struct {
	dir     string
	fs      *fsnotify.Watcher
	limiter *rate.Limiter
	changes chan struct{}
	logger  *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the minimum spacing between signals.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New watches dir. Nothing is delivered until Start is called.
func New(dir string, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}
	w := &Watcher{
		dir:     dir,
		fs:      fs,
		limiter: rate.NewLimiter(rate.Every(DefaultInterval), 1),
		changes: make(chan struct{}, 1),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Changes delivers one value per burst of changes. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Start runs the event loop until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.changes)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
				continue
			}
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			w.drain()
			w.logger.Debug("operation heads changed", "dir", w.dir, "event", ev.String())
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		}
	}
}

// drain discards events queued while waiting on the limiter.
func (w *Watcher) drain() {
	for {
		select {
		case _, ok := <-w.fs.Events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
