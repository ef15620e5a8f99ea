// Package watch reports changes to a single file by watching the nearest
// existing directory on its path, so the file and any missing parent
// directories may be created, replaced or removed while watched.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithRate throttles change notifications to ratePerSecond with the given burst.
func WithRate(ratePerSecond float64, burst int) Option {
	return func(w *Watcher) {
		w.limiter = newTokenBucketLimiter(ratePerSecond, burst)
	}
}

// WithLimiter overrides the notification limiter (primarily for tests).
func WithLimiter(limiter rateLimiter) Option {
	return func(w *Watcher) {
		w.limiter = limiter
	}
}

// Watcher delivers change notifications for one file.
type Watcher struct {
	path    string
	dir     string
	watcher *fsnotify.Watcher
	limiter rateLimiter
	logger  *zap.Logger
}

// New starts watching the nearest existing directory on the way to path.
func New(path string, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		path:    abs,
		watcher: fw,
		limiter: newTokenBucketLimiter(2, 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.rewatch(); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Dir returns the directory currently being watched.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run calls onChange after each relevant change to the file until ctx is
// cancelled or the watcher is closed. Bursts of events that arrive while
// the limiter is waiting are folded into a single notification.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(evt) {
				continue
			}

			w.logger.Debug("configuration changed", zap.String("event", evt.String()))

			if err := w.rewatch(); err != nil {
				w.logger.Warn("failed to move file watch", zap.Error(err))
			}

			if err := w.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("wait for rate limiter: %w", err)
			}
			w.drain()

			onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	if err := w.watcher.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}

// relevant accepts events for the file itself and for directories on the
// way to it.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	name := filepath.Clean(evt.Name)
	if name != w.path && !strings.HasPrefix(w.path, name+string(filepath.Separator)) {
		return false
	}
	// Ignore events that are not related to file content changes.
	return !evt.Has(fsnotify.Chmod)
}

// rewatch moves the watch to the deepest existing directory on the way to
// the file. It repeats until stable so that directories created in quick
// succession are not missed.
func (w *Watcher) rewatch() error {
	for {
		dir, err := nearestDir(w.path)
		if err != nil {
			return err
		}
		if dir == w.dir {
			return nil
		}

		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
		if w.dir != "" {
			if err := w.watcher.Remove(w.dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
				w.logger.Debug("failed to remove previous watch", zap.String("dir", w.dir), zap.Error(err))
			}
		}
		w.logger.Debug("watching directory", zap.String("dir", dir))
		w.dir = dir
	}
}

// nearestDir walks up from the file's parent to the first directory that exists.
func nearestDir(path string) (string, error) {
	dir := filepath.Dir(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing directory on the way to %s", path)
		}
		dir = parent
	}
}

// drain discards queued events without blocking.
func (w *Watcher) drain() {
	for {
		select {
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
