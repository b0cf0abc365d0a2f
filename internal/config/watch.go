package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/triggerpoints/internal/logging"
)

// ReloadFunc receives each reloaded configuration, or the error that
// prevented loading it.
type ReloadFunc func(cfg *Config, err error)

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WithDebounce sets how long the file must be quiet before reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(o *watchOptions) {
		o.logger = l
	}
}

// Watch reloads path whenever it is written or recreated and passes the
// result to fn. The parent directory is watched so editors that replace the
// file on save are followed. Watch returns once the watch is established;
// reloading continues on its own goroutine until ctx is done.
func Watch(ctx context.Context, path string, fn ReloadFunc, opts ...WatchOption) error {
	o := watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.WithComponent(o.logger, "config-watch")

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer fsw.Close()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(o.debounce)
				} else {
					timer.Reset(o.debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := Load(abs)
				if err != nil {
					logger.Warn("config reload failed", logging.KeyPath, abs, "error", err)
				} else {
					logger.Info("config reloaded", logging.KeyPath, abs)
				}
				fn(cfg, err)

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", "error", err)
			}
		}
	}()

	return nil
}
