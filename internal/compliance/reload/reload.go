// Package reload swaps in a freshly compiled classifier whenever the rules file changes.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"trustbridge/internal/compliance"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher is a compliance.Provider backed by a rules file on disk.
type Watcher struct {
	path     string
	current  atomic.Pointer[compliance.Classifier]
	logger   *slog.Logger
	debounce time.Duration
	onReload func(fingerprint string, err error)
}

type Option func(*Watcher)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithReloadHook is called after every reload attempt, for metrics.
func WithReloadHook(fn func(fingerprint string, err error)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// New loads path once. Failure here is a startup configuration error.
func New(path string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Clean(path),
		logger:   slog.Default(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	c, err := load(w.path)
	if err != nil {
		return nil, err
	}
	w.current.Store(c)
	return w, nil
}

func load(path string) (*compliance.Classifier, error) {
	cfg, err := compliance.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return compliance.New(cfg)
}

// Current returns the active classifier.
func (w *Watcher) Current() *compliance.Classifier {
	return w.current.Load()
}

// Reload rebuilds the classifier from disk. On error the previous one stays active.
func (w *Watcher) Reload() error {
	c, err := load(w.path)
	if w.onReload != nil {
		fp := ""
		if c != nil {
			fp = c.Fingerprint()
		}
		w.onReload(fp, err)
	}
	if err != nil {
		w.logger.Error("compliance rules reload failed; keeping previous rules",
			"path", w.path,
			"error", err,
			"active_fingerprint", w.Current().Fingerprint(),
		)
		return err
	}

	prev := w.current.Swap(c)
	w.logger.Info("compliance rules reloaded",
		"path", w.path,
		"previous_fingerprint", prev.Fingerprint(),
		"fingerprint", c.Fingerprint(),
	)
	return nil
}

// Run watches the rules file until ctx is done. The parent directory is watched
// so editors that replace the file by rename are still picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				debounce.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("rules watcher error", "error", err)
		case <-debounce.C:
			_ = w.Reload()
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
