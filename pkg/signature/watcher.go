package signature

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a signature directory whenever a YAML file in it
// changes and hands every successfully loaded and validated set to
// OnReload. A reload that fails keeps the previous signatures active.
type Watcher struct {
	Dir      string
	OnReload func([]*types.Signature)
	Debounce time.Duration
	Logger   *slog.Logger

	loader *Loader
}

// NewWatcher creates a watcher for dir. Run starts it.
func NewWatcher(dir string, onReload func([]*types.Signature), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Dir:      dir,
		OnReload: onReload,
		Debounce: DefaultDebounce,
		Logger:   logger.With("component", "signature-watcher", "dir", dir),
		loader:   NewLoader(),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.Dir, err)
	}
	w.Logger.Info("watching signatures")

	timer := time.NewTimer(w.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isYAML(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.Logger.Debug("signature file changed", "file", ev.Name, "op", ev.Op.String())
				timer.Reset(w.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", "error", err)

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	sigs, err := w.loader.LoadDir(w.Dir)
	if err != nil {
		w.Logger.Warn("reload failed, keeping previous signatures", "error", err)
		return
	}
	if err := ValidateAll(sigs); err != nil {
		w.Logger.Warn("reloaded signatures are invalid, keeping previous signatures", "error", err)
		return
	}
	w.Logger.Info("signatures reloaded", "count", len(sigs))
	if w.OnReload != nil {
		w.OnReload(sigs)
	}
}
