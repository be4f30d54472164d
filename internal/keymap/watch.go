package keymap

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/weft/internal/ctxlog"
)

// Watch starts an fsnotify watcher on the keymap path and reloads the set
// on changes until ctx is cancelled, calling cb with each set that passes
// validation. A reload that fails validation (bad HCL, unknown mode,
// ambiguous chords) is logged and discarded, leaving the active keymap in
// place. Events are debounced so editors that write in several syscalls
// trigger one reload.
func Watch(ctx context.Context, path string, cb func(*Set)) error {
	logger := ctxlog.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}
	logger.Info("keymap watcher: started", "path", path)

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time
	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("keymap watcher: stopped")
			return nil

		case <-reloadCh:
			set, err := Load(ctx, path)
			if err != nil {
				logger.Warn("keymap watcher: reload rejected, keeping active keymap", "error", err)
				continue
			}
			logger.Info("keymap watcher: reloaded")
			cb(set)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("keymap watcher: error", "error", err)
		}
	}
}
