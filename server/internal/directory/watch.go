package directory

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the export directory and caches the local-scan listing
// until the next change. It runs until ctx is cancelled. Online resolvers
// return immediately.
func (r *Resolver) Watch(ctx context.Context) error {
	if r.mode != ModeLocalScan {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return err
	}

	r.invalidate()
	r.watching.Store(true)
	defer func() {
		r.watching.Store(false)
		r.invalidate()
	}()

	slog.Info("directory: watching export directory", "dir", r.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Chmod alone does not change contents.
			if event.Op == fsnotify.Chmod {
				continue
			}
			slog.Debug("directory: export changed", "file", event.Name, "op", event.Op.String())
			r.invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("directory: watcher error", "err", err)
			r.invalidate()
		}
	}
}

// Watching reports whether Watch is active.
func (r *Resolver) Watching() bool { return r.watching.Load() }
