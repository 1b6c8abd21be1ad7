package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/config"
	"go.viam.com/waypointfollower/logging"
)

// reloadDelay collapses the burst of events an editor produces when saving a file.
const reloadDelay = 200 * time.Millisecond

// watchLogConfig re-reads the config file each time it changes and applies its log patterns to
// registry. Other changes need a restart. It returns nil once ctx is done.
func watchLogConfig(ctx context.Context, path string, registry *logging.Registry, logger logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(watcher.Close)

	// editors often replace the file rather than write it, so watch the directory.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	reload := debounce.New(reloadDelay)
	logger.Debugw("watching config for log changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reload(func() {
				reloadLogConfig(ctx, path, registry, logger)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("config watcher error", "error", err)
		}
	}
}

func reloadLogConfig(ctx context.Context, path string, registry *logging.Registry, logger logging.Logger) {
	if ctx.Err() != nil {
		return
	}
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cfg, err := config.Read(readCtx, path, logger)
	if err != nil {
		logger.Warnw("ignoring invalid config change", "path", path, "error", err)
		return
	}
	if err := registry.Update(cfg.Log, logger); err != nil {
		logger.Warnw("failed to apply log config", "error", err)
		return
	}
	logger.Infow("applied log config", "patterns", len(cfg.Log))
}
