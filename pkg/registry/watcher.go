package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dive-federation/pdp/pkg/observability"
)

// Watch reloads the store whenever its backing file changes. It blocks until
// ctx is cancelled, so run it in its own goroutine. A no-op when the store has
// no backing file.
func (s *Store) Watch(ctx context.Context, logger *observability.Logger) error {
	if s.cfg.Path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create registry watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and configmap mounts replace
	// the file by rename, which drops a direct file watch.
	dir := filepath.Dir(s.cfg.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.cfg.Path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				logger.WithError(err).WithField("path", s.cfg.Path).
					Error("registry reload failed, keeping previous vocabulary")
				continue
			}
			logger.WithField("path", s.cfg.Path).Info("registry reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("registry watcher error")
		}
	}
}
