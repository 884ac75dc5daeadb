package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and calls onChange with the new
// configuration. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself, so that
// editors which save by renaming a temporary file are still noticed.
// Reload errors are logged and the previous configuration stays in effect.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *log.Logger, onChange func(*Config)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	var queuedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				queuedAt = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("Config watcher error: %v", err)

		case now := <-ticker.C:
			if queuedAt.IsZero() || now.Sub(queuedAt) < debounce {
				continue
			}
			queuedAt = time.Time{}

			cfg, err := Load(absPath)
			if err != nil {
				logger.Printf("WARNING: Ignoring config change: %v", err)
				continue
			}
			logger.Printf("Reloaded config from %s", absPath)
			onChange(cfg)
		}
	}
}
