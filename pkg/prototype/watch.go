package prototype

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the prototype directory whenever a YAML file in it is
// written, created or removed. onReload, if non-nil, is called after each
// reload attempt with its result. Watch returns once the watcher is running;
// it stops when ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, onReload func(error)) error {
	dir := m.Dir()
	if dir == "" {
		return fmt.Errorf("prototype: watch: no directory loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prototype: watch: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("prototype: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				ext := strings.ToLower(filepath.Ext(event.Name))
				if ext != ".yml" && ext != ".yaml" {
					continue
				}
				log.Printf("[prototype] %s changed on disk, reloading", filepath.Base(event.Name))
				err := m.LoadDir(dir)
				if err != nil {
					log.Printf("[prototype] reload failed, keeping previous set: %v", err)
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[prototype] watcher error: %v", err)
			}
		}
	}()

	log.Printf("[prototype] watching %s for changes", dir)
	return nil
}
