// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchFunc receives the outcome of each upload Watch performs.
type WatchFunc func(path, paperID string, err error)

// Watch uploads supported files that appear or change in dir until ctx is
// cancelled. Files already present whose id is not in the library are
// uploaded first. A file is uploaded once it has been quiet for the
// configured debounce; ids come from file names.
func (a *Assistant) Watch(ctx context.Context, dir string, onResult WatchFunc) error {
	if onResult == nil {
		onResult = func(string, string, error) {}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	a.logger.Info("watching directory", zap.String("dir", dir), zap.Duration("debounce", a.watchDebounce))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !a.watchable(e.Name()) || a.Has(IDFromPath(e.Name())) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		id, err := a.Upload(ctx, path, IDFromPath(path))
		onResult(path, id, err)
	}

	ready := make(chan string)
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !a.watchable(ev.Name) {
				continue
			}
			path := ev.Name
			mu.Lock()
			if t, ok := pending[path]; ok {
				t.Reset(a.watchDebounce)
			} else {
				pending[path] = time.AfterFunc(a.watchDebounce, func() {
					select {
					case ready <- path:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()

		case path := <-ready:
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				continue
			}
			id, err := a.Upload(ctx, path, IDFromPath(path))
			if err != nil {
				a.logger.Warn("watched upload failed", zap.String("path", path), zap.Error(err))
			}
			onResult(path, id, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// watchable skips hidden and temporary files such as editor swap files
// and in-progress downloads.
func (a *Assistant) watchable(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	return a.parser.Supported(name)
}
