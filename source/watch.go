package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// Watcher refreshes a FileRepository whenever the underlying file
// changes on disk and notifies registered listeners with the new
// document. Provisioning tools (including WriteFile) replace the file
// by renaming over it rather than rewriting it in place; a watch on
// the file itself would follow the dead inode after the first replace,
// so the watch is placed on the parent directory and events are
// filtered by base name.
type Watcher struct {
	repo     *FileRepository
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu        sync.RWMutex
	listeners []chan<- *bootcfg.Document
}

// NewWatcher creates a Watcher for the given repository. Start must be
// called to begin watching.
func NewWatcher(repo *FileRepository) *Watcher {
	return &Watcher{repo: repo, debounce: 500 * time.Millisecond}
}

// Subscribe registers a channel to receive the parsed document after
// each successful refresh triggered by a file change. Sends are
// non-blocking; a listener that is not draining misses updates.
func (w *Watcher) Subscribe(ch chan<- *bootcfg.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, ch)
}

// Start begins watching the directory holding the repository's file.
// The watch loop stops when the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.repo.Path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watcher = watcher

	logrus.WithField("path", w.repo.Path).Info("watching boot configuration for changes")
	go w.watchLoop(ctx)
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	base := filepath.Base(w.repo.Path)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			// In-place writes arrive as Write; a rename over the path
			// arrives as Create (or Rename) on the directory watch.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors fire several events per save.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if err := w.repo.Refresh(); err != nil {
					logrus.WithError(err).Error("error refreshing after file change")
					return
				}
				w.notify(w.repo.Document())
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Error("watcher error")
		}
	}
}

func (w *Watcher) notify(doc *bootcfg.Document) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.listeners {
		select {
		case ch <- doc:
		default:
		}
	}
}
