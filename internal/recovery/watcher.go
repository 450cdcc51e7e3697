package recovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
)

// Watcher recounts consumers whenever the state database changes on disk,
// so registrations made by another process reach the hook.
type Watcher struct {
	hook      *Hook
	consumers ConsumerCounter
	dir       string
	base      string
	debounce  time.Duration
}

func NewWatcher(hook *Hook, consumers ConsumerCounter, statePath string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = constants.WatchDebounce
	}
	return &Watcher{
		hook:      hook,
		consumers: consumers,
		dir:       filepath.Dir(statePath),
		base:      filepath.Base(statePath),
		debounce:  debounce,
	}
}

// Run blocks until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logger.Debug("watching state database", "dir", w.dir)

	recount := make(chan struct{}, 1)
	var mu sync.Mutex
	var timer *time.Timer
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(ev) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case recount <- struct{}{}:
				default:
				}
			})
			mu.Unlock()
		case <-recount:
			w.recount()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("state watcher error", "error", err)
		}
	}
}

// handleEvent reports whether ev may have changed the consumer table. The
// WAL and journal files count as the database.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if !strings.HasPrefix(filepath.Base(ev.Name), w.base) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func (w *Watcher) recount() {
	n, err := w.consumers.CountConsumers()
	if err != nil {
		logger.Warn("failed to recount consumers", "error", err)
		return
	}
	w.hook.OnConsumerCount(n)
}
