package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an editor or Save()
// produces for one logical change.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher calls onChange after the config file changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()

	timer   *time.Timer
	timerMu sync.Mutex

	// stopCh signals the event loop to exit.
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the directory holding path, since atomic saves replace
// the file rather than write to it.
func NewWatcher(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		watcher:  w,
		path:     path,
		debounce: debounce,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the event loop goroutine.
func (cw *Watcher) Start() {
	go cw.eventLoop()
	fmt.Printf("[config] watching %s\n", cw.path)
}

// Stop closes the watcher and cancels a pending reload.
// Safe to call multiple times.
func (cw *Watcher) Stop() {
	cw.stopOnce.Do(func() {
		close(cw.stopCh)
		cw.watcher.Close()

		cw.timerMu.Lock()
		if cw.timer != nil {
			cw.timer.Stop()
		}
		cw.timerMu.Unlock()
	})
}

func (cw *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cw.resetDebounce()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			fmt.Printf("[config] watcher error: %v\n", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) resetDebounce() {
	cw.timerMu.Lock()
	defer cw.timerMu.Unlock()

	if cw.timer != nil {
		cw.timer.Reset(cw.debounce)
		return
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		select {
		case <-cw.stopCh:
			return
		default:
		}
		cw.onChange()
	})
}
