package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-library/internal/filesystem"
	"media-library/internal/logging"
	"media-library/internal/metrics"
)

const (
	// NetworkRetryAttempts bounds restarts after the share behind a watch
	// drops away.
	NetworkRetryAttempts = 10
	// NetworkRetryDelay is the pause before each network restart attempt.
	NetworkRetryDelay = 500 * time.Millisecond
)

// State is the lifecycle of a single watch.
type State int32

const (
	StateStarting State = iota
	StateActive
	StateErroring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateErroring:
		return "erroring"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText renders the state by name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NotifyFunc receives raw change events.
type NotifyFunc func(path string, op fsnotify.Op)

// WatchedPath is one live watch over a directory tree. fsnotify does not
// recurse, so every sub-directory is registered with the same watcher and
// new directories are added as they appear.
type WatchedPath struct {
	path      string
	recursive bool
	notify    NotifyFunc
	onDispose func(*WatchedPath)

	retryDelay    time.Duration
	retryAttempts int

	state atomic.Int32

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dirs    int

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func newWatchedPath(path string, recursive bool, notify NotifyFunc, onDispose func(*WatchedPath)) *WatchedPath {
	return &WatchedPath{
		path:          path,
		recursive:     recursive,
		notify:        notify,
		onDispose:     onDispose,
		retryDelay:    NetworkRetryDelay,
		retryAttempts: NetworkRetryAttempts,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Path returns the watched root.
func (w *WatchedPath) Path() string { return w.path }

// State returns the current lifecycle state.
func (w *WatchedPath) State() State { return State(w.state.Load()) }

// Start registers the watch and begins delivering events. On error nothing
// is left running.
func (w *WatchedPath) Start() error {
	if err := w.enable(); err != nil {
		w.state.Store(int32(StateStopped))
		close(w.done)
		return err
	}
	w.state.Store(int32(StateActive))
	metrics.WatcherWatchedPaths.Inc()
	go w.run()
	return nil
}

// Stop tears the watch down and waits for its goroutine to exit.
func (w *WatchedPath) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.done
}

func (w *WatchedPath) stopped() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

func (w *WatchedPath) current() *fsnotify.Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watcher
}

func (w *WatchedPath) run() {
	defer close(w.done)
	defer w.disable()
	defer metrics.WatcherWatchedPaths.Dec()
	defer w.state.Store(int32(StateStopped))

	for {
		fw := w.current()
		if fw == nil {
			return
		}

		select {
		case <-w.stopChan:
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if !w.recover(err) {
				logging.Warn("Giving up on watch for %s", w.path)
				metrics.WatcherRestarts.WithLabelValues("disposed").Inc()
				if w.onDispose != nil {
					w.onDispose(w)
				}
				return
			}
		}
	}
}

func (w *WatchedPath) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if w.recursive && event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			n := w.addTree(fw, event.Name)
			w.mu.Lock()
			w.dirs += n
			w.mu.Unlock()
			metrics.WatcherWatchedDirectories.Add(float64(n))
		}
	}

	w.notify(event.Name, event.Op)
}

// recover handles a watcher error and reports whether the watch survives.
func (w *WatchedPath) recover(err error) bool {
	w.state.Store(int32(StateErroring))

	switch {
	case errors.Is(err, fsnotify.ErrEventOverflow):
		metrics.WatcherErrors.WithLabelValues("overflow").Inc()
		logging.Warn("Event queue overflowed for %s, restarting watch", w.path)
		if !w.restart() {
			return false
		}
		// Events were lost; let a scan of the whole root sort it out.
		w.notify(w.path, fsnotify.Write)

	case filesystem.IsNetworkUnavailable(err):
		metrics.WatcherErrors.WithLabelValues("network").Inc()
		logging.Warn("Network connection lost for %s - will retry: %v", w.path, err)
		if !w.retryNetwork() {
			return false
		}

	default:
		metrics.WatcherErrors.WithLabelValues("other").Inc()
		logging.Error("Error in directory watcher for %s: %v", w.path, err)
		logging.Info("Attempting to re-start watcher for %s", w.path)
		if !w.restart() {
			return false
		}
	}

	w.state.Store(int32(StateActive))
	return true
}

func (w *WatchedPath) retryNetwork() bool {
	for attempt := 1; attempt <= w.retryAttempts; attempt++ {
		select {
		case <-w.stopChan:
			return false
		case <-time.After(w.retryDelay):
		}
		if w.restart() {
			return true
		}
		logging.Warn("Network still unavailable for %s (attempt %d/%d)", w.path, attempt, w.retryAttempts)
	}
	logging.Warn("Unable to access network for %s. Giving up.", w.path)
	return false
}

// restart drops the OS watch and registers it again.
func (w *WatchedPath) restart() bool {
	w.disable()
	if w.stopped() {
		return false
	}
	if err := w.enable(); err != nil {
		logging.Warn("Failed to re-start watcher for %s: %v", w.path, err)
		metrics.WatcherRestarts.WithLabelValues("failure").Inc()
		return false
	}
	metrics.WatcherRestarts.WithLabelValues("success").Inc()
	return true
}

func (w *WatchedPath) enable() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", w.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	n := 1
	if w.recursive {
		n += w.addTree(fw, w.path)
	}

	w.mu.Lock()
	w.watcher = fw
	w.dirs = n
	w.mu.Unlock()
	metrics.WatcherWatchedDirectories.Add(float64(n))
	return nil
}

func (w *WatchedPath) disable() {
	w.mu.Lock()
	fw, n := w.watcher, w.dirs
	w.watcher, w.dirs = nil, 0
	w.mu.Unlock()

	if fw == nil {
		return
	}
	metrics.WatcherWatchedDirectories.Sub(float64(n))
	if err := fw.Close(); err != nil {
		logging.Debug("Closing watcher for %s: %v", w.path, err)
	}
}

// addTree registers every directory below root (not root itself) and
// returns how many were added. Hidden directories are skipped.
func (w *WatchedPath) addTree(fw *fsnotify.Watcher, root string) int {
	added := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Debug("Watcher cannot walk %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path == w.path {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			logging.Debug("Watcher cannot add %s: %v", path, err)
			return filepath.SkipDir
		}
		added++
		return nil
	})
	return added
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Write):
		return "write"
	default:
		return "other"
	}
}
