package watcher

import (
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

const eventBuffer = 1024

// noiseFolderNames are the default names file managers give a folder before
// the user renames it.
var noiseFolderNames = map[string]bool{
	"New folder":      true,
	"untitled folder": true,
}

// Aggregator coalesces raw events into batches of changed paths. Each new
// event pushes the debounce deadline out by the full delay; when it finally
// passes with no pending path still being written, the batch is handed to
// the process function on its own goroutine.
type Aggregator struct {
	ignore  *IgnoreSet
	delay   func() time.Duration
	locked  func(path string) bool
	process func(paths []string)

	events   chan string
	fire     chan uint64
	flushReq chan chan []string

	// pending is owned by the run goroutine; size mirrors its length.
	pending map[string]time.Time
	size    atomic.Int64

	timerMu  sync.Mutex
	timer    *time.Timer
	timerGen uint64

	inflight sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewAggregator starts an aggregator. delay is consulted every time the
// timer is armed, so configuration changes apply to the next window.
func NewAggregator(ignore *IgnoreSet, delay func() time.Duration, process func(paths []string)) *Aggregator {
	a := &Aggregator{
		ignore:   ignore,
		delay:    delay,
		locked:   filesystem.IsLocked,
		process:  process,
		events:   make(chan string, eventBuffer),
		fire:     make(chan uint64, 1),
		flushReq: make(chan chan []string),
		pending:  make(map[string]time.Time),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify feeds one raw event. Events for ignored paths and for freshly
// created default-named folders are dropped.
func (a *Aggregator) Notify(path string, op fsnotify.Op) {
	if a.ignore != nil && a.ignore.IsIgnored(path) {
		logging.Debug("Watcher requested to ignore change to %s", path)
		metrics.WatcherEventsSuppressed.WithLabelValues("ignored").Inc()
		return
	}
	if isNoise(path, op) {
		metrics.WatcherEventsSuppressed.WithLabelValues("noise").Inc()
		return
	}

	logging.Debug("Watcher sees change of type %s to %s", op, path)

	select {
	case a.events <- path:
	case <-a.stopChan:
	}
}

// isNoise matches default-named new folders and the hidden temp files that
// atomic writes create next to their target.
func isNoise(path string, op fsnotify.Op) bool {
	name := filepath.Base(path)
	if op.Has(fsnotify.Create) && noiseFolderNames[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}

// Flush drains and processes everything pending now, ignoring the timer and
// lock checks. It returns once the batch has been processed.
func (a *Aggregator) Flush() {
	reply := make(chan []string, 1)
	select {
	case a.flushReq <- reply:
	case <-a.done:
		return
	}
	batch := <-reply
	if len(batch) > 0 {
		a.process(batch)
	}
}

// Len returns the number of pending paths.
func (a *Aggregator) Len() int {
	return int(a.size.Load())
}

// Stop discards pending changes and waits for in-flight batches.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})
	<-a.done
	a.inflight.Wait()
}

func (a *Aggregator) run() {
	defer close(a.done)
	defer a.stopTimer()

	for {
		select {
		case <-a.stopChan:
			if n := len(a.pending); n > 0 {
				logging.Info("Discarding %d pending change(s) on shutdown", n)
			}
			a.setPending(nil)
			return

		case path := <-a.events:
			a.add(path)
			a.arm()

		case gen := <-a.fire:
			if !a.current(gen) {
				continue
			}
			a.onTimer()

		case reply := <-a.flushReq:
			a.stopTimer()
			a.absorbQueued()
			reply <- a.drain()
		}
	}
}

func (a *Aggregator) add(path string) {
	if _, ok := a.pending[path]; ok {
		return
	}
	a.pending[path] = time.Now()
	a.size.Store(int64(len(a.pending)))
	metrics.AggregatorPendingPaths.Set(float64(len(a.pending)))
}

// absorbQueued moves events already sitting in the channel into pending.
func (a *Aggregator) absorbQueued() {
	for {
		select {
		case path := <-a.events:
			a.add(path)
		default:
			return
		}
	}
}

func (a *Aggregator) onTimer() {
	if len(a.pending) == 0 {
		return
	}
	for path := range a.pending {
		if a.locked(path) {
			logging.Info("Timer extended because %s is in use", path)
			metrics.AggregatorTimerExtensions.Inc()
			a.arm()
			return
		}
	}

	batch := a.drain()
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.process(batch)
	}()
}

func (a *Aggregator) drain() []string {
	if len(a.pending) == 0 {
		return nil
	}
	batch := make([]string, 0, len(a.pending))
	for path := range a.pending {
		batch = append(batch, path)
	}
	a.setPending(make(map[string]time.Time))
	metrics.AggregatorFlushes.Inc()
	return batch
}

func (a *Aggregator) setPending(pending map[string]time.Time) {
	a.pending = pending
	a.size.Store(int64(len(pending)))
	metrics.AggregatorPendingPaths.Set(float64(len(pending)))
}

// arm (re)starts the timer for a full delay from now. Each arm gets a new
// generation so a fire from a timer that was already replaced is ignored.
func (a *Aggregator) arm() {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timerGen++
	gen := a.timerGen
	a.timer = time.AfterFunc(a.delay(), func() {
		select {
		case a.fire <- gen:
		case <-a.stopChan:
		}
	})
}

func (a *Aggregator) stopTimer() {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.timerGen++
}

func (a *Aggregator) current(gen uint64) bool {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()
	return a.timer != nil && gen == a.timerGen
}
