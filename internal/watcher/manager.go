package watcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"media-library/internal/config"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/workers"
)

const maxDispatchWorkers = 16

// PathState describes one entry of the live watch set.
type PathState struct {
	Path  string `json:"path"`
	State State  `json:"state"`
}

// Options configures a Manager.
type Options struct {
	// Roots are the library root directories.
	Roots []string
	// Workers bounds concurrent item refreshes per batch. Zero sizes it
	// for I/O-bound work.
	Workers int
}

// Manager keeps a live watch on every library location and turns the
// resulting events into refresh work.
type Manager struct {
	catalog    Catalog
	dispatcher Dispatcher
	cfg        *config.Manager
	ignore     *IgnoreSet
	roots      []string
	workers    int

	agg *Aggregator

	mu      sync.Mutex
	watches map[string]*WatchedPath
	enabled bool
	ctx     context.Context
	cancel  context.CancelFunc

	unsubscribe func()
	starting    sync.WaitGroup
}

// NewManager creates a watch manager. ignore is shared with the code that
// writes into the library.
func NewManager(catalog Catalog, dispatcher Dispatcher, cfg *config.Manager, ignore *IgnoreSet, opts Options) *Manager {
	if ignore == nil {
		ignore = NewIgnoreSet()
	}
	n := opts.Workers
	if n <= 0 {
		n = workers.ForIO(maxDispatchWorkers)
	}
	return &Manager{
		catalog:    catalog,
		dispatcher: dispatcher,
		cfg:        cfg,
		ignore:     ignore,
		roots:      append([]string(nil), opts.Roots...),
		workers:    n,
		watches:    make(map[string]*WatchedPath),
	}
}

// Ignore returns the shared ignore set.
func (m *Manager) Ignore() *IgnoreSet { return m.ignore }

// TemporarilyIgnore suppresses events for a path the server is writing.
func (m *Manager) TemporarilyIgnore(path string) { m.ignore.TemporarilyIgnore(path) }

// RemoveTempIgnore releases a path passed to TemporarilyIgnore.
func (m *Manager) RemoveTempIgnore(path string) { m.ignore.RemoveTempIgnore(path) }

// Start computes the watch set and starts a watch for each path. Watches
// are registered in the background so one slow mount does not hold up the
// rest. When the realtime monitor is disabled in the configuration, no
// watches are started until it is enabled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.agg != nil {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.agg = NewAggregator(m.ignore, m.delay, m.processBatch)
	m.mu.Unlock()

	m.unsubscribe = m.cfg.Subscribe(m.onConfigurationChanged)

	if !m.cfg.Current().EnableRealtimeMonitor {
		logging.Info("Realtime monitor disabled; library changes are picked up by scheduled scans")
		return nil
	}
	m.enableWatching()
	return nil
}

func (m *Manager) delay() time.Duration {
	return m.cfg.Current().WatcherDelay()
}

func (m *Manager) enableWatching() {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = true
	ctx := m.ctx
	m.mu.Unlock()

	paths := append([]string(nil), m.roots...)
	folders, err := m.catalog.TopLevelFolders(ctx)
	if err != nil {
		logging.Warn("Could not list top-level folders for watching: %v", err)
	}
	for _, folder := range folders {
		paths = append(paths, folder.Locations()...)
	}

	watchSet := CollapseWatchSet(paths)
	logging.Info("Watching %d path(s) for changes", len(watchSet))
	for _, path := range watchSet {
		m.StartWatchingPath(path)
	}
}

func (m *Manager) disableWatching() {
	m.mu.Lock()
	m.enabled = false
	watches := m.watches
	m.watches = make(map[string]*WatchedPath)
	m.mu.Unlock()

	for _, w := range watches {
		w.Stop()
	}
}

func (m *Manager) onConfigurationChanged() {
	enable := m.cfg.Current().EnableRealtimeMonitor

	m.mu.Lock()
	enabled := m.enabled
	stopped := m.ctx == nil || m.ctx.Err() != nil
	m.mu.Unlock()

	if stopped || enable == enabled {
		return
	}
	if enable {
		logging.Info("Realtime monitor enabled")
		m.enableWatching()
	} else {
		logging.Info("Realtime monitor disabled")
		m.disableWatching()
	}
}

// StartWatchingPath starts a watch for path unless it or an ancestor is
// already watched. Registration happens on a separate goroutine; failures
// are logged and the path is left unwatched.
func (m *Manager) StartWatchingPath(path string) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	covered, err := ContainsParentFolder(m.watchedLocked(), path)
	if err != nil {
		m.mu.Unlock()
		logging.Warn("Not watching %q: %v", path, err)
		return
	}
	if covered {
		m.mu.Unlock()
		return
	}
	path = trimSeparators(path)
	w := newWatchedPath(path, true, m.agg.Notify, m.dispose)
	m.watches[path] = w
	m.starting.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.starting.Done()
		if err := w.Start(); err != nil {
			logging.Error("Error watching path %s: %v", path, err)
			m.dispose(w)
			return
		}
		logging.Info("Watching directory %s", path)
	}()
}

// StopWatchingPath tears down the watch rooted at path, if any.
func (m *Manager) StopWatchingPath(path string) {
	path = trimSeparators(path)

	m.mu.Lock()
	w, ok := m.watches[path]
	if ok {
		delete(m.watches, path)
	}
	m.mu.Unlock()

	if ok {
		logging.Info("Stopping directory watching for path %s", path)
		w.Stop()
	}
}

// dispose forgets a watch that gave up, if it is still the registered one.
func (m *Manager) dispose(w *WatchedPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.watches[w.path]; ok && current == w {
		delete(m.watches, w.path)
	}
}

func (m *Manager) watchedLocked() []string {
	paths := make([]string, 0, len(m.watches))
	for p := range m.watches {
		paths = append(paths, p)
	}
	return paths
}

// OnChildrenChanged keeps the watch set in step with the top-level folders
// of the catalog.
func (m *Manager) OnChildrenChanged(ev library.ChildrenChanged) {
	if ev.Folder == nil || !ev.Folder.IsRoot() {
		return
	}
	for _, item := range ev.Removed {
		if !item.IsFolder() {
			continue
		}
		for _, loc := range item.Locations() {
			m.StopWatchingPath(loc)
		}
	}
	for _, item := range ev.Added {
		if !item.IsFolder() {
			continue
		}
		for _, loc := range item.Locations() {
			m.StartWatchingPath(loc)
		}
	}
}

// Paths returns the watch set sorted by path.
func (m *Manager) Paths() []PathState {
	m.mu.Lock()
	out := make([]PathState, 0, len(m.watches))
	for p, w := range m.watches {
		out = append(out, PathState{Path: p, State: w.State()})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// State returns the state of the watch rooted at path.
func (m *Manager) State(path string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[trimSeparators(path)]
	if !ok {
		return StateStopped, false
	}
	return w.State(), true
}

// Flush processes pending changes immediately.
func (m *Manager) Flush() {
	m.mu.Lock()
	agg := m.agg
	m.mu.Unlock()
	if agg != nil {
		agg.Flush()
	}
}

// Stop disposes every watch and the aggregator.
func (m *Manager) Stop() {
	m.mu.Lock()
	agg := m.agg
	cancel := m.cancel
	m.mu.Unlock()
	if agg == nil {
		return
	}

	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.starting.Wait()
	m.disableWatching()
	cancel()
	agg.Stop()
	logging.Info("Directory watching stopped")
}

func (m *Manager) processBatch(paths []string) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	logging.Info("Processing %d changed path(s)", len(paths))
	items := ResolveAffected(ctx, m.catalog, paths)
	Dispatch(ctx, m.dispatcher, items, m.workers)
}
