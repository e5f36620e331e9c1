package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// reloadSettle coalesces the burst of events editors emit when saving.
const reloadSettle = 250 * time.Millisecond

// Manager owns the current ServerConfig and notifies subscribers whenever
// it changes. The notification carries no payload; subscribers read
// Current.
type Manager struct {
	path string

	mu      sync.RWMutex
	current ServerConfig

	subMu  sync.Mutex
	subs   map[uint64]func()
	nextID uint64
}

// NewManager loads the configuration file at path. A missing file is not
// an error; defaults are used and the file is not created.
func NewManager(path string) (*Manager, error) {
	cfg, exists, err := Load(path)
	if err != nil {
		return nil, err
	}
	if exists {
		logging.Info("Loaded server configuration from %s", path)
	} else if path != "" {
		logging.Info("No server configuration at %s, using defaults", path)
	}
	return &Manager{
		path:    path,
		current: cfg,
		subs:    make(map[uint64]func()),
	}, nil
}

// NewStaticManager wraps a fixed configuration. Reload is a no-op.
func NewStaticManager(cfg ServerConfig) *Manager {
	return &Manager{current: cfg, subs: make(map[uint64]func())}
}

// Path returns the configuration file path, or "" for a static manager.
func (m *Manager) Path() string {
	return m.path
}

// Current returns a copy of the active configuration.
func (m *Manager) Current() ServerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// Update applies fn to a copy of the configuration, validates it and makes
// it current. Subscribers are notified on success.
func (m *Manager) Update(fn func(*ServerConfig)) error {
	m.mu.Lock()
	next := m.current.clone()
	fn(&next)
	next.normalize()
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = next
	m.mu.Unlock()

	m.notify()
	return nil
}

// Reload re-reads the configuration file. On error the current
// configuration stays in effect.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}

	cfg, _, err := Load(m.path)
	if err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("reload %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	metrics.ConfigReloadsTotal.WithLabelValues("success").Inc()
	if cfg.LogLevel != "" {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
	logging.Info("Server configuration reloaded from %s", m.path)

	m.notify()
	return nil
}

// Subscribe registers fn to be called after every configuration change.
// The returned function removes the subscription.
func (m *Manager) Subscribe(fn func()) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	m.subMu.Lock()
	ids := make([]uint64, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Watch reloads the configuration whenever the file changes until ctx is
// done. The parent directory is watched so editors that replace the file
// are handled.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var settle *time.Timer
		defer func() {
			if settle != nil {
				settle.Stop()
			}
		}()

		target := filepath.Clean(m.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if settle != nil {
					settle.Stop()
				}
				settle = time.AfterFunc(reloadSettle, func() {
					if err := m.Reload(); err != nil {
						logging.Warn("Configuration reload failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("Config watcher error: %v", err)
			}
		}
	}()

	return nil
}

func (c ServerConfig) clone() ServerConfig {
	out := c
	out.InternetProviderExcludeTypes = slices.Clone(c.InternetProviderExcludeTypes)
	out.Libraries = make([]Library, len(c.Libraries))
	for i, lib := range c.Libraries {
		out.Libraries[i] = Library{Name: lib.Name, Locations: slices.Clone(lib.Locations)}
	}
	if c.Libraries == nil {
		out.Libraries = nil
	}
	return out
}
