package providers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-library/internal/csync"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/memory"
	"media-library/internal/metrics"
)

var (
	// ErrSuperseded is the cancellation cause of a run replaced by a newer
	// run of the same provider for the same item.
	ErrSuperseded = errors.New("provider run superseded")

	// ErrPolicyChanged is the cancellation cause of a run stopped because a
	// configuration change made its provider ineligible.
	ErrPolicyChanged = errors.New("provider no longer eligible")
)

// RunKey identifies an in-flight provider run.
type RunKey struct {
	ItemID   uuid.UUID
	Provider string
}

type run struct {
	caps     Capabilities
	itemName string
	itemType library.ItemType
	started  time.Time
	cancel   context.CancelCauseFunc
}

// RunningProvider describes one in-flight run.
type RunningProvider struct {
	ItemID   uuid.UUID        `json:"itemId"`
	ItemName string           `json:"itemName"`
	ItemType library.ItemType `json:"itemType"`
	Provider string           `json:"provider"`
	Internet bool             `json:"requiresInternet"`
	Started  time.Time        `json:"started"`
}

// RefreshOptions controls a single Refresh call.
type RefreshOptions struct {
	// Force runs eligible providers even when they report fresh data.
	Force bool
	// AllowSlow admits providers marked slow.
	AllowSlow bool
}

// PathIgnorer suppresses file watcher events for paths the server writes
// itself.
type PathIgnorer interface {
	TemporarilyIgnore(path string)
	RemoveTempIgnore(path string)
}

type part struct {
	Provider
	caps Capabilities
}

// Manager runs the provider chain for catalog items.
type Manager struct {
	policy  func() Policy
	ignore  PathIgnorer
	monitor *memory.Monitor
	now     func() time.Time

	partsOnce sync.Once
	parts     []part

	running *csync.Map[RunKey, *run]
	sweeps  sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMemoryMonitor makes Refresh wait while memory usage is critical.
func WithMemoryMonitor(m *memory.Monitor) Option {
	return func(pm *Manager) { pm.monitor = m }
}

// WithClock overrides the time source used for failure stamps.
func WithClock(now func() time.Time) Option {
	return func(pm *Manager) {
		if now != nil {
			pm.now = now
		}
	}
}

// NewManager creates a provider manager. policy is called whenever the
// current configuration is needed; ignore may be nil when nothing watches
// the library.
func NewManager(policy func() Policy, ignore PathIgnorer, opts ...Option) *Manager {
	m := &Manager{
		policy:  policy,
		ignore:  ignore,
		now:     time.Now,
		running: csync.NewMap[RunKey, *run](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddParts installs the provider chain, sorted by ascending priority.
// Providers with equal priority keep their registration order. Only the
// first call has any effect; the chain is fixed for the life of the
// manager.
func (m *Manager) AddParts(providers ...Provider) {
	m.partsOnce.Do(func() {
		parts := make([]part, 0, len(providers))
		for _, p := range providers {
			parts = append(parts, part{Provider: p, caps: CapabilitiesOf(p)})
		}
		sort.SliceStable(parts, func(i, j int) bool {
			return parts[i].caps.Priority < parts[j].caps.Priority
		})
		m.parts = parts
	})
}

// Names returns provider names in execution order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.parts))
	for i, p := range m.parts {
		names[i] = p.caps.Name
	}
	return names
}

// Refresh runs every eligible provider for item in priority order and
// returns the combined outcome. The policy is read again before each
// provider. Provider failures are logged and stamped on
// the item; the only error returned is the caller's context error.
func (m *Manager) Refresh(ctx context.Context, item *library.Item, opts RefreshOptions) (library.Outcome, error) {
	var outcome library.Outcome
	if item == nil {
		return outcome, errors.New("refresh: nil item")
	}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	if err := m.monitor.Wait(ctx); err != nil {
		return outcome, fmt.Errorf("waiting for memory: %w", err)
	}

	for _, p := range m.parts {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		// A configuration change may land while an earlier provider runs.
		policy := m.policy()
		if ok, reason := Eligible(p.caps, item, policy, opts.AllowSlow); !ok {
			metrics.ProviderSkips.WithLabelValues(p.caps.Name, reason).Inc()
			continue
		}

		if !opts.Force {
			needs, err := p.NeedsRefresh(item)
			if err != nil {
				logging.Error("Error determining NeedsRefresh for %s with %s: %v", itemLabel(item), p.caps.Name, err)
				needs = policy.NeedsRefreshErrors == FailOpen
				if !needs {
					metrics.ProviderSkips.WithLabelValues(p.caps.Name, SkipNeedsRefreshErr).Inc()
					continue
				}
			}
			if !needs {
				metrics.ProviderSkips.WithLabelValues(p.caps.Name, SkipFresh).Inc()
				continue
			}
		}

		updateType, changed, err := m.fetch(ctx, p, item, opts.Force)
		if err != nil {
			return outcome, err
		}
		if changed {
			outcome = outcome.Merge(updateType)
		}
	}

	return outcome, nil
}

// fetch runs one provider under its own cancellable context. The error is
// non-nil only when the caller's context ended.
func (m *Manager) fetch(ctx context.Context, p part, item *library.Item, force bool) (library.UpdateType, bool, error) {
	name := p.caps.Name
	key := RunKey{ItemID: item.ID, Provider: name}

	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		caps:     p.caps,
		itemName: item.Name,
		itemType: item.Type,
		started:  m.now(),
		cancel:   cancel,
	}

	if prev, ok := m.running.Swap(key, r); ok {
		prev.cancel(ErrSuperseded)
		metrics.ProviderSuperseded.WithLabelValues(name).Inc()
	}
	metrics.ProviderRunsInFlight.Inc()

	start := time.Now()
	defer func() {
		m.running.DeleteIf(key, func(cur *run) bool { return cur == r })
		cancel(nil)
		metrics.ProviderRunsInFlight.Dec()
		metrics.ProviderRunDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	// A sweep that ran before the swap could not see this run.
	if ok, reason := Eligible(p.caps, item, m.policy(), true); !ok {
		cancel(ErrPolicyChanged)
		metrics.ProviderPolicyCancellations.WithLabelValues(name).Inc()
		metrics.ProviderSkips.WithLabelValues(name, reason).Inc()
		return library.UpdateNone, false, nil
	}

	logging.Debug("Running %s for %s", name, itemLabel(item))

	changed, err := p.Fetch(runCtx, item, force)
	if err == nil {
		if !changed {
			metrics.ProviderRunsTotal.WithLabelValues(name, "unchanged").Inc()
			return library.UpdateNone, false, nil
		}
		metrics.ProviderRunsTotal.WithLabelValues(name, "changed").Inc()
		return p.UpdateType(), true, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logging.Debug("%s canceled for %s", name, item.Name)
		metrics.ProviderRunsTotal.WithLabelValues(name, "cancelled").Inc()
		return library.UpdateNone, false, ctxErr
	}
	if runCtx.Err() != nil {
		logging.Debug("%s canceled for %s: %v", name, item.Name, context.Cause(runCtx))
		metrics.ProviderRunsTotal.WithLabelValues(name, "cancelled").Inc()
		return library.UpdateNone, false, nil
	}

	logging.Error("%s failed refreshing %s: %v", name, itemLabel(item), err)
	metrics.ProviderRunsTotal.WithLabelValues(name, "failed").Inc()

	info, _ := item.ProviderInfo(name)
	info.LastRefreshed = m.now().UTC()
	info.LastRefreshStatus = library.StatusFailure
	info.ProviderVersion = p.Version()
	item.SetProviderInfo(name, info)

	return library.UpdateUnspecified, true, nil
}

// OnConfigurationChanged starts a background sweep that cancels running
// internet providers the new configuration no longer allows.
func (m *Manager) OnConfigurationChanged() {
	m.sweeps.Add(1)
	go func() {
		defer m.sweeps.Done()
		if n := m.validateRunning(); n > 0 {
			logging.Info("Cancelled %d provider run(s) after configuration change", n)
		}
	}()
}

func (m *Manager) validateRunning() int {
	policy := m.policy()
	cancelled := 0

	m.running.Range(func(_ RunKey, r *run) bool {
		if !r.caps.RequiresInternet || policy.allowsInternet(r.itemType) {
			return true
		}
		r.cancel(ErrPolicyChanged)
		metrics.ProviderPolicyCancellations.WithLabelValues(r.caps.Name).Inc()
		cancelled++
		return true
	})

	return cancelled
}

// Running returns the in-flight runs ordered by start time.
func (m *Manager) Running() []RunningProvider {
	var out []RunningProvider
	m.running.Range(func(key RunKey, r *run) bool {
		out = append(out, RunningProvider{
			ItemID:   key.ItemID,
			ItemName: r.itemName,
			ItemType: r.itemType,
			Provider: key.Provider,
			Internet: r.caps.RequiresInternet,
			Started:  r.started,
		})
		return true
	})
	slices.SortFunc(out, func(a, b RunningProvider) int {
		return a.Started.Compare(b.Started)
	})
	return out
}

// IsRunning reports whether a run is registered for key.
func (m *Manager) IsRunning(key RunKey) bool {
	return m.running.Has(key)
}

// Close cancels every in-flight run and waits for pending sweeps.
func (m *Manager) Close() {
	m.running.Range(func(_ RunKey, r *run) bool {
		r.cancel(context.Canceled)
		return true
	})
	m.sweeps.Wait()
}

func itemLabel(item *library.Item) string {
	if item.Path != "" {
		return item.Path
	}
	if item.Name != "" {
		return item.Name
	}
	return "--Unknown--"
}
