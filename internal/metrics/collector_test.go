package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// =============================================================================
// Mock StatsProvider
// =============================================================================

type mockStatsProvider struct {
	stats Stats
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

// =============================================================================
// Collector Tests
// =============================================================================

func TestCollectorCollect(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		TotalItems:   12,
		TotalFolders: 4,
		ItemsByType:  map[string]int{"Episode": 8, "Season": 2},
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(LibraryItemsTotal.WithLabelValues("Episode")); got != 8 {
		t.Errorf("items{Episode} = %v, want 8", got)
	}
	if got := testutil.ToFloat64(LibraryFoldersTotal); got != 4 {
		t.Errorf("folders = %v, want 4", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	// Must not panic.
	c.collect()
}

func TestCollectorStartStop(t *testing.T) {
	calls := make(chan struct{}, 10)
	provider := StatsFunc(func() Stats {
		calls <- struct{}{}
		return Stats{}
	})

	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("collector did not collect on start")
	}
	c.Stop()
}

// =============================================================================
// Observer Tests
// =============================================================================

func TestFilesystemObserverLockCheck(t *testing.T) {
	o := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemLockChecks.WithLabelValues("locked"))
	o.ObserveLockCheck(true)
	after := testutil.ToFloat64(FilesystemLockChecks.WithLabelValues("locked"))

	if after-before != 1 {
		t.Errorf("locked checks delta = %v, want 1", after-before)
	}
}

func TestInitializeMetricsPopulatesProviders(t *testing.T) {
	InitializeMetrics([]string{"TestProvider"})

	if n := testutil.CollectAndCount(ProviderRunsTotal); n < 4 {
		t.Errorf("ProviderRunsTotal series = %d, want at least 4", n)
	}
}
