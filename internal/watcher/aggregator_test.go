package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-library/internal/metrics"
)

// batchRecorder collects batches handed to the process function.
type batchRecorder struct {
	batches chan []string
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{batches: make(chan []string, 16)}
}

func (r *batchRecorder) process(paths []string) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	r.batches <- sorted
}

func (r *batchRecorder) next(t *testing.T, timeout time.Duration) []string {
	t.Helper()
	select {
	case b := <-r.batches:
		return b
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a batch")
		return nil
	}
}

func (r *batchRecorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case b := <-r.batches:
		t.Fatalf("unexpected batch %v", b)
	case <-time.After(wait):
	}
}

func fixedDelay(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

func neverLocked(string) bool { return false }

func newTestAggregator(t *testing.T, delay time.Duration, ignore *IgnoreSet) (*Aggregator, *batchRecorder) {
	t.Helper()
	rec := newBatchRecorder()
	a := NewAggregator(ignore, fixedDelay(delay), rec.process)
	a.locked = neverLocked
	t.Cleanup(a.Stop)
	return a, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// Debounce
// =============================================================================

func TestAggregatorCoalescesBurst(t *testing.T) {
	a, rec := newTestAggregator(t, 150*time.Millisecond, nil)

	// The burst lasts longer than the delay; a sliding window still yields
	// a single batch.
	events := []string{"/m/a.mkv", "/m/b.mkv", "/m/a.mkv", "/m/c.mkv", "/m/b.mkv"}
	for _, p := range events {
		a.Notify(p, fsnotify.Write)
		time.Sleep(50 * time.Millisecond)
	}

	got := rec.next(t, 2*time.Second)
	want := []string{"/m/a.mkv", "/m/b.mkv", "/m/c.mkv"}
	if len(got) != len(want) {
		t.Fatalf("batch = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("batch[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	rec.none(t, 300*time.Millisecond)
	if a.Len() != 0 {
		t.Errorf("Len() = %d after drain, want 0", a.Len())
	}
}

func TestAggregatorReadsDelayOnEachArm(t *testing.T) {
	var calls atomic.Int32
	rec := newBatchRecorder()
	a := NewAggregator(nil, func() time.Duration {
		calls.Add(1)
		return 20 * time.Millisecond
	}, rec.process)
	a.locked = neverLocked
	defer a.Stop()

	a.Notify("/m/one", fsnotify.Create)
	rec.next(t, 2*time.Second)
	a.Notify("/m/two", fsnotify.Create)
	rec.next(t, 2*time.Second)

	if calls.Load() < 2 {
		t.Errorf("delay consulted %d times, want at least 2", calls.Load())
	}
}

// =============================================================================
// Suppression
// =============================================================================

func TestAggregatorSuppression(t *testing.T) {
	ignore := NewIgnoreSet()
	ignore.TemporarilyIgnore("/m/Show/folder.jpg")
	a, rec := newTestAggregator(t, time.Hour, ignore)

	ignoredBefore := testutil.ToFloat64(metrics.WatcherEventsSuppressed.WithLabelValues("ignored"))
	noiseBefore := testutil.ToFloat64(metrics.WatcherEventsSuppressed.WithLabelValues("noise"))

	a.Notify("/m/Show/folder.jpg", fsnotify.Write)
	a.Notify("/m/New folder", fsnotify.Create)
	a.Notify("/m/untitled folder", fsnotify.Create)
	a.Notify("/m/Show/.folder.jpg.123456.tmp", fsnotify.Create)
	a.Notify("/m/New folder", fsnotify.Rename)

	a.Flush()
	got := rec.next(t, time.Second)
	if len(got) != 1 || got[0] != "/m/New folder" {
		t.Errorf("batch = %v, want only the renamed folder", got)
	}

	if d := testutil.ToFloat64(metrics.WatcherEventsSuppressed.WithLabelValues("ignored")) - ignoredBefore; d != 1 {
		t.Errorf("ignored suppressions = %v, want 1", d)
	}
	if d := testutil.ToFloat64(metrics.WatcherEventsSuppressed.WithLabelValues("noise")) - noiseBefore; d != 3 {
		t.Errorf("noise suppressions = %v, want 3", d)
	}
}

func TestAggregatorIgnoreCoversServerWrite(t *testing.T) {
	ignore := NewIgnoreSet()
	a, rec := newTestAggregator(t, time.Hour, ignore)

	target := "/m/Movie/backdrop.jpg"
	err := ignore.WithIgnored(target, func() error {
		a.Notify(target, fsnotify.Create)
		a.Notify(target, fsnotify.Write)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	a.Flush()
	rec.none(t, 100*time.Millisecond)

	// Once released, the same path is reported again.
	a.Notify(target, fsnotify.Write)
	a.Flush()
	if got := rec.next(t, time.Second); len(got) != 1 {
		t.Errorf("batch = %v", got)
	}
}

// =============================================================================
// Lock deferral
// =============================================================================

func TestAggregatorDefersWhileLocked(t *testing.T) {
	rec := newBatchRecorder()
	a := NewAggregator(nil, fixedDelay(30*time.Millisecond), rec.process)
	var locked atomic.Bool
	locked.Store(true)
	a.locked = func(string) bool { return locked.Load() }
	defer a.Stop()

	before := testutil.ToFloat64(metrics.AggregatorTimerExtensions)

	a.Notify("/m/copying.mkv", fsnotify.Create)
	rec.none(t, 200*time.Millisecond)

	if a.Len() != 1 {
		t.Errorf("Len() = %d while locked, want 1", a.Len())
	}
	if testutil.ToFloat64(metrics.AggregatorTimerExtensions)-before < 1 {
		t.Error("expected the timer to be extended at least once")
	}

	locked.Store(false)
	got := rec.next(t, 2*time.Second)
	if len(got) != 1 || got[0] != "/m/copying.mkv" {
		t.Errorf("batch = %v", got)
	}
}

func TestAggregatorDefersOnHeldFlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep01.mkv")
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	writer := flock.New(path)
	if err := writer.Lock(); err != nil {
		t.Fatalf("Lock error = %v", err)
	}
	defer writer.Unlock()

	rec := newBatchRecorder()
	a := NewAggregator(nil, fixedDelay(30*time.Millisecond), rec.process)
	defer a.Stop()

	a.Notify(path, fsnotify.Write)
	rec.none(t, 200*time.Millisecond)

	if err := writer.Unlock(); err != nil {
		t.Fatal(err)
	}
	if got := rec.next(t, 2*time.Second); len(got) != 1 || got[0] != path {
		t.Errorf("batch = %v, want [%s]", got, path)
	}
}

func TestAggregatorDeletedPathIsNotLocked(t *testing.T) {
	rec := newBatchRecorder()
	a := NewAggregator(nil, fixedDelay(20*time.Millisecond), rec.process)
	defer a.Stop()

	gone := filepath.Join(t.TempDir(), "deleted.mkv")
	a.Notify(gone, fsnotify.Remove)

	if got := rec.next(t, 2*time.Second); len(got) != 1 {
		t.Errorf("batch = %v", got)
	}
}

// =============================================================================
// Flush and Stop
// =============================================================================

func TestAggregatorFlushBypassesLock(t *testing.T) {
	a, rec := newTestAggregator(t, time.Hour, nil)
	a.locked = func(string) bool { return true }

	a.Notify("/m/x", fsnotify.Write)
	a.Flush()

	if got := rec.next(t, time.Second); len(got) != 1 {
		t.Errorf("batch = %v", got)
	}
	a.Flush()
	rec.none(t, 50*time.Millisecond)
}

func TestAggregatorStopDiscardsPending(t *testing.T) {
	rec := newBatchRecorder()
	a := NewAggregator(nil, fixedDelay(time.Hour), rec.process)

	a.Notify("/m/x", fsnotify.Write)
	waitFor(t, func() bool { return a.Len() == 1 })
	a.Stop()

	if a.Len() != 0 {
		t.Errorf("Len() = %d after Stop, want 0", a.Len())
	}

	done := make(chan struct{})
	go func() {
		a.Notify("/m/y", fsnotify.Write)
		a.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify or Flush blocked after Stop")
	}
	rec.none(t, 50*time.Millisecond)
}
