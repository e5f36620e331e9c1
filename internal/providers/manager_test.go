package providers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"media-library/internal/library"
)

// fakeProvider is a configurable Provider for orchestration tests.
type fakeProvider struct {
	name     string
	priority Priority
	internet bool
	slow     bool
	update   library.UpdateType

	supports func(*library.Item) bool
	needs    func(*library.Item) (bool, error)
	fetch    func(ctx context.Context, item *library.Item, force bool) (bool, error)
}

func (f *fakeProvider) Name() string                   { return f.name }
func (f *fakeProvider) Priority() Priority             { return f.priority }
func (f *fakeProvider) RequiresInternet() bool         { return f.internet }
func (f *fakeProvider) IsSlow() bool                   { return f.slow }
func (f *fakeProvider) Version() string                { return "1" }
func (f *fakeProvider) UpdateType() library.UpdateType { return f.update }

func (f *fakeProvider) Supports(item *library.Item) bool {
	if f.supports == nil {
		return true
	}
	return f.supports(item)
}

func (f *fakeProvider) NeedsRefresh(item *library.Item) (bool, error) {
	if f.needs == nil {
		return true, nil
	}
	return f.needs(item)
}

func (f *fakeProvider) Fetch(ctx context.Context, item *library.Item, force bool) (bool, error) {
	if f.fetch == nil {
		return true, nil
	}
	return f.fetch(ctx, item, force)
}

// policyBox lets tests change the policy while refreshes run.
type policyBox struct {
	mu sync.Mutex
	p  Policy
}

func (b *policyBox) get() Policy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.p
}

func (b *policyBox) set(p Policy) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

func newTestManager(policy Policy, providers ...Provider) (*Manager, *policyBox) {
	box := &policyBox{p: policy}
	m := NewManager(box.get, nil)
	m.AddParts(providers...)
	return m, box
}

func newTestItem() *library.Item {
	return &library.Item{ID: uuid.New(), Name: "Movie", Path: "/media/Movie", Type: library.TypeMovie}
}

// blockingFetch blocks until ctx is cancelled, reporting start on started
// and the cancellation cause on causes.
func blockingFetch(started chan<- struct{}, causes chan<- error) func(context.Context, *library.Item, bool) (bool, error) {
	return func(ctx context.Context, _ *library.Item, _ bool) (bool, error) {
		started <- struct{}{}
		<-ctx.Done()
		if causes != nil {
			causes <- context.Cause(ctx)
		}
		return false, ctx.Err()
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// =============================================================================
// Ordering and outcomes
// =============================================================================

func TestRefreshRunsInPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context, *library.Item, bool) (bool, error) {
		return func(context.Context, *library.Item, bool) (bool, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return false, nil
		}
	}

	m, _ := newTestManager(Policy{InternetEnabled: true},
		&fakeProvider{name: "third", priority: PriorityThird, fetch: record("third")},
		&fakeProvider{name: "first", priority: PriorityFirst, fetch: record("first")},
		&fakeProvider{name: "last-a", priority: PriorityLast, fetch: record("last-a")},
		&fakeProvider{name: "second", priority: PrioritySecond, fetch: record("second")},
		&fakeProvider{name: "last-b", priority: PriorityLast, fetch: record("last-b")},
	)

	if _, err := m.Refresh(context.Background(), newTestItem(), RefreshOptions{}); err != nil {
		t.Fatalf("Refresh error = %v", err)
	}

	want := []string{"first", "second", "third", "last-a", "last-b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
	if names := m.Names(); names[0] != "first" || names[4] != "last-b" {
		t.Errorf("Names() = %v", names)
	}
}

func TestAddPartsIsFixedAfterFirstCall(t *testing.T) {
	m, _ := newTestManager(Policy{}, &fakeProvider{name: "a"})
	m.AddParts(&fakeProvider{name: "b"}, &fakeProvider{name: "c"})

	if names := m.Names(); len(names) != 1 || names[0] != "a" {
		t.Errorf("Names() = %v, want [a]", names)
	}
}

func TestRefreshOutcome(t *testing.T) {
	tests := []struct {
		name      string
		providers []Provider
		want      library.Outcome
	}{
		{
			name:      "nothing changed",
			providers: []Provider{&fakeProvider{name: "a", fetch: func(context.Context, *library.Item, bool) (bool, error) { return false, nil }}},
			want:      library.Outcome{},
		},
		{
			name:      "changed with zero type",
			providers: []Provider{&fakeProvider{name: "a", update: library.UpdateNone}},
			want:      library.Outcome{Changed: true, Type: library.UpdateNone},
		},
		{
			name: "types are combined",
			providers: []Provider{
				&fakeProvider{name: "a", priority: PriorityFirst, update: library.UpdateMetadataImport},
				&fakeProvider{name: "b", priority: PrioritySecond, update: library.UpdateImageUpdate},
			},
			want: library.Outcome{Changed: true, Type: library.UpdateMetadataImport | library.UpdateImageUpdate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(Policy{}, tt.providers...)
			got, err := m.Refresh(context.Background(), newTestItem(), RefreshOptions{})
			if err != nil {
				t.Fatalf("Refresh error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Refresh() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRefreshPartialFailure(t *testing.T) {
	ranB := false
	m, _ := newTestManager(Policy{},
		&fakeProvider{name: "a", priority: PriorityFirst, update: library.UpdateMetadataImport,
			fetch: func(context.Context, *library.Item, bool) (bool, error) { return false, errors.New("fetch crashed") }},
		&fakeProvider{name: "b", priority: PrioritySecond, update: library.UpdateImageUpdate,
			fetch: func(context.Context, *library.Item, bool) (bool, error) { ranB = true; return true, nil }},
	)

	item := newTestItem()
	got, err := m.Refresh(context.Background(), item, RefreshOptions{})
	if err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if !ranB {
		t.Fatal("provider b did not run after a failed")
	}
	want := library.Outcome{Changed: true, Type: library.UpdateUnspecified | library.UpdateImageUpdate}
	if got != want {
		t.Errorf("Refresh() = %+v, want %+v", got, want)
	}

	info, ok := item.ProviderInfo("a")
	if !ok || info.LastRefreshStatus != library.StatusFailure || info.LastRefreshed.IsZero() {
		t.Errorf("provider info for a = %+v, want failure stamp", info)
	}
}

func TestRefreshSkipsIneligible(t *testing.T) {
	var ran []string
	fetch := func(name string) func(context.Context, *library.Item, bool) (bool, error) {
		return func(context.Context, *library.Item, bool) (bool, error) {
			ran = append(ran, name)
			return true, nil
		}
	}

	m, _ := newTestManager(Policy{InternetEnabled: false},
		&fakeProvider{name: "local", priority: PriorityFirst, fetch: fetch("local")},
		&fakeProvider{name: "net", priority: PrioritySecond, internet: true, fetch: fetch("net")},
		&fakeProvider{name: "slow", priority: PriorityThird, slow: true, fetch: fetch("slow")},
	)

	if _, err := m.Refresh(context.Background(), newTestItem(), RefreshOptions{AllowSlow: false}); err != nil {
		t.Fatal(err)
	}
	if len(ran) != 1 || ran[0] != "local" {
		t.Errorf("ran = %v, want [local]", ran)
	}
}

func TestRefreshNeedsRefresh(t *testing.T) {
	broken := func(*library.Item) (bool, error) { return false, errors.New("bad stamp") }
	fresh := func(*library.Item) (bool, error) { return false, nil }

	tests := []struct {
		name   string
		needs  func(*library.Item) (bool, error)
		policy NeedsRefreshErrorPolicy
		force  bool
		want   bool
	}{
		{"fresh is skipped", fresh, FailClosed, false, false},
		{"force ignores freshness", fresh, FailClosed, true, true},
		{"error fails closed", broken, FailClosed, false, false},
		{"error fails open", broken, FailOpen, false, true},
		{"force skips the check", broken, FailClosed, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			var gotForce bool
			m, _ := newTestManager(Policy{NeedsRefreshErrors: tt.policy}, &fakeProvider{
				name:  "p",
				needs: tt.needs,
				fetch: func(_ context.Context, _ *library.Item, force bool) (bool, error) {
					ran = true
					gotForce = force
					return false, nil
				},
			})

			if _, err := m.Refresh(context.Background(), newTestItem(), RefreshOptions{Force: tt.force}); err != nil {
				t.Fatal(err)
			}
			if ran != tt.want {
				t.Errorf("provider ran = %v, want %v", ran, tt.want)
			}
			if ran && gotForce != tt.force {
				t.Errorf("force passed = %v, want %v", gotForce, tt.force)
			}
		})
	}
}

// =============================================================================
// Cancellation
// =============================================================================

func TestRefreshCallerCancellationPropagates(t *testing.T) {
	started := make(chan struct{}, 1)
	secondRan := false
	m, _ := newTestManager(Policy{},
		&fakeProvider{name: "blocker", priority: PriorityFirst, fetch: blockingFetch(started, nil)},
		&fakeProvider{name: "after", priority: PrioritySecond,
			fetch: func(context.Context, *library.Item, bool) (bool, error) { secondRan = true; return true, nil }},
	)

	ctx, cancel := context.WithCancel(context.Background())
	item := newTestItem()
	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(ctx, item, RefreshOptions{})
		done <- err
	}()

	waitFor(t, started, "provider start")
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Refresh error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Refresh did not return after caller cancellation")
	}
	if secondRan {
		t.Error("provider after the cancelled one should not run")
	}
	if _, ok := item.ProviderInfo("blocker"); ok {
		t.Error("caller cancellation must not stamp a failure")
	}
	if n := len(m.Running()); n != 0 {
		t.Errorf("Running() has %d entries after return", n)
	}
}

func TestRefreshSupersedesRunForSameKey(t *testing.T) {
	started := make(chan struct{}, 2)
	causes := make(chan error, 2)
	release := make(chan struct{})

	calls := 0
	var mu sync.Mutex
	p := &fakeProvider{name: "net", fetch: func(ctx context.Context, item *library.Item, force bool) (bool, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return blockingFetch(started, causes)(ctx, item, force)
		}
		started <- struct{}{}
		<-release
		return true, nil
	}}
	m, _ := newTestManager(Policy{}, p)

	item := newTestItem()
	key := RunKey{ItemID: item.ID, Provider: "net"}

	firstDone := make(chan library.Outcome, 1)
	go func() {
		out, err := m.Refresh(context.Background(), &library.Item{ID: item.ID, Type: item.Type}, RefreshOptions{})
		if err != nil {
			t.Errorf("first Refresh error = %v", err)
		}
		firstDone <- out
	}()
	waitFor(t, started, "first run")

	secondDone := make(chan library.Outcome, 1)
	go func() {
		out, _ := m.Refresh(context.Background(), item, RefreshOptions{})
		secondDone <- out
	}()
	waitFor(t, started, "second run")

	select {
	case cause := <-causes:
		if !errors.Is(cause, ErrSuperseded) {
			t.Errorf("first run cause = %v, want ErrSuperseded", cause)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first run was not cancelled")
	}

	if out := <-firstDone; out.Changed {
		t.Errorf("superseded run outcome = %+v, want unchanged", out)
	}
	if !m.IsRunning(key) {
		t.Error("second run should still be registered after the first returns")
	}

	close(release)
	if out := <-secondDone; !out.Changed {
		t.Errorf("second run outcome = %+v, want changed", out)
	}
	if m.IsRunning(key) {
		t.Error("registry still holds the key after completion")
	}
}

func TestConfigurationChangeCancelsInternetRuns(t *testing.T) {
	netStarted := make(chan struct{}, 1)
	netCauses := make(chan error, 1)
	localStarted := make(chan struct{}, 1)
	localRelease := make(chan struct{})
	localCancelled := make(chan struct{}, 1)

	netProvider := &fakeProvider{name: "net", internet: true, fetch: blockingFetch(netStarted, netCauses)}
	localProvider := &fakeProvider{name: "local", fetch: func(ctx context.Context, _ *library.Item, _ bool) (bool, error) {
		localStarted <- struct{}{}
		select {
		case <-localRelease:
			return true, nil
		case <-ctx.Done():
			localCancelled <- struct{}{}
			return false, ctx.Err()
		}
	}}

	m, box := newTestManager(Policy{InternetEnabled: true}, netProvider, localProvider)
	// Separate items so the two providers run concurrently.
	netItem := newTestItem()
	localItem := newTestItem()
	netProvider.supports = func(i *library.Item) bool { return i.ID == netItem.ID }
	localProvider.supports = func(i *library.Item) bool { return i.ID == localItem.ID }

	netDone := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background(), netItem, RefreshOptions{})
		netDone <- err
	}()
	localDone := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background(), localItem, RefreshOptions{})
		localDone <- err
	}()
	waitFor(t, netStarted, "internet provider")
	waitFor(t, localStarted, "local provider")

	box.set(Policy{InternetEnabled: false})
	m.OnConfigurationChanged()
	m.sweeps.Wait()

	select {
	case cause := <-netCauses:
		if !errors.Is(cause, ErrPolicyChanged) {
			t.Errorf("internet run cause = %v, want ErrPolicyChanged", cause)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("internet provider was not cancelled")
	}
	if err := <-netDone; err != nil {
		t.Errorf("Refresh for cancelled internet run returned %v, want nil", err)
	}

	select {
	case <-localCancelled:
		t.Fatal("local provider was cancelled by configuration change")
	default:
	}
	close(localRelease)
	if err := <-localDone; err != nil {
		t.Errorf("local Refresh error = %v", err)
	}
}

func TestConfigurationChangeSkipsLaterInternetProvider(t *testing.T) {
	localStarted := make(chan struct{}, 1)
	localRelease := make(chan struct{})
	var netRan atomic.Bool

	local := &fakeProvider{name: "local", priority: PriorityFirst, fetch: func(ctx context.Context, _ *library.Item, _ bool) (bool, error) {
		localStarted <- struct{}{}
		<-localRelease
		return true, nil
	}}
	net := &fakeProvider{name: "net", priority: PrioritySecond, internet: true, fetch: func(context.Context, *library.Item, bool) (bool, error) {
		netRan.Store(true)
		return true, nil
	}}

	m, box := newTestManager(Policy{InternetEnabled: true}, local, net)

	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background(), newTestItem(), RefreshOptions{})
		done <- err
	}()
	waitFor(t, localStarted, "local provider")

	box.set(Policy{InternetEnabled: false})
	m.OnConfigurationChanged()
	m.sweeps.Wait()
	close(localRelease)

	if err := <-done; err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if netRan.Load() {
		t.Error("internet provider ran after internet providers were disabled")
	}
}

func TestFetchRechecksPolicyAfterRegistering(t *testing.T) {
	var ran atomic.Bool
	net := &fakeProvider{name: "net", internet: true, fetch: func(context.Context, *library.Item, bool) (bool, error) {
		ran.Store(true)
		return true, nil
	}}
	m, box := newTestManager(Policy{InternetEnabled: true}, net)
	box.set(Policy{InternetEnabled: false})

	item := newTestItem()
	updateType, changed, err := m.fetch(context.Background(), m.parts[0], item, false)
	if err != nil {
		t.Fatalf("fetch error = %v", err)
	}
	if changed || updateType != library.UpdateNone {
		t.Errorf("fetch = (%v, %v), want (UpdateNone, false)", updateType, changed)
	}
	if ran.Load() {
		t.Error("provider Fetch called although policy disallows it")
	}
	if m.IsRunning(RunKey{ItemID: item.ID, Provider: "net"}) {
		t.Error("registry still holds the skipped run")
	}
}

func TestConfigurationChangeCancelsExcludedTypes(t *testing.T) {
	started := make(chan struct{}, 1)
	causes := make(chan error, 1)
	m, box := newTestManager(Policy{InternetEnabled: true},
		&fakeProvider{name: "net", internet: true, fetch: blockingFetch(started, causes)})

	go func() { _, _ = m.Refresh(context.Background(), newTestItem(), RefreshOptions{}) }()
	waitFor(t, started, "internet provider")

	box.set(Policy{InternetEnabled: true, ExcludedTypes: []string{"movie"}})
	if n := m.validateRunning(); n != 1 {
		t.Errorf("validateRunning() = %d, want 1", n)
	}
	if cause := <-causes; !errors.Is(cause, ErrPolicyChanged) {
		t.Errorf("cause = %v, want ErrPolicyChanged", cause)
	}
}

func TestRunningSnapshot(t *testing.T) {
	started := make(chan struct{}, 1)
	m, _ := newTestManager(Policy{InternetEnabled: true},
		&fakeProvider{name: "net", internet: true, fetch: blockingFetch(started, nil)})

	ctx, cancel := context.WithCancel(context.Background())
	item := newTestItem()
	done := make(chan struct{})
	go func() {
		_, _ = m.Refresh(ctx, item, RefreshOptions{})
		close(done)
	}()
	waitFor(t, started, "provider start")

	running := m.Running()
	if len(running) != 1 {
		t.Fatalf("Running() = %v, want one entry", running)
	}
	if running[0].ItemID != item.ID || running[0].Provider != "net" || !running[0].Internet {
		t.Errorf("Running()[0] = %+v", running[0])
	}

	cancel()
	<-done
	m.Close()
}

func TestRefreshNilItem(t *testing.T) {
	m, _ := newTestManager(Policy{})
	if _, err := m.Refresh(context.Background(), nil, RefreshOptions{}); err == nil {
		t.Error("Refresh(nil) should fail")
	}
}

// =============================================================================
// Saving into the library
// =============================================================================

type recordingIgnorer struct {
	mu      sync.Mutex
	active  map[string]bool
	history []string
}

func newRecordingIgnorer() *recordingIgnorer {
	return &recordingIgnorer{active: make(map[string]bool)}
}

func (r *recordingIgnorer) TemporarilyIgnore(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[path] = true
	r.history = append(r.history, "+"+path)
}

func (r *recordingIgnorer) RemoveTempIgnore(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, path)
	r.history = append(r.history, "-"+path)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestSaveToLibraryFilesystem(t *testing.T) {
	dir := t.TempDir()
	ignorer := newRecordingIgnorer()
	m := NewManager(func() Policy { return Policy{} }, ignorer)
	item := &library.Item{ID: uuid.New(), Name: "Show", Path: dir, Type: library.TypeSeries}
	path := filepath.Join(dir, "backdrop.jpg")

	if err := m.SaveToLibraryFilesystem(context.Background(), item, path, bytes.NewReader([]byte("jpeg"))); err != nil {
		t.Fatalf("SaveToLibraryFilesystem error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpeg" {
		t.Errorf("file contents = %q, %v", data, err)
	}
	if len(ignorer.active) != 0 {
		t.Errorf("ignore entries left behind: %v", ignorer.active)
	}
	if len(ignorer.history) != 2 || ignorer.history[0] != "+"+path {
		t.Errorf("ignore history = %v", ignorer.history)
	}
}

func TestSaveToLibraryFilesystemReleasesIgnoreOnError(t *testing.T) {
	dir := t.TempDir()
	ignorer := newRecordingIgnorer()
	m := NewManager(func() Policy { return Policy{} }, ignorer)
	item := &library.Item{ID: uuid.New(), Path: dir, Type: library.TypeSeries}
	path := filepath.Join(dir, "folder.jpg")

	if err := m.SaveToLibraryFilesystem(context.Background(), item, path, failingReader{}); err == nil {
		t.Fatal("expected error from failing reader")
	}
	if len(ignorer.active) != 0 {
		t.Errorf("ignore entries left behind: %v", ignorer.active)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial file exists: %v", err)
	}
}

func TestSaveToLibraryFilesystemValidation(t *testing.T) {
	m := NewManager(func() Policy { return Policy{} }, nil)
	item := &library.Item{ID: uuid.New()}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		item *library.Item
		path string
		data *bytes.Reader
	}{
		{"nil item", context.Background(), nil, "/x", bytes.NewReader(nil)},
		{"empty path", context.Background(), item, "", bytes.NewReader(nil)},
		{"cancelled", cancelled, item, filepath.Join(t.TempDir(), "x"), bytes.NewReader(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.SaveToLibraryFilesystem(tt.ctx, tt.item, tt.path, tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(func() Policy { return Policy{} }, nil)
	item := &library.Item{ID: uuid.New(), Name: "Show", Path: dir, Type: library.TypeSeries}

	primary, err := m.SaveImage(context.Background(), item, bytes.NewReader([]byte("p")), "image/jpeg", ImagePrimary, 0)
	if err != nil {
		t.Fatal(err)
	}
	if primary != filepath.Join(dir, "folder.jpg") || item.PrimaryImagePath != primary {
		t.Errorf("primary = %q, item.PrimaryImagePath = %q", primary, item.PrimaryImagePath)
	}

	for i := 0; i < 2; i++ {
		if _, err := m.SaveImage(context.Background(), item, bytes.NewReader([]byte("b")), "image/png", ImageBackdrop, i); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{filepath.Join(dir, "backdrop.png"), filepath.Join(dir, "backdrop1.png")}
	if len(item.BackdropImagePaths) != 2 || item.BackdropImagePaths[0] != want[0] || item.BackdropImagePaths[1] != want[1] {
		t.Errorf("BackdropImagePaths = %v, want %v", item.BackdropImagePaths, want)
	}

	if _, err := m.SaveImage(context.Background(), item, bytes.NewReader(nil), "text/plain", ImagePrimary, 0); err == nil {
		t.Error("expected error for unsupported mime type")
	}
	episode := &library.Item{ID: uuid.New(), Path: filepath.Join(dir, "ep.mkv"), Type: library.TypeEpisode}
	if _, err := m.SaveImage(context.Background(), episode, bytes.NewReader(nil), "image/jpeg", ImagePrimary, 0); err == nil {
		t.Error("expected error for non-folder item")
	}
}
