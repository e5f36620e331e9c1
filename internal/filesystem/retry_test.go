package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// VolumeResolver Tests
// =============================================================================

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewLibraryVolumeResolver([]string{"/srv/tv", "/srv/movies"}, "/cache", "/database")

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "library root", path: "/srv/tv", want: "library"},
		{name: "library episode", path: "/srv/tv/Show/Season 1/ep01.mkv", want: "library"},
		{name: "second library", path: "/srv/movies/Film (2001)/film.mkv", want: "library"},
		{name: "cache file", path: "/cache/images/abc.jpg", want: "cache"},
		{name: "database WAL", path: "/database/library.db-wal", want: "database"},
		{name: "sibling prefix is not a match", path: "/srv/tvshows/x.mkv", want: "unknown"},
		{name: "unknown path", path: "/etc/hosts", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"cache":  "/cache",
		"images": "/cache/images",
	})

	if got := vr.Resolve("/cache/images/abc.jpg"); got != "images" {
		t.Errorf("Resolve() = %q, want images", got)
	}
	if got := vr.Resolve("/cache/other/abc.jpg"); got != "cache" {
		t.Errorf("Resolve() = %q, want cache", got)
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/srv/tv/test.mkv"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want %q", got, "unknown")
	}
}

func TestRetryConfig_ResolveVolume_UsesConfigResolver(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"default": "/srv"}))
	config := RetryConfig{VolumeResolver: NewVolumeResolver(map[string]string{"override": "/srv"})}

	if got := config.resolveVolume("/srv/test.mkv"); got != "override" {
		t.Errorf("resolveVolume() = %q, want override", got)
	}
}

// =============================================================================
// StatWithRetry / OpenWithRetry Tests
// =============================================================================

type countingObserver struct {
	durations int
	locked    int
	free      int
}

func (o *countingObserver) ObserveRetryAttempt(string, string)           {}
func (o *countingObserver) ObserveRetrySuccess(string, string)           {}
func (o *countingObserver) ObserveRetryFailure(string, string)           {}
func (o *countingObserver) ObserveStaleError(string, string)             {}
func (o *countingObserver) ObserveRetryDuration(string, string, float64) { o.durations++ }
func (o *countingObserver) ObserveLockCheck(locked bool) {
	if locked {
		o.locked++
	} else {
		o.free++
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	obs := &countingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	testFile := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, RetryConfig{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v, want nil", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}
	if obs.durations != 1 {
		t.Errorf("observed durations = %d, want 1", obs.durations)
	}
}

func TestStatWithRetry_NotExistFailsFast(t *testing.T) {
	nonExistent := filepath.Join(t.TempDir(), "nonexistent.txt")

	start := time.Now()
	_, err := StatWithRetry(nonExistent, RetryConfig{MaxRetries: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("StatWithRetry() error = %v, want ErrNotExist", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("StatWithRetry took %v, non-stale errors must not retry", elapsed)
	}
}

func TestOpenWithRetry_Success(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("content"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	f, err := OpenWithRetry(testFile, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()
}

func TestWithRetry_StaleErrorsExhaustBudget(t *testing.T) {
	calls := 0
	_, err := withRetry("stat", "/srv/x", RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		func() (int, error) {
			calls++
			return 0, syscall.ESTALE
		})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestWithRetry_RecoversAfterStale(t *testing.T) {
	calls := 0
	v, err := withRetry("open", "/srv/x", RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		func() (string, error) {
			calls++
			if calls < 2 {
				return "", syscall.ESTALE
			}
			return "ok", nil
		})

	if err != nil || v != "ok" {
		t.Errorf("withRetry() = %q, %v, want ok, nil", v, err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(dir) {
		t.Errorf("Exists(%q) = false, want true", dir)
	}
	if Exists(filepath.Join(dir, "gone")) {
		t.Error("Exists(missing) = true, want false")
	}
}
