package watcher

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"media-library/internal/csync"
)

// IgnoreSet holds paths the server itself is writing. Events for them are
// dropped so the server does not react to its own output.
type IgnoreSet struct {
	paths *csync.Map[string, uint64]
	seq   atomic.Uint64

	// releaseDelay keeps a path ignored for a while after RemoveTempIgnore,
	// since the OS delivers events for a write after the write returns.
	releaseDelay time.Duration
}

// NewIgnoreSet creates an empty set that releases paths immediately.
func NewIgnoreSet() *IgnoreSet {
	return NewIgnoreSetWithDelay(0)
}

// NewIgnoreSetWithDelay creates an empty set that keeps suppressing a path
// for delay after it is released.
func NewIgnoreSetWithDelay(delay time.Duration) *IgnoreSet {
	return &IgnoreSet{
		paths:        csync.NewMap[string, uint64](),
		releaseDelay: delay,
	}
}

// TemporarilyIgnore suppresses events for path until RemoveTempIgnore.
func (s *IgnoreSet) TemporarilyIgnore(path string) {
	s.paths.Set(filepath.Clean(path), s.seq.Add(1))
}

// RemoveTempIgnore stops suppressing events for path. A TemporarilyIgnore
// for the same path during the release delay keeps it ignored.
func (s *IgnoreSet) RemoveTempIgnore(path string) {
	path = filepath.Clean(path)
	if s.releaseDelay <= 0 {
		s.paths.Delete(path)
		return
	}

	token, ok := s.paths.Get(path)
	if !ok {
		return
	}
	time.AfterFunc(s.releaseDelay, func() {
		s.paths.DeleteIf(path, func(current uint64) bool { return current == token })
	})
}

// IsIgnored reports whether events for path are currently suppressed.
func (s *IgnoreSet) IsIgnored(path string) bool {
	return s.paths.Has(filepath.Clean(path))
}

// Len returns the number of ignored paths.
func (s *IgnoreSet) Len() int {
	return s.paths.Len()
}

// WithIgnored runs fn with path ignored. The path is released when fn
// returns, including when it panics.
func (s *IgnoreSet) WithIgnored(path string, fn func() error) error {
	s.TemporarilyIgnore(path)
	defer s.RemoveTempIgnore(path)
	return fn()
}
