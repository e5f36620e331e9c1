package watcher

import (
	"errors"
	"testing"
	"time"
)

func TestIgnoreSet(t *testing.T) {
	s := NewIgnoreSet()
	s.TemporarilyIgnore("/media/tv/Show/folder.jpg")

	if !s.IsIgnored("/media/tv/Show/./folder.jpg") {
		t.Error("cleaned path should match")
	}
	if s.IsIgnored("/media/tv/Show/FOLDER.jpg") {
		t.Error("match should be case sensitive")
	}

	s.RemoveTempIgnore("/media/tv/Show/folder.jpg")
	if s.IsIgnored("/media/tv/Show/folder.jpg") {
		t.Error("path still ignored after RemoveTempIgnore")
	}
}

func TestWithIgnoredReleasesOnError(t *testing.T) {
	s := NewIgnoreSet()
	want := errors.New("disk full")

	err := s.WithIgnored("/media/a.jpg", func() error {
		if !s.IsIgnored("/media/a.jpg") {
			t.Error("path not ignored while fn runs")
		}
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("WithIgnored error = %v, want %v", err, want)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after WithIgnored, want 0", s.Len())
	}
}

func TestWithIgnoredReleasesOnPanic(t *testing.T) {
	s := NewIgnoreSet()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = s.WithIgnored("/media/b.jpg", func() error {
			panic("writer crashed")
		})
	}()

	if s.IsIgnored("/media/b.jpg") {
		t.Error("path still ignored after panicking writer")
	}
}

func TestIgnoreSetReleaseDelay(t *testing.T) {
	s := NewIgnoreSetWithDelay(50 * time.Millisecond)
	s.TemporarilyIgnore("/media/c.jpg")
	s.RemoveTempIgnore("/media/c.jpg")

	if !s.IsIgnored("/media/c.jpg") {
		t.Fatal("path released before the delay")
	}
	waitFor(t, func() bool { return !s.IsIgnored("/media/c.jpg") })
}

func TestIgnoreSetReleaseDelayKeepsNewerIgnore(t *testing.T) {
	s := NewIgnoreSetWithDelay(20 * time.Millisecond)
	s.TemporarilyIgnore("/media/d.jpg")
	s.RemoveTempIgnore("/media/d.jpg")
	s.TemporarilyIgnore("/media/d.jpg")

	time.Sleep(100 * time.Millisecond)
	if !s.IsIgnored("/media/d.jpg") {
		t.Error("pending release dropped a newer ignore")
	}
}
