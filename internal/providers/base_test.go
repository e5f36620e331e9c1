package providers

import (
	"testing"
	"time"

	"media-library/internal/library"
)

func TestBaseStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stamp := "a"

	newBase := func() *Base {
		return &Base{
			ProviderName:           "test",
			ProviderVersion:        "2",
			RefreshOnVersionChange: true,
			FileSystemStamp:        func(*library.Item) string { return stamp },
			RefreshInterval:        func() time.Duration { return 24 * time.Hour },
			Now:                    func() time.Time { return now },
		}
	}
	fresh := library.ProviderInfo{
		LastRefreshed:     now.Add(-time.Hour),
		LastRefreshStatus: library.StatusSuccess,
		ProviderVersion:   "2",
		FileSystemStamp:   "a",
	}

	tests := []struct {
		name   string
		mutate func(*library.ProviderInfo)
		noInfo bool
		want   bool
	}{
		{"never refreshed", nil, true, true},
		{"fresh", func(*library.ProviderInfo) {}, false, false},
		{"failed last time", func(i *library.ProviderInfo) { i.LastRefreshStatus = library.StatusFailure }, false, true},
		{"completed with errors", func(i *library.ProviderInfo) { i.LastRefreshStatus = library.StatusCompletedWithErrors }, false, true},
		{"version changed", func(i *library.ProviderInfo) { i.ProviderVersion = "1" }, false, true},
		{"stamp changed", func(i *library.ProviderInfo) { i.FileSystemStamp = "b" }, false, true},
		{"too old", func(i *library.ProviderInfo) { i.LastRefreshed = now.Add(-48 * time.Hour) }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &library.Item{}
			if !tt.noInfo {
				info := fresh
				tt.mutate(&info)
				item.SetProviderInfo("test", info)
			}
			if got := newBase().Stale(item); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseStaleVersionIgnoredWhenDisabled(t *testing.T) {
	b := &Base{ProviderName: "test", ProviderVersion: "9"}
	item := &library.Item{}
	item.SetProviderInfo("test", library.ProviderInfo{
		LastRefreshed:     time.Now(),
		LastRefreshStatus: library.StatusSuccess,
		ProviderVersion:   "1",
	})

	if b.Stale(item) {
		t.Error("Stale() = true, want false when version changes are ignored")
	}
}

func TestBaseSetLastRefreshed(t *testing.T) {
	b := &Base{
		ProviderName:    "test",
		ProviderVersion: "3",
		FileSystemStamp: func(*library.Item) string { return "stamp" },
	}
	item := &library.Item{}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	b.SetLastRefreshed(item, at, library.StatusSuccess)

	info, ok := item.ProviderInfo("test")
	if !ok {
		t.Fatal("provider info not recorded")
	}
	if !info.LastRefreshed.Equal(at) || info.LastRefreshed.Location() != time.UTC {
		t.Errorf("LastRefreshed = %v, want %v in UTC", info.LastRefreshed, at)
	}
	if info.ProviderVersion != "3" || info.FileSystemStamp != "stamp" {
		t.Errorf("info = %+v", info)
	}
	if b.Stale(item) {
		t.Error("item should be fresh right after a successful stamp")
	}
}
