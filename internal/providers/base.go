package providers

import (
	"time"

	"media-library/internal/library"
)

// Base carries the staleness rules most providers share. Providers embed it
// and call Stale from their NeedsRefresh.
type Base struct {
	ProviderName    string
	ProviderVersion string

	// RefreshOnVersionChange re-runs the provider when the stamped version
	// differs from ProviderVersion.
	RefreshOnVersionChange bool

	// FileSystemStamp, when set, computes a comparison stamp from the
	// item's files. A different stamp means the item needs a refresh.
	FileSystemStamp func(item *library.Item) string

	// RefreshInterval, when set, returns how long a successful result stays
	// fresh. Zero disables age-based refreshes.
	RefreshInterval func() time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (b *Base) Name() string    { return b.ProviderName }
func (b *Base) Version() string { return b.ProviderVersion }

func (b *Base) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Stale reports whether the stored provider info calls for a refresh: the
// provider never ran, its last run did not succeed, its version or the
// file system stamp changed, or the result is older than RefreshInterval.
func (b *Base) Stale(item *library.Item) bool {
	info, ok := item.ProviderInfo(b.ProviderName)
	if !ok || info.LastRefreshed.IsZero() {
		return true
	}
	if info.LastRefreshStatus != library.StatusSuccess {
		return true
	}
	if b.RefreshOnVersionChange && info.ProviderVersion != b.ProviderVersion {
		return true
	}
	if b.FileSystemStamp != nil && info.FileSystemStamp != b.FileSystemStamp(item) {
		return true
	}
	if b.RefreshInterval != nil {
		if interval := b.RefreshInterval(); interval > 0 && b.now().Sub(info.LastRefreshed) >= interval {
			return true
		}
	}
	return false
}

// SetLastRefreshed stamps the item with this provider's run result.
func (b *Base) SetLastRefreshed(item *library.Item, at time.Time, status library.RefreshStatus) {
	info := library.ProviderInfo{
		LastRefreshed:     at.UTC(),
		LastRefreshStatus: status,
		ProviderVersion:   b.ProviderVersion,
	}
	if b.FileSystemStamp != nil {
		info.FileSystemStamp = b.FileSystemStamp(item)
	}
	item.SetProviderInfo(b.ProviderName, info)
}

// MarkRefreshed stamps a successful run at the current time.
func (b *Base) MarkRefreshed(item *library.Item) {
	b.SetLastRefreshed(item, b.now(), library.StatusSuccess)
}
