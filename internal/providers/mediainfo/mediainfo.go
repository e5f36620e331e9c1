// Package mediainfo derives technical metadata for media files from the
// filesystem: size, container and modification time.
package mediainfo

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"media-library/internal/filesystem"
	"media-library/internal/library"
	"media-library/internal/providers"
)

const (
	Name    = "MediaInfo"
	version = "2"
)

// Provider stamps media files with what the filesystem knows about them.
type Provider struct {
	providers.Base
	retry filesystem.RetryConfig
}

var _ providers.Provider = (*Provider)(nil)

// New creates the media info provider.
func New() *Provider {
	p := &Provider{retry: filesystem.DefaultRetryConfig()}
	p.Base = providers.Base{
		ProviderName:           Name,
		ProviderVersion:        version,
		RefreshOnVersionChange: true,
		FileSystemStamp:        p.stamp,
	}
	return p
}

func (p *Provider) Priority() providers.Priority   { return providers.PriorityFirst }
func (p *Provider) RequiresInternet() bool         { return false }
func (p *Provider) IsSlow() bool                   { return false }
func (p *Provider) UpdateType() library.UpdateType { return library.UpdateMetadataImport }

// Supports reports true for items backed by a single media file.
func (p *Provider) Supports(item *library.Item) bool {
	switch item.Type {
	case library.TypeEpisode, library.TypeVideo, library.TypeAudio, library.TypePhoto:
		return item.Path != ""
	}
	return false
}

func (p *Provider) NeedsRefresh(item *library.Item) (bool, error) {
	return p.Stale(item), nil
}

// Fetch reads the file's attributes onto the item. A missing file is an
// error so the failure is stamped and retried on the next refresh.
func (p *Provider) Fetch(ctx context.Context, item *library.Item, _ bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := filesystem.StatWithRetry(item.Path, p.retry)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", item.Path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", item.Path)
	}

	item.Size = info.Size()
	item.Container = strings.TrimPrefix(strings.ToLower(filepath.Ext(item.Path)), ".")
	item.DateModified = info.ModTime().UTC()
	if item.DateCreated.IsZero() {
		item.DateCreated = item.DateModified
	}

	p.MarkRefreshed(item)
	return true, nil
}

// stamp is size and modification time; either changing means the file was
// replaced.
func (p *Provider) stamp(item *library.Item) string {
	info, err := filesystem.StatWithRetry(item.Path, p.retry)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(info.Size(), 10) + ":" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}
