// Package localimages finds artwork stored beside library items and keeps a
// resized copy of each primary image in the cache directory.
package localimages

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP artwork support

	"media-library/internal/filesystem"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/providers"
)

const (
	Name    = "LocalImages"
	version = "1"

	thumbSize    = 400
	thumbQuality = 80
)

var (
	primaryNames  = []string{"folder", "poster", "cover", "default"}
	backdropNames = []string{"backdrop", "fanart", "background", "art"}
)

// Provider discovers local artwork.
type Provider struct {
	providers.Base
	cacheDir     string
	maxBackdrops func() int
}

var _ providers.Provider = (*Provider)(nil)

// New creates the provider. Thumbnails are written below cacheDir; an empty
// cacheDir disables them. maxBackdrops is read on every fetch.
func New(cacheDir string, maxBackdrops func() int) *Provider {
	p := &Provider{cacheDir: cacheDir, maxBackdrops: maxBackdrops}
	p.Base = providers.Base{
		ProviderName:           Name,
		ProviderVersion:        version,
		RefreshOnVersionChange: true,
		FileSystemStamp:        p.stamp,
	}
	return p
}

func (p *Provider) Priority() providers.Priority   { return providers.PrioritySecond }
func (p *Provider) RequiresInternet() bool         { return false }
func (p *Provider) IsSlow() bool                   { return false }
func (p *Provider) UpdateType() library.UpdateType { return library.UpdateImageUpdate }

func (p *Provider) Supports(item *library.Item) bool {
	if item.Path == "" || item.IsRoot() {
		return false
	}
	switch item.Type {
	case library.TypeAudio, library.TypePhoto:
		return false
	}
	return true
}

func (p *Provider) NeedsRefresh(item *library.Item) (bool, error) {
	return p.Stale(item), nil
}

func (p *Provider) Fetch(ctx context.Context, item *library.Item, force bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := p.discover(item)

	item.PrimaryImagePath = found.primary
	item.BackdropImagePaths = found.backdrops

	if found.primary != "" && p.cacheDir != "" {
		if err := p.writeThumbnail(ctx, item, found.primary, force); err != nil {
			// The artwork itself was found; a cache miss only costs a resize later.
			logging.Warn("Failed to cache thumbnail for %s: %v", item.Path, err)
		}
	}

	p.MarkRefreshed(item)
	return true, nil
}

// ThumbnailPath returns where the cached thumbnail for item lives.
func (p *Provider) ThumbnailPath(item *library.Item) string {
	id := item.ID.String()
	return filepath.Join(p.cacheDir, id[:2], id+".jpg")
}

type artwork struct {
	primary   string
	backdrops []string
	stamp     string
}

// discover lists artwork for item. Folders look inside themselves; files
// look for <name>.<ext> or <name>-thumb.<ext> beside them.
func (p *Provider) discover(item *library.Item) artwork {
	dir := item.Path
	var primaryBases []string
	if item.IsFolder() {
		primaryBases = primaryNames
	} else {
		dir = filepath.Dir(item.Path)
		stem := strings.TrimSuffix(filepath.Base(item.Path), filepath.Ext(item.Path))
		primaryBases = []string{strings.ToLower(stem), strings.ToLower(stem) + "-thumb"}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Debug("Cannot list artwork in %s: %v", dir, err)
		return artwork{}
	}

	images := make(map[string]string) // lowercase base name -> path
	var stamp strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if mediatypes.GetFileType(ext) != mediatypes.FileTypeImage {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		if _, dup := images[base]; dup {
			continue
		}
		images[base] = filepath.Join(dir, name)
		if info, err := e.Info(); err == nil {
			stamp.WriteString(name)
			stamp.WriteByte(':')
			stamp.WriteString(strconv.FormatInt(info.ModTime().UnixNano(), 10))
			stamp.WriteByte(';')
		}
	}

	var found artwork
	found.stamp = stamp.String()
	for _, base := range primaryBases {
		if path, ok := images[base]; ok {
			found.primary = path
			break
		}
	}
	if item.IsFolder() {
		found.backdrops = backdrops(images, p.limit())
	}
	return found
}

// backdrops returns backdrop, backdrop1, backdrop2 ... for every backdrop
// base name, up to limit.
func backdrops(images map[string]string, limit int) []string {
	var out []string
	for _, base := range backdropNames {
		if path, ok := images[base]; ok {
			out = append(out, path)
		}
		var numbered []int
		for name := range images {
			if n, err := strconv.Atoi(strings.TrimPrefix(name, base)); err == nil && strings.HasPrefix(name, base) && n > 0 {
				numbered = append(numbered, n)
			}
		}
		sort.Ints(numbered)
		for _, n := range numbered {
			out = append(out, images[base+strconv.Itoa(n)])
		}
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (p *Provider) limit() int {
	if p.maxBackdrops == nil {
		return -1
	}
	return p.maxBackdrops()
}

func (p *Provider) writeThumbnail(ctx context.Context, item *library.Item, src string, force bool) error {
	dst := p.ThumbnailPath(item)
	if !force {
		if dstInfo, err := os.Stat(dst); err == nil {
			if srcInfo, err := os.Stat(src); err == nil && !srcInfo.ModTime().After(dstInfo.ModTime()) {
				return nil
			}
		}
	}

	f, err := filesystem.OpenWithRetry(src, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	f.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	thumb := imaging.Fit(img, thumbSize, thumbSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := filesystem.WriteFileAtomic(dst, &buf, 0o644); err != nil {
		return err
	}
	logging.Debug("Thumbnail cached: %s", dst)
	return nil
}

func (p *Provider) stamp(item *library.Item) string {
	return p.discover(item).stamp
}
