package fanart

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/providers"
	"media-library/internal/providers/tmdb"
)

const (
	Name    = "FanArt"
	version = "1"
)

// Source is the part of the fanart.tv API the provider uses.
type Source interface {
	Movie(ctx context.Context, tmdbID string) (*Artwork, error)
	Show(ctx context.Context, tvdbID string) (*Artwork, error)
	Download(ctx context.Context, imageURL string) (io.ReadCloser, string, error)
}

var _ Source = (*Client)(nil)

// ImageSaver writes downloaded artwork into the library. The provider
// manager implements it.
type ImageSaver interface {
	SaveImage(ctx context.Context, item *library.Item, data io.Reader, mimeType string, kind providers.ImageKind, index int) (string, error)
}

// Provider downloads posters and backdrops from fanart.tv for movies and
// series that lack them. It runs after TMDB, which supplies the ids.
type Provider struct {
	providers.Base
	source       Source
	saver        ImageSaver
	maxBackdrops func() int
}

var _ providers.Provider = (*Provider)(nil)

// New creates the fanart provider.
func New(source Source, saver ImageSaver, maxBackdrops func() int, refreshInterval func() time.Duration) *Provider {
	return &Provider{
		Base: providers.Base{
			ProviderName:           Name,
			ProviderVersion:        version,
			RefreshOnVersionChange: true,
			RefreshInterval:        refreshInterval,
		},
		source:       source,
		saver:        saver,
		maxBackdrops: maxBackdrops,
	}
}

func (p *Provider) Priority() providers.Priority   { return providers.PriorityFourth }
func (p *Provider) RequiresInternet() bool         { return true }
func (p *Provider) IsSlow() bool                   { return true }
func (p *Provider) UpdateType() library.UpdateType { return library.UpdateImageUpdate }

func (p *Provider) Supports(item *library.Item) bool {
	return item.Type == library.TypeMovie || item.Type == library.TypeSeries
}

// NeedsRefresh is false until an id is known and while the item already
// has all the artwork it can hold.
func (p *Provider) NeedsRefresh(item *library.Item) (bool, error) {
	if lookupID(item) == "" {
		return false, nil
	}
	if p.complete(item) {
		return false, nil
	}
	return p.Stale(item), nil
}

func (p *Provider) Fetch(ctx context.Context, item *library.Item, force bool) (bool, error) {
	id := lookupID(item)
	if id == "" {
		return false, nil
	}

	var art *Artwork
	var err error
	if item.Type == library.TypeMovie {
		art, err = p.source.Movie(ctx, id)
	} else {
		art, err = p.source.Show(ctx, id)
	}
	if errors.Is(err, ErrNotFound) {
		logging.Debug("fanart.tv has no artwork for %s %q", item.Type, item.Name)
		p.MarkRefreshed(item)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if (force || item.PrimaryImagePath == "") && len(art.Posters) > 0 {
		best := rank(art.Posters)[0]
		if err := p.download(ctx, item, best, providers.ImagePrimary, 0); err != nil {
			return false, err
		}
	}

	start := len(item.BackdropImagePaths)
	if force {
		start = 0
	}
	backgrounds := rank(art.Backgrounds)
	for index, next := start, 0; index < p.limit() && next < len(backgrounds); index, next = index+1, next+1 {
		if err := p.download(ctx, item, backgrounds[next], providers.ImageBackdrop, index); err != nil {
			return false, err
		}
	}

	p.MarkRefreshed(item)
	return true, nil
}

func (p *Provider) download(ctx context.Context, item *library.Item, img Image, kind providers.ImageKind, index int) error {
	body, mimeType, err := p.source.Download(ctx, img.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	if mediatypes.ExtensionForMimeType(mimeType) == "" {
		mimeType = mediatypes.GetMimeType(strings.ToLower(path.Ext(img.URL)))
	}
	saved, err := p.saver.SaveImage(ctx, item, body, mimeType, kind, index)
	if err != nil {
		return err
	}
	logging.Debug("Saved fanart.tv image %s", saved)
	return nil
}

func (p *Provider) limit() int {
	if p.maxBackdrops == nil {
		return 1
	}
	return p.maxBackdrops()
}

func (p *Provider) complete(item *library.Item) bool {
	return item.PrimaryImagePath != "" && len(item.BackdropImagePaths) >= p.limit()
}

// lookupID returns the id fanart.tv indexes the item by.
func lookupID(item *library.Item) string {
	if item.Type == library.TypeMovie {
		return item.ProviderID(tmdb.IDKey)
	}
	return item.ProviderID(tmdb.TVDBIDKey)
}

// rank orders images English first, then language-neutral, then by likes.
func rank(images []Image) []Image {
	ranked := make([]Image, 0, len(images))
	for _, img := range images {
		if img.URL != "" {
			ranked = append(ranked, img)
		}
	}
	langRank := func(lang string) int {
		switch lang {
		case "en":
			return 0
		case "", "00":
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		li, lj := langRank(ranked[i].Lang), langRank(ranked[j].Lang)
		if li != lj {
			return li < lj
		}
		return ranked[i].LikeCount() > ranked[j].LikeCount()
	})
	return ranked
}
