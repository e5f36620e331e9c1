package tmdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/providers"
)

const (
	Name    = "TMDB"
	version = "1"
)

// Provider id keys written onto items.
const (
	IDKey     = "tmdb"
	TVDBIDKey = "tvdb"
	IMDbIDKey = "imdb"
)

// Searcher is the part of the TMDB API the provider uses.
type Searcher interface {
	SearchMovie(ctx context.Context, query string, year int) (*Response, error)
	SearchTV(ctx context.Context, query string, year int) (*Response, error)
	MovieDetails(ctx context.Context, movieID int64) (*Result, error)
	TVDetails(ctx context.Context, showID int64) (*Result, error)
	TVExternalIDs(ctx context.Context, showID int64) (*ExternalIDs, error)
}

var _ Searcher = (*Client)(nil)

// Provider identifies movies and series on TMDB and imports their overview,
// year and external ids.
type Provider struct {
	providers.Base
	client Searcher

	// searches collapses identical lookups from concurrent refreshes, e.g.
	// every episode of a new series resolving the same show at once.
	searches singleflight.Group
}

var _ providers.Provider = (*Provider)(nil)

// New creates the TMDB provider. refreshInterval bounds how long imported
// metadata stays fresh.
func New(client Searcher, refreshInterval func() time.Duration) *Provider {
	return &Provider{
		Base: providers.Base{
			ProviderName:           Name,
			ProviderVersion:        version,
			RefreshOnVersionChange: true,
			RefreshInterval:        refreshInterval,
		},
		client: client,
	}
}

func (p *Provider) Priority() providers.Priority   { return providers.PriorityThird }
func (p *Provider) RequiresInternet() bool         { return true }
func (p *Provider) IsSlow() bool                   { return false }
func (p *Provider) UpdateType() library.UpdateType { return library.UpdateMetadataDownload }

func (p *Provider) Supports(item *library.Item) bool {
	return item.Type == library.TypeMovie || item.Type == library.TypeSeries
}

func (p *Provider) NeedsRefresh(item *library.Item) (bool, error) {
	return p.Stale(item), nil
}

func (p *Provider) Fetch(ctx context.Context, item *library.Item, force bool) (bool, error) {
	id, _ := strconv.ParseInt(item.ProviderID(IDKey), 10, 64)
	if id <= 0 {
		match, err := p.lookup(ctx, item.Type, item.Name, item.ProductionYear)
		if err != nil {
			return false, err
		}
		if match == nil {
			logging.Info("No TMDB match for %s %q", item.Type, item.Name)
			p.MarkRefreshed(item)
			return true, nil
		}
		id = match.ID
		item.SetProviderID(IDKey, strconv.FormatInt(id, 10))
	}

	var details *Result
	var err error
	if item.Type == library.TypeMovie {
		details, err = p.client.MovieDetails(ctx, id)
	} else {
		details, err = p.client.TVDetails(ctx, id)
	}
	if err != nil {
		return false, err
	}

	if details.Overview != "" && (force || item.Overview == "") {
		item.Overview = details.Overview
	}
	if year := details.Year(); year > 0 && (force || item.ProductionYear == 0) {
		item.ProductionYear = year
	}

	if item.Type == library.TypeSeries {
		ext, err := p.client.TVExternalIDs(ctx, id)
		if err != nil {
			return false, err
		}
		if ext.TVDBID > 0 {
			item.SetProviderID(TVDBIDKey, strconv.FormatInt(ext.TVDBID, 10))
		}
		if ext.IMDbID != "" {
			item.SetProviderID(IMDbIDKey, ext.IMDbID)
		}
	}

	p.MarkRefreshed(item)
	return true, nil
}

// lookup returns the best search match, or nil when TMDB has none.
func (p *Provider) lookup(ctx context.Context, t library.ItemType, name string, year int) (*Result, error) {
	key := string(t) + "|" + strings.ToLower(strings.TrimSpace(name)) + "|" + strconv.Itoa(year)

	v, err, _ := p.searches.Do(key, func() (any, error) {
		var resp *Response
		var err error
		if t == library.TypeMovie {
			resp, err = p.client.SearchMovie(ctx, name, year)
		} else {
			resp, err = p.client.SearchTV(ctx, name, year)
		}
		if err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			return (*Result)(nil), nil
		}
		best := resp.Results[0]
		return &best, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}
