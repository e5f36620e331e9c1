package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// Catalog is the part of the catalog store the watcher needs.
type Catalog interface {
	FindByPath(ctx context.Context, path string) (*library.Item, error)
	Parent(ctx context.Context, item *library.Item) (*library.Item, error)
	TopLevelFolders(ctx context.Context) ([]*library.Item, error)
	Exists(item *library.Item) bool
}

// Dispatcher receives the refresh work produced by a batch of changes.
type Dispatcher interface {
	// QueueFullRescan cancels any running full rescan and queues a new one.
	QueueFullRescan()
	// ChangedExternally refreshes one item whose files changed on disk.
	ChangedExternally(ctx context.Context, item *library.Item) error
}

// ResolveAffected maps changed paths to the deepest catalog folders that
// contain them and still exist, one per item. A changed file resolves to its
// folder so the folder's children are validated again.
func ResolveAffected(ctx context.Context, catalog Catalog, paths []string) []*library.Item {
	seen := make(map[uuid.UUID]bool)
	var items []*library.Item

	for _, path := range paths {
		item, err := affectedItem(ctx, catalog, path)
		if err != nil {
			logging.Warn("Cannot resolve changed path %s: %v", path, err)
			metrics.AggregatorUnresolvedPaths.Inc()
			continue
		}
		if item == nil {
			logging.Debug("No catalog item found for changed path %s", path)
			metrics.AggregatorUnresolvedPaths.Inc()
			continue
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items
}

// affectedItem walks up from the parent of path to the nearest known item,
// then up through parents until it finds one whose files are still on disk.
func affectedItem(ctx context.Context, catalog Catalog, path string) (*library.Item, error) {
	var item *library.Item
	for p := filepath.Dir(filepath.Clean(path)); ; {
		found, err := catalog.FindByPath(ctx, p)
		if err == nil {
			item = found
			break
		}
		if !errors.Is(err, library.ErrNotFound) {
			return nil, fmt.Errorf("find %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return nil, nil
		}
		p = parent
	}

	for !catalog.Exists(item) {
		parent, err := catalog.Parent(ctx, item)
		if errors.Is(err, library.ErrNotFound) || (err == nil && parent == nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", item.Path, err)
		}
		item = parent
	}
	return item, nil
}

// Dispatch hands resolved items to d. A change that reaches the catalog
// root turns into a single full rescan. Otherwise each item is refreshed
// concurrently, up to limit at a time, and one item's failure does not
// stop the others.
func Dispatch(ctx context.Context, d Dispatcher, items []*library.Item, limit int) {
	for _, item := range items {
		if item.IsRoot() {
			logging.Info("Change reached the library root, queueing a full rescan")
			metrics.AggregatorDispatches.WithLabelValues("full_rescan").Inc()
			d.QueueFullRescan()
			return
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		metrics.AggregatorDispatches.WithLabelValues("item").Inc()
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logging.Error("Panic refreshing %s after external change: %v", item.Path, r)
				}
			}()
			logging.Info("%s (%s) will be refreshed.", item.Name, item.Path)
			if err := d.ChangedExternally(gctx, item); err != nil {
				logging.Error("Error refreshing %s: %v", item.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
