package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"media-library/internal/config"
	"media-library/internal/database"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/memory"
	"media-library/internal/metrics"
	"media-library/internal/providers"
)

const (
	// Minimum items to index before marking server as ready
	minItemsForReady = 100

	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond

	// Longer delay while memory usage is above the high water mark
	throttleDelay = 250 * time.Millisecond

	// Removals per scan that make compacting the database worthwhile
	vacuumThreshold = 1000
)

// ErrRescanQueued is the cancellation cause of a scan superseded by
// QueueFullRescan.
var ErrRescanQueued = errors.New("full rescan queued")

// Refresher runs the metadata providers for one item.
type Refresher interface {
	Refresh(ctx context.Context, item *library.Item, opts providers.RefreshOptions) (library.Outcome, error)
}

// Options configures an Indexer.
type Options struct {
	// Roots are the library root directories; each becomes a collection
	// folder.
	Roots []string
	// Libraries returns the configured multi-location libraries.
	Libraries func() []config.Library
	// IndexInterval is the period of the scheduled full rescan.
	IndexInterval time.Duration
	// RefreshWorkers bounds concurrent metadata refreshes.
	RefreshWorkers int
	// Monitor throttles database writes under memory pressure. May be nil.
	Monitor *memory.Monitor
}

// Indexer keeps the catalog in step with the library directories.
type Indexer struct {
	db        *database.Database
	resolver  library.Resolver
	refresher Refresher
	monitor   *memory.Monitor

	roots          []string
	libraries      func() []config.Library
	indexInterval  time.Duration
	refreshWorkers int

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup

	indexMu              sync.Mutex
	isIndexing           bool
	scanCancel           context.CancelCauseFunc
	rescanQueued         bool
	lastIndexTime        time.Time
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	// treeMu serializes reconciling a directory with the catalog so a
	// full scan and an external change never insert the same path twice.
	treeMu sync.Mutex

	// Progress tracking
	filesIndexed   atomic.Int64
	foldersIndexed atomic.Int64
	indexProgress  atomic.Value

	parallelConfig ParallelWalkerConfig

	// Callbacks
	onChildrenChanged func(library.ChildrenChanged)
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	FilesIndexed   int64     `json:"filesIndexed"`
	FoldersIndexed int64     `json:"foldersIndexed"`
	IsIndexing     bool      `json:"isIndexing"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// New creates a new Indexer instance.
func New(db *database.Database, resolver library.Resolver, refresher Refresher, opts Options) *Indexer {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.RefreshWorkers <= 0 {
		opts.RefreshWorkers = 1
	}
	if opts.Libraries == nil {
		opts.Libraries = func() []config.Library { return nil }
	}
	idx := &Indexer{
		db:             db,
		resolver:       resolver,
		refresher:      refresher,
		monitor:        opts.Monitor,
		roots:          append([]string(nil), opts.Roots...),
		libraries:      opts.Libraries,
		indexInterval:  opts.IndexInterval,
		refreshWorkers: opts.RefreshWorkers,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		parallelConfig: DefaultParallelWalkerConfig(),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnChildrenChanged sets a callback invoked whenever a scan adds or
// removes items below a folder.
func (idx *Indexer) SetOnChildrenChanged(callback func(library.ChildrenChanged)) {
	idx.onChildrenChanged = callback
}

// Start begins the indexing process.
func (idx *Indexer) Start() error {
	idx.wg.Add(2)

	// Start initial index in background
	go func() {
		defer idx.wg.Done()
		logging.Info("Starting initial index in background...")
		if err := idx.Index(); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()

	// Start periodic full re-index
	go func() {
		defer idx.wg.Done()
		idx.periodicIndex()
	}()

	return nil
}

// Stop cancels any running scan and waits for background work to end.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(idx.cancel)
	idx.wg.Wait()
}

// IsReady returns true if the server is ready to accept traffic.
func (idx *Indexer) IsReady() bool {
	if idx.filesIndexed.Load()+idx.foldersIndexed.Load() >= minItemsForReady {
		return true
	}

	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// getProgress safely retrieves the current IndexProgress.
func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	progress := idx.getProgress()

	status := HealthStatus{
		Ready:          idx.initialIndexComplete || (idx.filesIndexed.Load()+idx.foldersIndexed.Load() >= minItemsForReady),
		Indexing:       idx.isIndexing,
		StartTime:      idx.startTime,
		Uptime:         time.Since(idx.startTime).String(),
		LastIndexed:    idx.lastIndexTime,
		FilesIndexed:   idx.filesIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
	}

	if idx.isIndexing {
		status.IndexProgress = &progress
	}

	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}

	return status
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	FilesIndexed      int64          `json:"filesIndexed"`
	FoldersIndexed    int64          `json:"foldersIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// =============================================================================
// Full rescan
// =============================================================================

// Index performs a full scan of every library. If QueueFullRescan cancels
// it, the scan starts over.
func (idx *Indexer) Index() error {
	for {
		ctx, ok := idx.tryStartIndexing()
		if !ok {
			logging.Info("Index already in progress, skipping...")
			return nil
		}

		err := idx.index(ctx)
		if idx.finishIndexing() {
			logging.Info("Restarting index for queued rescan")
			continue
		}
		if errors.Is(err, ErrRescanQueued) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// QueueFullRescan cancels a running scan and starts a new one, or starts a
// scan if none is running.
func (idx *Indexer) QueueFullRescan() {
	idx.indexMu.Lock()
	if idx.isIndexing {
		idx.rescanQueued = true
		cancel := idx.scanCancel
		idx.indexMu.Unlock()

		logging.Info("Full rescan queued; cancelling the running scan")
		metrics.IndexerRescansQueued.Inc()
		cancel(ErrRescanQueued)
		return
	}
	idx.indexMu.Unlock()

	idx.TriggerIndex()
}

func (idx *Indexer) index(ctx context.Context) error {
	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting library scan...")
	idx.resetCounters(startTime)

	root, err := idx.db.Root(ctx)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("load root: %w", err)
	}

	collections, err := idx.syncCollections(ctx, root)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return err
	}

	// Providers decide per item whether anything is stale, so a full scan
	// offers every item.
	refresh := append([]*library.Item(nil), collections...)
	removed := 0
	for _, folder := range collections {
		for _, loc := range folder.Locations() {
			res, err := idx.syncTree(ctx, folder, loc)
			if err != nil {
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
				logging.Error("Error scanning %s: %v", loc, err)
				metrics.IndexerErrors.Inc()
				continue
			}
			refresh = append(refresh, res.items...)
			removed += len(res.removed)
		}
	}

	idx.refreshItems(ctx, refresh, providers.RefreshOptions{AllowSlow: true})
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	idx.finalizeIndex(ctx, startTime)

	if removed >= vacuumThreshold {
		logging.Info("Compacting database after removing %d items", removed)
		if err := idx.db.Vacuum(); err != nil {
			logging.Warn("Database vacuum failed: %v", err)
		}
	}

	if err := idx.db.SetLastScan(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record scan time: %v", err)
	}
	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(time.Since(startTime).Seconds())
	return nil
}

// collectionSpec is a collection folder the configuration asks for.
type collectionSpec struct {
	name      string
	path      string
	locations []string
}

func (idx *Indexer) desiredCollections() []collectionSpec {
	seen := make(map[string]bool)
	var specs []collectionSpec
	add := func(spec collectionSpec) {
		spec.path = filepath.Clean(spec.path)
		if seen[spec.path] {
			return
		}
		seen[spec.path] = true
		specs = append(specs, spec)
	}

	for _, lib := range idx.libraries() {
		if len(lib.Locations) == 0 {
			continue
		}
		add(collectionSpec{name: lib.Name, path: lib.Locations[0], locations: lib.Locations})
	}
	for _, dir := range idx.roots {
		add(collectionSpec{name: filepath.Base(dir), path: dir, locations: []string{dir}})
	}
	return specs
}

// syncCollections makes the root's children match the configured
// libraries and reports any difference to the ChildrenChanged callback.
func (idx *Indexer) syncCollections(ctx context.Context, root *library.Item) ([]*library.Item, error) {
	children, err := idx.db.Children(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("list top-level folders: %w", err)
	}
	existing := make(map[string]*library.Item, len(children))
	for _, child := range children {
		existing[filepath.Clean(child.Path)] = child
	}

	var collections, added, removed []*library.Item
	for _, spec := range idx.desiredCollections() {
		item, ok := existing[spec.path]
		delete(existing, spec.path)

		if !ok {
			now := time.Now()
			item = &library.Item{
				ID:           uuid.New(),
				ParentID:     root.ID,
				Name:         spec.name,
				Path:         spec.path,
				Type:         library.TypeCollectionFolder,
				DateCreated:  now,
				DateModified: now,
			}
			if len(spec.locations) > 1 || spec.locations[0] != spec.path {
				item.PhysicalLocations = append([]string(nil), spec.locations...)
			}
			if err := idx.db.Upsert(ctx, item); err != nil {
				return nil, fmt.Errorf("create library %s: %w", spec.name, err)
			}
			logging.Info("Added library %s (%s)", spec.name, strings.Join(spec.locations, ", "))
			added = append(added, item)
		} else if item.Name != spec.name || !sameLocations(item.Locations(), spec.locations) {
			oldLocations := item.Locations()
			item.Name = spec.name
			item.Type = library.TypeCollectionFolder
			item.PhysicalLocations = append([]string(nil), spec.locations...)
			if err := idx.db.Upsert(ctx, item); err != nil {
				return nil, fmt.Errorf("update library %s: %w", spec.name, err)
			}
			if !sameLocations(oldLocations, spec.locations) {
				// Watches follow locations, so report the folder as replaced.
				removed = append(removed, &library.Item{ID: item.ID, Type: item.Type, Path: item.Path, PhysicalLocations: oldLocations})
				added = append(added, item)
			}
		}
		collections = append(collections, item)
	}

	for _, stale := range existing {
		logging.Info("Removing library %s (%s)", stale.Name, stale.Path)
		if err := idx.db.Delete(ctx, stale.ID); err != nil {
			return nil, fmt.Errorf("remove library %s: %w", stale.Name, err)
		}
		removed = append(removed, stale)
	}

	idx.publish(root, added, removed)
	return collections, nil
}

func sameLocations(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if filepath.Clean(a[i]) != filepath.Clean(b[i]) {
			return false
		}
	}
	return true
}

func (idx *Indexer) publish(folder *library.Item, added, removed []*library.Item) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	metrics.IndexerItemsAdded.Add(float64(len(added)))
	metrics.IndexerItemsRemoved.Add(float64(len(removed)))
	if idx.onChildrenChanged != nil {
		idx.onChildrenChanged(library.ChildrenChanged{Folder: folder, Added: added, Removed: removed})
	}
}

// =============================================================================
// Tree reconciliation
// =============================================================================

type syncResult struct {
	// items holds every item found on disk, parents first.
	items   []*library.Item
	added   []*library.Item
	changed []*library.Item
	removed []*library.Item
}

// syncTree walks dir and reconciles everything below it with the catalog:
// new entries are classified and inserted under parent, known entries are
// updated in place and vanished entries are deleted.
func (idx *Indexer) syncTree(ctx context.Context, parent *library.Item, dir string) (syncResult, error) {
	var res syncResult
	dir = filepath.Clean(dir)

	walker := NewParallelWalker(ctx, dir, idx.parallelConfig)
	entries, err := walker.Walk()
	if err != nil {
		return res, fmt.Errorf("walk %s: %w", dir, err)
	}
	files, folders, _ := walker.Stats()
	idx.filesIndexed.Add(files)
	idx.foldersIndexed.Add(folders)
	idx.updateProgress()

	idx.treeMu.Lock()
	defer idx.treeMu.Unlock()

	existing, err := idx.db.ItemsUnder(ctx, dir)
	if err != nil {
		return res, fmt.Errorf("load items under %s: %w", dir, err)
	}
	known := make(map[string]*library.Item, len(existing))
	for _, item := range existing {
		known[filepath.Clean(item.Path)] = item
	}

	resolved := map[string]*library.Item{dir: parent}
	var dirty []*library.Item
	for _, e := range entries {
		owner := resolved[filepath.Dir(e.Path)]
		if owner == nil {
			continue
		}
		fresh := idx.resolver.Resolve(e.Path, e.Info, owner)
		if fresh == nil {
			continue
		}
		if old, ok := known[e.Path]; ok {
			delete(known, e.Path)
			if mergeScanned(old, fresh) {
				dirty = append(dirty, old)
				res.changed = append(res.changed, old)
			}
			resolved[e.Path] = old
			res.items = append(res.items, old)
			continue
		}
		resolved[e.Path] = fresh
		res.items = append(res.items, fresh)
		dirty = append(dirty, fresh)
		res.added = append(res.added, fresh)
	}

	if err := idx.writeItems(ctx, dirty); err != nil {
		return res, err
	}

	// Whatever is left vanished, unless the walk could not read its
	// directory.
	unreadable := walker.Unreadable()
	vanished := make([]*library.Item, 0, len(known))
	for _, item := range known {
		if !below(unreadable, item.Path) {
			vanished = append(vanished, item)
		}
	}
	sort.Slice(vanished, func(i, j int) bool { return len(vanished[i].Path) < len(vanished[j].Path) })
	for _, item := range vanished {
		if err := idx.db.Delete(ctx, item.ID); err != nil {
			return res, fmt.Errorf("delete %s: %w", item.Path, err)
		}
		logging.Debug("Removed %s from the library", item.Path)
		res.removed = append(res.removed, item)
	}

	idx.publish(parent, res.added, res.removed)
	return res, nil
}

// mergeScanned copies scan-derived fields from fresh onto old and reports
// whether anything changed. Provider-owned fields are left alone.
func mergeScanned(old, fresh *library.Item) bool {
	changed := false
	if old.Type != fresh.Type {
		old.Type = fresh.Type
		changed = true
	}
	if old.ParentID != fresh.ParentID {
		old.ParentID = fresh.ParentID
		changed = true
	}
	if old.Name != fresh.Name {
		old.Name = fresh.Name
		changed = true
	}
	if !fresh.IsFolder() && old.Size != fresh.Size {
		old.Size = fresh.Size
		changed = true
	}
	// The catalog keeps millisecond timestamps.
	if old.DateModified.UnixMilli() != fresh.DateModified.UnixMilli() {
		old.DateModified = fresh.DateModified
		changed = true
	}
	if old.ProductionYear == 0 && fresh.ProductionYear != 0 {
		old.ProductionYear = fresh.ProductionYear
		changed = true
	}
	return changed
}

func below(dirs []string, path string) bool {
	for _, dir := range dirs {
		if path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// writeItems upserts items in batched transactions, parents first.
func (idx *Indexer) writeItems(ctx context.Context, items []*library.Item) error {
	size := idx.parallelConfig.BatchSize
	if size <= 0 {
		size = len(items)
	}

	for start := 0; start < len(items); start += size {
		if err := idx.monitor.Wait(ctx); err != nil {
			return err
		}

		end := min(start+size, len(items))
		if err := idx.processBatch(items[start:end]); err != nil {
			return err
		}

		if end < len(items) {
			if idx.monitor.ShouldThrottle() {
				time.Sleep(throttleDelay)
			} else {
				time.Sleep(batchDelay)
			}
		}
		if end%5000 == 0 || end == len(items) {
			logging.Debug("Database write progress: %d/%d items", end, len(items))
		}
	}
	return nil
}

// processBatch writes a batch of items in a single transaction.
func (idx *Indexer) processBatch(items []*library.Item) error {
	tx, err := idx.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	for _, item := range items {
		if err := idx.db.UpsertItemTx(tx, item); err != nil {
			_ = idx.db.EndBatch(tx, err)
			return fmt.Errorf("upsert %s: %w", item.Path, err)
		}
	}

	if err := idx.db.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// =============================================================================
// Metadata refresh
// =============================================================================

// refreshItems refreshes items concurrently. Failures are logged per item.
func (idx *Indexer) refreshItems(ctx context.Context, items []*library.Item, opts providers.RefreshOptions) {
	if len(items) == 0 {
		return
	}
	logging.Info("Refreshing metadata for %d item(s)", len(items))

	var g errgroup.Group
	g.SetLimit(idx.refreshWorkers)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := idx.refreshAndSave(ctx, item, opts); err != nil && ctx.Err() == nil {
				logging.Warn("Metadata refresh failed for %s: %v", item.Path, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// refreshAndSave runs the providers for item and persists it when any of
// them changed it.
func (idx *Indexer) refreshAndSave(ctx context.Context, item *library.Item, opts providers.RefreshOptions) (library.Outcome, error) {
	outcome, err := idx.refresher.Refresh(ctx, item, opts)
	if err != nil {
		return outcome, err
	}
	if outcome.Changed {
		if err := idx.db.Upsert(ctx, item); err != nil {
			return outcome, fmt.Errorf("save %s: %w", item.Path, err)
		}
	}
	return outcome, nil
}

// RefreshItem refreshes one item on request.
func (idx *Indexer) RefreshItem(ctx context.Context, id uuid.UUID, force bool) (library.Outcome, error) {
	item, err := idx.db.GetByID(ctx, id)
	if err != nil {
		return library.Outcome{}, err
	}
	return idx.refreshAndSave(ctx, item, providers.RefreshOptions{Force: force, AllowSlow: true})
}

// =============================================================================
// External changes
// =============================================================================

// ChangedExternally handles an item whose files changed on disk. Folders
// have their subtree re-validated first; new and modified children are
// refreshed along with the item itself.
func (idx *Indexer) ChangedExternally(ctx context.Context, item *library.Item) error {
	if item.IsRoot() {
		idx.QueueFullRescan()
		return nil
	}

	if item.IsFolder() {
		var refresh []*library.Item
		for _, loc := range item.Locations() {
			res, err := idx.syncTree(ctx, item, loc)
			if err != nil {
				metrics.IndexerFolderValidations.WithLabelValues("error").Inc()
				return fmt.Errorf("validate children of %s: %w", item.Path, err)
			}
			refresh = append(refresh, res.added...)
			refresh = append(refresh, res.changed...)
		}
		metrics.IndexerFolderValidations.WithLabelValues("success").Inc()
		idx.refreshItems(ctx, refresh, providers.RefreshOptions{AllowSlow: true})
	}

	_, err := idx.refreshAndSave(ctx, item, providers.RefreshOptions{})
	return err
}

// =============================================================================
// Bookkeeping
// =============================================================================

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (idx *Indexer) tryStartIndexing() (context.Context, bool) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing || idx.ctx.Err() != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancelCause(idx.ctx)
	idx.isIndexing = true
	idx.scanCancel = cancel
	return ctx, true
}

// finishIndexing marks indexing as complete and reports whether a rescan
// was queued meanwhile.
func (idx *Indexer) finishIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.scanCancel != nil {
		idx.scanCancel(nil)
		idx.scanCancel = nil
	}
	idx.isIndexing = false
	idx.initialIndexComplete = true

	again := idx.rescanQueued && idx.ctx.Err() == nil
	idx.rescanQueued = false
	return again
}

// resetCounters resets the indexing counters.
func (idx *Indexer) resetCounters(startTime time.Time) {
	idx.filesIndexed.Store(0)
	idx.foldersIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

// updateProgress updates the indexing progress.
func (idx *Indexer) updateProgress() {
	progress := idx.getProgress()
	idx.indexProgress.Store(IndexProgress{
		FilesIndexed:   idx.filesIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
		IsIndexing:     progress.IsIndexing,
		StartedAt:      progress.StartedAt,
	})
}

// finalizeIndex completes the indexing process and updates stats.
func (idx *Indexer) finalizeIndex(ctx context.Context, startTime time.Time) {
	duration := time.Since(startTime)

	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.indexMu.Unlock()

	files, folders := idx.filesIndexed.Load(), idx.foldersIndexed.Load()
	idx.indexProgress.Store(IndexProgress{
		FilesIndexed:   files,
		FoldersIndexed: folders,
		IsIndexing:     false,
	})

	idx.db.UpdateDBMetrics()
	if stats, err := idx.db.CalculateStats(ctx); err == nil {
		idx.db.UpdateStats(stats)
	} else {
		logging.Warn("Failed to calculate library stats: %v", err)
	}

	logging.Info("Index complete: %d files, %d folders in %v", files, folders, duration)

}

func (idx *Indexer) periodicIndex() {
	if idx.indexInterval <= 0 {
		return
	}
	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if err := idx.Index(); err != nil {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// TriggerIndex starts a full scan in the background unless the indexer is
// stopping.
func (idx *Indexer) TriggerIndex() {
	if idx.ctx.Err() != nil {
		return
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		if err := idx.Index(); err != nil {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	}()
}
