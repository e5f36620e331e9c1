package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-library/internal/logging"
	"media-library/internal/metrics"
	"media-library/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers (0 = auto based on CPU)
	NumWorkers int
	// BatchSize is the number of items written per database transaction
	BatchSize int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig returns sensible defaults based on available resources
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	// Default to 3 workers - safe for NFS and still performant for local filesystems.
	// SCAN_WORKERS overrides it.
	return ParallelWalkerConfig{
		NumWorkers:    workers.FromEnv(workers.ScanWorkersEnv, 3, 0),
		BatchSize:     500,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// Entry is one file or directory found by the walker.
type Entry struct {
	Path string
	Info fs.FileInfo
}

type walkJob struct {
	path string
	d    fs.DirEntry
}

type walkResult struct {
	entry Entry
	err   error
}

// ParallelWalker walks a directory tree, fetching file info on several
// workers. Stat calls dominate on network shares.
type ParallelWalker struct {
	config ParallelWalkerConfig
	root   string

	// Channels
	jobs    chan walkJob
	results chan walkResult

	// Synchronization
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	unreadableMu sync.Mutex
	unreadable   []string

	// Statistics
	filesProcessed   atomic.Int64
	foldersProcessed atomic.Int64
	errorsCount      atomic.Int64
}

// NewParallelWalker creates a walker for root. Cancelling ctx stops it.
func NewParallelWalker(ctx context.Context, root string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &ParallelWalker{
		config:  config,
		root:    root,
		jobs:    make(chan walkJob, config.ChannelBuffer),
		results: make(chan walkResult, config.ChannelBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Walk returns every entry below root (root excluded), parents before
// their children.
func (pw *ParallelWalker) Walk() ([]Entry, error) {
	defer pw.cancel()

	logging.Debug("Starting parallel walk of %s with %d workers", pw.root, pw.config.NumWorkers)
	startTime := time.Now()

	metrics.IndexerParallelWorkers.Set(float64(pw.config.NumWorkers))

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var entries []Entry
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range pw.results {
			if result.err != nil {
				pw.errorsCount.Add(1)
				logging.Debug("Error processing entry: %v", result.err)
				continue
			}
			entries = append(entries, result.entry)
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	collectorWg.Wait()

	logging.Debug("Parallel walk of %s complete: %d files, %d folders in %v (errors: %d)",
		pw.root,
		pw.filesProcessed.Load(),
		pw.foldersProcessed.Load(),
		time.Since(startTime),
		pw.errorsCount.Load())

	if err != nil {
		return nil, err
	}
	// A cancelled walk is incomplete; callers must not treat missing
	// entries as deleted.
	if pw.ctx.Err() != nil {
		return nil, context.Cause(pw.ctx)
	}

	// Workers finish out of order; a stable depth order lets callers
	// resolve parents first.
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := strings.Count(entries[i].Path, string(filepath.Separator)), strings.Count(entries[j].Path, string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// walkAndEnqueue walks the directory tree and sends jobs to workers
func (pw *ParallelWalker) walkAndEnqueue() error {
	err := filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			if path == pw.root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			pw.markUnreadable(path)
			return nil
		}

		if path == pw.root {
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case pw.jobs <- walkJob{path: path, d: d}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
	if err == fs.SkipAll {
		return nil
	}
	return err
}

// worker processes entries from the jobs channel
func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range pw.jobs {
		select {
		case <-pw.ctx.Done():
			continue
		default:
		}

		info, err := job.d.Info()
		result := walkResult{entry: Entry{Path: job.path, Info: info}, err: err}
		if err == nil {
			if info.IsDir() {
				pw.foldersProcessed.Add(1)
			} else {
				pw.filesProcessed.Add(1)
			}
		}

		select {
		case pw.results <- result:
		case <-pw.ctx.Done():
		}
	}

	logging.Debug("Worker %d finished", id)
}

func (pw *ParallelWalker) markUnreadable(path string) {
	pw.unreadableMu.Lock()
	pw.unreadable = append(pw.unreadable, path)
	pw.unreadableMu.Unlock()
}

// Unreadable returns paths the walk could not read. Their contents are
// missing from the result.
func (pw *ParallelWalker) Unreadable() []string {
	pw.unreadableMu.Lock()
	defer pw.unreadableMu.Unlock()
	return append([]string(nil), pw.unreadable...)
}

// Stop cancels the parallel walk
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, folders, errors int64) {
	return pw.filesProcessed.Load(), pw.foldersProcessed.Load(), pw.errorsCount.Load()
}
