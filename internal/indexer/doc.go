// Package indexer keeps the catalog in step with the library directories.
//
// A full scan reconciles the root's collection folders with the configured
// libraries, walks every location with a [ParallelWalker] and then:
//   - classifies new entries with a library.Resolver and inserts them in
//     batched transactions, parents first
//   - updates entries whose scan-derived fields changed, keeping their ids
//   - deletes items that vanished, except below directories the walk could
//     not read
//   - offers every item to the metadata providers
//
// Scans run in several modes:
//   - Initial index: full scan on startup
//   - Periodic index: INDEX_INTERVAL based rescans
//   - Queued rescan: [Indexer.QueueFullRescan] cancels a running scan and
//     starts over
//   - External change: [Indexer.ChangedExternally] re-validates one folder
//     on behalf of the file watcher
//
// Additions and removals under a folder are reported through the callback
// set with [Indexer.SetOnChildrenChanged] so the watcher can follow library
// locations.
package indexer
