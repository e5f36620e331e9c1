// Package metrics provides Prometheus instrumentation for the media library server.
//
// All metrics are package-level promauto variables prefixed with
// "media_library_" and are registered with the default registry on import.
//
// # Metric Categories
//
// ## Watcher and Change Aggregator
//
//   - WatcherWatchedPaths / WatcherWatchedDirectories: size of the live watch set
//   - WatcherEventsTotal: raw OS events by type
//   - WatcherEventsSuppressed: events dropped by the temporary ignore set or noise filter
//   - WatcherErrors / WatcherRestarts: watch failures and recovery attempts
//   - AggregatorPendingPaths: distinct paths waiting for the debounce window
//   - AggregatorTimerExtensions: rearms caused by a file still being written
//   - AggregatorFlushes / AggregatorDispatches: drained batches and what they triggered
//
// ## Refresh Orchestrator
//
//   - ProviderRunsTotal / ProviderRunDuration: provider executions by outcome
//   - ProviderRunsInFlight: size of the run registry
//   - ProviderSuperseded / ProviderPolicyCancellations: cancellations by cause
//   - ProviderSkips: gating decisions
//
// ## Indexer, Database and Filesystem
//
// Scan runs, query timings, transaction durations and stale-handle retries,
// following the same layout as the HTTP metrics.
//
// # Import cycles
//
// The filesystem package cannot import metrics because metrics already
// imports it for the Observer interface. NewFilesystemObserver is installed
// with filesystem.SetObserver at startup.
package metrics
