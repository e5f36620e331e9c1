// Package watcher turns filesystem events under the library roots into
// catalog refreshes.
//
// A [Manager] keeps one recursive fsnotify watch per library location,
// collapsing locations that lie below another watched path. Raw events go
// to an [Aggregator], which drops events for paths in the [IgnoreSet] (files
// the server is writing itself) and default-named new folders, then waits
// for a quiet period of file_watcher_delay seconds. Every new event pushes
// the deadline out again. When the window closes while a pending file is
// still open for writing, the window is extended instead of draining.
//
// Drained paths are resolved to the deepest catalog item that still exists
// on disk. A change that resolves to the catalog root queues a full rescan;
// otherwise each item is refreshed concurrently through the [Dispatcher].
//
// Watches recover from errors on their own: a dropped network share is
// retried [NetworkRetryAttempts] times, other errors get one restart, and
// an event queue overflow restarts the watch and marks the root changed.
// A watch that cannot recover is removed from the set.
package watcher
