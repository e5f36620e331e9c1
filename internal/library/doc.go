// Package library defines the catalog item model shared by the watcher,
// the refresh orchestrator and the storage layer: items and their types,
// per-provider freshness records, update-type flags, and the Store and
// Resolver contracts the synchronization engine consumes.
package library
