// Package main provides the entry point for the media library server.
//
// The server keeps a catalog of one or more library directories current
// and enriches it with metadata from local files and internet providers.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads environment variables and validates directories
//  3. Instance Lock: Refuses to start when another server owns DATABASE_DIR
//  4. Database Initialization: Opens the SQLite catalog
//  5. Server Policy: Loads the TOML configuration and watches it for edits
//  6. Component Initialization:
//     - Memory Monitor: Throttles scans and refreshes under memory pressure
//     - Provider Manager: Local media info and artwork, then TMDB and
//     fanart.tv when their API keys are configured
//     - Indexer: Walks the libraries and reconciles the catalog
//     - File Watcher: Watches library locations and feeds debounced
//     changes back to the indexer
//     - Metrics Collector: Gathers Prometheus metrics
//  7. HTTP Server Setup: Configures routes, middleware, and starts server
//  8. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Background Services
//
//   - Indexer: Initial scan, then a full rescan every INDEX_INTERVAL
//   - File Watcher: Realtime change detection, toggled by
//     enable_realtime_monitor
//   - Configuration Watcher: Reloads server.toml on change
//   - Metrics Collector: Updates catalog gauges every minute
//
// # HTTP API
//
//	GET  /health, /healthz, /livez, /readyz, /version
//	GET  /metrics                      (when METRICS_ENABLED)
//	POST /api/library/refresh          queue a full rescan
//	POST /api/items/{id}/refresh       refresh one item (?force=true)
//	GET  /api/providers/running        in-flight provider runs
//	GET  /api/watcher/paths            watched paths and their state
//	POST /api/config/reload            re-read server.toml
//
// Provider API keys are read once at startup; changing them requires a
// restart.
package main
