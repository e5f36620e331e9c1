// Package startup handles application initialization, bootstrap
// configuration loading, and startup/shutdown logging.
//
// # Configuration
//
// Bootstrap configuration is loaded from environment variables via
// [LoadConfig]. Runtime policy (watcher delay, provider settings) lives in
// the TOML file named by CONFIG_FILE and is handled by package config.
//
//   - LIBRARY_DIRS: OS path list of library roots (default: /media)
//   - CACHE_DIR: Path to cache directory for resized artwork (default: /cache)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - CONFIG_FILE: Server configuration file (default: DATABASE_DIR/server.toml)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Expose /metrics (default: true)
//   - INDEX_INTERVAL: Full rescan interval as Go duration (default: 6h)
//   - REFRESH_WORKERS: Concurrent metadata refreshes (default: auto)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - LOG_FILE: Optional rotating log file (see package logging)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Database directory: Required, must be writable
//   - Cache directory: Optional, enables the artwork cache if writable
//   - Library directories: Checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogProvidersInit]: Metadata provider order
//   - [LogIndexerInit]: Indexer configuration and intervals
//   - [LogWatcherInit]: Realtime monitor state
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
