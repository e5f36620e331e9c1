package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_transaction_duration_seconds",
			Help:    "Duration of database transactions by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"type"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_rows_affected",
			Help:    "Rows affected by write statements",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_runs_total",
			Help: "Total number of full library scans",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_indexer_last_run_timestamp",
			Help: "Timestamp of the last completed library scan",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_indexer_last_run_duration_seconds",
			Help: "Duration of the last library scan in seconds",
		},
	)

	IndexerItemsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_items_added_total",
			Help: "Total number of catalog items created by scans",
		},
	)

	IndexerItemsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_items_removed_total",
			Help: "Total number of catalog items removed because their path vanished",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_indexer_running",
			Help: "Whether a full scan is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_indexer_parallel_workers",
			Help: "Number of directory walker workers used by the last scan",
		},
	)

	IndexerRescansQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_rescans_queued_total",
			Help: "Full rescans requested while another scan was running",
		},
	)

	IndexerFolderValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_indexer_folder_validations_total",
			Help: "Per-folder child validations triggered by external changes",
		},
		[]string{"status"},
	)
)

// Watcher metrics
var (
	WatcherWatchedPaths = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_watcher_watched_paths",
			Help: "Number of watch roots currently active",
		},
	)

	WatcherWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_watcher_watched_directories",
			Help: "Number of directories registered with the OS watcher",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_watcher_events_total",
			Help: "Total number of raw filesystem events received",
		},
		[]string{"event_type"},
	)

	WatcherEventsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_watcher_events_suppressed_total",
			Help: "Raw events dropped before entering the pending set",
		},
		[]string{"reason"}, // "ignored", "noise"
	)

	WatcherErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
		[]string{"kind"}, // "network", "overflow", "other"
	)

	WatcherRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_watcher_restarts_total",
			Help: "Watch restart attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "disposed"
	)
)

// Change aggregator metrics
var (
	AggregatorPendingPaths = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_aggregator_pending_paths",
			Help: "Distinct changed paths waiting for the debounce window",
		},
	)

	AggregatorTimerExtensions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_aggregator_timer_extensions_total",
			Help: "Times the debounce timer was rearmed because a pending path was locked",
		},
	)

	AggregatorFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_aggregator_flushes_total",
			Help: "Times the pending set was drained for resolution",
		},
	)

	AggregatorDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_aggregator_dispatches_total",
			Help: "Refresh dispatches produced by drained changes",
		},
		[]string{"target"}, // "item", "full_rescan"
	)

	AggregatorUnresolvedPaths = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_aggregator_unresolved_paths_total",
			Help: "Drained paths with no known catalog ancestor",
		},
	)
)

// Refresh orchestrator metrics
var (
	ProviderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_provider_runs_total",
			Help: "Provider executions by outcome",
		},
		[]string{"provider", "outcome"}, // "changed", "unchanged", "failed", "cancelled"
	)

	ProviderRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_provider_run_duration_seconds",
			Help:    "Provider execution duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	ProviderRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_provider_runs_in_flight",
			Help: "Registered (item, provider) runs currently executing",
		},
	)

	ProviderSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_provider_superseded_total",
			Help: "Runs cancelled because a newer run for the same item started",
		},
		[]string{"provider"},
	)

	ProviderPolicyCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_provider_policy_cancellations_total",
			Help: "Runs cancelled by a configuration change",
		},
		[]string{"provider"},
	)

	ProviderSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_provider_skips_total",
			Help: "Providers skipped during a refresh by reason",
		},
		[]string{"provider", "reason"},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemLockChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_lock_checks_total",
			Help: "In-progress write checks by result",
		},
		[]string{"result"}, // "locked", "free"
	)
)

// Library content metrics
var (
	LibraryItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_items_total",
			Help: "Catalog items by type",
		},
		[]string{"type"},
	)

	LibraryFoldersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_folders_total",
			Help: "Catalog items that are folders",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_memory_paused",
			Help: "Whether scan and refresh work is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_memory_gc_pauses_total",
			Help: "Times work was paused and a GC forced because memory was critical",
		},
	)
)

// Configuration metrics
var (
	ConfigReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_config_reloads_total",
			Help: "Server configuration reloads by status",
		},
		[]string{"status"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
