package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(providerNames []string) {
	volumes := []string{"library", "cache", "database", "unknown"}
	for _, op := range []string{"stat", "open"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, result := range []string{"locked", "free"} {
		FilesystemLockChecks.WithLabelValues(result)
	}

	for _, kind := range []string{"network", "overflow", "other"} {
		WatcherErrors.WithLabelValues(kind)
	}
	for _, outcome := range []string{"success", "failure", "disposed"} {
		WatcherRestarts.WithLabelValues(outcome)
	}
	for _, reason := range []string{"ignored", "noise"} {
		WatcherEventsSuppressed.WithLabelValues(reason)
	}
	for _, ev := range []string{"create", "write", "remove", "rename", "other"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}

	for _, target := range []string{"item", "full_rescan"} {
		AggregatorDispatches.WithLabelValues(target)
	}

	for _, name := range providerNames {
		for _, outcome := range []string{"changed", "unchanged", "failed", "cancelled"} {
			ProviderRunsTotal.WithLabelValues(name, outcome)
		}
		ProviderRunDuration.WithLabelValues(name)
		ProviderSuperseded.WithLabelValues(name)
		ProviderPolicyCancellations.WithLabelValues(name)
	}

	for _, op := range []string{"initialize_schema", "get_root", "find_by_path", "get_by_id",
		"children", "top_level_folders", "items_under", "upsert_item", "delete_item", "save_provider_info",
		"calculate_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}

	for _, status := range []string{"success", "error"} {
		ConfigReloadsTotal.WithLabelValues(status)
		IndexerFolderValidations.WithLabelValues(status)
	}
}
