package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"media", "cache", "database", "unknown"}
	for _, op := range []string{"stat", "open", "rename"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, t := range []string{"image", "video"} {
		for _, s := range []string{"success", "error_not_found", "error_corrupt", "error_unsupported", "error_transient"} {
			ThumbnailGenerationsTotal.WithLabelValues(t, s)
		}
		ThumbnailGenerationDuration.WithLabelValues(t)
		for _, s := range []string{"success", "content_error", "failed"} {
			MetadataExtractionsTotal.WithLabelValues(t, s)
		}
	}

	for _, r := range []string{"hit", "generated", "not_found", "failed_permanent"} {
		ThumbnailRequestsTotal.WithLabelValues(r)
	}
	for _, to := range []string{"pending", "prioritized", "generated", "failed_permanent"} {
		ThumbnailTransitionsTotal.WithLabelValues(to)
	}
	for _, a := range []string{"orphan_removed", "temp_removed", "requeued"} {
		ThumbnailCleanupRemoved.WithLabelValues(a)
	}

	for _, c := range []string{"added", "updated", "removed", "skipped", "failed"} {
		SyncRecordsTotal.WithLabelValues(c)
	}
	for _, trigger := range []string{"startup", "periodic", "watch", "manual"} {
		SyncRunsTotal.WithLabelValues(trigger, "success")
		SyncRunsTotal.WithLabelValues(trigger, "error")
	}

	for _, op := range []string{"trash", "restore", "delete", "empty"} {
		for _, s := range []string{"ok", "conflict", "not_found", "error"} {
			TrashOperationsTotal.WithLabelValues(op, s)
		}
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
