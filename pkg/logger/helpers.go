package logger

import "time"

// LogFetched records an illustration accepted by the pipeline.
func LogFetched(illustID uint64, created string, bookmarks int) {
	GetLogger().DebugWithFields("fetched illust", map[string]interface{}{
		"illust_id": illustID,
		"created":   created,
		"bookmarks": bookmarks,
	})
}

// LogDownload records the outcome of a single asset download.
func LogDownload(illustID uint64, tier string, success bool, err error) {
	fields := map[string]interface{}{
		"illust_id": illustID,
		"tier":      tier,
	}
	if success {
		GetLogger().DebugWithFields("download completed", fields)
		return
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	GetLogger().ErrorWithFields("download failed", fields)
}

// LogRateLimit records an upstream rate limit encounter.
func LogRateLimit(endpoint string, delay time.Duration) {
	GetLogger().WarnWithFields("rate limited by upstream", map[string]interface{}{
		"endpoint": endpoint,
		"delay":    delay,
	})
}
