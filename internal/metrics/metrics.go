package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_transaction_duration_seconds",
			Help:    "Database batch transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Watch supervisor metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_watcher_events_total",
			Help: "Total number of raw filesystem events received",
		},
		[]string{"op"},
	)

	WatcherErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_watcher_errors_total",
			Help: "Total number of errors reported by the filesystem watcher",
		},
	)

	WatcherRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_watcher_restarts_total",
			Help: "Total number of watch subscription restarts",
		},
	)

	WatcherActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_watcher_active",
			Help: "Whether the watch subscription is active (1 = active, 0 = down)",
		},
	)

	WatcherPathsWatched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_watcher_paths_watched",
			Help: "Number of directories currently registered with the watch subscription",
		},
	)
)

// Event buffer metrics
var (
	BufferPendingDirs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_event_buffer_pending_dirs",
			Help: "Number of distinct dirty directories pending in the event buffer",
		},
	)

	BufferFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_event_buffer_flushes_total",
			Help: "Total number of event buffer flushes",
		},
	)

	BufferDirsFlushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_event_buffer_dirs_flushed_total",
			Help: "Total number of dirty-directory markers flushed to the cache tracking store",
		},
	)
)

// Reconciler metrics
var (
	ReconcileRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_reconcile_runs_total",
			Help: "Total number of per-directory reconciliation passes",
		},
	)

	ReconcileErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_reconcile_errors_total",
			Help: "Total number of failed reconciliation passes",
		},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_index_reconcile_duration_seconds",
			Help:    "Duration of a single directory reconciliation pass",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
		},
	)

	ReconcileInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_reconcile_in_progress",
			Help: "Number of reconciliation passes currently running",
		},
	)

	ReconcileRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_reconcile_records_total",
			Help: "Record mutations applied by the reconciler",
		},
		[]string{"action"}, // "created", "updated", "deleted", "revived"
	)

	VerifyRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_verify_runs_total",
			Help: "Total number of full-verification passes",
		},
	)

	VerifyLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_verify_last_run_timestamp",
			Help: "Timestamp of the last completed full-verification pass",
		},
	)
)

// Content hasher metrics
var (
	HashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_index_hash_duration_seconds",
			Help:    "Duration of content hash computation per file",
			Buckets: []float64{0.001, 0.01, 0.05, 0.25, 1, 5, 30},
		},
	)

	HashErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_hash_errors_total",
			Help: "Total number of content hash failures (file vanished or unreadable mid-read)",
		},
	)
)

// Thumbnail store metrics
var (
	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)

	ThumbnailRenderErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_thumbnail_render_errors_total",
			Help: "Total number of thumbnail render failures",
		},
	)
)

// Filesystem retry metrics for NFS resilience
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_retry_attempts_total",
			Help: "Total number of filesystem operation retry attempts",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_stale_errors_total",
			Help: "Total number of NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_fs_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)
