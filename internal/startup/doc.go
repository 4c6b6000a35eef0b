// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - MEDIA_DIR: Path to the monitored media directory (default: /media)
//   - CACHE_DIR: Path to cache directory for thumbnails (default: /cache)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - DEBOUNCE_WINDOW: Quiet window before flushing buffered filesystem
//     events, as Go duration (default: 5s)
//   - WATCH_RESTART_INTERVAL: Scheduled watch subscription replacement
//     interval (default: 4h)
//   - VERIFY_INTERVAL: Full index verification interval (default: 24h)
//   - HASH_BATCH_SIZE: Hash jobs dispatched to the pool per batch
//     (default: 256)
//   - THUMBNAIL_SIZE: Thumbnail bounding box in pixels (default: 300)
//   - HASH_WORKERS: Override for the content hashing pool size
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Database directory: Required, must be writable
//   - Cache directory: Optional, enables thumbnails if writable
//   - Media directory: Must exist (should be mounted), never created
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via
// [GetBuildInfo]: Version, Commit, BuildTime, GoVersion.
package startup
