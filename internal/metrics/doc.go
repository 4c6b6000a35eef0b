// Package metrics defines the Prometheus metrics exported by the media
// index service.
//
// Metrics are registered with the default registry via promauto at package
// initialization and exposed on the dedicated metrics listener. Names are
// prefixed with "media_index_" and grouped by subsystem: HTTP, database,
// watcher, event buffer, reconciler, hasher, thumbnails, and filesystem
// retries.
package metrics
