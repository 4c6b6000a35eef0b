// Package handlers implements the HTTP API surface of the media index
// service: directory browsing, forced rescans, content-addressed thumbnails,
// index statistics, and health/version endpoints.
package handlers
