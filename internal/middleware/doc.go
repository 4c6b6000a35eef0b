// Package middleware provides HTTP middleware for the media index service.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded label cardinality
//   - Response compression (gzip) for JSON payloads
package middleware
