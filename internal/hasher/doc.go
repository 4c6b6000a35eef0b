// Package hasher computes the identity hashes the index is keyed on.
//
// Three hashes are produced:
//   - content hash: streamed hash of a file's bytes
//   - path hash: stable identity of a directory path
//   - identity hash: content + path, unique per file record
//
// All functions are deterministic and side-effect free. HashFile reports
// ErrHashUnavailable when a file disappears or becomes unreadable mid-read.
package hasher
