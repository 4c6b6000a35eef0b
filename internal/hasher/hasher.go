package hasher

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"media-index/internal/filesystem"
	"media-index/internal/metrics"
)

// ErrHashUnavailable indicates that a file's content could not be hashed,
// typically because it vanished or became unreadable mid-read. Callers must
// skip the affected entry for the current pass and retry later; the error is
// never grounds for deleting a record.
var ErrHashUnavailable = errors.New("content hash unavailable")

// readBufferSize is tuned for sequential reads of large media files.
const readBufferSize = 1 << 20

// HashFile computes the content hash of the file at path by streaming its
// bytes, so arbitrarily large files never need to fit in memory.
func HashFile(path string) (string, error) {
	start := time.Now()

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		metrics.HashErrorsTotal.Inc()
		return "", fmt.Errorf("%w: open %s: %v", ErrHashUnavailable, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, bufio.NewReaderSize(f, readBufferSize)); err != nil {
		metrics.HashErrorsTotal.Inc()
		return "", fmt.Errorf("%w: read %s: %v", ErrHashUnavailable, path, err)
	}

	metrics.HashDuration.Observe(time.Since(start).Seconds())
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashPath returns the stable identity hash for a directory path. The path is
// cleaned first so equivalent spellings hash identically.
func HashPath(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:])
}

// IdentityHash combines a file's content hash with its path, producing the
// unique record identity. Two files with identical bytes at different paths
// share a content hash but never an identity hash.
func IdentityHash(contentHash, path string) string {
	sum := sha256.Sum256([]byte(contentHash + "\x00" + filepath.Clean(path)))
	return hex.EncodeToString(sum[:])
}
