package thumbs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// DefaultSize is the bounding box for generated thumbnails in pixels.
const DefaultSize = 300

// Store is the content-addressed thumbnail cache. Thumbnails are keyed by
// the source file's content hash, so a renamed or moved file never needs a
// re-render and true duplicates share one thumbnail.
type Store struct {
	cacheDir string
	size     int

	mu        sync.Mutex
	rendering map[string]*sync.WaitGroup
}

// NewStore creates (if necessary) the on-disk cache rooted at cacheDir.
func NewStore(cacheDir string, size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache directory: %w", err)
	}
	return &Store{
		cacheDir:  cacheDir,
		size:      size,
		rendering: make(map[string]*sync.WaitGroup),
	}, nil
}

// cachePath shards cached thumbnails by the first two hash characters to
// keep directory sizes reasonable on large libraries.
func (s *Store) cachePath(contentHash string) string {
	return filepath.Join(s.cacheDir, contentHash[:2], fmt.Sprintf("%s_%d.jpg", contentHash, s.size))
}

// Exists reports whether a cached thumbnail is already on disk.
func (s *Store) Exists(contentHash string) bool {
	if len(contentHash) < 2 {
		return false
	}
	_, err := os.Stat(s.cachePath(contentHash))
	return err == nil
}

// Get returns the on-disk path of the thumbnail for contentHash, rendering
// it from srcPath on a cache miss. Concurrent requests for the same hash
// share a single render.
func (s *Store) Get(contentHash, srcPath string) (string, error) {
	if len(contentHash) < 2 {
		return "", fmt.Errorf("invalid content hash %q", contentHash)
	}

	dst := s.cachePath(contentHash)
	if _, err := os.Stat(dst); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		return dst, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	for {
		s.mu.Lock()
		if wg, inFlight := s.rendering[contentHash]; inFlight {
			s.mu.Unlock()
			wg.Wait()
			if _, err := os.Stat(dst); err == nil {
				return dst, nil
			}
			// The render we waited on failed; take a turn ourselves.
			continue
		}
		wg := &sync.WaitGroup{}
		wg.Add(1)
		s.rendering[contentHash] = wg
		s.mu.Unlock()

		err := render(srcPath, dst, s.size)

		s.mu.Lock()
		delete(s.rendering, contentHash)
		s.mu.Unlock()
		wg.Done()

		if err != nil {
			metrics.ThumbnailRenderErrors.Inc()
			logging.Warn("Thumbnail render failed for %s: %v", srcPath, err)
			return "", err
		}
		return dst, nil
	}
}
