package filesystem

import (
	"strings"
	"time"

	"media-index/internal/logging"
)

// Entry is one immediate child of a listed directory.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// List returns the immediate children of path. Hidden entries (dot-prefixed)
// are skipped, matching what the index stores. An entry whose metadata cannot
// be read (vanished between readdir and stat) is skipped for this listing;
// the next pass picks it up.
//
// The underlying readdir is retried on NFS stale file handles; a definitive
// NotFound or PermissionDenied is returned to the caller unchanged.
func List(path string, config RetryConfig) ([]Entry, error) {
	dirEntries, err := ReadDirWithRetry(path, config)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}

		info, err := de.Info()
		if err != nil {
			logging.Debug("Skipping %s in %s: %v", de.Name(), path, err)
			continue
		}

		entries = append(entries, Entry{
			Name:    de.Name(),
			IsDir:   de.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return entries, nil
}
