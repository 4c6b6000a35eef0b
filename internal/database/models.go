package database

import (
	"strings"
	"time"

	"media-index/internal/mediatypes"
)

// DirectoryRecord is one row per indexed folder. Path is relative to the
// monitored root with "/" separators; the root itself is the record with
// Path == "". PathHash is the stable external identity of the directory.
type DirectoryRecord struct {
	ID           int64     `json:"id"`
	Path         string    `json:"path"`
	PathHash     string    `json:"pathHash"`
	ParentPath   string    `json:"parentPath"`
	SortKey      string    `json:"-"`
	LastScanTime time.Time `json:"lastScanTime"`
	ModTime      time.Time `json:"modTime"`
	Deleted      bool      `json:"-"`
	ThumbFileID  int64     `json:"-"` // 0 = no representative thumbnail
	UpdatedAt    time.Time `json:"-"`
}

// IsRoot reports whether the record is the monitored root directory.
func (d *DirectoryRecord) IsRoot() bool {
	return d.Path == ""
}

// FileRecord is one row per indexed file. IdentityHash (content + path) is
// unique; ContentHash may repeat across true duplicates. Deleted records are
// tombstones excluded from listings but retained for history and thumbnail
// reuse.
type FileRecord struct {
	ID           int64               `json:"id"`
	DirID        int64               `json:"-"`
	Name         string              `json:"name"`
	SortKey      string              `json:"-"`
	Type         mediatypes.FileType `json:"type"`
	MimeType     string              `json:"mimeType,omitempty"`
	ContentHash  string              `json:"contentHash,omitempty"`
	IdentityHash string              `json:"-"`
	Size         int64               `json:"size"`
	ModTime      time.Time           `json:"modTime"`
	Deleted      bool                `json:"-"`
	UpdatedAt    time.Time           `json:"-"`
}

// CacheEntry is the per-directory cache tracking row, 1:1 with a
// DirectoryRecord. Invalidated means the directory's child records must not
// be trusted until a reconciliation pass completes.
type CacheEntry struct {
	DirHash      string    `json:"dirHash"`
	Path         string    `json:"path"`
	LastScanTime time.Time `json:"lastScanTime"`
	Invalidated  bool      `json:"invalidated"`
}

// IndexStats is a cached summary of index contents.
type IndexStats struct {
	TotalFiles       int       `json:"totalFiles"`
	TotalDirectories int       `json:"totalDirectories"`
	TotalImages      int       `json:"totalImages"`
	TotalVideos      int       `json:"totalVideos"`
	DeletedFiles     int       `json:"deletedFiles"`
	InvalidatedDirs  int       `json:"invalidatedDirs"`
	LastVerified     time.Time `json:"lastVerified,omitempty"`
	VerifyDuration   string    `json:"verifyDuration,omitempty"`
}

// numberPadWidth is the zero-pad width for digit runs in sort keys. Twelve
// digits covers any realistic numbering in file names.
const numberPadWidth = 12

// NaturalSortKey converts a name into a form that sorts naturally under
// plain byte comparison: case is folded and digit runs are zero-padded, so
// "img2" orders before "img10".
func NaturalSortKey(s string) string {
	lower := strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(lower) + numberPadWidth)

	i := 0
	for i < len(lower) {
		c := lower[i]
		if c >= '0' && c <= '9' {
			j := i
			for j < len(lower) && lower[j] >= '0' && lower[j] <= '9' {
				j++
			}
			run := strings.TrimLeft(lower[i:j], "0")
			if run == "" {
				run = "0"
			}
			if len(run) < numberPadWidth {
				b.WriteString(strings.Repeat("0", numberPadWidth-len(run)))
			}
			b.WriteString(run)
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}

	return b.String()
}
