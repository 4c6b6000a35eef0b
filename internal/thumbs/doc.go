// Package thumbs renders and caches image thumbnails keyed by content hash.
// Because the key is the file's content rather than its path, renames and
// moves never invalidate a cached thumbnail and duplicate files share one.
package thumbs
