package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-index/internal/hasher"
	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// flushTimeout bounds the store write when a flush fires.
const flushTimeout = 30 * time.Second

// Invalidator marks directories as requiring reconciliation. Implemented by
// the database's cache tracking store.
type Invalidator interface {
	InvalidateMany(ctx context.Context, dirty map[string]string) error
}

// Buffer accumulates raw filesystem change notifications and coalesces them
// into dirty-directory markers. Events are deduplicated by the owning
// directory, so a burst of writes into one folder collapses to a single
// marker and memory stays O(distinct directories touched).
//
// The quiet window is measured from the first event of the current window.
// A per-event sliding window would never fire under a sustained stream; the
// fixed window bounds worst-case latency while still absorbing bursts.
type Buffer struct {
	store  Invalidator
	root   string
	window time.Duration

	mu      sync.Mutex
	pending map[string]string // dir path hash -> root-relative dir path
	timer   *time.Timer
	closed  bool
}

// NewBuffer creates an event buffer for the tree rooted at root. Flushed
// dirty sets are written to store as invalidated cache tracking entries.
func NewBuffer(root string, window time.Duration, store Invalidator) *Buffer {
	return &Buffer{
		store:   store,
		root:    root,
		window:  window,
		pending: make(map[string]string),
	}
}

// Record registers a raw event for path. It never blocks beyond a short
// critical section and is safe to call concurrently from notification
// goroutines. Paths outside the monitored root are ignored.
func (b *Buffer) Record(path string) {
	rel, ok := b.owningDir(path)
	if !ok {
		return
	}
	b.mark(rel)
}

// RecordDir marks the directory at path itself dirty, rather than its
// parent. Used when a new directory appears so its first read reconciles.
func (b *Buffer) RecordDir(path string) {
	rel, ok := b.relativize(path)
	if !ok {
		return
	}
	b.mark(rel)
}

func (b *Buffer) mark(rel string) {
	dirHash := hasher.HashPath(rel)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	wasEmpty := len(b.pending) == 0
	b.pending[dirHash] = rel
	pendingLen := len(b.pending)
	if wasEmpty {
		b.timer = time.AfterFunc(b.window, b.flushToStore)
	}
	b.mu.Unlock()

	metrics.BufferPendingDirs.Set(float64(pendingLen))
}

// owningDir maps an event path to the root-relative path of its owning
// directory. An event on the root itself maps to the root.
func (b *Buffer) owningDir(path string) (string, bool) {
	if filepath.Clean(path) == filepath.Clean(b.root) {
		return "", true
	}
	return b.relativize(filepath.Dir(path))
}

func (b *Buffer) relativize(dir string) (string, bool) {
	rel, err := filepath.Rel(b.root, dir)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		rel = ""
	}
	return filepath.ToSlash(rel), true
}

// Flush atomically returns and clears the current dirty set. A Record call
// racing with Flush lands in the next window; it is never lost and never
// double-counted.
func (b *Buffer) Flush() map[string]string {
	b.mu.Lock()
	dirty := b.pending
	b.pending = make(map[string]string)
	b.timer = nil
	b.mu.Unlock()

	metrics.BufferPendingDirs.Set(0)
	return dirty
}

// flushToStore is the timer callback: it swaps out the dirty set and marks
// each directory's cache tracking entry invalidated.
func (b *Buffer) flushToStore() {
	dirty := b.Flush()
	if len(dirty) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.store.InvalidateMany(ctx, dirty); err != nil {
		// Re-queue so the invalidations are not lost; they retry with the
		// next window.
		logging.Error("Event buffer flush failed, re-queuing %d directories: %v", len(dirty), err)
		for _, rel := range dirty {
			b.mark(rel)
		}
		return
	}

	metrics.BufferFlushesTotal.Inc()
	metrics.BufferDirsFlushedTotal.Add(float64(len(dirty)))
	logging.Debug("Event buffer flushed %d dirty directories", len(dirty))
}

// Close stops the flush timer and synchronously flushes anything pending.
// Safe to call once during shutdown; Record calls after Close are dropped.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	timer := b.timer
	b.timer = nil
	b.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	dirty := b.Flush()
	if len(dirty) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.store.InvalidateMany(ctx, dirty); err != nil {
		logging.Error("Final event buffer flush failed, %d directories lost until next verify pass: %v", len(dirty), err)
		return
	}
	metrics.BufferFlushesTotal.Inc()
	metrics.BufferDirsFlushedTotal.Add(float64(len(dirty)))
}
