package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-index/internal/hasher"
)

type recordingStore struct {
	mu      sync.Mutex
	flushes []map[string]string
	fail    bool
}

func (s *recordingStore) InvalidateMany(_ context.Context, dirty map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store unavailable")
	}
	copied := make(map[string]string, len(dirty))
	for k, v := range dirty {
		copied[k] = v
	}
	s.flushes = append(s.flushes, copied)
	return nil
}

func (s *recordingStore) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flushes)
}

func (s *recordingStore) lastFlush() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flushes) == 0 {
		return nil
	}
	return s.flushes[len(s.flushes)-1]
}

func TestRecordCoalescesByDirectory(t *testing.T) {
	root := t.TempDir()
	b := NewBuffer(root, time.Hour, &recordingStore{})

	b.Record(filepath.Join(root, "photos", "a.jpg"))
	b.Record(filepath.Join(root, "photos", "b.jpg"))
	b.Record(filepath.Join(root, "photos", "c.jpg"))

	dirty := b.Flush()
	if len(dirty) != 1 {
		t.Fatalf("got %d dirty directories, want 1", len(dirty))
	}
	if rel, ok := dirty[hasher.HashPath("photos")]; !ok || rel != "photos" {
		t.Errorf("dirty set = %v, want photos keyed by its path hash", dirty)
	}
}

func TestRecordRootEvent(t *testing.T) {
	root := t.TempDir()
	b := NewBuffer(root, time.Hour, &recordingStore{})

	b.Record(filepath.Join(root, "new.jpg"))

	dirty := b.Flush()
	if rel, ok := dirty[hasher.HashPath("")]; !ok || rel != "" {
		t.Errorf("root-level event should dirty the root: %v", dirty)
	}
}

func TestRecordIgnoresOutsideRoot(t *testing.T) {
	root := t.TempDir()
	b := NewBuffer(root, time.Hour, &recordingStore{})

	b.Record(filepath.Join(t.TempDir(), "elsewhere", "x.jpg"))

	if dirty := b.Flush(); len(dirty) != 0 {
		t.Errorf("events outside the root must be dropped: %v", dirty)
	}
}

func TestRecordDirMarksDirectoryItself(t *testing.T) {
	root := t.TempDir()
	b := NewBuffer(root, time.Hour, &recordingStore{})

	b.RecordDir(filepath.Join(root, "new", "album"))

	dirty := b.Flush()
	if rel, ok := dirty[hasher.HashPath("new/album")]; !ok || rel != "new/album" {
		t.Errorf("dirty set = %v, want new/album itself", dirty)
	}
}

func TestFixedWindowFlushesToStore(t *testing.T) {
	root := t.TempDir()
	store := &recordingStore{}
	b := NewBuffer(root, 50*time.Millisecond, store)
	defer b.Close()

	b.Record(filepath.Join(root, "photos", "a.jpg"))

	deadline := time.Now().Add(2 * time.Second)
	for store.flushCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if store.flushCount() != 1 {
		t.Fatalf("flush count = %d, want 1", store.flushCount())
	}
	if _, ok := store.lastFlush()[hasher.HashPath("photos")]; !ok {
		t.Errorf("flushed set missing photos: %v", store.lastFlush())
	}
}

func TestWindowMeasuredFromFirstEvent(t *testing.T) {
	root := t.TempDir()
	store := &recordingStore{}
	b := NewBuffer(root, 150*time.Millisecond, store)
	defer b.Close()

	// A sustained event stream must not postpone the flush indefinitely.
	stop := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(stop) {
		b.Record(filepath.Join(root, "busy", "f.jpg"))
		time.Sleep(20 * time.Millisecond)
	}

	if store.flushCount() == 0 {
		t.Fatal("no flush during a sustained event stream; window must be fixed, not sliding")
	}
}

func TestFlushIsAtomic(t *testing.T) {
	root := t.TempDir()
	b := NewBuffer(root, time.Hour, &recordingStore{})

	b.Record(filepath.Join(root, "one", "a.jpg"))
	first := b.Flush()
	if len(first) != 1 {
		t.Fatalf("first flush = %v", first)
	}

	// Nothing pending now; a racing Record lands in the next window.
	if second := b.Flush(); len(second) != 0 {
		t.Errorf("second flush should be empty, got %v", second)
	}

	b.Record(filepath.Join(root, "two", "b.jpg"))
	third := b.Flush()
	if _, ok := third[hasher.HashPath("two")]; !ok || len(third) != 1 {
		t.Errorf("third flush = %v, want just two", third)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	root := t.TempDir()
	store := &recordingStore{}
	b := NewBuffer(root, time.Hour, store)

	b.Record(filepath.Join(root, "photos", "a.jpg"))
	b.Close()

	if store.flushCount() != 1 {
		t.Fatalf("Close did not flush pending set: %d flushes", store.flushCount())
	}

	// Records after Close are dropped.
	b.Record(filepath.Join(root, "photos", "b.jpg"))
	if dirty := b.Flush(); len(dirty) != 0 {
		t.Errorf("Record after Close retained %v", dirty)
	}
}

func TestFlushErrorRequeues(t *testing.T) {
	root := t.TempDir()
	store := &recordingStore{fail: true}
	b := NewBuffer(root, 30*time.Millisecond, store)

	b.Record(filepath.Join(root, "photos", "a.jpg"))

	time.Sleep(150 * time.Millisecond)

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for store.flushCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if store.flushCount() == 0 {
		t.Fatal("dirty set lost after store failure; must be re-queued")
	}
	if _, ok := store.lastFlush()[hasher.HashPath("photos")]; !ok {
		t.Errorf("re-queued flush missing photos: %v", store.lastFlush())
	}
	b.Close()
}

func TestConcurrentRecord(t *testing.T) {
	root := t.TempDir()
	b := NewBuffer(root, time.Hour, &recordingStore{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Record(filepath.Join(root, "shared", "f.jpg"))
				b.Record(filepath.Join(root, "other", "g.jpg"))
			}
		}(i)
	}
	wg.Wait()

	dirty := b.Flush()
	if len(dirty) != 2 {
		t.Errorf("got %d dirty directories, want 2", len(dirty))
	}
}
