package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-index/internal/hasher"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestSupervisorDeliversEvents(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "photos"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := &recordingStore{}
	buffer := NewBuffer(root, 50*time.Millisecond, store)
	s := NewSupervisor(root, buffer, time.Hour)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		s.Stop()
		buffer.Close()
	}()

	if err := os.WriteFile(filepath.Join(root, "photos", "new.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		for _, flush := range storeFlushes(store) {
			if _, hit := flush[hasher.HashPath("photos")]; hit {
				return true
			}
		}
		return false
	})
	if !ok {
		t.Fatal("file creation never invalidated its owning directory")
	}
}

func TestSupervisorWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()

	store := &recordingStore{}
	buffer := NewBuffer(root, 50*time.Millisecond, store)
	s := NewSupervisor(root, buffer, time.Hour)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		s.Stop()
		buffer.Close()
	}()

	if err := os.MkdirAll(filepath.Join(root, "fresh"), 0o755); err != nil {
		t.Fatal(err)
	}

	// The new directory itself must be marked dirty so its first read
	// reconciles.
	ok := waitFor(t, 3*time.Second, func() bool {
		for _, flush := range storeFlushes(store) {
			if _, hit := flush[hasher.HashPath("fresh")]; hit {
				return true
			}
		}
		return false
	})
	if !ok {
		t.Fatal("new directory never marked dirty")
	}

	// Events inside the new directory must be delivered too.
	if err := os.WriteFile(filepath.Join(root, "fresh", "a.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok = waitFor(t, 3*time.Second, func() bool {
		for _, flush := range storeFlushes(store) {
			if rel, hit := flush[hasher.HashPath("fresh")]; hit && rel == "fresh" {
				return true
			}
		}
		return false
	})
	if !ok {
		t.Fatal("events inside newly created directory were not delivered")
	}
}

func TestSupervisorStopIsIdempotentAfterStart(t *testing.T) {
	root := t.TempDir()
	buffer := NewBuffer(root, time.Hour, &recordingStore{})
	s := NewSupervisor(root, buffer, time.Hour)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func storeFlushes(s *recordingStore) []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(s.flushes))
	copy(out, s.flushes)
	return out
}
