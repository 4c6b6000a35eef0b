package reconciler

import (
	"sync"
	"testing"
	"time"
)

func TestLockTableSerializesSameKey(t *testing.T) {
	lt := newLockTable()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lt.acquire("photos")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}

	lt.mu.Lock()
	remaining := len(lt.locks)
	lt.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d lock entries leaked", remaining)
	}
}

func TestLockTableDifferentKeysDoNotBlock(t *testing.T) {
	lt := newLockTable()

	unlockA := lt.acquire("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := lt.acquire("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquiring a different key blocked behind an unrelated holder")
	}
}
