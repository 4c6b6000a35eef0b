package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Supervisor owns the single OS-level change-notification subscription for
// the monitored root. Long-running watch subscriptions are known to go
// silent without reporting failure, so the supervisor replaces its
// subscription on a fixed schedule instead of trying to detect the gap.
// The event buffer outlives every subscription, so a restart never drops
// events that were already recorded.
type Supervisor struct {
	root            string
	buffer          *Buffer
	restartInterval time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor for the tree rooted at root, feeding
// raw events into buffer.
func NewSupervisor(root string, buffer *Buffer, restartInterval time.Duration) *Supervisor {
	return &Supervisor{
		root:            root,
		buffer:          buffer,
		restartInterval: restartInterval,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start acquires the watch subscription and begins delivering events.
func (s *Supervisor) Start() error {
	w, err := s.subscribe()
	if err != nil {
		return fmt.Errorf("failed to start watch subscription: %w", err)
	}

	logging.Info("Watch subscription started for %s (restart interval: %v)", s.root, s.restartInterval)
	go s.run(w)
	return nil
}

// Stop releases the subscription and waits for the event loop to exit.
// Must only be called after a successful Start.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.doneChan
}

func (s *Supervisor) run(w *fsnotify.Watcher) {
	defer close(s.doneChan)

	metrics.WatcherActive.Set(1)
	defer metrics.WatcherActive.Set(0)

	restart := time.NewTicker(s.restartInterval)
	defer restart.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				if w = s.resubscribe(w); w == nil {
					return
				}
				continue
			}
			s.handleEvent(w, ev)

		case err, ok := <-w.Errors:
			if !ok {
				if w = s.resubscribe(w); w == nil {
					return
				}
				continue
			}
			metrics.WatcherErrorsTotal.Inc()
			logging.Warn("Watch subscription error: %v", err)

		case <-restart.C:
			next, err := s.subscribe()
			if err != nil {
				metrics.WatcherErrorsTotal.Inc()
				logging.Error("Scheduled watch restart failed, keeping current subscription: %v", err)
				continue
			}
			if err := w.Close(); err != nil {
				logging.Warn("Error releasing old watch subscription: %v", err)
			}
			w = next
			metrics.WatcherRestartsTotal.Inc()
			logging.Info("Watch subscription restarted on schedule")

		case <-s.stopChan:
			if err := w.Close(); err != nil {
				logging.Warn("Error releasing watch subscription: %v", err)
			}
			logging.Info("Watch supervisor stopped")
			return
		}
	}
}

// handleEvent pushes the raw event into the buffer. The notification
// goroutine must never block on filesystem or store I/O; the only work here
// beyond the buffer insert is registering newly created directories, without
// which events inside them would never be delivered.
func (s *Supervisor) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	metrics.WatcherEventsTotal.WithLabelValues(opLabel(ev.Op)).Inc()
	s.buffer.Record(ev.Name)

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			s.watchTree(w, ev.Name)
		}
	}
}

// subscribe creates a fresh fsnotify watcher covering every directory under
// the root. Unreadable subdirectories are logged and skipped.
func (s *Supervisor) subscribe() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	count := 0
	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.Add(path); addErr != nil {
			logging.Warn("Failed to watch %s: %v", path, addErr)
			return nil
		}
		count++
		return nil
	})
	if walkErr != nil {
		if closeErr := w.Close(); closeErr != nil {
			logging.Warn("Error closing failed watch subscription: %v", closeErr)
		}
		return nil, walkErr
	}

	metrics.WatcherPathsWatched.Set(float64(count))
	logging.Debug("Watch subscription covering %d directories", count)
	return w, nil
}

// watchTree registers a newly created directory and any directories already
// nested inside it (a bulk copy can create a whole tree before the watch
// lands). Each registered directory is also marked dirty so its first read
// reconciles.
func (s *Supervisor) watchTree(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.Add(path); addErr != nil {
			logging.Warn("Failed to watch new directory %s: %v", path, addErr)
			return nil
		}
		s.buffer.RecordDir(path)
		return nil
	})
}

// resubscribe recovers from a dead subscription (closed event channel)
// with exponential backoff. Returns nil when the supervisor is stopping.
func (s *Supervisor) resubscribe(old *fsnotify.Watcher) *fsnotify.Watcher {
	if err := old.Close(); err != nil {
		logging.Debug("Error closing dead watch subscription: %v", err)
	}
	metrics.WatcherActive.Set(0)

	backoff := time.Second
	for {
		w, err := s.subscribe()
		if err == nil {
			metrics.WatcherActive.Set(1)
			metrics.WatcherRestartsTotal.Inc()
			logging.Info("Watch subscription recovered")
			return w
		}

		metrics.WatcherErrorsTotal.Inc()
		logging.Error("Watch resubscribe failed: %v (retrying in %v)", err, backoff)

		select {
		case <-time.After(backoff):
		case <-s.stopChan:
			return nil
		}

		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "modify"
	case op.Has(fsnotify.Remove):
		return "delete"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
