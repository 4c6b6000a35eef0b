package reconciler

import (
	"context"
	"sync"

	"media-index/internal/database"
	"media-index/internal/hasher"
	"media-index/internal/logging"
)

// fileChange is one planned record mutation. Changes needing a content hash
// go through the hashing pool before the transaction that applies them; a
// failed hash marks only its own change, never the whole pass.
type fileChange struct {
	rec       *database.FileRecord
	action    string
	needsHash bool
	failed    bool
	absPath   string
	relPath   string
}

// hashChanges runs the content hashing pool over every change that needs a
// hash and returns the failure count. Hashing happens entirely outside any
// transaction so slow media reads never hold database locks. Jobs are
// dispatched in batches of hashBatchSize to bound the pending queue when a
// huge directory churns all at once.
func (r *Reconciler) hashChanges(ctx context.Context, changes []*fileChange) int {
	var jobs []*fileChange
	for _, c := range changes {
		if c.needsHash {
			jobs = append(jobs, c)
		}
	}

	for start := 0; start < len(jobs); start += r.hashBatchSize {
		end := start + r.hashBatchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		r.runHashPool(ctx, jobs[start:end])
	}

	failures := 0
	for _, j := range jobs {
		if j.failed {
			failures++
		}
	}
	return failures
}

func (r *Reconciler) runHashPool(ctx context.Context, batch []*fileChange) {
	workerCount := r.hashWorkers
	if workerCount > len(batch) {
		workerCount = len(batch)
	}

	jobCh := make(chan *fileChange, len(batch))
	for _, j := range batch {
		jobCh <- j
	}
	close(jobCh)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobCh {
				if ctx.Err() != nil {
					c.failed = true
					continue
				}
				contentHash, err := hasher.HashFile(c.absPath)
				if err != nil {
					logging.Warn("Content hash failed for %s: %v", c.relPath, err)
					c.failed = true
					continue
				}
				c.rec.ContentHash = contentHash
				c.rec.IdentityHash = hasher.IdentityHash(contentHash, c.relPath)
			}
		}()
	}
	wg.Wait()
}
