package reconciler

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Verify walks the entire live tree and reconciles every directory, then
// heals index corruption (directory records whose parent record is missing)
// and refreshes the cached statistics. Per-directory failures are logged and
// skipped so one bad directory never aborts the sweep.
func (r *Reconciler) Verify(ctx context.Context) (Result, error) {
	start := time.Now()
	logging.Info("Verification pass started for %s", r.root)

	var result Result
	failures := 0

	walkErr := filepath.WalkDir(r.root, func(absPath string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logging.Warn("Verification cannot access %s: %v", absPath, err)
			failures++
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if absPath != r.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		rel, relErr := filepath.Rel(r.root, absPath)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			rel = ""
		}

		res, recErr := r.Reconcile(ctx, filepath.ToSlash(rel))
		result.merge(res)
		if recErr != nil {
			logging.Warn("Verification reconcile failed for %q: %v", rel, recErr)
			failures++
		}
		return nil
	})
	if walkErr != nil {
		return result, fmt.Errorf("verification walk: %w", walkErr)
	}

	healed, err := r.healOrphans(ctx)
	result.merge(healed)
	if err != nil {
		return result, err
	}

	stats, err := r.db.CalculateStats(ctx)
	if err != nil {
		return result, fmt.Errorf("calculate stats: %w", err)
	}
	stats.LastVerified = time.Now()
	stats.VerifyDuration = time.Since(start).Round(time.Millisecond).String()
	r.db.UpdateStats(stats)

	metrics.VerifyRunsTotal.Inc()
	metrics.VerifyLastRunTimestamp.SetToCurrentTime()

	logging.Info("Verification pass finished in %v: %d created, %d updated, %d deleted, %d revived, %d failures",
		time.Since(start).Round(time.Millisecond),
		result.Created, result.Updated, result.Deleted, result.Revived, failures)
	return result, nil
}

// healOrphans repairs directory records whose parent record is missing. When
// the directory still exists on disk the missing ancestor chain is recreated;
// when it is gone the orphaned subtree is retired.
func (r *Reconciler) healOrphans(ctx context.Context) (Result, error) {
	var result Result

	orphans, err := r.db.ListOrphanedDirectories(ctx)
	if err != nil {
		return result, fmt.Errorf("list orphaned directories: %w", err)
	}

	for _, orphan := range orphans {
		if _, statErr := filesystem.StatWithRetry(r.absPath(orphan.Path), r.retry); statErr != nil {
			retired, retireErr := r.retireSubtree(orphan.Path)
			if retireErr != nil {
				logging.Warn("Failed to retire orphaned directory %q: %v", orphan.Path, retireErr)
				continue
			}
			result.Deleted += retired
			continue
		}

		logging.Warn("Healing orphaned directory record %q (missing parent %q)", orphan.Path, orphan.ParentPath)
		if _, created, ensureErr := r.ensureDirectory(ctx, orphan.ParentPath); ensureErr != nil {
			logging.Warn("Failed to heal parent of %q: %v", orphan.Path, ensureErr)
		} else if created {
			result.Created++
		}
	}

	return result, nil
}
