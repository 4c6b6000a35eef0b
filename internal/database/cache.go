package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-index/internal/metrics"
)

// IsValid reports whether the index for the directory identified by dirHash
// can be trusted. An absent tracking row counts as invalid: a directory that
// has never been scanned (or was invalidated before its first scan) must be
// reconciled before its records are served.
func (d *Database) IsValid(ctx context.Context, dirHash string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_is_valid", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var invalidated int
	err = d.db.QueryRowContext(ctx,
		`SELECT invalidated FROM cache_tracking WHERE dir_hash = ?`, dirHash,
	).Scan(&invalidated)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return invalidated == 0, nil
}

// GetCacheEntry returns the tracking entry for dirHash, or sql.ErrNoRows.
func (d *Database) GetCacheEntry(ctx context.Context, dirHash string) (*CacheEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_get_entry", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e CacheEntry
	var lastScan int64
	var invalidated int
	err = d.db.QueryRowContext(ctx,
		`SELECT dir_hash, path, last_scan_time, invalidated FROM cache_tracking WHERE dir_hash = ?`,
		dirHash,
	).Scan(&e.DirHash, &e.Path, &lastScan, &invalidated)
	if err != nil {
		return nil, err
	}

	e.LastScanTime = time.Unix(0, lastScan)
	e.Invalidated = invalidated != 0
	return &e, nil
}

// Invalidate marks a single directory's tracking entry as invalidated,
// creating the entry if the directory has not been seen before.
func (d *Database) Invalidate(ctx context.Context, dirHash, path string) error {
	return d.InvalidateMany(ctx, map[string]string{dirHash: path})
}

// InvalidateMany marks every directory in the hash → path map as
// invalidated in a single transaction. This is the event buffer flush path;
// entries are created for directories that are not yet indexed so the first
// read of a new directory triggers reconciliation.
func (d *Database) InvalidateMany(ctx context.Context, dirty map[string]string) error {
	if len(dirty) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("cache_invalidate_many", start, err) }()

	tx, err := d.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin invalidation transaction: %w", err)
	}

	for dirHash, path := range dirty {
		_, err = tx.ExecContext(context.Background(), `
			INSERT INTO cache_tracking (dir_hash, path, invalidated)
			VALUES (?, ?, 1)
			ON CONFLICT(dir_hash) DO UPDATE SET invalidated = 1`,
			dirHash, path,
		)
		if err != nil {
			err = fmt.Errorf("invalidate %s: %w", path, err)
			break
		}
	}

	if endErr := d.EndBatch(tx, err); endErr != nil {
		return endErr
	}

	metrics.DBRowsAffected.WithLabelValues("cache_invalidate").Observe(float64(len(dirty)))
	return nil
}

// MarkValidated records a successful reconciliation pass: the invalidated
// flag is cleared and the scan time stamped on both the tracking entry and
// the directory record. Only the reconciler calls this.
func (d *Database) MarkValidated(ctx context.Context, dirHash, path string, scanTime time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_mark_validated", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cache_tracking (dir_hash, path, last_scan_time, invalidated)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(dir_hash) DO UPDATE SET last_scan_time = excluded.last_scan_time, invalidated = 0`,
		dirHash, path, scanTime.UnixNano(),
	)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		UPDATE directories SET last_scan_time = ? WHERE path_hash = ?`,
		scanTime.UnixNano(), dirHash,
	)
	return err
}

// InvalidateSubtree marks the tracking entries of path and every descendant
// directory invalidated. Used by recursive rescans and when a parent
// directory's deletion makes all descendant caches untrustworthy.
func (d *Database) InvalidateSubtree(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_invalidate_subtree", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if path == "" {
		_, err = d.db.ExecContext(ctx, `UPDATE cache_tracking SET invalidated = 1`)
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		UPDATE cache_tracking SET invalidated = 1
		WHERE path = ? OR path LIKE ? || '/%'`, path, path)
	return err
}

// DeleteTrackingSubtree removes the tracking rows for path and all
// descendants within a transaction. Called when a directory subtree is
// tombstoned: tombstoned directories have no live cache to track, and a
// recreated directory must start from the unscanned (invalid) state.
func (d *Database) DeleteTrackingSubtree(tx *sql.Tx, path string) error {
	if path == "" {
		_, err := tx.ExecContext(context.Background(), `DELETE FROM cache_tracking`)
		return err
	}

	_, err := tx.ExecContext(context.Background(), `
		DELETE FROM cache_tracking WHERE path = ? OR path LIKE ? || '/%'`, path, path)
	return err
}
