package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"media-index/internal/database"
	"media-index/internal/logging"
)

// DirectoryView is the queryable listing of one directory: its record plus
// the naturally-sorted live children. Stale is set when the cached records
// were served despite a failed reconciliation attempt.
type DirectoryView struct {
	Directory   *database.DirectoryRecord  `json:"directory"`
	Directories []database.DirectoryRecord `json:"directories"`
	Files       []database.FileRecord      `json:"files"`
	Stale       bool                       `json:"stale,omitempty"`
}

// GetDirectoryView returns the listing for relPath, reconciling first when
// the directory's cache tracking entry is invalidated or absent. If
// reconciliation fails but prior records exist, they are served marked stale
// rather than failing the read outright.
func (r *Reconciler) GetDirectoryView(ctx context.Context, relPath string) (*DirectoryView, error) {
	relPath = normalizeRel(relPath)

	rec, err := r.db.GetDirectoryByPath(ctx, relPath)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load directory %s: %w", relPath, err)
	}
	haveRecord := err == nil && !rec.Deleted

	valid := false
	if haveRecord {
		valid, err = r.db.IsValid(ctx, rec.PathHash)
		if err != nil {
			return nil, fmt.Errorf("check cache validity for %s: %w", relPath, err)
		}
	}

	stale := false
	if !valid {
		if _, rerr := r.Reconcile(ctx, relPath); rerr != nil {
			if !haveRecord {
				return nil, rerr
			}
			logging.Warn("Serving stale listing for %q after reconcile failure: %v", relPath, rerr)
			stale = true
		}
		rec, err = r.db.GetDirectoryByPath(ctx, relPath)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load directory %s: %w", relPath, err)
		}
	}

	if rec.Deleted {
		return nil, ErrNotFound
	}

	dirs, err := r.db.ListChildDirectories(ctx, rec.Path, false)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", relPath, err)
	}
	files, err := r.db.ListFiles(ctx, rec.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", relPath, err)
	}

	return &DirectoryView{
		Directory:   rec,
		Directories: dirs,
		Files:       files,
		Stale:       stale,
	}, nil
}

// ForceRescan invalidates the directory at relPath (the whole subtree when
// recursive) and reconciles it immediately. Descendants of a recursive
// rescan reconcile lazily on their next read.
func (r *Reconciler) ForceRescan(ctx context.Context, relPath string, recursive bool) (Result, error) {
	relPath = normalizeRel(relPath)

	if recursive {
		if err := r.db.InvalidateSubtree(ctx, relPath); err != nil {
			return Result{}, fmt.Errorf("invalidate subtree %s: %w", relPath, err)
		}
	}

	logging.Info("Forced rescan of %q (recursive: %v)", relPath, recursive)
	return r.Reconcile(ctx, relPath)
}
