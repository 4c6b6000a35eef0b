package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-index/internal/metrics"
)

// directoryColumns is the column list every directory scan uses.
const directoryColumns = `id, path, path_hash, parent_path, sort_key, last_scan_time, mod_time, deleted, thumb_file_id, updated_at`

// fileColumns is the column list every file scan uses.
const fileColumns = `id, dir_id, name, sort_key, type, mime_type, content_hash, identity_hash, size, mod_time, deleted, updated_at`

func scanDirectory(scanner interface{ Scan(...any) error }) (*DirectoryRecord, error) {
	var d DirectoryRecord
	var lastScan, modTime, updatedAt int64
	var thumbID sql.NullInt64
	var deleted int

	err := scanner.Scan(
		&d.ID, &d.Path, &d.PathHash, &d.ParentPath, &d.SortKey,
		&lastScan, &modTime, &deleted, &thumbID, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.LastScanTime = time.Unix(0, lastScan)
	d.ModTime = time.Unix(0, modTime)
	d.Deleted = deleted != 0
	if thumbID.Valid {
		d.ThumbFileID = thumbID.Int64
	}
	d.UpdatedAt = time.Unix(updatedAt, 0)
	return &d, nil
}

func scanFile(scanner interface{ Scan(...any) error }) (*FileRecord, error) {
	var f FileRecord
	var mimeType, contentHash sql.NullString
	var modTime, updatedAt int64
	var deleted int

	err := scanner.Scan(
		&f.ID, &f.DirID, &f.Name, &f.SortKey, &f.Type, &mimeType,
		&contentHash, &f.IdentityHash, &f.Size, &modTime, &deleted, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.MimeType = mimeType.String
	f.ContentHash = contentHash.String
	f.ModTime = time.Unix(0, modTime)
	f.Deleted = deleted != 0
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return &f, nil
}

// GetDirectoryByPath retrieves a directory record by its root-relative path.
// Returns sql.ErrNoRows when no record exists.
func (d *Database) GetDirectoryByPath(ctx context.Context, path string) (*DirectoryRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_directory", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		`SELECT `+directoryColumns+` FROM directories WHERE path = ?`, path)

	var dir *DirectoryRecord
	dir, err = scanDirectory(row)
	return dir, err
}

// GetDirectoryByHash retrieves a directory record by its path hash.
func (d *Database) GetDirectoryByHash(ctx context.Context, pathHash string) (*DirectoryRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_directory_by_hash", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		`SELECT `+directoryColumns+` FROM directories WHERE path_hash = ?`, pathHash)

	var dir *DirectoryRecord
	dir, err = scanDirectory(row)
	return dir, err
}

// ListChildDirectories returns the child directory records of parentPath,
// sorted naturally. The root record itself is never returned as a child.
func (d *Database) ListChildDirectories(ctx context.Context, parentPath string, includeDeleted bool) ([]DirectoryRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_child_directories", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + directoryColumns + ` FROM directories WHERE parent_path = ? AND path != ''`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY sort_key`

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, parentPath)
	if err != nil {
		return nil, fmt.Errorf("list child directories: %w", err)
	}
	defer rows.Close()

	var dirs []DirectoryRecord
	for rows.Next() {
		dir, scanErr := scanDirectory(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		dirs = append(dirs, *dir)
	}
	err = rows.Err()
	return dirs, err
}

// InsertDirectory inserts a new directory record within a transaction and
// fills in its assigned ID.
func (d *Database) InsertDirectory(tx *sql.Tx, dir *DirectoryRecord) error {
	result, err := tx.ExecContext(context.Background(), `
		INSERT INTO directories (path, path_hash, parent_path, sort_key, last_scan_time, mod_time, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dir.Path, dir.PathHash, dir.ParentPath, dir.SortKey,
		dir.LastScanTime.UnixNano(), dir.ModTime.UnixNano(), boolToInt(dir.Deleted),
	)
	if err != nil {
		return err
	}

	dir.ID, err = result.LastInsertId()
	return err
}

// UpdateDirectory updates a directory record in place within a transaction.
func (d *Database) UpdateDirectory(tx *sql.Tx, dir *DirectoryRecord) error {
	var thumbID sql.NullInt64
	if dir.ThumbFileID != 0 {
		thumbID = sql.NullInt64{Int64: dir.ThumbFileID, Valid: true}
	}

	_, err := tx.ExecContext(context.Background(), `
		UPDATE directories
		SET path = ?, path_hash = ?, parent_path = ?, sort_key = ?,
			last_scan_time = ?, mod_time = ?, deleted = ?, thumb_file_id = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?`,
		dir.Path, dir.PathHash, dir.ParentPath, dir.SortKey,
		dir.LastScanTime.UnixNano(), dir.ModTime.UnixNano(),
		boolToInt(dir.Deleted), thumbID, dir.ID,
	)
	return err
}

// SetDirectoryThumb repoints a directory's weak representative-thumbnail
// reference. fileID 0 clears it.
func (d *Database) SetDirectoryThumb(tx *sql.Tx, dirID, fileID int64) error {
	var thumbID sql.NullInt64
	if fileID != 0 {
		thumbID = sql.NullInt64{Int64: fileID, Valid: true}
	}
	_, err := tx.ExecContext(context.Background(),
		`UPDATE directories SET thumb_file_id = ? WHERE id = ?`, thumbID, dirID)
	return err
}

// SoftDeleteDirectoryTree marks the directory at path and every descendant
// directory and file as deleted. Records are never hard-deleted. Returns the
// number of file records newly tombstoned.
func (d *Database) SoftDeleteDirectoryTree(tx *sql.Tx, path string) (int64, error) {
	result, err := tx.ExecContext(context.Background(), `
		UPDATE files SET deleted = 1, updated_at = strftime('%s', 'now')
		WHERE deleted = 0 AND dir_id IN (
			SELECT id FROM directories WHERE path = ? OR path LIKE ? || '/%'
		)`, path, path)
	if err != nil {
		return 0, err
	}
	filesDeleted, _ := result.RowsAffected()

	_, err = tx.ExecContext(context.Background(), `
		UPDATE directories SET deleted = 1, updated_at = strftime('%s', 'now')
		WHERE deleted = 0 AND (path = ? OR path LIKE ? || '/%')`, path, path)
	if err != nil {
		return filesDeleted, err
	}

	if filesDeleted > 0 {
		metrics.DBRowsAffected.WithLabelValues("soft_delete_tree").Observe(float64(filesDeleted))
	}
	return filesDeleted, nil
}

// ListFiles returns the file records owned by dirID, sorted naturally.
func (d *Database) ListFiles(ctx context.Context, dirID int64, includeDeleted bool) ([]FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_files", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + fileColumns + ` FROM files WHERE dir_id = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY sort_key`

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, dirID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		f, scanErr := scanFile(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		files = append(files, *f)
	}
	err = rows.Err()
	return files, err
}

// GetFileByContentHash returns a non-deleted file record with the given
// content hash plus its owning directory path. When duplicates share the
// hash, any one of them is returned; they are interchangeable for thumbnail
// purposes.
func (d *Database) GetFileByContentHash(ctx context.Context, contentHash string) (*FileRecord, string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_file_by_content_hash", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT f.id, f.dir_id, f.name, f.sort_key, f.type, f.mime_type,
			f.content_hash, f.identity_hash, f.size, f.mod_time, f.deleted, f.updated_at,
			d.path
		FROM files f
		JOIN directories d ON d.id = f.dir_id
		WHERE f.content_hash = ? AND f.deleted = 0
		LIMIT 1`, contentHash)

	var f FileRecord
	var mimeType, hash sql.NullString
	var modTime, updatedAt int64
	var deleted int
	var dirPath string

	err = row.Scan(
		&f.ID, &f.DirID, &f.Name, &f.SortKey, &f.Type, &mimeType,
		&hash, &f.IdentityHash, &f.Size, &modTime, &deleted, &updatedAt,
		&dirPath,
	)
	if err != nil {
		return nil, "", err
	}

	f.MimeType = mimeType.String
	f.ContentHash = hash.String
	f.ModTime = time.Unix(0, modTime)
	f.Deleted = deleted != 0
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return &f, dirPath, nil
}

// InsertFile inserts a new file record within a transaction and fills in its
// assigned ID.
func (d *Database) InsertFile(tx *sql.Tx, f *FileRecord) error {
	result, err := tx.ExecContext(context.Background(), `
		INSERT INTO files (dir_id, name, sort_key, type, mime_type, content_hash, identity_hash, size, mod_time, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.DirID, f.Name, f.SortKey, f.Type, nullable(f.MimeType), nullable(f.ContentHash),
		f.IdentityHash, f.Size, f.ModTime.UnixNano(), boolToInt(f.Deleted),
	)
	if err != nil {
		return err
	}

	f.ID, err = result.LastInsertId()
	if err == nil {
		metrics.DBRowsAffected.WithLabelValues("insert_file").Observe(1)
	}
	return err
}

// UpdateFile updates a file record in place within a transaction.
func (d *Database) UpdateFile(tx *sql.Tx, f *FileRecord) error {
	_, err := tx.ExecContext(context.Background(), `
		UPDATE files
		SET name = ?, sort_key = ?, type = ?, mime_type = ?, content_hash = ?,
			identity_hash = ?, size = ?, mod_time = ?, deleted = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?`,
		f.Name, f.SortKey, f.Type, nullable(f.MimeType), nullable(f.ContentHash),
		f.IdentityHash, f.Size, f.ModTime.UnixNano(), boolToInt(f.Deleted), f.ID,
	)
	if err == nil {
		metrics.DBRowsAffected.WithLabelValues("update_file").Observe(1)
	}
	return err
}

// MarkFileDeleted tombstones a single file record within a transaction.
func (d *Database) MarkFileDeleted(tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(context.Background(), `
		UPDATE files SET deleted = 1, updated_at = strftime('%s', 'now')
		WHERE id = ? AND deleted = 0`, id)
	return err
}

// ListDirectorySubtree returns the directory at path plus every descendant,
// shallowest first. Used for case-rename propagation and subtree retirement.
func (d *Database) ListDirectorySubtree(ctx context.Context, path string, includeDeleted bool) ([]DirectoryRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_directory_subtree", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + directoryColumns + ` FROM directories WHERE (path = ? OR path LIKE ? || '/%')`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY length(path), path`

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, path, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []DirectoryRecord
	for rows.Next() {
		dir, scanErr := scanDirectory(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		dirs = append(dirs, *dir)
	}
	err = rows.Err()
	return dirs, err
}

// ListOrphanedDirectories returns non-deleted directories whose parent path
// has no directory record. These indicate corrupt index state and are healed
// by the verification pass.
func (d *Database) ListOrphanedDirectories(ctx context.Context) ([]DirectoryRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_orphaned_directories", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT `+directoryColumns+` FROM directories c
		WHERE c.deleted = 0 AND c.path != ''
		AND NOT EXISTS (SELECT 1 FROM directories p WHERE p.path = c.parent_path)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []DirectoryRecord
	for rows.Next() {
		dir, scanErr := scanDirectory(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		dirs = append(dirs, *dir)
	}
	err = rows.Err()
	return dirs, err
}

// CalculateStats computes current index statistics.
func (d *Database) CalculateStats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("calculate_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats IndexStats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE deleted = 0),
			(SELECT COUNT(*) FROM directories WHERE deleted = 0),
			(SELECT COUNT(*) FROM files WHERE deleted = 0 AND type = 'image'),
			(SELECT COUNT(*) FROM files WHERE deleted = 0 AND type = 'video'),
			(SELECT COUNT(*) FROM files WHERE deleted = 1),
			(SELECT COUNT(*) FROM cache_tracking WHERE invalidated = 1)`,
	).Scan(
		&stats.TotalFiles, &stats.TotalDirectories, &stats.TotalImages,
		&stats.TotalVideos, &stats.DeletedFiles, &stats.InvalidatedDirs,
	)
	return stats, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
