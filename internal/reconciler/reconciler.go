package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"media-index/internal/database"
	"media-index/internal/filesystem"
	"media-index/internal/hasher"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
	"media-index/internal/workers"
)

// ErrNotFound is returned when a requested directory has no live record.
var ErrNotFound = errors.New("directory not found in index")

// Config controls reconciliation behavior.
type Config struct {
	// HashWorkers caps the content hashing pool. 0 sizes it from CPU count
	// (overridable via HASH_WORKERS).
	HashWorkers int
	// HashBatchSize bounds how many pending content hashes are dispatched
	// to the pool at once. 0 uses the default of 256.
	HashBatchSize int
	// Retry applies to every live filesystem access.
	Retry filesystem.RetryConfig
}

// defaultHashBatchSize bounds one dispatch to the hashing pool.
const defaultHashBatchSize = 256

// Reconciler brings stored directory and file records back in line with the
// live filesystem, one directory at a time. Passes for the same directory
// serialize on a per-directory lock; passes for different directories run
// concurrently.
type Reconciler struct {
	db            *database.Database
	root          string
	hashWorkers   int
	hashBatchSize int
	retry         filesystem.RetryConfig
	locks         *lockTable
}

// New creates a reconciler over the tree rooted at root.
func New(db *database.Database, root string, cfg Config) *Reconciler {
	hashWorkers := cfg.HashWorkers
	if hashWorkers <= 0 {
		hashWorkers = workers.ForCPU(0)
	}
	hashBatchSize := cfg.HashBatchSize
	if hashBatchSize <= 0 {
		hashBatchSize = defaultHashBatchSize
	}
	return &Reconciler{
		db:            db,
		root:          root,
		hashWorkers:   hashWorkers,
		hashBatchSize: hashBatchSize,
		retry:         cfg.Retry,
		locks:         newLockTable(),
	}
}

// Result summarizes the mutations one reconciliation pass applied. A pass
// over an unchanged directory reports all zeros, which is also how the
// idempotence of back-to-back passes is checked.
type Result struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Deleted      int `json:"deleted"`
	Revived      int `json:"revived"`
	HashFailures int `json:"hashFailures,omitempty"`
}

func (r *Result) merge(o Result) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Deleted += o.Deleted
	r.Revived += o.Revived
	r.HashFailures += o.HashFailures
}

// Mutations returns the total number of record changes the pass applied.
func (r Result) Mutations() int {
	return r.Created + r.Updated + r.Deleted + r.Revived
}

// Reconcile diffs the live listing of the directory at relPath (root-relative,
// "/" separated, "" for the root) against its stored records and applies the
// difference. On success with no hash failures the directory's cache tracking
// entry is marked valid; any hash failure leaves it invalidated so the failed
// entries are retried on the next pass.
func (r *Reconciler) Reconcile(ctx context.Context, relPath string) (Result, error) {
	relPath = normalizeRel(relPath)

	unlock := r.locks.acquire(relPath)
	defer unlock()

	start := time.Now()
	metrics.ReconcileRunsTotal.Inc()
	metrics.ReconcileInProgress.Inc()
	defer func() {
		metrics.ReconcileInProgress.Dec()
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	var result Result

	entries, err := filesystem.List(r.absPath(relPath), r.retry)
	if err != nil {
		if os.IsNotExist(err) {
			// The directory is gone from disk. Tombstone its subtree; the
			// parent's own pass removes it from the parent's child set.
			retired, retireErr := r.retireSubtree(relPath)
			if retireErr != nil {
				metrics.ReconcileErrorsTotal.Inc()
				return result, retireErr
			}
			result.Deleted += retired
			return result, nil
		}
		// Listing failed for a transient reason. The tracking entry stays
		// invalidated so the next read retries.
		metrics.ReconcileErrorsTotal.Inc()
		return result, fmt.Errorf("list %s: %w", relPath, err)
	}

	dir, created, err := r.ensureDirectory(ctx, relPath)
	if err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		return result, err
	}
	if created {
		result.Created++
	}

	var liveFiles, liveDirs []filesystem.Entry
	for _, e := range entries {
		if e.IsDir {
			liveDirs = append(liveDirs, e)
		} else {
			liveFiles = append(liveFiles, e)
		}
	}

	fileResult, err := r.reconcileFiles(ctx, dir, liveFiles)
	result.merge(fileResult)
	if err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		return result, err
	}

	dirResult, err := r.reconcileChildDirs(ctx, dir, liveDirs)
	result.merge(dirResult)
	if err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		return result, err
	}

	if err := r.repointThumb(ctx, dir); err != nil {
		logging.Warn("Failed to repoint thumbnail for %q: %v", relPath, err)
	}

	if result.HashFailures == 0 {
		if err := r.db.MarkValidated(ctx, dir.PathHash, relPath, time.Now()); err != nil {
			metrics.ReconcileErrorsTotal.Inc()
			return result, fmt.Errorf("mark validated %s: %w", relPath, err)
		}
	} else {
		logging.Warn("Reconciled %q with %d hash failures, leaving invalidated for retry", relPath, result.HashFailures)
	}

	if result.Mutations() > 0 {
		logging.Info("Reconciled %q: %d created, %d updated, %d deleted, %d revived",
			relPath, result.Created, result.Updated, result.Deleted, result.Revived)
	}
	return result, nil
}

// reconcileFiles diffs the live file entries of dir against stored records.
// Matching is case-insensitive with exact-name claims resolved first, so a
// case-only rename updates the record in place instead of tombstoning and
// recreating it.
func (r *Reconciler) reconcileFiles(ctx context.Context, dir *database.DirectoryRecord, live []filesystem.Entry) (Result, error) {
	var result Result

	stored, err := r.db.ListFiles(ctx, dir.ID, true)
	if err != nil {
		return result, fmt.Errorf("list stored files for %s: %w", dir.Path, err)
	}

	activeByName := make(map[string]*database.FileRecord)
	activeByLower := make(map[string][]*database.FileRecord)
	tombByName := make(map[string]*database.FileRecord)
	for i := range stored {
		rec := &stored[i]
		if rec.Deleted {
			tombByName[rec.Name] = rec
			continue
		}
		activeByName[rec.Name] = rec
		lower := strings.ToLower(rec.Name)
		activeByLower[lower] = append(activeByLower[lower], rec)
	}

	claimed := make(map[int64]bool)
	var changes []*fileChange

	// Exact-name matches claim their records across the whole listing before
	// any case variant may take one. A case variant listed earlier by readdir
	// must not steal the record of a file still present under its stored name.
	var unmatched []filesystem.Entry
	for _, e := range live {
		rec, ok := activeByName[e.Name]
		if !ok || claimed[rec.ID] {
			unmatched = append(unmatched, e)
			continue
		}
		claimed[rec.ID] = true
		relFile := joinRel(dir.Path, e.Name)
		if change := planMatchedFile(rec, e, relFile); change != nil {
			change.absPath = r.absPath(relFile)
			changes = append(changes, change)
		}
	}

	for _, e := range unmatched {
		relFile := joinRel(dir.Path, e.Name)

		if rec := claimCaseVariant(activeByLower[strings.ToLower(e.Name)], claimed); rec != nil {
			claimed[rec.ID] = true
			change := planRenamedFile(rec, e, relFile)
			change.absPath = r.absPath(relFile)
			changes = append(changes, change)
			continue
		}

		if rec, ok := tombByName[e.Name]; ok && !claimed[rec.ID] {
			// A file reappeared at a tombstoned path: revive the record so
			// its identity survives the delete/recreate cycle. Claiming it
			// keeps the missing-set sweep below off the revived record.
			claimed[rec.ID] = true
			rec.Deleted = false
			rec.Size = e.Size
			rec.ModTime = e.ModTime
			changes = append(changes, &fileChange{
				rec:       rec,
				action:    actionRevived,
				needsHash: true,
				absPath:   r.absPath(relFile),
				relPath:   relFile,
			})
			continue
		}

		ext := strings.ToLower(filepath.Ext(e.Name))
		changes = append(changes, &fileChange{
			rec: &database.FileRecord{
				DirID:    dir.ID,
				Name:     e.Name,
				SortKey:  database.NaturalSortKey(e.Name),
				Type:     mediatypes.GetFileType(ext),
				MimeType: mediatypes.GetMimeType(ext),
				Size:     e.Size,
				ModTime:  e.ModTime,
			},
			action:    actionCreated,
			needsHash: true,
			absPath:   r.absPath(relFile),
			relPath:   relFile,
		})
	}

	var tombstone []int64
	for i := range stored {
		rec := &stored[i]
		if !rec.Deleted && !claimed[rec.ID] {
			tombstone = append(tombstone, rec.ID)
		}
	}

	result.HashFailures = r.hashChanges(ctx, changes)

	if len(changes) == 0 && len(tombstone) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginBatch()
	if err != nil {
		return result, fmt.Errorf("begin file reconciliation for %s: %w", dir.Path, err)
	}

	applied := Result{HashFailures: result.HashFailures}
	for _, c := range changes {
		if c.failed {
			continue
		}
		if c.action == actionCreated {
			err = r.db.InsertFile(tx, c.rec)
		} else {
			err = r.db.UpdateFile(tx, c.rec)
		}
		if err != nil {
			err = fmt.Errorf("apply %s for %s: %w", c.action, c.relPath, err)
			break
		}
		applied.count(c.action)
	}
	if err == nil {
		for _, id := range tombstone {
			if err = r.db.MarkFileDeleted(tx, id); err != nil {
				err = fmt.Errorf("tombstone file %d in %s: %w", id, dir.Path, err)
				break
			}
			applied.Deleted++
		}
	}

	if endErr := r.db.EndBatch(tx, err); endErr != nil {
		return result, endErr
	}

	recordMutations(applied)
	return applied, nil
}

// planMatchedFile returns the change for an exact-name match, or nil when the
// record is already current.
func planMatchedFile(rec *database.FileRecord, e filesystem.Entry, relFile string) *fileChange {
	if rec.Size != e.Size || !rec.ModTime.Equal(e.ModTime) {
		rec.Size = e.Size
		rec.ModTime = e.ModTime
		return &fileChange{rec: rec, action: actionUpdated, needsHash: true, relPath: relFile}
	}

	// An ancestor case-rename shifts this file's full path without touching
	// the file itself. Recompute the identity from the stored content hash.
	if rec.ContentHash != "" {
		if expected := hasher.IdentityHash(rec.ContentHash, relFile); rec.IdentityHash != expected {
			rec.IdentityHash = expected
			return &fileChange{rec: rec, action: actionUpdated, relPath: relFile}
		}
	}
	return nil
}

// planRenamedFile returns the change for a case-only rename. The record keeps
// its identity; only the name-derived fields move.
func planRenamedFile(rec *database.FileRecord, e filesystem.Entry, relFile string) *fileChange {
	rec.Name = e.Name
	rec.SortKey = database.NaturalSortKey(e.Name)

	if rec.Size != e.Size || !rec.ModTime.Equal(e.ModTime) {
		rec.Size = e.Size
		rec.ModTime = e.ModTime
		return &fileChange{rec: rec, action: actionUpdated, needsHash: true, relPath: relFile}
	}

	if rec.ContentHash != "" {
		rec.IdentityHash = hasher.IdentityHash(rec.ContentHash, relFile)
	}
	return &fileChange{rec: rec, action: actionUpdated, relPath: relFile}
}

func claimCaseVariant(candidates []*database.FileRecord, claimed map[int64]bool) *database.FileRecord {
	for _, rec := range candidates {
		if !claimed[rec.ID] {
			return rec
		}
	}
	return nil
}

// reconcileChildDirs diffs the live subdirectory entries of parent against the
// stored child directory records. New directories get records immediately; no
// tracking entry is written, so their first read reconciles their contents.
func (r *Reconciler) reconcileChildDirs(ctx context.Context, parent *database.DirectoryRecord, live []filesystem.Entry) (Result, error) {
	var result Result

	stored, err := r.db.ListChildDirectories(ctx, parent.Path, true)
	if err != nil {
		return result, fmt.Errorf("list stored children of %s: %w", parent.Path, err)
	}

	activeByName := make(map[string]*database.DirectoryRecord)
	activeByLower := make(map[string]*database.DirectoryRecord)
	tombByName := make(map[string]*database.DirectoryRecord)
	for i := range stored {
		rec := &stored[i]
		name := path.Base(rec.Path)
		if rec.Deleted {
			tombByName[name] = rec
			continue
		}
		activeByName[name] = rec
		activeByLower[strings.ToLower(name)] = rec
	}

	claimed := make(map[int64]bool)

	type renameOp struct {
		rec     *database.DirectoryRecord
		newName string
	}
	var renames []renameOp
	var updates, revives []*database.DirectoryRecord
	var creates []filesystem.Entry

	// Exact-name claims first, as in reconcileFiles.
	var unmatched []filesystem.Entry
	for _, e := range live {
		rec, ok := activeByName[e.Name]
		if !ok || claimed[rec.ID] {
			unmatched = append(unmatched, e)
			continue
		}
		claimed[rec.ID] = true
		if !rec.ModTime.Equal(e.ModTime) {
			rec.ModTime = e.ModTime
			updates = append(updates, rec)
		}
	}

	for _, e := range unmatched {
		if rec, ok := activeByLower[strings.ToLower(e.Name)]; ok && !claimed[rec.ID] {
			claimed[rec.ID] = true
			renames = append(renames, renameOp{rec: rec, newName: e.Name})
			continue
		}

		if rec, ok := tombByName[e.Name]; ok && !claimed[rec.ID] {
			claimed[rec.ID] = true
			rec.Deleted = false
			rec.ModTime = e.ModTime
			revives = append(revives, rec)
			continue
		}

		creates = append(creates, e)
	}

	var retire []*database.DirectoryRecord
	for i := range stored {
		rec := &stored[i]
		if !rec.Deleted && !claimed[rec.ID] {
			retire = append(retire, rec)
		}
	}

	// Subtree listings for renames happen outside the transaction; the
	// per-directory lock on the parent keeps concurrent passes off them.
	renameSubtrees := make(map[int64][]database.DirectoryRecord, len(renames))
	for _, op := range renames {
		subtree, listErr := r.db.ListDirectorySubtree(ctx, op.rec.Path, true)
		if listErr != nil {
			return result, fmt.Errorf("list subtree of %s: %w", op.rec.Path, listErr)
		}
		renameSubtrees[op.rec.ID] = subtree
	}

	if len(renames) == 0 && len(updates) == 0 && len(revives) == 0 && len(creates) == 0 && len(retire) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginBatch()
	if err != nil {
		return result, fmt.Errorf("begin directory reconciliation for %s: %w", parent.Path, err)
	}

	applied := Result{}
	for _, rec := range updates {
		if err = r.db.UpdateDirectory(tx, rec); err != nil {
			break
		}
		applied.Updated++
	}
	if err == nil {
		for _, op := range renames {
			oldPath := op.rec.Path
			if err = r.renameSubtree(tx, renameSubtrees[op.rec.ID], oldPath, joinRel(parent.Path, op.newName)); err != nil {
				break
			}
			applied.Updated++
		}
	}
	if err == nil {
		for _, rec := range revives {
			if err = r.db.UpdateDirectory(tx, rec); err != nil {
				break
			}
			applied.Revived++
		}
	}
	if err == nil {
		for _, e := range creates {
			relDir := joinRel(parent.Path, e.Name)
			rec := &database.DirectoryRecord{
				Path:       relDir,
				PathHash:   hasher.HashPath(relDir),
				ParentPath: parent.Path,
				SortKey:    database.NaturalSortKey(e.Name),
				ModTime:    e.ModTime,
			}
			if err = r.db.InsertDirectory(tx, rec); err != nil {
				break
			}
			applied.Created++
		}
	}
	if err == nil {
		for _, rec := range retire {
			var n int64
			if n, err = r.db.SoftDeleteDirectoryTree(tx, rec.Path); err != nil {
				break
			}
			if err = r.db.DeleteTrackingSubtree(tx, rec.Path); err != nil {
				break
			}
			applied.Deleted += int(n) + 1
		}
	}

	if endErr := r.db.EndBatch(tx, err); endErr != nil {
		return result, fmt.Errorf("reconcile children of %s: %w", parent.Path, endErr)
	}

	recordMutations(applied)
	return applied, nil
}

// renameSubtree applies a case-only directory rename to the directory and
// every stored descendant. Descendant tracking rows are dropped so each
// renamed directory reconciles on its next read, which also recomputes the
// file identity hashes that embed the shifted paths.
func (r *Reconciler) renameSubtree(tx *sql.Tx, subtree []database.DirectoryRecord, oldPath, newPath string) error {
	if err := r.db.DeleteTrackingSubtree(tx, oldPath); err != nil {
		return fmt.Errorf("drop tracking for %s: %w", oldPath, err)
	}

	for i := range subtree {
		rec := subtree[i]
		rec.Path = newPath + strings.TrimPrefix(rec.Path, oldPath)
		rec.PathHash = hasher.HashPath(rec.Path)
		rec.ParentPath = parentOf(rec.Path)
		rec.SortKey = database.NaturalSortKey(path.Base(rec.Path))
		if err := r.db.UpdateDirectory(tx, &rec); err != nil {
			return fmt.Errorf("rename %s to %s: %w", oldPath, rec.Path, err)
		}
	}

	logging.Info("Renamed directory %q to %q (%d records)", oldPath, newPath, len(subtree))
	return nil
}

// ensureDirectory returns the live record for relPath, creating it (and any
// missing ancestors) or reviving its tombstone as needed. The bool reports
// whether a record was created.
func (r *Reconciler) ensureDirectory(ctx context.Context, relPath string) (*database.DirectoryRecord, bool, error) {
	rec, err := r.db.GetDirectoryByPath(ctx, relPath)
	if err == nil {
		if !rec.Deleted {
			return rec, false, nil
		}
		rec.Deleted = false
		tx, txErr := r.db.BeginBatch()
		if txErr != nil {
			return nil, false, txErr
		}
		txErr = r.db.UpdateDirectory(tx, rec)
		if endErr := r.db.EndBatch(tx, txErr); endErr != nil {
			return nil, false, fmt.Errorf("revive directory %s: %w", relPath, endErr)
		}
		metrics.ReconcileRecordsTotal.WithLabelValues(actionRevived).Inc()
		return rec, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("load directory %s: %w", relPath, err)
	}

	if relPath != "" {
		if _, _, err := r.ensureDirectory(ctx, parentOf(relPath)); err != nil {
			return nil, false, err
		}
	}

	modTime := time.Now()
	if info, statErr := filesystem.StatWithRetry(r.absPath(relPath), r.retry); statErr == nil {
		modTime = info.ModTime()
	}

	rec = &database.DirectoryRecord{
		Path:       relPath,
		PathHash:   hasher.HashPath(relPath),
		ParentPath: parentOf(relPath),
		SortKey:    database.NaturalSortKey(path.Base(relPath)),
		ModTime:    modTime,
	}
	if relPath == "" {
		rec.SortKey = ""
	}

	tx, err := r.db.BeginBatch()
	if err != nil {
		return nil, false, err
	}
	err = r.db.InsertDirectory(tx, rec)
	if endErr := r.db.EndBatch(tx, err); endErr != nil {
		return nil, false, fmt.Errorf("create directory record %s: %w", relPath, endErr)
	}

	metrics.ReconcileRecordsTotal.WithLabelValues(actionCreated).Inc()
	return rec, true, nil
}

// retireSubtree tombstones the records for a directory that vanished from
// disk. Returns the number of file records tombstoned.
func (r *Reconciler) retireSubtree(relPath string) (int, error) {
	rec, err := r.db.GetDirectoryByPath(context.Background(), relPath)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if rec.Deleted {
		return 0, nil
	}

	tx, err := r.db.BeginBatch()
	if err != nil {
		return 0, err
	}
	var n int64
	n, err = r.db.SoftDeleteDirectoryTree(tx, relPath)
	if err == nil {
		err = r.db.DeleteTrackingSubtree(tx, relPath)
	}
	if endErr := r.db.EndBatch(tx, err); endErr != nil {
		return 0, fmt.Errorf("retire %s: %w", relPath, endErr)
	}

	metrics.ReconcileRecordsTotal.WithLabelValues(actionDeleted).Add(float64(n + 1))
	logging.Info("Retired vanished directory %q (%d file records tombstoned)", relPath, n)
	return int(n) + 1, nil
}

// repointThumb keeps the directory's representative thumbnail pointing at a
// live image child, preferring the naturally-first one.
func (r *Reconciler) repointThumb(ctx context.Context, dir *database.DirectoryRecord) error {
	files, err := r.db.ListFiles(ctx, dir.ID, false)
	if err != nil {
		return err
	}

	var first int64
	current := int64(0)
	for i := range files {
		if files[i].Type != mediatypes.FileTypeImage {
			continue
		}
		if first == 0 {
			first = files[i].ID
		}
		if files[i].ID == dir.ThumbFileID {
			current = files[i].ID
		}
	}

	// Keep a still-live current choice; otherwise fall to the first image,
	// or clear when none remain.
	target := current
	if target == 0 {
		target = first
	}
	if target == dir.ThumbFileID {
		return nil
	}

	tx, err := r.db.BeginBatch()
	if err != nil {
		return err
	}
	err = r.db.SetDirectoryThumb(tx, dir.ID, target)
	if endErr := r.db.EndBatch(tx, err); endErr != nil {
		return endErr
	}
	dir.ThumbFileID = target
	return nil
}

const (
	actionCreated = "created"
	actionUpdated = "updated"
	actionDeleted = "deleted"
	actionRevived = "revived"
)

func (r *Result) count(action string) {
	switch action {
	case actionCreated:
		r.Created++
	case actionUpdated:
		r.Updated++
	case actionDeleted:
		r.Deleted++
	case actionRevived:
		r.Revived++
	}
}

func recordMutations(res Result) {
	if res.Created > 0 {
		metrics.ReconcileRecordsTotal.WithLabelValues(actionCreated).Add(float64(res.Created))
	}
	if res.Updated > 0 {
		metrics.ReconcileRecordsTotal.WithLabelValues(actionUpdated).Add(float64(res.Updated))
	}
	if res.Deleted > 0 {
		metrics.ReconcileRecordsTotal.WithLabelValues(actionDeleted).Add(float64(res.Deleted))
	}
	if res.Revived > 0 {
		metrics.ReconcileRecordsTotal.WithLabelValues(actionRevived).Add(float64(res.Revived))
	}
}

// absPath maps a root-relative "/" separated path to an absolute filesystem
// path.
func (r *Reconciler) absPath(relPath string) string {
	if relPath == "" {
		return r.root
	}
	return filepath.Join(r.root, filepath.FromSlash(relPath))
}

// normalizeRel cleans a root-relative path: "/" separators, no leading or
// trailing slash, "" for the root.
func normalizeRel(relPath string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(relPath, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func parentOf(relPath string) string {
	idx := strings.LastIndex(relPath, "/")
	if idx < 0 {
		return ""
	}
	return relPath[:idx]
}
