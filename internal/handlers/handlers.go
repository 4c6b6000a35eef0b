package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"media-index/internal/database"
	"media-index/internal/logging"
	"media-index/internal/reconciler"
	"media-index/internal/startup"
	"media-index/internal/thumbs"
)

type Handlers struct {
	db       *database.Database
	rec      *reconciler.Reconciler
	thumbs   *thumbs.Store // nil when the cache directory is unavailable
	mediaDir string
	started  time.Time
}

func New(db *database.Database, rec *reconciler.Reconciler, store *thumbs.Store, config *startup.Config) *Handlers {
	return &Handlers{
		db:       db,
		rec:      rec,
		thumbs:   store,
		mediaDir: config.MediaDir,
		started:  time.Now(),
	}
}

// Browse returns the indexed listing of a directory, reconciling it first if
// its cache entry is invalidated. The {path} route variable is root-relative;
// the bare route serves the root.
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	relPath := mux.Vars(r)["path"]

	view, err := h.rec.GetDirectoryView(r.Context(), relPath)
	if err != nil {
		if errors.Is(err, reconciler.ErrNotFound) {
			writeJSONError(w, "directory not found", http.StatusNotFound)
			return
		}
		logging.Error("Browse failed for %q: %v", relPath, err)
		writeJSONError(w, "failed to read directory", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, view)
}

// Rescan forces reconciliation of a directory. With ?recursive=true the whole
// subtree is invalidated; descendants reconcile on their next read.
func (h *Handlers) Rescan(w http.ResponseWriter, r *http.Request) {
	relPath := mux.Vars(r)["path"]
	recursive := r.URL.Query().Get("recursive") == "true"

	result, err := h.rec.ForceRescan(r.Context(), relPath, recursive)
	if err != nil {
		logging.Error("Rescan failed for %q: %v", relPath, err)
		writeJSONError(w, "rescan failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// Thumbnail serves the cached thumbnail for a file's content hash, rendering
// it on first request. Content-addressed URLs are immutable so aggressive
// client caching is safe.
func (h *Handlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	if h.thumbs == nil {
		writeJSONError(w, "thumbnails disabled", http.StatusNotFound)
		return
	}

	contentHash := mux.Vars(r)["hash"]
	if len(contentHash) < 2 {
		writeJSONError(w, "invalid content hash", http.StatusBadRequest)
		return
	}

	rec, dirPath, err := h.db.GetFileByContentHash(r.Context(), contentHash)
	if err != nil {
		writeJSONError(w, "no file with that content hash", http.StatusNotFound)
		return
	}

	src := filepath.Join(h.mediaDir, filepath.FromSlash(dirPath), rec.Name)
	thumbPath, err := h.thumbs.Get(contentHash, src)
	if err != nil {
		writeJSONError(w, "thumbnail unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, thumbPath)
}

// Stats returns index statistics: live counts plus the timing of the last
// verification pass.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.CalculateStats(r.Context())
	if err != nil {
		logging.Error("Stats calculation failed: %v", err)
		writeJSONError(w, "failed to calculate stats", http.StatusInternalServerError)
		return
	}

	cached := h.db.GetStats()
	stats.LastVerified = cached.LastVerified
	stats.VerifyDuration = cached.VerifyDuration

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}
