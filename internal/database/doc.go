// Package database provides SQLite storage for the media index.
//
// It persists three kinds of rows:
//   - directory records (one per indexed folder, soft-deleted on removal)
//   - file records (one per indexed file, keyed by a unique identity hash)
//   - cache tracking entries (per-directory validity for the reconciler)
//
// The database uses WAL mode for concurrent read performance. All record
// mutations happen inside batch transactions driven by the reconciler; the
// event buffer flush is the only other writer and touches cache tracking
// rows exclusively.
package database
