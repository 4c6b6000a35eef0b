// Package reconciler keeps the stored index in line with the live
// filesystem.
//
// Reconciliation is per-directory and on-demand: a read of a directory whose
// cache tracking entry is invalidated (or absent) triggers a pass that lists
// the directory, diffs the listing against stored records under
// case-insensitive matching, and applies the difference in one transaction.
// Deletes are always soft; a case-only rename updates the record in place.
//
// Content hashing is the expensive step, so it runs in two phases: planned
// changes that need a hash go through a bounded worker pool first, then all
// surviving changes apply together. A hash failure skips only its own entry
// and leaves the directory invalidated for retry.
//
// Verify is the scheduled full sweep: every live directory is reconciled and
// orphaned records (parent record missing) are healed or retired.
package reconciler
