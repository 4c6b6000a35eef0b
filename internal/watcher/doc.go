// Package watcher implements asynchronous change detection for the
// monitored media tree.
//
// Two cooperating pieces live here:
//
//   - Supervisor: owns the single fsnotify subscription, registers newly
//     created directories, and replaces the subscription on a fixed
//     schedule to survive the silent-watcher failure mode of long-running
//     processes.
//   - Buffer: a concurrency-safe debouncer that coalesces raw events into
//     dirty-directory markers and, after a fixed quiet window, flushes the
//     set to the cache tracking store as invalidated entries.
//
// The buffer is the only structure shared between the notification
// goroutine and the flush timer; correctness under concurrent insert during
// flush matters more here than raw throughput, so a single short mutex
// guards the coalescing map.
package watcher
