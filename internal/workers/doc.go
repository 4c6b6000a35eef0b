/*
Package workers provides utilities for determining optimal worker pool sizes
in containerized environments.

Go 1.19+ sets GOMAXPROCS from container CPU limits, while runtime.NumCPU()
still reports the host CPU count. The helpers here size worker pools from
GOMAXPROCS so that concurrency respects cgroup constraints:

	// CPU-bound work (content hashing)
	n := workers.ForCPU(8)

	// I/O-bound work (filesystem listing, stat)
	n := workers.ForIO(16)

	// Mixed work (read file, hash, write record)
	n := workers.ForMixed(12)

All functions honor the HASH_WORKERS environment variable as an operator
override. Pass limit 0 for no cap.
*/
package workers
