package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count sizes a worker pool from the available CPUs scaled by multiplier and
// capped at limit (0 for uncapped). GOMAXPROCS is the CPU source, so
// container CPU limits are respected. The HASH_WORKERS environment variable
// overrides the computed count; an invalid value is ignored.
func Count(multiplier float64, limit int) int {
	n := envOverride()
	if n == 0 {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

func envOverride() int {
	v := os.Getenv("HASH_WORKERS")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// ForCPU sizes a pool for CPU-bound work, one worker per CPU.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO sizes a pool for I/O-bound work, two workers per CPU.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed sizes a pool for work that blocks part of the time, such as
// hashing that alternates between disk reads and digest computation.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
