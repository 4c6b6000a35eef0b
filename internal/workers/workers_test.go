package workers

import (
	"runtime"
	"testing"
)

func TestCountScalesWithMultiplier(t *testing.T) {
	t.Setenv("HASH_WORKERS", "")

	cpus := runtime.GOMAXPROCS(0)
	if got := Count(1.0, 0); got != cpus {
		t.Errorf("Count(1.0, 0) = %d, want %d", got, cpus)
	}
	if got := Count(2.0, 0); got != cpus*2 {
		t.Errorf("Count(2.0, 0) = %d, want %d", got, cpus*2)
	}
}

func TestCountNeverBelowOne(t *testing.T) {
	t.Setenv("HASH_WORKERS", "")

	for _, multiplier := range []float64{0, -1, 0.01} {
		if got := Count(multiplier, 0); got < 1 {
			t.Errorf("Count(%v, 0) = %d, want >= 1", multiplier, got)
		}
	}
}

func TestCountRespectsLimit(t *testing.T) {
	t.Setenv("HASH_WORKERS", "")

	if got := Count(100.0, 3); got != 3 {
		t.Errorf("Count(100.0, 3) = %d, want 3", got)
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv("HASH_WORKERS", "7")
	if got := Count(1.0, 0); got != 7 {
		t.Errorf("Count with HASH_WORKERS=7 = %d, want 7", got)
	}

	// The limit caps overrides too.
	if got := Count(1.0, 4); got != 4 {
		t.Errorf("Count with HASH_WORKERS=7 and limit 4 = %d, want 4", got)
	}
}

func TestCountIgnoresInvalidOverride(t *testing.T) {
	for _, v := range []string{"nope", "0", "-3"} {
		t.Setenv("HASH_WORKERS", v)
		if got := Count(1.0, 0); got < 1 {
			t.Errorf("Count with HASH_WORKERS=%q = %d, want computed fallback >= 1", v, got)
		}
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv("HASH_WORKERS", "")

	cpus := runtime.GOMAXPROCS(0)
	if got := ForCPU(0); got != cpus {
		t.Errorf("ForCPU(0) = %d, want %d", got, cpus)
	}
	if got := ForIO(0); got != cpus*2 {
		t.Errorf("ForIO(0) = %d, want %d", got, cpus*2)
	}
	if got := ForMixed(0); got != int(float64(cpus)*1.5) {
		t.Errorf("ForMixed(0) = %d, want %d", got, int(float64(cpus)*1.5))
	}
	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}
}
