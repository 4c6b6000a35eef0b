package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	content := []byte("not really a jpeg")

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

func TestHashFileEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	sum := sha256.Sum256(nil)
	if got != hex.EncodeToString(sum[:]) {
		t.Errorf("unexpected hash for empty file: %s", got)
	}
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "gone.jpg"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, ErrHashUnavailable) {
		t.Errorf("expected ErrHashUnavailable, got %v", err)
	}
}

func TestHashPathStable(t *testing.T) {
	a := HashPath("photos/2024")
	b := HashPath("photos/2024/")
	if a != b {
		t.Errorf("cleaned paths should hash identically: %s != %s", a, b)
	}

	if HashPath("photos/2024") == HashPath("photos/2025") {
		t.Error("distinct paths must not collide")
	}
}

func TestIdentityHashDistinguishesPaths(t *testing.T) {
	content := "abc123"

	a := IdentityHash(content, "photos/a.jpg")
	b := IdentityHash(content, "photos/b.jpg")
	if a == b {
		t.Error("same content at different paths must have distinct identity hashes")
	}

	if IdentityHash(content, "photos/a.jpg") != a {
		t.Error("identity hash must be deterministic")
	}
}
