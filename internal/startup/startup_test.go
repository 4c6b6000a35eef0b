package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_BOOL_BAD", "maybe")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_NEG", "-5")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_DUR_BAD", "soon")

	if got := getEnv("TEST_STR", "x"); got != "hello" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv default = %q", got)
	}

	if got := getEnvBool("TEST_BOOL", true); got != false {
		t.Error("getEnvBool did not parse false")
	}
	if got := getEnvBool("TEST_BOOL_BAD", true); got != true {
		t.Error("getEnvBool should fall back on unparseable value")
	}

	if got := getEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt = %d", got)
	}
	if got := getEnvInt("TEST_INT_NEG", 7); got != 7 {
		t.Error("getEnvInt should reject non-positive values")
	}

	if got := getEnvDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v", got)
	}
	if got := getEnvDuration("TEST_DUR_BAD", 3*time.Second); got != 3*time.Second {
		t.Error("getEnvDuration should fall back on unparseable value")
	}
}

func TestGetRouteGroup(t *testing.T) {
	cases := map[string]string{
		"/api/browse/{path:.*}": "api/browse",
		"/api/stats":            "api/stats",
		"/health":               "health",
		"/":                     "",
		"/api/thumbnail/{hash}": "api/thumbnail",
		"/api/rescan/{path:.*}": "api/rescan",
	}
	for path, want := range cases {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" {
		t.Error("build info missing fields")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("build info missing platform fields")
	}
}

func TestEnsureDirectory(t *testing.T) {
	base := t.TempDir()

	// Creates a missing directory.
	target := filepath.Join(base, "new")
	if err := ensureDirectory(target, "test"); err != nil {
		t.Fatalf("ensureDirectory(missing) error = %v", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Error("directory was not created")
	}

	// Accepts an existing directory.
	if err := ensureDirectory(target, "test"); err != nil {
		t.Errorf("ensureDirectory(existing) error = %v", err)
	}

	// Rejects a file in the way.
	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "test"); err == nil {
		t.Error("ensureDirectory should reject a non-directory path")
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Errorf("testWriteAccess(writable) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file left behind")
	}

	if err := testWriteAccess(filepath.Join(dir, "absent")); err == nil {
		t.Error("testWriteAccess should fail for a missing directory")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	base := t.TempDir()
	mediaDir := filepath.Join(base, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MEDIA_DIR", mediaDir)
	t.Setenv("CACHE_DIR", filepath.Join(base, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "database"))
	t.Setenv("PORT", "18080")
	t.Setenv("DEBOUNCE_WINDOW", "2s")
	t.Setenv("HASH_BATCH_SIZE", "64")
	t.Setenv("THUMBNAIL_SIZE", "256")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.MediaDir != mediaDir {
		t.Errorf("MediaDir = %q", config.MediaDir)
	}
	if config.Port != "18080" {
		t.Errorf("Port = %q", config.Port)
	}
	if config.DebounceWindow != 2*time.Second {
		t.Errorf("DebounceWindow = %v", config.DebounceWindow)
	}
	if config.ThumbnailSize != 256 {
		t.Errorf("ThumbnailSize = %d", config.ThumbnailSize)
	}
	if config.HashBatchSize != 64 {
		t.Errorf("HashBatchSize = %d", config.HashBatchSize)
	}
	if config.DatabasePath != filepath.Join(base, "database", "index.db") {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
	if !config.ThumbnailsEnabled {
		t.Error("thumbnails should be enabled with a writable cache dir")
	}
	if config.WatchRestartInterval != 4*time.Hour {
		t.Errorf("WatchRestartInterval default = %v", config.WatchRestartInterval)
	}
}

func TestLoadConfigMissingMediaDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(base, "nope"))
	t.Setenv("CACHE_DIR", filepath.Join(base, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "database"))

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig should fail when the media directory is missing")
	}
}
