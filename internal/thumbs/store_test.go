package thumbs

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
)

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestGetRendersAndCaches(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir := t.TempDir()

	src := filepath.Join(srcDir, "photo.png")
	writeTestImage(t, src, 800, 600)

	store, err := NewStore(cacheDir, 200)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	hash := "abcdef0123456789"
	if store.Exists(hash) {
		t.Fatal("thumbnail reported cached before render")
	}

	thumbPath, err := store.Get(hash, src)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !store.Exists(hash) {
		t.Error("thumbnail not cached after render")
	}

	img, err := imaging.Open(thumbPath)
	if err != nil {
		t.Fatalf("rendered thumbnail unreadable: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > 200 || bounds.Dy() > 200 {
		t.Errorf("thumbnail %dx%d exceeds 200px box", bounds.Dx(), bounds.Dy())
	}
	if bounds.Dx() != 200 {
		t.Errorf("landscape source should fill the box width, got %d", bounds.Dx())
	}

	// Second call serves the cached file.
	again, err := store.Get(hash, filepath.Join(srcDir, "deleted-by-now.png"))
	if err != nil {
		t.Fatalf("cached Get() error = %v", err)
	}
	if again != thumbPath {
		t.Errorf("cached path %q != first path %q", again, thumbPath)
	}
}

func TestGetRejectsShortHash(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("a", "/nope"); err == nil {
		t.Error("expected error for invalid content hash")
	}
}

func TestGetRenderFailure(t *testing.T) {
	store, err := NewStore(t.TempDir(), 100)
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "not-an-image.jpg")
	if err := os.WriteFile(src, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get("deadbeef", src); err == nil {
		t.Error("expected decode error for non-image source")
	}
	if store.Exists("deadbeef") {
		t.Error("failed render left a cached thumbnail behind")
	}
}

func TestConcurrentGetSharesRender(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "photo.png")
	writeTestImage(t, src, 400, 400)

	store, err := NewStore(cacheDir, 150)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = store.Get("cafecafe", src)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("concurrent Get %d error = %v", i, err)
		}
	}
}
