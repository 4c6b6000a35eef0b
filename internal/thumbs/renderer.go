package thumbs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // WebP decode support for imaging.Open
)

// jpegQuality balances size against visible artifacts at thumbnail scale.
const jpegQuality = 80

// render decodes the image at src, fits it into a size x size box preserving
// aspect ratio, and writes a JPEG to dst. The write goes through a temp file
// so a crashed render never leaves a truncated thumbnail behind.
func render(src, dst string, size int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", src, err)
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".thumb-*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create temp thumbnail: %w", err)
	}
	tmpName := tmp.Name()

	if err := imaging.Encode(tmp, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to encode thumbnail for %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move thumbnail into place: %w", err)
	}
	return nil
}
