package media

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for annotated JPEG output
const JPEGQuality = 95

// DecodeImage reads and decodes an image file. The format is sniffed from
// the content, so a file with an image extension but other content fails.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ResizeForInference scales an image to a size x size square
func ResizeForInference(img image.Image, size int) image.Image {
	return resize.Resize(uint(size), uint(size), img, resize.Bilinear)
}

// EncodedPath returns the path an image will actually be written to.
// WebP has no encoder, so those outputs are written as PNG.
func EncodedPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	}
	return path
}

// EncodeImage writes img in the format matching path's extension and returns
// the path written
func EncodeImage(path string, img image.Image) (string, error) {
	target := EncodedPath(path)

	err := WriteAtomic(target, func(w io.Writer) error {
		switch strings.ToLower(filepath.Ext(target)) {
		case ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		case ".bmp":
			return bmp.Encode(w, img)
		case ".tif", ".tiff":
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		default:
			return png.Encode(w, img)
		}
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// WriteAtomic writes to a uuid-named temp file beside path and renames it
// into place only when write succeeds. The temp file is removed on failure.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := TempPath(path)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

// TempPath returns a unique sibling of path that keeps its extension
func TempPath(path string) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.partial-%s%s", strings.TrimSuffix(path, ext), uuid.New().String(), ext)
}
