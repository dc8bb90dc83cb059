package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	// Width is the image width in pixels, after EXIF orientation.
	Width int `json:"width"`

	// Height is the image height in pixels, after EXIF orientation.
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif", or "unknown", by file extension.
	Format string `json:"format"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Load opens and decodes an image file, applying its EXIF orientation, and
// returns it as *image.NRGBA so every caller sees 8-bit RGB(A) pixels.
//
// Parameters:
//   - path: Absolute path to the image. PNG, JPEG, GIF, BMP, and TIFF decode.
//
// Returns:
//   - *image.NRGBA: The decoded image with bounds starting at (0,0).
//   - error: Non-nil if the file cannot be opened or decoded.
func Load(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return imaging.Clone(img), nil
}

// Describe reports the dimensions of an already decoded image together with
// the format and on-disk size of the file it came from.
func Describe(path string, img image.Image) (*ImageInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	b := img.Bounds()
	return &ImageInfo{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        formatFromExt(path),
		FileSizeBytes: stat.Size(),
	}, nil
}

// ReadFile returns the raw encoded bytes of an image file.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	}
	return "unknown"
}

// bounds returns img's rectangle, for helpers that accept image.Image.
func bounds(img image.Image) (w, h int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
