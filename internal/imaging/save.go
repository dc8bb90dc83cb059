package imaging

import (
	"fmt"
	"image"
	"os"

	"github.com/anthonynsimon/bild/imgio"
)

// JPEGQuality is the encoder quality for annotated output.
const JPEGQuality = 95

// SaveJPEG encodes img as JPEG to path, replacing any existing file, and
// returns the size of the written file.
func SaveJPEG(path string, img image.Image) (int64, error) {
	if err := imgio.Save(path, img, imgio.JPEGEncoder(JPEGQuality)); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return stat.Size(), nil
}
