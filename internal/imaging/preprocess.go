package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Preprocessing constants. Not configurable.
const (
	ResizeShortSide = 800
	ResizeMaxSide   = 1333
)

var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is a dense CHW float32 image tensor without a batch dimension.
type Tensor struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// Shape returns the tensor shape with a leading batch dimension of 1.
func (t *Tensor) Shape() []int64 {
	return []int64{1, int64(t.Channels), int64(t.Height), int64(t.Width)}
}

// At returns the value at channel c, row y, column x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.Height+y)*t.Width+x]
}

// TargetSize computes the resized (width, height) for an image of w x h so
// that the shorter side becomes size, unless that would make the longer side
// exceed maxSize, in which case the shorter side shrinks accordingly.
// maxSize <= 0 disables the cap.
func TargetSize(w, h, size, maxSize int) (int, int) {
	if maxSize > 0 {
		minSide := float64(min(w, h))
		maxSide := float64(max(w, h))
		if maxSide/minSide*float64(size) > float64(maxSize) {
			size = int(math.RoundToEven(float64(maxSize) * minSide / maxSide))
		}
	}

	if (w <= h && w == size) || (h <= w && h == size) {
		return w, h
	}
	if w < h {
		return size, int(float64(size) * float64(h) / float64(w))
	}
	return int(float64(size) * float64(w) / float64(h)), size
}

// Preprocess resizes img with the fixed policy and converts it to a
// normalized CHW tensor.
func Preprocess(img image.Image) (*Tensor, error) {
	w, h := bounds(img)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("cannot preprocess empty image (%dx%d)", w, h)
	}

	tw, th := TargetSize(w, h, ResizeShortSide, ResizeMaxSide)
	resized := imaging.Resize(img, tw, th, imaging.Linear)
	return ToTensor(resized), nil
}

// ToTensor converts an NRGBA image to a normalized CHW tensor. Alpha is
// discarded.
func ToTensor(img *image.NRGBA) *Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			for c := 0; c < 3; c++ {
				v := float32(row[x*4+c]) / 255.0
				data[c*plane+i] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}

	return &Tensor{Channels: 3, Height: h, Width: w, Data: data}
}
