package detection

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ironsheep/grounding-detect/internal/imaging"
)

// Device selects where inference runs.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Label returns the upper-case name used in console output.
func (d Device) Label() string {
	return strings.ToUpper(string(d))
}

// Request is everything a single run needs. It is built once from CLI input
// and not modified afterwards.
type Request struct {
	ImagePath      string
	Prompt         string
	ConfigPath     string
	CheckpointPath string
	BoxThreshold   float64
	TextThreshold  float64
	Device         Device
	OutputDir      string
	SaveJSON       bool
}

// Validate checks the fields that do not depend on the filesystem.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ImagePath) == "" {
		return fmt.Errorf("image path is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("text prompt is required")
	}
	if err := checkThreshold("box threshold", r.BoxThreshold); err != nil {
		return err
	}
	if err := checkThreshold("text threshold", r.TextThreshold); err != nil {
		return err
	}
	switch r.Device {
	case DeviceCPU, DeviceCUDA:
	default:
		return fmt.Errorf("unknown device %q", r.Device)
	}
	return nil
}

func checkThreshold(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", name, v)
	}
	return nil
}

// ModelSpec identifies the model to load. Paths are absolute.
type ModelSpec struct {
	ConfigPath     string
	CheckpointPath string
	Device         Device
}

// Query is one prediction call.
type Query struct {
	Caption       string
	BoxThreshold  float64
	TextThreshold float64
}

// PreparedImage pairs the display-ready image with the model-ready form.
// Backends fill the representation they need: the local backend a
// normalized tensor, the service backend the encoded file bytes.
type PreparedImage struct {
	Path    string
	Source  *image.NRGBA
	Tensor  *imaging.Tensor
	Encoded []byte
}

// Box is a normalized (cx, cy, w, h) bounding box.
type Box [4]float64

// Detection is one matched region.
type Detection struct {
	Box        Box
	Confidence float64
	Phrase     string
}

// Result is the ordered output of one prediction.
type Result struct {
	Detections []Detection
	// Degraded marks placeholder phrases from the fallback backend.
	Degraded bool
}

// NewResult zips parallel box, score, and phrase slices into a Result. The
// slices must be the same length.
func NewResult(boxes []Box, scores []float64, phrases []string, degraded bool) (*Result, error) {
	if len(boxes) != len(scores) || len(boxes) != len(phrases) {
		return nil, fmt.Errorf("misaligned detector output: %d boxes, %d scores, %d phrases",
			len(boxes), len(scores), len(phrases))
	}
	dets := make([]Detection, len(boxes))
	for i := range boxes {
		dets[i] = Detection{Box: boxes[i], Confidence: scores[i], Phrase: phrases[i]}
	}
	return &Result{Detections: dets, Degraded: degraded}, nil
}

// Len returns the number of detections.
func (r *Result) Len() int { return len(r.Detections) }

// Labels converts detections to annotation labels, preserving order.
func (r *Result) Labels() []imaging.Label {
	out := make([]imaging.Label, len(r.Detections))
	for i, d := range r.Detections {
		out[i] = imaging.Label{Box: d.Box, Phrase: d.Phrase, Score: d.Confidence}
	}
	return out
}
