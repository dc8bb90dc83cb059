package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ironsheep/grounding-detect/internal/detection"
)

// Fixed file names inside the output directory.
const (
	ImageFile = "annotated_result.jpg"
	JSONFile  = "results.json"
)

// DetectionRecord is one detection in results.json.
type DetectionRecord struct {
	Phrase     string     `json:"phrase"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// Results is the results.json document: the request context plus every
// detection in result order.
type Results struct {
	Image         string            `json:"image"`
	Prompt        string            `json:"prompt"`
	BoxThreshold  float64           `json:"box_threshold"`
	TextThreshold float64           `json:"text_threshold"`
	Detections    []DetectionRecord `json:"detections"`
}

// NewResults builds the document for a finished run. imagePath should be the
// resolved absolute path.
func NewResults(req detection.Request, imagePath string, res *detection.Result) *Results {
	out := &Results{
		Image:         imagePath,
		Prompt:        req.Prompt,
		BoxThreshold:  req.BoxThreshold,
		TextThreshold: req.TextThreshold,
		Detections:    make([]DetectionRecord, 0, res.Len()),
	}
	for _, d := range res.Detections {
		out.Detections = append(out.Detections, DetectionRecord{
			Phrase:     d.Phrase,
			Confidence: d.Confidence,
			Box:        d.Box,
		})
	}
	return out
}

// WriteJSON writes r to path with 2-space indentation, replacing any
// existing file.
func WriteJSON(path string, r *Results) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// ReadJSON loads a results.json file.
func ReadJSON(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return &r, nil
}
