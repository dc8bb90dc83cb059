package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/ironsheep/grounding-detect/internal/detection"
)

// ruleWidth is the width of the "=" separator lines.
const ruleWidth = 50

// Rule is the separator printed around the banner and results.
var Rule = strings.Repeat("=", ruleWidth)

// Reporter writes the human-readable progress report. Write errors are
// ignored; the report is informational.
type Reporter struct {
	w io.Writer
}

// NewReporter creates a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.w, format, args...)
}

// Banner prints the run parameters and the output directory.
func (r *Reporter) Banner(req detection.Request, outputDir string) {
	r.printf("\n🦕 Running GroundingDINO Detection\n")
	r.printf("%s\n", Rule)
	r.printf("Image: %s\n", req.ImagePath)
	r.printf("Prompt: %s\n", req.Prompt)
	r.printf("Box threshold: %v\n", req.BoxThreshold)
	r.printf("Text threshold: %v\n", req.TextThreshold)
	r.printf("Device: %s\n", req.Device.Label())
	r.printf("%s\n\n", Rule)
	r.printf("💾 Output will be saved to: %s\n\n", outputDir)
}

// ImageNotFound explains a failed image lookup.
func (r *Reporter) ImageNotFound(err error, workDir string) {
	r.printf("❌ Error: Image not found!\n")
	r.printf("   Searched for: %s\n", err)
	r.printf("   Current directory: %s\n", workDir)
	r.printf("   Please provide the full path to your image.\n")
}

// LoadingModel and the methods below print one status line each.
func (r *Reporter) LoadingModel() { r.printf("📦 Loading model...\n") }

func (r *Reporter) ModelLoaded() { r.printf("✅ Model loaded successfully!\n\n") }

func (r *Reporter) LoadingImage() { r.printf("🖼️  Loading image...\n") }

func (r *Reporter) ImageLoaded() { r.printf("✅ Image loaded successfully!\n\n") }

func (r *Reporter) Detecting() { r.printf("🔍 Running detection...\n") }

func (r *Reporter) DetectionDone(n int) {
	r.printf("✅ Detection complete! Found %d objects.\n\n", n)
}

// Degraded warns that the phrases in the results are placeholders.
func (r *Reporter) Degraded(backend string) {
	r.printf("⚠️  Results from the %s fallback: phrases are placeholders (obj_N), not prompt matches.\n\n", backend)
}

// Results prints one numbered entry per detection, in result order.
func (r *Reporter) Results(res *detection.Result) {
	r.printf("📊 Detection Results:\n")
	r.printf("%s\n", Rule)
	for i, d := range res.Detections {
		r.printf("%d. %s: confidence = %.3f\n", i+1, d.Phrase, d.Confidence)
		r.printf("   Box: [%.3f, %.3f, %.3f, %.3f]\n", d.Box[0], d.Box[1], d.Box[2], d.Box[3])
	}
	r.printf("%s\n\n", Rule)
}

func (r *Reporter) SavingImage() { r.printf("💾 Saving annotated image...\n") }

// Saved reports the annotated image and its size in KB.
func (r *Reporter) Saved(path string, size int64) {
	r.printf("✅ Saved to: %s\n", path)
	r.printf("   File size: %.1f KB\n\n", float64(size)/1024)
}

func (r *Reporter) SaveFailed(path string) {
	r.printf("❌ Failed to save image to: %s\n\n", path)
}

func (r *Reporter) SavedJSON(path string) {
	r.printf("✅ Saved JSON to: %s\n\n", path)
}

func (r *Reporter) Error(err error) {
	r.printf("❌ Error: %v\n", err)
}

func (r *Reporter) Success() {
	r.printf("🎉 Success! Check the output directory for results.\n")
}

func (r *Reporter) Failure() {
	r.printf("❌ Detection failed. See error messages above.\n")
}
