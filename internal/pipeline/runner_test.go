package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/grounding-detect/internal/detection"
	"github.com/ironsheep/grounding-detect/internal/imaging"
	"github.com/ironsheep/grounding-detect/internal/logging"
	"github.com/ironsheep/grounding-detect/internal/output"
	"github.com/ironsheep/grounding-detect/internal/paths"
)

// fakeBackend serves a fixed result without any model files being read.
type fakeBackend struct {
	name       string
	probeErr   error
	loadErr    error
	predictErr error
	panicMsg   string
	result     *detection.Result
	style      imaging.Style

	lastQuery detection.Query
	lastSpec  detection.ModelSpec
	closed    int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Probe(context.Context) error { return f.probeErr }

func (f *fakeBackend) Load(_ context.Context, spec detection.ModelSpec) (detection.Model, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.lastSpec = spec
	return &fakeModel{b: f}, nil
}

type fakeModel struct{ b *fakeBackend }

func (m *fakeModel) LoadImage(_ context.Context, path string) (*detection.PreparedImage, error) {
	src, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	return &detection.PreparedImage{Path: path, Source: src}, nil
}

func (m *fakeModel) Predict(_ context.Context, _ *detection.PreparedImage, q detection.Query) (*detection.Result, error) {
	if m.b.panicMsg != "" {
		panic(m.b.panicMsg)
	}
	m.b.lastQuery = q
	if m.b.predictErr != nil {
		return nil, m.b.predictErr
	}
	return m.b.result, nil
}

func (m *fakeModel) Style() imaging.Style { return m.b.style }

func (m *fakeModel) Close() error {
	m.b.closed++
	return nil
}

func catResult() *detection.Result {
	return &detection.Result{Detections: []detection.Detection{
		{Box: detection.Box{0.5, 0.5, 0.4, 0.4}, Confidence: 0.87, Phrase: "cat"},
	}}
}

// fixture is a work directory holding cat.jpg and a repo root holding the
// default config and checkpoint.
type fixture struct {
	workDir string
	repo    string
	stdout  *bytes.Buffer
	backend *fakeBackend
	runner  *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	work := filepath.Join(root, "work")
	repo := filepath.Join(root, "GroundingDINO")

	writeJPEG(t, filepath.Join(work, "cat.jpg"), 64, 48)
	touch(t, filepath.Join(repo, "groundingdino", "config", "GroundingDINO_SwinT_OGC.py"))
	touch(t, filepath.Join(repo, "weights", "groundingdino_swint_ogc.pth"))

	res, err := paths.NewResolver(work, repo, "repo")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		workDir: work,
		repo:    repo,
		stdout:  &bytes.Buffer{},
		backend: &fakeBackend{name: "service", result: catResult(), style: imaging.PaletteStyle},
	}
	f.runner = &Runner{
		Resolver: res,
		Backends: []detection.Backend{f.backend},
		Mode:     detection.ModeAuto,
		Report:   output.NewReporter(f.stdout),
		Log:      logging.Discard(),
	}
	return f
}

func (f *fixture) request() detection.Request {
	return detection.Request{
		ImagePath:      "cat.jpg",
		Prompt:         "cat .",
		ConfigPath:     "groundingdino/config/GroundingDINO_SwinT_OGC.py",
		CheckpointPath: "weights/groundingdino_swint_ogc.pth",
		BoxThreshold:   0.35,
		TextThreshold:  0.25,
		Device:         detection.DeviceCPU,
		OutputDir:      "outputs",
		SaveJSON:       true,
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{40, 40, 40, 255})
		}
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := jpeg.Encode(file, img, nil); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)
	out, err := f.runner.Run(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outDir := filepath.Join(f.workDir, "outputs")
	if out.ImagePath != filepath.Join(outDir, output.ImageFile) || out.ImageErr != nil || out.ImageBytes == 0 {
		t.Errorf("unexpected image outcome: %+v", out)
	}
	if _, err := imaging.Load(out.ImagePath); err != nil {
		t.Errorf("annotated image not readable: %v", err)
	}
	if out.Image == nil || out.Image.Width != 64 || out.Image.Height != 48 || out.Image.Format != "jpeg" {
		t.Errorf("image info: %+v", out.Image)
	}

	results, err := output.ReadJSON(filepath.Join(outDir, output.JSONFile))
	if err != nil {
		t.Fatalf("results.json: %v", err)
	}
	if results.Image != filepath.Join(f.workDir, "cat.jpg") || results.Prompt != "cat ." {
		t.Errorf("results context: %+v", results)
	}
	if len(results.Detections) != 1 || results.Detections[0].Phrase != "cat" {
		t.Errorf("results detections: %+v", results.Detections)
	}

	if f.backend.lastSpec.ConfigPath != filepath.Join(f.repo, "groundingdino", "config", "GroundingDINO_SwinT_OGC.py") {
		t.Errorf("config not resolved against repo root: %s", f.backend.lastSpec.ConfigPath)
	}
	if f.backend.lastQuery.BoxThreshold != 0.35 || f.backend.lastQuery.TextThreshold != 0.25 {
		t.Errorf("thresholds not passed through: %+v", f.backend.lastQuery)
	}
	if f.backend.closed != 1 {
		t.Errorf("model closed %d times", f.backend.closed)
	}

	report := f.stdout.String()
	for _, want := range []string{
		"Found 1 objects.",
		"1. cat: confidence = 0.870",
		"   Box: [0.500, 0.500, 0.400, 0.400]",
		"✅ Saved to: " + out.ImagePath,
		"✅ Saved JSON to: ",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestRun_MissingImageLeavesNoFiles(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.ImagePath = "missing.jpg"

	_, err := f.runner.Run(context.Background(), req)
	if err == nil {
		t.Fatal("Run should fail for a missing image")
	}
	if KindOf(err) != KindResolution || !IsNotFound(err) {
		t.Errorf("want resolution not-found error, got %v (kind %q)", err, KindOf(err))
	}
	if _, err := os.Stat(filepath.Join(f.workDir, "outputs")); !os.IsNotExist(err) {
		t.Error("output directory should not be created")
	}
	if f.backend.closed != 0 {
		t.Error("no model should have been loaded")
	}
	if !strings.Contains(f.stdout.String(), "Image not found!") {
		t.Errorf("missing not-found report:\n%s", f.stdout.String())
	}
}

func TestRun_MissingCheckpoint(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.CheckpointPath = "weights/other.pth"

	_, err := f.runner.Run(context.Background(), req)
	if KindOf(err) != KindResolution || !IsNotFound(err) {
		t.Errorf("got %v", err)
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	req := f.request()

	if _, err := f.runner.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(f.workDir, "outputs", output.JSONFile)
	first, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.runner.Run(context.Background(), req); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("results.json differs between identical runs")
	}

	entries, err := os.ReadDir(filepath.Join(f.workDir, "outputs"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected exactly two output files, got %d", len(entries))
	}
}

func TestRun_ImageWriteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	// A directory where the image should go makes the write fail.
	if err := os.MkdirAll(filepath.Join(f.workDir, "outputs", output.ImageFile), 0755); err != nil {
		t.Fatal(err)
	}

	out, err := f.runner.Run(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Run should succeed despite the image write failure: %v", err)
	}
	if out.ImageErr == nil {
		t.Error("ImageErr should record the failed write")
	}
	if !strings.Contains(f.stdout.String(), "❌ Failed to save image to:") {
		t.Errorf("failure not reported:\n%s", f.stdout.String())
	}
	if _, err := os.Stat(out.JSONPath); err != nil {
		t.Errorf("results.json should still be written: %v", err)
	}
}

func TestRun_JSONWriteFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(filepath.Join(f.workDir, "outputs", output.JSONFile), 0755); err != nil {
		t.Fatal(err)
	}
	_, err := f.runner.Run(context.Background(), f.request())
	if KindOf(err) != KindPersist {
		t.Errorf("want persist error, got %v", err)
	}
}

func TestRun_NoJSONUnlessAsked(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.SaveJSON = false

	out, err := f.runner.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if out.JSONPath != "" {
		t.Errorf("JSONPath should be empty, got %s", out.JSONPath)
	}
	if _, err := os.Stat(filepath.Join(f.workDir, "outputs", output.JSONFile)); !os.IsNotExist(err) {
		t.Error("results.json should not exist")
	}
}

func TestRun_DegradedResults(t *testing.T) {
	f := newFixture(t)
	f.backend.name = "onnx"
	f.backend.style = imaging.PlainStyle
	f.backend.result = &detection.Result{
		Detections: []detection.Detection{{Box: detection.Box{0.3, 0.3, 0.2, 0.2}, Confidence: 0.6, Phrase: "obj_0"}},
		Degraded:   true,
	}

	out, err := f.runner.Run(context.Background(), f.request())
	if err != nil {
		t.Fatal(err)
	}
	if out.Backend != "onnx" || !out.Result.Degraded {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if !strings.Contains(f.stdout.String(), "placeholders (obj_N)") {
		t.Errorf("degraded warning missing:\n%s", f.stdout.String())
	}
}

func TestRun_StageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *fakeBackend)
		want  Kind
	}{
		{"backend unavailable", func(b *fakeBackend) { b.probeErr = errors.New("connection refused") }, KindLoad},
		{"load fails", func(b *fakeBackend) { b.loadErr = errors.New("bad checkpoint") }, KindLoad},
		{"predict fails", func(b *fakeBackend) { b.predictErr = errors.New("misaligned") }, KindInference},
		{"predict panics", func(b *fakeBackend) { b.panicMsg = "index out of range" }, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.backend)

			out, err := f.runner.Run(context.Background(), f.request())
			if err == nil || out != nil {
				t.Fatalf("expected failure, got %+v", out)
			}
			if KindOf(err) != tt.want {
				t.Errorf("kind: got %q, want %q (%v)", KindOf(err), tt.want, err)
			}
			if _, err := os.Stat(filepath.Join(f.workDir, "outputs")); !os.IsNotExist(err) {
				t.Error("no output directory should be created on failure before detection")
			}
		})
	}
}

func TestRun_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.BoxThreshold = 1.2

	_, err := f.runner.Run(context.Background(), req)
	if KindOf(err) != KindUsage {
		t.Errorf("want usage error, got %v", err)
	}
	if f.stdout.Len() != 0 {
		t.Errorf("nothing should be printed for an invalid request:\n%s", f.stdout.String())
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := fail(KindLoad, "load model", base)
	if !errors.Is(err, base) {
		t.Error("Error should unwrap to its cause")
	}
	if err.Error() != "load model: boom" {
		t.Errorf("message: got %q", err.Error())
	}
	if KindOf(base) != "" {
		t.Error("plain errors have no kind")
	}
}
