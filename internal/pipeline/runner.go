package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/grounding-detect/internal/detection"
	"github.com/ironsheep/grounding-detect/internal/imaging"
	"github.com/ironsheep/grounding-detect/internal/output"
	"github.com/ironsheep/grounding-detect/internal/paths"
)

// Outcome is what a successful run produced. ImageErr is set when the
// annotated image could not be written; the run still counts as a success.
type Outcome struct {
	Request    detection.Request
	Input      *paths.Resolved
	Image      *imaging.ImageInfo
	Result     *detection.Result
	Backend    string
	ImagePath  string
	ImageBytes int64
	ImageErr   error
	JSONPath   string
}

// Runner executes one detection request end to end.
type Runner struct {
	Resolver *paths.Resolver
	Backends []detection.Backend
	Mode     detection.Mode
	Report   *output.Reporter
	Log      logrus.FieldLogger
}

// Run validates and resolves req, runs detection on the selected backend,
// prints the report and writes the output files. The output directory is
// created only once detection has succeeded.
func (r *Runner) Run(ctx context.Context, req detection.Request) (out *Outcome, err error) {
	start := time.Now()
	log := r.Log.WithField("image", req.ImagePath)

	defer func() {
		if p := recover(); p != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("panic during detection: %v", p)
			out, err = nil, fail(KindInternal, "detect", fmt.Errorf("panic: %v", p))
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, fail(KindUsage, "validate", err)
	}

	outDir := r.Resolver.OutputDir(req.OutputDir)
	r.Report.Banner(req, outDir)

	in, err := r.Resolver.Resolve(req.ImagePath, req.ConfigPath, req.CheckpointPath)
	if err != nil {
		var nf *paths.NotFoundError
		if errors.As(err, &nf) && nf.Kind == "image" {
			r.Report.ImageNotFound(err, r.Resolver.WorkDir)
		}
		return nil, fail(KindResolution, "resolve", err)
	}
	log = log.WithField("image", in.Image)
	log.WithFields(logrus.Fields{
		"config":     in.Config,
		"checkpoint": in.Checkpoint,
	}).Debug("inputs resolved")

	r.Report.LoadingModel()
	backend, err := detection.Select(ctx, r.Mode, log, r.Backends...)
	if err != nil {
		return nil, fail(KindLoad, "select backend", err)
	}
	log = log.WithField("backend", backend.Name())

	model, err := backend.Load(ctx, detection.ModelSpec{
		ConfigPath:     in.Config,
		CheckpointPath: in.Checkpoint,
		Device:         req.Device,
	})
	if err != nil {
		return nil, fail(KindLoad, "load model", err)
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close model")
		}
	}()

	r.Report.ModelLoaded()

	r.Report.LoadingImage()
	img, err := model.LoadImage(ctx, in.Image)
	if err != nil {
		return nil, fail(KindLoad, "load image", err)
	}
	info, err := imaging.Describe(in.Image, img.Source)
	if err != nil {
		return nil, fail(KindLoad, "describe image", err)
	}
	log.WithFields(logrus.Fields{
		"width":  info.Width,
		"height": info.Height,
		"format": info.Format,
		"bytes":  info.FileSizeBytes,
	}).Debug("image loaded")
	r.Report.ImageLoaded()

	r.Report.Detecting()
	res, err := model.Predict(ctx, img, detection.Query{
		Caption:       req.Prompt,
		BoxThreshold:  req.BoxThreshold,
		TextThreshold: req.TextThreshold,
	})
	if err != nil {
		return nil, fail(KindInference, "predict", err)
	}
	r.Report.DetectionDone(res.Len())
	if res.Degraded {
		log.Warn("results use placeholder phrases")
		r.Report.Degraded(backend.Name())
	}
	r.Report.Results(res)

	out = &Outcome{Request: req, Input: in, Image: info, Result: res, Backend: backend.Name()}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fail(KindPersist, "create output directory", err)
	}

	r.Report.SavingImage()
	out.ImagePath = filepath.Join(outDir, output.ImageFile)
	annotated := imaging.Annotate(img.Source, res.Labels(), model.Style())
	if out.ImageBytes, out.ImageErr = imaging.SaveJPEG(out.ImagePath, annotated); out.ImageErr != nil {
		log.WithError(out.ImageErr).Warn("annotated image not saved")
		r.Report.SaveFailed(out.ImagePath)
	} else {
		r.Report.Saved(out.ImagePath, out.ImageBytes)
	}

	if req.SaveJSON {
		out.JSONPath = filepath.Join(outDir, output.JSONFile)
		if err := output.WriteJSON(out.JSONPath, output.NewResults(req, in.Image, res)); err != nil {
			return nil, fail(KindPersist, "save json", err)
		}
		r.Report.SavedJSON(out.JSONPath)
	}

	log.WithFields(logrus.Fields{
		"detections": res.Len(),
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}).Info("detection run finished")
	return out, nil
}

// IsNotFound reports whether err came from a missing input file.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
