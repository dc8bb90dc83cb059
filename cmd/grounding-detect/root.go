package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/grounding-detect/internal/config"
	"github.com/ironsheep/grounding-detect/internal/detection"
	"github.com/ironsheep/grounding-detect/internal/logging"
	"github.com/ironsheep/grounding-detect/internal/onnx"
	"github.com/ironsheep/grounding-detect/internal/output"
	"github.com/ironsheep/grounding-detect/internal/paths"
	"github.com/ironsheep/grounding-detect/internal/pipeline"
	"github.com/ironsheep/grounding-detect/internal/remote"
)

// errDetectionFailed is returned after a failed run has been reported.
var errDetectionFailed = errors.New("detection failed")

const helpExamples = `Examples:
  # Basic usage
  grounding-detect -i image.jpg -t "person . car . dog ."

  # Adjust thresholds for better accuracy
  grounding-detect -i image.jpg -t "cat" --box-threshold 0.3 --text-threshold 0.2

  # Save results as JSON
  grounding-detect -i image.jpg -t "objects" --save-json

  # Use GPU (if available)
  grounding-detect -i image.jpg -t "person" --gpu

  # Serve detection to MCP clients over stdio
  grounding-detect serve --gpu

Tuning Tips:
  - Lower box_threshold (e.g., 0.2-0.3) to detect more objects (may include false positives)
  - Raise box_threshold (e.g., 0.4-0.5) to only detect high-confidence objects
  - Lower text_threshold (e.g., 0.15-0.2) for more flexible text matching
  - Use specific, clear text prompts: "a red car . a person ." works better than "stuff"
  - Separate multiple objects with periods: "cat . dog . chair ."

Environment variables:
  GDINO_REPO_ROOT          GroundingDINO checkout for config/checkpoint paths (default /opt/GroundingDINO)
  GDINO_SERVICE_URL        inference service URL (default http://localhost:8765)
  GDINO_SERVICE_TIMEOUT    inference service request timeout (default 120s)
  ONNXRUNTIME_LIB          onnxruntime shared library for the fallback backend
  GDINO_VOCAB              text encoder vocab.txt for the fallback backend
  GDINO_LOG_LEVEL          debug, info, warn, error (default info)
`

// options are the command-line flags.
type options struct {
	image         string
	text          string
	output        string
	config        string
	checkpoint    string
	boxThreshold  float64
	textThreshold float64
	gpu           bool
	saveJSON      bool

	backendOptions
}

// backendOptions select and configure the detection backend.
type backendOptions struct {
	backend    string
	serviceURL string
	onnxLib    string
	vocab      string
	verbose    bool
}

func (o *options) request() detection.Request {
	device := detection.DeviceCPU
	if o.gpu {
		device = detection.DeviceCUDA
	}
	return detection.Request{
		ImagePath:      o.image,
		Prompt:         o.text,
		ConfigPath:     o.config,
		CheckpointPath: o.checkpoint,
		BoxThreshold:   o.boxThreshold,
		TextThreshold:  o.textThreshold,
		Device:         device,
		OutputDir:      o.output,
		SaveJSON:       o.saveJSON,
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "grounding-detect -i IMAGE -t PROMPT [flags]",
		Short:         "Run GroundingDINO with easy tuning options",
		Long:          "Detect objects described by a free-text prompt in a single image with GroundingDINO.\n\n" + helpExamples,
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.image, "image", "i", "", "Path to input image")
	f.StringVarP(&opts.text, "text", "t", "", "Text prompt (e.g., 'person . car . dog .')")
	addModelFlags(f, opts)
	f.BoolVar(&opts.saveJSON, "save-json", false, "Save results as JSON")
	addBackendFlags(f, &opts.backendOptions, cfg)

	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("text")
	cmd.SetVersionTemplate("grounding-detect {{.Version}}\n")
	cmd.AddCommand(newServeCmd(cfg))
	return cmd
}

// addModelFlags registers the per-run detection settings.
func addModelFlags(f *pflag.FlagSet, opts *options) {
	f.StringVarP(&opts.output, "output", "o", config.DefaultOutputDir, "Output directory")
	f.StringVarP(&opts.config, "config", "c", config.DefaultConfigPath, "Path to config file")
	f.StringVarP(&opts.checkpoint, "checkpoint", "p", config.DefaultCheckpointPath, "Path to checkpoint file")
	f.Float64Var(&opts.boxThreshold, "box-threshold", config.DefaultBoxThreshold, "Box confidence threshold (range: 0.0-1.0)")
	f.Float64Var(&opts.textThreshold, "text-threshold", config.DefaultTextThreshold, "Text matching threshold (range: 0.0-1.0)")
	f.BoolVar(&opts.gpu, "gpu", false, "Use GPU instead of CPU")
}

func addBackendFlags(f *pflag.FlagSet, opts *backendOptions, cfg *config.Config) {
	f.StringVar(&opts.backend, "backend", string(detection.ModeAuto), "Detection backend: auto, service, or onnx")
	f.StringVar(&opts.serviceURL, "service-url", cfg.ServiceURL, "Inference service URL")
	f.StringVar(&opts.onnxLib, "onnx-lib", cfg.ONNXLibPath, "onnxruntime shared library (fallback backend)")
	f.StringVar(&opts.vocab, "vocab", cfg.VocabPath, "Text encoder vocab.txt (fallback backend)")
	f.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging on stderr")
}

// newRunner builds a pipeline runner with both backends. Diagnostics go to
// the command's stderr, tagged with a fresh request id.
func newRunner(cmd *cobra.Command, cfg *config.Config, opts *backendOptions, report *output.Reporter) (*pipeline.Runner, logrus.FieldLogger, error) {
	mode, err := detection.ParseMode(opts.backend)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if opts.verbose {
		level = logrus.DebugLevel.String()
	}
	requestID := uuid.NewString()
	log := logging.NewWithWriter(cmd.ErrOrStderr(), level).WithField("request_id", requestID)

	resolver, err := paths.NewResolver("", cfg.RepoRoot, cfg.SentinelDir)
	if err != nil {
		return nil, nil, err
	}

	return &pipeline.Runner{
		Resolver: resolver,
		Backends: []detection.Backend{
			remote.New(strings.TrimRight(opts.serviceURL, "/"), cfg.ServiceTimeout, requestID, log),
			onnx.New(opts.onnxLib, opts.vocab, log),
		},
		Mode:   mode,
		Report: report,
		Log:    log,
	}, log, nil
}

func run(cmd *cobra.Command, cfg *config.Config, opts *options) error {
	report := output.NewReporter(cmd.OutOrStdout())
	runner, log, err := newRunner(cmd, cfg, &opts.backendOptions, report)
	if err != nil {
		return err
	}

	if _, err := runner.Run(cmd.Context(), opts.request()); err != nil {
		log.WithField("kind", pipeline.KindOf(err)).WithError(err).Debug("run failed")
		report.Error(err)
		report.Failure()
		return errDetectionFailed
	}
	report.Success()
	return nil
}
