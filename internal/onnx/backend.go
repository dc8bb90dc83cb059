package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/grounding-detect/internal/detection"
)

// Name is the backend name used by --backend.
const Name = "onnx"

// VocabFile is looked up next to the checkpoint when no vocabulary is given.
const VocabFile = "vocab.txt"

// envMu guards the process-wide onnxruntime environment.
var envMu sync.Mutex

// LibraryCandidates lists the standard onnxruntime install locations for goos.
func LibraryCandidates(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files\onnxruntime\lib\onnxruntime.dll`,
			"onnxruntime.dll",
		}
	case "darwin":
		return []string{
			"/opt/homebrew/lib/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
		}
	}
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
}

// Backend runs an ONNX export of the detector in-process.
type Backend struct {
	libPath   string
	vocabPath string
	log       logrus.FieldLogger
}

// New creates the fallback backend. Empty libPath probes LibraryCandidates;
// empty vocabPath uses VocabFile next to the checkpoint.
func New(libPath, vocabPath string, log logrus.FieldLogger) *Backend {
	return &Backend{
		libPath:   libPath,
		vocabPath: vocabPath,
		log:       log.WithField("backend", Name),
	}
}

// Name implements detection.Backend.
func (b *Backend) Name() string { return Name }

// Probe checks that the onnxruntime shared library can be found.
func (b *Backend) Probe(_ context.Context) error {
	_, err := b.findLibrary()
	return err
}

func (b *Backend) findLibrary() (string, error) {
	if b.libPath != "" {
		if !isFile(b.libPath) {
			return "", fmt.Errorf("onnxruntime library not found: %s", b.libPath)
		}
		return b.libPath, nil
	}
	candidates := LibraryCandidates(runtime.GOOS)
	for _, p := range candidates {
		if isFile(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("onnxruntime library not found (searched %v)", candidates)
}

// Load builds an inference session from spec.CheckpointPath, which must be an
// ONNX export of the model described by spec.ConfigPath.
func (b *Backend) Load(_ context.Context, spec detection.ModelSpec) (detection.Model, error) {
	lib, err := b.findLibrary()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadModelConfig(spec.ConfigPath)
	if err != nil {
		return nil, err
	}
	vocab := b.vocabPath
	if vocab == "" {
		vocab = filepath.Join(filepath.Dir(spec.CheckpointPath), VocabFile)
	}
	tok, err := LoadTokenizer(vocab)
	if err != nil {
		return nil, err
	}

	if err := initEnvironment(lib); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(spec.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs: %w", err)
	}
	bind, err := bindNames(ioNames(inputs), ioNames(outputs))
	if err != nil {
		return nil, err
	}

	opts, err := newSessionOptions(spec.Device)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			b.log.WithError(err).Warn("failed to destroy session options")
		}
	}()

	sess, err := ort.NewDynamicAdvancedSession(spec.CheckpointPath, bind.inputs, bind.outputs(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"text_encoder": cfg.TextEncoderType,
		"max_text_len": cfg.MaxTextLen,
		"inputs":       bind.inputs,
	}).Debug("session created")

	return &model{
		session: sess,
		bind:    bind,
		cfg:     cfg,
		tok:     tok,
		special: tok.SpecialIDs(),
		log:     b.log,
	}, nil
}

func initEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return nil
}

func newSessionOptions(device detection.Device) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if device != detection.DeviceCUDA {
		return opts, nil
	}

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		_ = opts.Destroy()
		return nil, fmt.Errorf("failed to create CUDA options: %w", err)
	}
	defer cuda.Destroy()
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		_ = opts.Destroy()
		return nil, fmt.Errorf("failed to enable CUDA: %w", err)
	}
	return opts, nil
}

func ioNames(info []ort.InputOutputInfo) []string {
	names := make([]string, len(info))
	for i, in := range info {
		names[i] = in.Name
	}
	return names
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// errNoImage is returned when Predict gets an image without a tensor.
var errNoImage = errors.New("image has not been preprocessed")
