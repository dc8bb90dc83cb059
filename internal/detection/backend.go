package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/grounding-detect/internal/imaging"
)

// Backend is a way of running the detector. Probe is the explicit
// capability check used at startup; Load is only called on a backend whose
// probe succeeded.
type Backend interface {
	Name() string
	Probe(ctx context.Context) error
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}

// Model is a loaded detector, owned by a single run.
type Model interface {
	// LoadImage decodes the image at path and prepares the model input.
	LoadImage(ctx context.Context, path string) (*PreparedImage, error)

	// Predict runs detection for q on img.
	Predict(ctx context.Context, img *PreparedImage, q Query) (*Result, error)

	// Style is the annotation style matching this model's phrase quality.
	Style() imaging.Style

	Close() error
}

// Mode picks a backend by name or automatically.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeService Mode = "service"
	ModeONNX    Mode = "onnx"
)

// ParseMode validates a --backend value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeService, ModeONNX:
		return m, nil
	case "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown backend %q (want auto, service, or onnx)", s)
}

// Select returns the backend to use. In auto mode backends are probed in the
// order given and the first that passes wins; otherwise the named backend
// must pass its probe.
func Select(ctx context.Context, mode Mode, log logrus.FieldLogger, backends ...Backend) (Backend, error) {
	if mode != ModeAuto {
		for _, b := range backends {
			if b.Name() != string(mode) {
				continue
			}
			if err := b.Probe(ctx); err != nil {
				return nil, fmt.Errorf("backend %s unavailable: %w", b.Name(), err)
			}
			return b, nil
		}
		return nil, fmt.Errorf("backend %s is not registered", mode)
	}

	var errs []error
	for _, b := range backends {
		err := b.Probe(ctx)
		if err == nil {
			return b, nil
		}
		log.WithField("backend", b.Name()).WithError(err).Warn("backend unavailable")
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no detection backends registered")
	}
	return nil, fmt.Errorf("no detection backend available: %w", errors.Join(errs...))
}
