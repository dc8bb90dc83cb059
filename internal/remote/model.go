package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/grounding-detect/internal/detection"
	"github.com/ironsheep/grounding-detect/internal/imaging"
)

// model is a model loaded inside the service.
type model struct {
	backend *Backend
	id      string
	device  detection.Device
}

// LoadImage decodes the display image locally and keeps the file bytes for
// upload; the service applies the model-side transform itself.
func (m *model) LoadImage(_ context.Context, path string) (*detection.PreparedImage, error) {
	src, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	data, err := imaging.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &detection.PreparedImage{Path: path, Source: src, Encoded: data}, nil
}

type predictResponse struct {
	Boxes   [][]float64 `json:"boxes"`
	Logits  []float64   `json:"logits"`
	Phrases []string    `json:"phrases"`
}

// Predict uploads the image and caption; thresholds are applied by the service.
func (m *model) Predict(ctx context.Context, img *detection.PreparedImage, q detection.Query) (*detection.Result, error) {
	if len(img.Encoded) == 0 {
		return nil, fmt.Errorf("predict: image %s has no encoded data", img.Path)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile("image", filepath.Base(img.Path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Encoded); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	fields := []struct{ k, v string }{
		{"model_id", m.id},
		{"caption", q.Caption},
		{"box_threshold", strconv.FormatFloat(q.BoxThreshold, 'f', -1, 64)},
		{"text_threshold", strconv.FormatFloat(q.TextThreshold, 'f', -1, 64)},
		{"device", string(m.device)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.k, f.v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := m.backend.newRequest(ctx, http.MethodPost, "/v1/predict", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out predictResponse
	if err := m.backend.do(req, &out); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return out.toResult()
}

func (r predictResponse) toResult() (*detection.Result, error) {
	boxes := make([]detection.Box, len(r.Boxes))
	for i, b := range r.Boxes {
		if len(b) != 4 {
			return nil, fmt.Errorf("predict: box %d has %d coordinates, want 4", i, len(b))
		}
		boxes[i] = detection.Box{b[0], b[1], b[2], b[3]}
	}
	res, err := detection.NewResult(boxes, r.Logits, r.Phrases, false)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return res, nil
}

// Style implements detection.Model.
func (m *model) Style() imaging.Style { return imaging.PaletteStyle }

// Close releases the model in the service. Release failures are logged and
// not returned.
func (m *model) Close() error {
	req, err := m.backend.newRequest(context.Background(), http.MethodDelete, "/v1/models/"+url.PathEscape(m.id), nil)
	if err != nil {
		return err
	}
	if err := m.backend.do(req, nil); err != nil {
		m.backend.log.WithError(err).WithField("model_id", m.id).Warn("failed to release model")
	}
	return nil
}
