// Package remote is the primary detection backend: a client for a
// GroundingDINO inference service that exposes the library's load-model and
// predict helpers over HTTP.
//
// Endpoints:
//
//	GET    /health                  200 when the service is ready
//	POST   /v1/models/load          {"config_path","checkpoint_path","device"} -> {"model_id"}
//	POST   /v1/predict              multipart image + caption + thresholds -> boxes/logits/phrases
//	DELETE /v1/models/{model_id}    release the model
//
// Config and checkpoint paths are sent as absolute paths and must be
// readable by the service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/grounding-detect/internal/detection"
)

// Name is the backend name used by --backend.
const Name = "service"

// probeTimeout bounds the health check regardless of the request timeout.
const probeTimeout = 3 * time.Second

// Backend talks to the inference service at BaseURL.
type Backend struct {
	baseURL   string
	client    *http.Client
	requestID string
	log       logrus.FieldLogger
}

// New creates a service backend. requestID is sent as X-Request-ID on every
// call so service logs can be correlated with this run.
func New(baseURL string, timeout time.Duration, requestID string, log logrus.FieldLogger) *Backend {
	return &Backend{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		requestID: requestID,
		log:       log.WithField("backend", Name),
	}
}

// Name implements detection.Backend.
func (b *Backend) Name() string { return Name }

// Probe checks GET /health.
func (b *Backend) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := b.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

type loadRequest struct {
	ConfigPath     string `json:"config_path"`
	CheckpointPath string `json:"checkpoint_path"`
	Device         string `json:"device"`
}

type loadResponse struct {
	ModelID string `json:"model_id"`
}

// Load asks the service to load the model and move it to spec.Device.
func (b *Backend) Load(ctx context.Context, spec detection.ModelSpec) (detection.Model, error) {
	body, err := json.Marshal(loadRequest{
		ConfigPath:     spec.ConfigPath,
		CheckpointPath: spec.CheckpointPath,
		Device:         string(spec.Device),
	})
	if err != nil {
		return nil, fmt.Errorf("encode load request: %w", err)
	}

	req, err := b.newRequest(ctx, http.MethodPost, "/v1/models/load", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out loadResponse
	if err := b.do(req, &out); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if out.ModelID == "" {
		return nil, fmt.Errorf("load model: service returned no model id")
	}

	b.log.WithField("model_id", out.ModelID).Debug("model loaded")
	return &model{backend: b, id: out.ModelID, device: spec.Device}, nil
}

func (b *Backend) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if b.requestID != "" {
		req.Header.Set("X-Request-ID", b.requestID)
	}
	return req, nil
}

// do sends req and decodes a JSON body into out (which may be nil).
func (b *Backend) do(req *http.Request, out interface{}) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError builds an error from a non-2xx response, preferring the
// service's {"error": "..."} message when present.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("service returned %d", resp.StatusCode)
}
