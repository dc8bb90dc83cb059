package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ironsheep/grounding-detect/internal/detection"
	"github.com/ironsheep/grounding-detect/internal/imaging"
	"github.com/ironsheep/grounding-detect/internal/output"
	"github.com/ironsheep/grounding-detect/internal/pipeline"
)

// Detector runs detection requests for the server.
type Detector interface {
	// Detect runs req, writing the progress report to report.
	Detect(ctx context.Context, req detection.Request, report io.Writer) (*pipeline.Outcome, error)

	// OutputDir resolves an output directory the way Detect does.
	OutputDir(dir string) string
}

// PipelineDetector runs each request on a copy of Runner with its own
// reporter and a per-call log field.
type PipelineDetector struct {
	Runner pipeline.Runner
}

func (d *PipelineDetector) Detect(ctx context.Context, req detection.Request, report io.Writer) (*pipeline.Outcome, error) {
	r := d.Runner
	r.Report = output.NewReporter(report)
	r.Log = r.Log.WithField("call_id", uuid.NewString())
	return r.Run(ctx, req)
}

func (d *PipelineDetector) OutputDir(dir string) string {
	return d.Runner.Resolver.OutputDir(dir)
}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "detect_objects").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// toolError carries the JSON-RPC code for a failed tool call.
type toolError struct {
	code    int
	message string
	data    interface{}
}

func (e *toolError) Error() string { return e.message }

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Invalid arguments return -32602; failed detections return -32000 with the
// pipeline error kind and the progress report in the error data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var te *toolError
		if errors.As(err, &te) {
			return s.errorResponse(req.ID, te.code, te.message, te.data)
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case ToolDetect:
		return s.handleDetect(ctx, args)
	case ToolReadResults:
		return s.handleReadResults(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type detectArgs struct {
	Image         string   `json:"image"`
	Prompt        string   `json:"prompt"`
	BoxThreshold  *float64 `json:"box_threshold"`
	TextThreshold *float64 `json:"text_threshold"`
	GPU           bool     `json:"gpu"`
	OutputDir     string   `json:"output_dir"`
	SaveJSON      bool     `json:"save_json"`
}

// request merges the arguments over the server defaults.
func (a *detectArgs) request(defaults detection.Request) detection.Request {
	req := defaults
	req.ImagePath = a.Image
	req.Prompt = a.Prompt
	if a.BoxThreshold != nil {
		req.BoxThreshold = *a.BoxThreshold
	}
	if a.TextThreshold != nil {
		req.TextThreshold = *a.TextThreshold
	}
	if a.GPU {
		req.Device = detection.DeviceCUDA
	}
	if a.OutputDir != "" {
		req.OutputDir = a.OutputDir
	}
	req.SaveJSON = a.SaveJSON
	return req
}

// DetectResult is the detect_objects tool result.
type DetectResult struct {
	Image          string                   `json:"image"`
	ImageInfo      *imaging.ImageInfo       `json:"image_info,omitempty"`
	Backend        string                   `json:"backend"`
	Degraded       bool                     `json:"degraded"`
	Detections     []output.DetectionRecord `json:"detections"`
	AnnotatedImage string                   `json:"annotated_image,omitempty"`
	ImageBytes     int64                    `json:"image_bytes,omitempty"`
	ImageError     string                   `json:"image_error,omitempty"`
	ResultsJSON    string                   `json:"results_json,omitempty"`
	Report         string                   `json:"report"`
}

func (s *Server) handleDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, &toolError{code: -32602, message: "Invalid params", data: err.Error()}
	}
	req := a.request(s.defaults)

	var report bytes.Buffer
	out, err := s.detect.Detect(ctx, req, &report)
	if err != nil {
		kind := pipeline.KindOf(err)
		s.log.WithField("kind", kind).WithError(err).Warn("detection failed")
		data := map[string]interface{}{
			"error":     err.Error(),
			"kind":      kind,
			"not_found": pipeline.IsNotFound(err),
			"report":    report.String(),
		}
		if kind == pipeline.KindUsage {
			return nil, &toolError{code: -32602, message: "Invalid params", data: data}
		}
		return nil, &toolError{code: -32000, message: "Detection failed", data: data}
	}

	doc := output.NewResults(req, out.Input.Image, out.Result)
	res := &DetectResult{
		Image:          doc.Image,
		ImageInfo:      out.Image,
		Backend:        out.Backend,
		Degraded:       out.Result.Degraded,
		Detections:     doc.Detections,
		AnnotatedImage: out.ImagePath,
		ImageBytes:     out.ImageBytes,
		ResultsJSON:    out.JSONPath,
		Report:         report.String(),
	}
	if out.ImageErr != nil {
		res.AnnotatedImage = ""
		res.ImageError = out.ImageErr.Error()
	}
	return res, nil
}

type readResultsArgs struct {
	OutputDir string `json:"output_dir"`
}

func (s *Server) handleReadResults(args json.RawMessage) (interface{}, error) {
	var a readResultsArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, &toolError{code: -32602, message: "Invalid params", data: err.Error()}
		}
	}
	dir := a.OutputDir
	if dir == "" {
		dir = s.defaults.OutputDir
	}
	return output.ReadJSON(filepath.Join(s.detect.OutputDir(dir), output.JSONFile))
}
