package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Tool names.
const (
	ToolDetect      = "detect_objects"
	ToolReadResults = "read_results"
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: ToolDetect,
			Description: "Detect the objects described by a free-text prompt in one image with GroundingDINO. " +
				"Writes annotated_result.jpg (and results.json when save_json is set) to the output directory " +
				"and returns every detection with its phrase, confidence and normalized center-format box.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Path to the input image. Relative paths are resolved against the server's working directory and the GroundingDINO checkout.",
					},
					"prompt": map[string]interface{}{
						"type":        "string",
						"description": "Objects to find, separated by periods (e.g. 'person . car . dog .')",
					},
					"box_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Box confidence threshold, 0.0-1.0 (default: 0.35)",
						"minimum":     0,
						"maximum":     1,
					},
					"text_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Text matching threshold, 0.0-1.0 (default: 0.25)",
						"minimum":     0,
						"maximum":     1,
					},
					"gpu": map[string]interface{}{
						"type":        "boolean",
						"description": "Run on CUDA instead of CPU (default: false)",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory for the output files (default: outputs)",
					},
					"save_json": map[string]interface{}{
						"type":        "boolean",
						"description": "Also write results.json (default: false)",
					},
				},
				"required": []string{"image", "prompt"},
			},
		},
		{
			Name:        ToolReadResults,
			Description: "Read the results.json written by an earlier detect_objects call with save_json set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Output directory of the earlier run (default: outputs)",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
