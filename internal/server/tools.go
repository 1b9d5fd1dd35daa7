package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func profileProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"default", "strict", "lenient"},
		"description": "Detection profile. Defaults to the server configuration.",
	}
}

func pointSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "integer"},
			"y": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x", "y"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for subsequent card operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_edge_detect",
			Description: "Return the Canny edge map used for card detection as a base64 PNG. Useful for tuning thresholds when a card is not found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Low hysteresis threshold (default 75)",
						"default":     75,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "High hysteresis threshold (default 200)",
						"default":     200,
					},
				},
				"required": []string{"path"},
			},
		},

		// Card Operations
		{
			Name:        "card_detect",
			Description: "Find the largest four-sided outline in a photo and report its corners in top-left, top-right, bottom-right, bottom-left order together with the quality gate verdict.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"profile": profileProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "card_rectify",
			Description: "Perspective-correct a card into a flat image. Corners are detected automatically unless given. Returns a base64 PNG, or writes it to output_path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"profile": profileProperty(),
					"corners": map[string]interface{}{
						"type":        "array",
						"items":       pointSchema(),
						"minItems":    4,
						"maxItems":    4,
						"description": "Optional card corners in any order",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional file to write instead of returning the image inline",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "card_scan_frames",
			Description: "Run an auto-capture session over a directory of frames (played in name order) and report whether and where a stable card was captured.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the directory of frames",
					},
					"profile": profileProperty(),
					"lock_frames": map[string]interface{}{
						"type":        "integer",
						"description": "Consecutive stable frames required (default from profile)",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Optional directory for the captured card image",
					},
				},
				"required": []string{"dir"},
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
