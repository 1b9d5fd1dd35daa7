package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/present"
	"github.com/ironsheep/card-scanner/internal/rectify"
	"github.com/ironsheep/card-scanner/internal/scanner"
	"github.com/ironsheep/card-scanner/internal/source"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "card_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Debug("Tool failed")
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)

	// Card Operations
	case "card_detect":
		return s.handleCardDetect(args)
	case "card_rectify":
		return s.handleCardRectify(args)
	case "card_scan_frames":
		return s.handleCardScanFrames(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// configFor returns the server configuration, or the named profile.
func (s *Server) configFor(profile string) (config.Config, error) {
	if profile == "" {
		return s.cfg, nil
	}
	return config.Profile(profile)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageEdgeDetectArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = s.cfg.Edge.ThresholdLow
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = s.cfg.Edge.ThresholdHigh
	}
	f, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(f.Image, a.ThresholdLow, a.ThresholdHigh)
}

// === Card Operation Handlers ===

// CardDetectResult reports the detection outcome for one photo.
type CardDetectResult struct {
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Found      bool                 `json:"found"`
	QuadsFound int                  `json:"quads_found"`
	Candidate  *detection.Candidate `json:"candidate,omitempty"`
	Corners    *detection.Quad      `json:"corners,omitempty"`
	Gate       tracker.GateResult   `json:"gate"`
}

type cardDetectArgs struct {
	Path    string `json:"path"`
	Profile string `json:"profile"`
}

func (s *Server) handleCardDetect(args json.RawMessage) (interface{}, error) {
	var a cardDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.configFor(a.Profile)
	if err != nil {
		return nil, err
	}
	f, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return detectCard(f, cfg)
}

func detectCard(f imaging.Frame, cfg config.Config) (*CardDetectResult, error) {
	pipe := scanner.NewPipeline(cfg)
	edges, err := imaging.Preprocess(f, pipe.EdgeParams())
	if err != nil {
		return nil, err
	}
	quads, err := detection.FindQuads(edges, f.Area(), pipe.ContourParams())
	if err != nil {
		return nil, err
	}

	res := &CardDetectResult{Width: f.Width(), Height: f.Height(), QuadsFound: len(quads)}
	res.Candidate = detection.Largest(quads)
	res.Gate = pipe.Tracker().Params().Gate.Check(res.Candidate, f.Area())
	if res.Candidate != nil {
		q := detection.OrderCorners(res.Candidate.Points)
		res.Corners = &q
		res.Found = true
	}
	return res, nil
}

// CardRectifyResult is a perspective-corrected card.
type CardRectifyResult struct {
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Corners     detection.Quad `json:"corners"`
	Detected    bool           `json:"detected"` // corners came from card_detect
	ImageBase64 string         `json:"image_base64,omitempty"`
	MimeType    string         `json:"mime_type,omitempty"`
	OutputPath  string         `json:"output_path,omitempty"`
}

type cardRectifyArgs struct {
	Path       string            `json:"path"`
	Profile    string            `json:"profile"`
	Corners    []detection.Point `json:"corners"`
	OutputPath string            `json:"output_path"`
}

func (s *Server) handleCardRectify(args json.RawMessage) (interface{}, error) {
	var a cardRectifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.configFor(a.Profile)
	if err != nil {
		return nil, err
	}
	f, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	out := &CardRectifyResult{}
	var quad detection.Quad
	switch len(a.Corners) {
	case 0:
		det, err := detectCard(f, cfg)
		if err != nil {
			return nil, err
		}
		if !det.Found {
			return nil, fmt.Errorf("no card outline found in %s", a.Path)
		}
		quad = *det.Corners
		out.Detected = true
	case 4:
		quad = detection.OrderCorners([4]detection.Point{a.Corners[0], a.Corners[1], a.Corners[2], a.Corners[3]})
	default:
		return nil, fmt.Errorf("expected 4 corners, got %d", len(a.Corners))
	}

	res, err := rectify.Rectify(f, quad, cfg.Rectify.MinOutputSize)
	if err != nil {
		return nil, err
	}
	out.Width, out.Height, out.Corners = res.Width, res.Height, res.Corners

	if a.OutputPath != "" {
		if err := imaging.Save(res.Image, a.OutputPath); err != nil {
			return nil, err
		}
		out.OutputPath = a.OutputPath
		return out, nil
	}
	encoded, err := imaging.EncodePNGBase64(res.Image)
	if err != nil {
		return nil, err
	}
	out.ImageBase64, out.MimeType = encoded, "image/png"
	return out, nil
}

// Scan outcomes reported by card_scan_frames.
const (
	OutcomeCaptured  = "captured"
	OutcomeTimedOut  = "timed_out"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
)

// ScanFramesResult summarises an auto-capture run over a frame directory.
type ScanFramesResult struct {
	Session    string          `json:"session"`
	Outcome    string          `json:"outcome"`
	Frames     int             `json:"frames"`
	State      tracker.State   `json:"state"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
	Corners    *detection.Quad `json:"corners,omitempty"`
	OutputPath string          `json:"output_path,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type cardScanFramesArgs struct {
	Dir        string `json:"dir"`
	Profile    string `json:"profile"`
	LockFrames int    `json:"lock_frames"`
	OutputDir  string `json:"output_dir"`
}

// frameCounter counts processed frames.
type frameCounter struct {
	scanner.NopSink
	frames int
}

func (c *frameCounter) Overlay(scanner.OverlayEvent) {
	c.frames++
}

func (s *Server) handleCardScanFrames(args json.RawMessage) (interface{}, error) {
	var a cardScanFramesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.configFor(a.Profile)
	if err != nil {
		return nil, err
	}
	if a.LockFrames > 0 {
		cfg.Stability.LockFrames = a.LockFrames
	}

	src, err := source.NewDirSource(a.Dir, 0, false)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	logger := s.log.Logger
	counter := &frameCounter{}
	sinks := present.Multi{counter}
	if a.OutputDir != "" {
		sinks = append(sinks, present.NewFileSink(a.OutputDir, false, logger))
	}

	sess := scanner.NewSession(cfg, src, sinks, logger)
	res, err := sess.Run(context.Background())

	out := &ScanFramesResult{Session: sess.ID, Frames: counter.frames, State: sess.State().Tracker}
	switch {
	case err == nil:
		out.Outcome = OutcomeCaptured
		out.Width, out.Height, out.Corners = res.Width, res.Height, &res.Corners
		if a.OutputDir != "" {
			out.OutputPath = filepath.Join(a.OutputDir, present.CaptureName(sess.ID))
		}
	case errors.Is(err, scanner.ErrTimeoutExpired):
		out.Outcome = OutcomeTimedOut
	case errors.Is(err, source.ErrExhausted):
		out.Outcome = OutcomeExhausted
	default:
		out.Outcome = OutcomeFailed
		out.Error = err.Error()
	}

	s.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"outcome": out.Outcome,
		"frames":  out.Frames,
	}).Info("Frame scan finished")
	return out, nil
}
