// Package server implements the MCP (Model Context Protocol) server for the
// card scanner.
//
// The server exposes the detection and rectification stages as tools so that
// MCP-compatible clients can inspect photos, tune thresholds and replay
// recorded frame sequences without a camera.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//   - image_edge_detect: Canny edge map as used by the detector
//
// Card Operations:
//   - card_detect: Largest quadrilateral, ordered corners and gate verdict
//   - card_rectify: Perspective-corrected card from detected or given corners
//   - card_scan_frames: Auto-capture session over a directory of frames
//
// Card tools accept an optional profile (default, strict, lenient); without
// one they use the configuration the server was started with.
//
// # Image Caching
//
// Images are decoded once and cached by path for the lifetime of the server
// process. card_scan_frames reads its frames directly and does not populate
// the cache.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A scan that ends without a capture is not an error: card_scan_frames
// reports the outcome (captured, timed_out, exhausted or failed) in its
// result.
package server
