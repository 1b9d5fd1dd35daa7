// Package detection finds the card outline in an edge map.
//
// # Pipeline
//
//  1. FindContours: outer boundaries of the external edge components, traced
//     with Moore neighbour tracing
//  2. ApproxPolygon: Douglas-Peucker simplification at a tolerance
//     proportional to the boundary perimeter
//  3. FindQuads / ExtractCandidate: area filtering, four-vertex selection and
//     the largest-area pick
//  4. OrderCorners: canonical TL, TR, BR, BL labelling for rectification
//
// The largest quadrilateral wins. This is a greedy heuristic that assumes the
// card is the biggest rectangular edge-bounded region in view; it is not a
// general document detector.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// "Clockwise" in this package means clockwise as seen on screen.
package detection
