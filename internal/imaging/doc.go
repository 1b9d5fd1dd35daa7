// Package imaging holds the pixel-level stages of the card scanner: frame
// normalization, the grayscale/blur/Canny preprocessor, file loading with a
// path-keyed cache, preview overlays and PNG encoding.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward.
//
// # Buffer Ownership
//
// Preprocess borrows its scratch buffers from a pool for the duration of one
// call and returns a freshly allocated EdgeMap. Nothing computed for one frame
// is visible to the next. A Frame is owned by the pass that produced it; code
// that keeps pixels beyond that pass must copy them.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and may be called concurrently on different frames.
package imaging
