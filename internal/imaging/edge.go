package imaging

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// EdgeParams configures Preprocess.
type EdgeParams struct {
	// Low is the hysteresis low threshold. Gradient magnitudes are measured on
	// the 0-255 intensity scale with a 3x3 Sobel operator.
	Low int

	// High is the hysteresis high threshold. Pixels at or above it seed edges.
	High int

	// BlurRadius is the Gaussian radius applied before gradients. A radius of
	// 2 corresponds to a 5x5 kernel. Zero disables smoothing.
	BlurRadius float64

	// DilateIterations grows the final edge map by one pixel per pass so that
	// single-pixel breaks in a card outline do not open the contour.
	DilateIterations int
}

// DefaultEdgeParams returns the thresholds used for card capture.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{Low: 75, High: 200, BlurRadius: 2, DilateIterations: 1}
}

// EdgeMap is a binary edge image with the same size as its source frame.
//
// Pix holds one byte per pixel in row-major order: 255 for an edge, 0 otherwise.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewEdgeMap allocates an empty edge map.
func NewEdgeMap(width, height int) *EdgeMap {
	return &EdgeMap{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At reports whether (x, y) is an edge pixel. Coordinates outside the map are
// never edges.
func (m *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks or clears an edge pixel. Out-of-range coordinates are ignored.
func (m *EdgeMap) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if on {
		m.Pix[y*m.Width+x] = 255
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// Count returns the number of edge pixels.
func (m *EdgeMap) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Gray exposes the edge map as a grayscale image for encoding.
func (m *EdgeMap) Gray() *image.Gray {
	return &image.Gray{Pix: m.Pix, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
}

// workspace holds the float buffers of one Preprocess call. Buffers are
// borrowed from workspacePool at the start of the call and returned when it
// ends, so nothing survives past the pass that used it.
type workspace struct {
	lum   []float64
	mag   []float64
	dir   []uint8
	thin  []float64
	stack []int
}

var workspacePool = sync.Pool{
	New: func() interface{} { return &workspace{} },
}

func acquireWorkspace(n int) *workspace {
	ws := workspacePool.Get().(*workspace)
	ws.lum = growFloats(ws.lum, n)
	ws.mag = growFloats(ws.mag, n)
	ws.thin = growFloats(ws.thin, n)
	if cap(ws.dir) < n {
		ws.dir = make([]uint8, n)
	}
	ws.dir = ws.dir[:n]
	ws.stack = ws.stack[:0]
	return ws
}

func releaseWorkspace(ws *workspace) {
	workspacePool.Put(ws)
}

func growFloats(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Preprocess converts a color frame into a binary edge map.
//
// # Algorithm
//
//  1. Grayscale conversion (bild effect.Grayscale)
//
//  2. Gaussian blur (bild blur.Gaussian, radius 2 -> 5x5 kernel) to suppress
//     sensor noise
//
//  3. Gradient computation with Sobel operators:
//     magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx)
//
//  4. Non-maximum suppression along the quantized gradient direction
//
//  5. Hysteresis: pixels >= High seed edges, which then grow through
//     8-connected pixels >= Low
//
//  6. Optional 3x3 dilation
//
// The result is deterministic for identical input and parameters.
func Preprocess(f Frame, p EdgeParams) (*EdgeMap, error) {
	if f.Empty() {
		return nil, fmt.Errorf("cannot preprocess empty frame")
	}
	if p.Low < 0 || p.High <= p.Low {
		return nil, fmt.Errorf("invalid edge thresholds %d/%d", p.Low, p.High)
	}

	width, height := f.Width(), f.Height()
	ws := acquireWorkspace(width * height)
	defer releaseWorkspace(ws)

	var smooth image.Image = effect.Grayscale(f.Image)
	if p.BlurRadius > 0 {
		smooth = blur.Gaussian(smooth, p.BlurRadius)
	}
	loadLuminance(smooth, width, height, ws.lum)

	sobel(ws.lum, width, height, ws.mag, ws.dir)
	suppressNonMaxima(ws.mag, ws.dir, width, height, ws.thin)

	edges := NewEdgeMap(width, height)
	ws.stack = hysteresis(ws.thin, width, height, float64(p.Low), float64(p.High), edges, ws.stack)

	for i := 0; i < p.DilateIterations; i++ {
		edges = dilate(edges)
	}
	return edges, nil
}

// loadLuminance copies the first channel of a grayscale-valued image into lum.
func loadLuminance(img image.Image, width, height int, lum []float64) {
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width]
			for x, v := range row {
				lum[y*width+x] = float64(v)
			}
		}
	case *image.RGBA:
		for y := 0; y < height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width*4]
			for x := 0; x < width; x++ {
				lum[y*width+x] = float64(row[x*4])
			}
		}
	default:
		b := img.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
				lum[y*width+x] = float64(r >> 8)
			}
		}
	}
}

// Gradient direction sectors used by non-maximum suppression.
const (
	dirHorizontal uint8 = iota // gradient along x: compare left/right
	dirDiagonalUp              // compare upper-right/lower-left
	dirVertical                // compare up/down
	dirDiagonalDown            // compare upper-left/lower-right
)

func sobel(lum []float64, width, height int, mag []float64, dir []uint8) {
	for y := 0; y < height; y++ {
		ym := clamp(y-1, 0, height-1) * width
		y0 := y * width
		yp := clamp(y+1, 0, height-1) * width
		for x := 0; x < width; x++ {
			xm := clamp(x-1, 0, width-1)
			xp := clamp(x+1, 0, width-1)

			gx := (lum[ym+xp] + 2*lum[y0+xp] + lum[yp+xp]) - (lum[ym+xm] + 2*lum[y0+xm] + lum[yp+xm])
			gy := (lum[yp+xm] + 2*lum[yp+x] + lum[yp+xp]) - (lum[ym+xm] + 2*lum[ym+x] + lum[ym+xp])

			i := y0 + x
			mag[i] = math.Sqrt(gx*gx + gy*gy)
			dir[i] = quantizeDirection(math.Atan2(gy, gx))
		}
	}
}

func quantizeDirection(angle float64) uint8 {
	switch {
	case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
		return dirHorizontal
	case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
		return dirDiagonalDown
	case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
		return dirVertical
	default:
		return dirDiagonalUp
	}
}

// suppressNonMaxima keeps a pixel only if it is a local maximum along its
// gradient. The asymmetric comparison (> before, >= after) thins plateaus of
// equal magnitude to a single pixel.
func suppressNonMaxima(mag []float64, dir []uint8, width, height int, out []float64) {
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			m := mag[i]
			if m == 0 {
				continue
			}

			var before, after float64
			switch dir[i] {
			case dirHorizontal:
				before, after = mag[i-1], mag[i+1]
			case dirVertical:
				before, after = mag[i-width], mag[i+width]
			case dirDiagonalDown:
				// y grows downward, so a positive angle points to lower-right
				before, after = mag[i-width-1], mag[i+width+1]
			default:
				before, after = mag[i-width+1], mag[i+width-1]
			}

			if m > before && m >= after {
				out[i] = m
			}
		}
	}
}

// hysteresis marks strong pixels and every weak pixel 8-connected to one.
func hysteresis(thin []float64, width, height int, low, high float64, edges *EdgeMap, stack []int) []int {
	for i, v := range thin {
		if v < high || edges.Pix[i] != 0 {
			continue
		}
		edges.Pix[i] = 255
		stack = append(stack[:0], i)

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%width, p/width

			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= height {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := px + dx
					if nx < 0 || nx >= width || (dx == 0 && dy == 0) {
						continue
					}
					n := ny*width + nx
					if edges.Pix[n] == 0 && thin[n] >= low {
						edges.Pix[n] = 255
						stack = append(stack, n)
					}
				}
			}
		}
	}
	return stack
}

// dilate applies a 3x3 maximum filter.
func dilate(m *EdgeMap) *EdgeMap {
	out := NewEdgeMap(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] == 0 {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					out.Set(x+dx, y+dy, true)
				}
			}
		}
	}
	return out
}

// EdgeDetectResult contains an edge-detected image encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EdgeDetect runs Preprocess on an arbitrary image and encodes the edge map.
//
// Recommended starting points:
//   - Cards on a plain desk: thresholdLow=75, thresholdHigh=200
//   - Low contrast or dim light: thresholdLow=50, thresholdHigh=150
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	frame, err := NewFrame(img, 0, time.Time{})
	if err != nil {
		return nil, err
	}

	params := DefaultEdgeParams()
	params.Low = thresholdLow
	params.High = thresholdHigh
	params.DilateIterations = 0

	edges, err := Preprocess(frame, params)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodePNGBase64(edges.Gray())
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Width,
		Height:      edges.Height,
		EdgePixels:  edges.Count(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
