// Package rectify resamples the quadrilateral region of a frame into a flat,
// axis-aligned image.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/imaging"
)

// ErrDegenerateGeometry reports a quadrilateral that cannot be rectified:
// an output side below the minimum size or a singular transform.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// DefaultMinOutputSize is the smallest accepted output side in pixels.
const DefaultMinOutputSize = 100

// Result is a perspective-corrected card image.
type Result struct {
	Image   *image.NRGBA   `json:"-"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Corners detection.Quad `json:"corners"`
}

// TargetSize returns the undistorted width and height for the quad: the longer
// of each pair of opposite edges.
func TargetSize(q detection.Quad) (width, height float64) {
	tl, tr, br, bl := q.TL.Float(), q.TR.Float(), q.BR.Float(), q.BL.Float()
	width = math.Max(tl.Dist(tr), bl.Dist(br))
	height = math.Max(tl.Dist(bl), tr.Dist(br))
	return width, height
}

// OutputSize rounds TargetSize to whole pixels and enforces minSize.
func OutputSize(q detection.Quad, minSize int) (int, int, error) {
	w, h := TargetSize(q)
	width, height := int(math.Round(w)), int(math.Round(h))
	if width < minSize || height < minSize {
		return width, height, fmt.Errorf("%w: output %dx%d below minimum %d", ErrDegenerateGeometry, width, height, minSize)
	}
	return width, height, nil
}

// Rectify maps the quad TL, TR, BR, BL onto the corners of a new image sized
// by OutputSize and fills it by inverse mapping with bilinear interpolation.
// Samples that fall outside the frame are opaque black.
//
// The frame is only read; the result owns its pixels.
func Rectify(f imaging.Frame, q detection.Quad, minSize int) (*Result, error) {
	if f.Empty() {
		return nil, fmt.Errorf("cannot rectify empty frame")
	}
	width, height, err := OutputSize(q, minSize)
	if err != nil {
		return nil, err
	}

	hm, err := outputToFrame(q, width, height)
	if err != nil {
		return nil, err
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+4 : x*4+4]
			sx, sy, ok := hm.Apply(float64(x), float64(y))
			if !ok {
				px[0], px[1], px[2], px[3] = 0, 0, 0, 255
				continue
			}
			sampleBilinear(f.Image, sx, sy, px)
		}
	}

	return &Result{Image: out, Width: width, Height: height, Corners: q}, nil
}

// outputToFrame maps pixel coordinates of the width x height output onto the
// quad, with (width, height) landing exactly on BR.
func outputToFrame(q detection.Quad, width, height int) (Homography, error) {
	w, h := float64(width), float64(height)
	dst := [4]detection.PointF{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	src := [4]detection.PointF{q.TL.Float(), q.TR.Float(), q.BR.Float(), q.BL.Float()}
	return SolveHomography(dst, src)
}

// sampleBilinear writes the interpolated color at (x, y) into px. Neighbours
// outside the image contribute opaque black.
func sampleBilinear(img *image.NRGBA, x, y float64, px []uint8) {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	var acc [4]float64
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	offsets := [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for k, off := range offsets {
		wgt := weights[k]
		if wgt == 0 {
			continue
		}
		cx, cy := ix+off[0], iy+off[1]
		if cx < 0 || cy < 0 || cx >= img.Rect.Dx() || cy >= img.Rect.Dy() {
			acc[3] += 255 * wgt
			continue
		}
		i := cy*img.Stride + cx*4
		acc[0] += float64(img.Pix[i]) * wgt
		acc[1] += float64(img.Pix[i+1]) * wgt
		acc[2] += float64(img.Pix[i+2]) * wgt
		acc[3] += float64(img.Pix[i+3]) * wgt
	}
	for c := 0; c < 4; c++ {
		px[c] = uint8(math.Min(255, math.Max(0, math.Round(acc[c]))))
	}
}
