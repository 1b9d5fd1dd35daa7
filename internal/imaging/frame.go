package imaging

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// Frame is one captured video frame.
//
// Pixels are always 4-channel 8-bit NRGBA with bounds starting at (0,0).
// A Frame belongs to the pipeline pass that pulled it from the source; sinks
// that receive it in an event must copy what they want to keep.
type Frame struct {
	Image     *image.NRGBA
	Seq       uint64
	Timestamp time.Time
}

// NewFrame normalizes any decoded image into a Frame.
//
// Images that are already zero-origin NRGBA are used as-is; everything else is
// converted with imaging.Clone, which also rebases the bounds to (0,0).
func NewFrame(img image.Image, seq uint64, ts time.Time) (Frame, error) {
	if img == nil {
		return Frame{}, fmt.Errorf("nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Frame{}, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = imaging.Clone(img)
	}
	return Frame{Image: nrgba, Seq: seq, Timestamp: ts}, nil
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// Area returns width × height, the denominator of all relative-size checks.
func (f Frame) Area() float64 {
	return float64(f.Width()) * float64(f.Height())
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width() == 0 || f.Height() == 0
}
