package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation describes what to draw over a preview frame.
type Annotation struct {
	// Outline is the detected quadrilateral in frame coordinates. Empty when
	// nothing was found.
	Outline []image.Point

	// Progress is the lock progress in [0, 1]; it selects the outline color.
	Progress float64

	// Message is a short status line drawn in the top-left corner.
	Message string
}

var (
	rampStart = mustHex("#e53935") // searching / unstable
	rampMid   = mustHex("#fdd835")
	rampEnd   = mustHex("#43a047") // locked
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// StabilityColor maps lock progress onto a red → yellow → green ramp blended
// in Lab space. Values outside [0, 1] are clamped.
func StabilityColor(progress float64) colorful.Color {
	switch {
	case progress <= 0:
		return rampStart
	case progress >= 1:
		return rampEnd
	case progress < 0.5:
		return rampStart.BlendLab(rampMid, progress*2).Clamped()
	default:
		return rampMid.BlendLab(rampEnd, (progress-0.5)*2).Clamped()
	}
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// DrawOverlay returns a copy of the frame with the annotation drawn on top.
// The frame itself is not modified.
func DrawOverlay(f Frame, a Annotation) *image.NRGBA {
	out := imaging.Clone(f.Image)
	stroke := toNRGBA(StabilityColor(a.Progress))

	n := len(a.Outline)
	if n >= 2 {
		for i := 0; i < n; i++ {
			p, q := a.Outline[i], a.Outline[(i+1)%n]
			drawLine(out, p, q, 2, stroke)
		}
		for _, p := range a.Outline {
			fillDisc(out, p, 4, stroke)
		}
	}

	if a.Message != "" {
		drawBanner(out, 8, 8, a.Message)
	}
	return out
}

// drawLine rasterizes a segment with Bresenham's algorithm, stamping a square
// brush of the given half-width at each step.
func drawLine(img *image.NRGBA, p, q image.Point, half int, c color.NRGBA) {
	dx := abs(q.X - p.X)
	dy := -abs(q.Y - p.Y)
	sx, sy := 1, 1
	if p.X > q.X {
		sx = -1
	}
	if p.Y > q.Y {
		sy = -1
	}
	err := dx + dy
	x, y := p.X, p.Y
	for {
		for by := -half + 1; by < half; by++ {
			for bx := -half + 1; bx < half; bx++ {
				setClipped(img, x+bx, y+by, c)
			}
		}
		if x == q.X && y == q.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func fillDisc(img *image.NRGBA, center image.Point, r int, c color.NRGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				setClipped(img, center.X+x, center.Y+y, c)
			}
		}
	}
}

func setClipped(img *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetNRGBA(x, y, c)
	}
}

// drawBanner renders text with basicfont on a translucent dark box.
func drawBanner(img *image.NRGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	box := image.Rect(x-4, y-2, x+width+4, y+face.Height+2).Intersect(img.Rect)
	draw.Draw(img, box, image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + face.Ascent)},
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
