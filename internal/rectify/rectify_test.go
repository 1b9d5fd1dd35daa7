package rectify

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/imaging"
)

// gradientFrame encodes each pixel's coordinates in its color so that
// resampling errors show up as wrong values.
func gradientFrame(t *testing.T, width, height int) imaging.Frame {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8((x + y) / 2), A: 255})
		}
	}
	f, err := imaging.NewFrame(img, 0, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func quad(x0, y0, x1, y1 int) detection.Quad {
	return detection.Quad{
		TL: detection.Point{X: x0, Y: y0},
		TR: detection.Point{X: x1, Y: y0},
		BR: detection.Point{X: x1, Y: y1},
		BL: detection.Point{X: x0, Y: y1},
	}
}

// An axis-aligned W x H rectangle at the origin rectifies to W x H.
func TestRectify_AxisAlignedAtOrigin(t *testing.T) {
	f := gradientFrame(t, 250, 200)

	res, err := Rectify(f, quad(0, 0, 200, 120), DefaultMinOutputSize)
	if err != nil {
		t.Fatalf("Rectify failed: %v", err)
	}
	if res.Width != 200 || res.Height != 120 {
		t.Errorf("size: got %dx%d, want 200x120", res.Width, res.Height)
	}
	if res.Image.Rect.Dx() != 200 || res.Image.Rect.Dy() != 120 {
		t.Errorf("image bounds: got %v", res.Image.Rect)
	}

	for _, p := range []image.Point{{0, 0}, {17, 3}, {120, 60}, {199, 119}} {
		got := res.Image.NRGBAAt(p.X, p.Y)
		want := f.Image.NRGBAAt(p.X, p.Y)
		if got != want {
			t.Errorf("pixel %v: got %v, want %v", p, got, want)
		}
	}
}

func TestRectify_Translated(t *testing.T) {
	f := gradientFrame(t, 250, 200)

	res, err := Rectify(f, quad(30, 40, 230, 160), DefaultMinOutputSize)
	if err != nil {
		t.Fatalf("Rectify failed: %v", err)
	}
	if res.Width != 200 || res.Height != 120 {
		t.Fatalf("size: got %dx%d, want 200x120", res.Width, res.Height)
	}
	for _, p := range []image.Point{{0, 0}, {100, 50}, {150, 110}} {
		got := res.Image.NRGBAAt(p.X, p.Y)
		want := f.Image.NRGBAAt(p.X+30, p.Y+40)
		if got != want {
			t.Errorf("pixel %v: got %v, want %v", p, got, want)
		}
	}
}

func TestRectify_Perspective(t *testing.T) {
	f := gradientFrame(t, 255, 255)
	// Top edge shorter than the bottom, as when the card tilts away.
	q := detection.Quad{
		TL: detection.Point{X: 60, Y: 30},
		TR: detection.Point{X: 190, Y: 30},
		BR: detection.Point{X: 230, Y: 140},
		BL: detection.Point{X: 20, Y: 140},
	}

	res, err := Rectify(f, q, DefaultMinOutputSize)
	if err != nil {
		t.Fatalf("Rectify failed: %v", err)
	}
	if res.Width != 210 {
		t.Errorf("width should follow the longer bottom edge: got %d, want 210", res.Width)
	}
	wantH := int(math.Round(math.Hypot(40, 110)))
	if res.Height != wantH {
		t.Errorf("height: got %d, want %d", res.Height, wantH)
	}

	// Output corners sample the quad corners.
	near := func(got color.NRGBA, x, y int) bool {
		return math.Abs(float64(got.R)-float64(x)) <= 1 && math.Abs(float64(got.G)-float64(y)) <= 1
	}
	if c := res.Image.NRGBAAt(0, 0); !near(c, 60, 30) {
		t.Errorf("top-left sample: got %v, want about (60,30)", c)
	}
	if c := res.Image.NRGBAAt(res.Width-1, 0); !near(c, 189, 30) {
		t.Errorf("top-right sample: got %v, want about (189,30)", c)
	}
}

func TestRectify_OutsideFrameIsBlack(t *testing.T) {
	f := gradientFrame(t, 120, 120)

	res, err := Rectify(f, quad(-100, -100, 100, 100), DefaultMinOutputSize)
	if err != nil {
		t.Fatalf("Rectify failed: %v", err)
	}
	if got := res.Image.NRGBAAt(10, 10); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("outside sample: got %v, want opaque black", got)
	}
	if got := res.Image.NRGBAAt(150, 150); got != f.Image.NRGBAAt(50, 50) {
		t.Errorf("inside sample: got %v, want %v", got, f.Image.NRGBAAt(50, 50))
	}
}

func TestRectify_TooSmall(t *testing.T) {
	f := gradientFrame(t, 200, 200)

	tests := []struct {
		name string
		q    detection.Quad
	}{
		{"narrow", quad(10, 10, 99, 150)},
		{"short", quad(10, 10, 160, 60)},
		{"collapsed", quad(50, 50, 50, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rectify(f, tt.q, DefaultMinOutputSize)
			if !errors.Is(err, ErrDegenerateGeometry) {
				t.Errorf("got %v, want ErrDegenerateGeometry", err)
			}
		})
	}
}

func TestRectify_EmptyFrame(t *testing.T) {
	if _, err := Rectify(imaging.Frame{}, quad(0, 0, 200, 120), DefaultMinOutputSize); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestTargetSize(t *testing.T) {
	w, h := TargetSize(quad(10, 20, 170, 120))
	if w != 160 || h != 100 {
		t.Errorf("got %gx%g, want 160x100", w, h)
	}
}

func TestOutputSize_Rounding(t *testing.T) {
	q := detection.Quad{
		TL: detection.Point{X: 0, Y: 0},
		TR: detection.Point{X: 150, Y: 1}, // 150.003
		BR: detection.Point{X: 150, Y: 101},
		BL: detection.Point{X: 0, Y: 100},
	}
	w, h, err := OutputSize(q, DefaultMinOutputSize)
	if err != nil {
		t.Fatal(err)
	}
	if w != 150 || h != 100 {
		t.Errorf("got %dx%d, want 150x100", w, h)
	}
}

func TestOutputToFrame_UsesRoundedSize(t *testing.T) {
	// Both horizontal edges are 100.499 long; the output is 100 wide.
	q := detection.Quad{
		TL: detection.Point{X: 0, Y: 0},
		TR: detection.Point{X: 100, Y: 10},
		BR: detection.Point{X: 100, Y: 70},
		BL: detection.Point{X: 0, Y: 60},
	}
	width, height, err := OutputSize(q, 50)
	if err != nil {
		t.Fatal(err)
	}
	if width != 100 || height != 60 {
		t.Fatalf("got %dx%d, want 100x60", width, height)
	}

	hm, err := outputToFrame(q, width, height)
	if err != nil {
		t.Fatal(err)
	}
	corners := []struct {
		x, y float64
		want detection.Point
	}{
		{0, 0, q.TL},
		{float64(width), 0, q.TR},
		{float64(width), float64(height), q.BR},
		{0, float64(height), q.BL},
	}
	for _, c := range corners {
		x, y, ok := hm.Apply(c.x, c.y)
		if !ok {
			t.Fatalf("(%g,%g) mapped to infinity", c.x, c.y)
		}
		if math.Abs(x-float64(c.want.X)) > 1e-6 || math.Abs(y-float64(c.want.Y)) > 1e-6 {
			t.Errorf("(%g,%g): got (%g,%g), want %v", c.x, c.y, x, y, c.want)
		}
	}
}

func TestSolveHomography(t *testing.T) {
	from := [4]detection.PointF{{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 600}, {X: 0, Y: 600}}
	to := [4]detection.PointF{{X: 412, Y: 233}, {X: 1187, Y: 301}, {X: 1120, Y: 702}, {X: 380, Y: 655}}

	h, err := SolveHomography(from, to)
	if err != nil {
		t.Fatalf("SolveHomography failed: %v", err)
	}
	for i := range from {
		x, y, ok := h.Apply(from[i].X, from[i].Y)
		if !ok {
			t.Fatalf("point %d mapped to infinity", i)
		}
		if math.Abs(x-to[i].X) > 1e-6 || math.Abs(y-to[i].Y) > 1e-6 {
			t.Errorf("point %d: got (%g,%g), want %v", i, x, y, to[i])
		}
	}
	if h[8] != 1 {
		t.Errorf("homography should be scaled so h33 = 1, got %g", h[8])
	}
}

func TestSolveHomography_Degenerate(t *testing.T) {
	square := [4]detection.PointF{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	same := [4]detection.PointF{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}
	if _, err := SolveHomography(square, same); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("coincident points: got %v", err)
	}

	pairs := [4]detection.PointF{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 10}}
	if _, err := SolveHomography(pairs, square); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("duplicated points: got %v", err)
	}
}
