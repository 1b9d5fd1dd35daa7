package source

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/ironsheep/card-scanner/internal/imaging"
)

var (
	backgroundColor = color.NRGBA{R: 20, G: 24, B: 28, A: 255}
	cardColor       = color.NRGBA{R: 240, G: 238, B: 230, A: 255}
	inkColor        = color.NRGBA{R: 40, G: 40, B: 48, A: 255}
)

// Shot is a run of identical synthetic frames.
type Shot struct {
	// Card corners in any order. A zero Card renders an empty scene.
	Card [4]image.Point

	// Frames is the number of frames the shot lasts.
	Frames int
}

// Script describes a synthetic scene.
type Script struct {
	Width  int
	Height int
	Shots  []Shot
}

// Rect returns the corners of an axis-aligned card.
func Rect(r image.Rectangle) [4]image.Point {
	return [4]image.Point{r.Min, {X: r.Max.X, Y: r.Min.Y}, r.Max, {X: r.Min.X, Y: r.Max.Y}}
}

// DemoScript is a short scene that ends in a capture at 30 fps: an empty
// table, a card being moved into place and then held still at a slight tilt.
func DemoScript(width, height int) Script {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	cw, ch := width*45/100, width*45/100*55/89 // business card proportions
	cx, cy := width/2, height/2

	s := Script{Width: width, Height: height}
	s.Shots = append(s.Shots, Shot{Frames: 15})
	for i, dx := range []int{-width / 4, width / 8, -width / 10, 0} {
		x0 := cx + dx - cw/2
		y0 := cy - ch/2 + (i%2)*height/12
		s.Shots = append(s.Shots, Shot{Card: Rect(image.Rect(x0, y0, x0+cw, y0+ch)), Frames: 3})
	}
	tilt := ch / 10
	s.Shots = append(s.Shots, Shot{
		Card: [4]image.Point{
			{X: cx - cw/2 + tilt, Y: cy - ch/2},
			{X: cx + cw/2 - tilt, Y: cy - ch/2},
			{X: cx + cw/2, Y: cy + ch/2},
			{X: cx - cw/2, Y: cy + ch/2},
		},
		Frames: 45,
	})
	return s
}

// Synthetic renders a Script frame by frame.
type Synthetic struct {
	script Script
	shot   int
	inShot int
	seq    uint64
	pace   pacer
	cache  map[int]*image.NRGBA
}

// NewSynthetic returns a source that plays script at fps.
func NewSynthetic(script Script, fps int) *Synthetic {
	return &Synthetic{script: script, pace: newPacer(fps), cache: make(map[int]*image.NRGBA)}
}

// Next renders the next frame, or returns ErrExhausted after the last shot.
func (s *Synthetic) Next(ctx context.Context) (imaging.Frame, error) {
	for s.shot < len(s.script.Shots) && s.inShot >= s.script.Shots[s.shot].Frames {
		s.shot++
		s.inShot = 0
	}
	if s.shot >= len(s.script.Shots) {
		return imaging.Frame{}, ErrExhausted
	}
	if err := s.pace.wait(ctx); err != nil {
		return imaging.Frame{}, err
	}

	img, ok := s.cache[s.shot]
	if !ok {
		img = Render(s.script.Width, s.script.Height, s.script.Shots[s.shot].Card)
		s.cache[s.shot] = img
	}
	s.inShot++
	s.seq++
	return imaging.NewFrame(img, s.seq, time.Now())
}

// Close releases the rendered frames.
func (s *Synthetic) Close() error {
	s.cache = nil
	return nil
}

// Render draws a light card with a few lines of dark "text" on a dark
// background. The text follows the card's own axes, so it stays inside the
// card at any rotation.
func Render(width, height int, card [4]image.Point) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)
	if card == ([4]image.Point{}) {
		return img
	}

	poly := orderAround(card)
	fillQuad(img, poly, cardColor)

	// Text block in the upper-left of the card, in card coordinates (u along
	// the first edge, v along the second).
	for i := 0; i < 3; i++ {
		u0, v0 := 0.2, 0.25+float64(i)/8
		u1, v1 := u0+1/float64(3+i), v0+1.0/24
		line := [4]image.Point{
			cardPoint(poly, u0, v0),
			cardPoint(poly, u1, v0),
			cardPoint(poly, u1, v1),
			cardPoint(poly, u0, v1),
		}
		fillQuad(img, line, inkColor)
	}
	return img
}

// cardPoint maps (u, v) in [0,1]² bilinearly onto the ordered quad.
func cardPoint(q [4]image.Point, u, v float64) image.Point {
	lerp := func(a, b image.Point, t float64) (float64, float64) {
		return float64(a.X) + t*float64(b.X-a.X), float64(a.Y) + t*float64(b.Y-a.Y)
	}
	tx, ty := lerp(q[0], q[1], u)
	bx, by := lerp(q[3], q[2], u)
	return image.Pt(int(math.Round(tx+v*(bx-tx))), int(math.Round(ty+v*(by-ty))))
}

// fillQuad paints every pixel whose centre lies inside q.
func fillQuad(img *image.NRGBA, q [4]image.Point, c color.NRGBA) {
	bounds := image.Rectangle{Min: q[0], Max: q[0]}
	for _, p := range q[1:] {
		bounds = bounds.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	bounds = bounds.Intersect(img.Bounds())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if inside(q, float64(x)+0.5, float64(y)+0.5) {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

// orderAround sorts the corners by angle around their mean.
func orderAround(pts [4]image.Point) [4]image.Point {
	var mx, my float64
	for _, p := range pts {
		mx += float64(p.X) / 4
		my += float64(p.Y) / 4
	}
	angle := func(p image.Point) float64 {
		return math.Atan2(float64(p.Y)-my, float64(p.X)-mx)
	}
	for i := 1; i < 4; i++ {
		for j := i; j > 0 && angle(pts[j]) < angle(pts[j-1]); j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}
	return pts
}

// inside is the even-odd point-in-polygon test.
func inside(poly [4]image.Point, x, y float64) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := float64(poly[i].X), float64(poly[i].Y)
		xj, yj := float64(poly[j].X), float64(poly[j].Y)
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			in = !in
		}
	}
	return in
}
