package rectify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/card-scanner/internal/detection"
)

// Homography is a 3x3 planar projective transform in row-major order.
type Homography [9]float64

// Apply maps (x, y) through the transform. ok is false when the point maps
// to infinity.
func (h Homography) Apply(x, y float64) (px, py float64, ok bool) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < 1e-12 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}

// SolveHomography returns the transform mapping each from[i] onto to[i].
//
// Both point sets are first normalized (centroid at the origin, mean distance
// √2) so that the 8x8 system stays well conditioned for pixel coordinates in
// the thousands.
func SolveHomography(from, to [4]detection.PointF) (Homography, error) {
	tf, nf, err := normalize(from)
	if err != nil {
		return Homography{}, err
	}
	tt, nt, err := normalize(to)
	if err != nil {
		return Homography{}, err
	}

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := nf[i].X, nf[i].Y
		u, v := nt[i].X, nt[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}

	hn := mat.NewDense(3, 3, []float64{
		sol.AtVec(0), sol.AtVec(1), sol.AtVec(2),
		sol.AtVec(3), sol.AtVec(4), sol.AtVec(5),
		sol.AtVec(6), sol.AtVec(7), 1,
	})

	// H = T_to⁻¹ · Hn · T_from
	var ttInv mat.Dense
	if err := ttInv.Inverse(tt); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}
	var h mat.Dense
	h.Product(&ttInv, hn, tf)

	scale := h.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return Homography{}, fmt.Errorf("%w: transform maps the plane to infinity", ErrDegenerateGeometry)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h.At(r, c) / scale
		}
	}
	return out, nil
}

// normalize returns the similarity transform T and the transformed points.
func normalize(pts [4]detection.PointF) (*mat.Dense, [4]detection.PointF, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx, cy = cx/4, cy/4

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= 4
	if mean < 1e-9 {
		return nil, pts, fmt.Errorf("%w: coincident points", ErrDegenerateGeometry)
	}

	s := math.Sqrt2 / mean
	var out [4]detection.PointF
	for i, p := range pts {
		out[i] = detection.PointF{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return t, out, nil
}
