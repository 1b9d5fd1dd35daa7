package detection

import (
	"math"
	"sort"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// PointF is a sub-pixel coordinate.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Float converts a pixel coordinate to PointF.
func (p Point) Float() PointF {
	return PointF{X: float64(p.X), Y: float64(p.Y)}
}

// Dist returns the Euclidean distance between two points.
func (p PointF) Dist(q PointF) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// RotatedRect is an oriented rectangle.
//
// Width is measured along the direction given by Angle (degrees, in image
// coordinates with y pointing down), Height perpendicular to it.
type RotatedRect struct {
	Center PointF  `json:"center"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle"`
}

// Aspect returns long side / short side. A rectangle with a zero side has an
// infinite aspect ratio.
func (r RotatedRect) Aspect() float64 {
	long, short := r.Width, r.Height
	if short > long {
		long, short = short, long
	}
	if short <= 0 {
		return math.Inf(1)
	}
	return long / short
}

// signedArea returns twice the signed area of a closed polygon. The sign is
// positive for clockwise order in image coordinates.
func signedArea(pts []Point) float64 {
	n := len(pts)
	var s float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s += float64(pts[i].X)*float64(pts[j].Y) - float64(pts[j].X)*float64(pts[i].Y)
	}
	return s
}

// PolygonArea returns the area of a closed polygon by the shoelace formula.
func PolygonArea(pts []Point) float64 {
	return math.Abs(signedArea(pts)) / 2
}

// Perimeter returns the length of a closed polygon.
func Perimeter(pts []Point) float64 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	var l float64
	for i := 0; i < n; i++ {
		l += pts[i].Float().Dist(pts[(i+1)%n].Float())
	}
	return l
}

// IsConvex reports whether a closed polygon turns the same way at every
// vertex. Collinear vertices are ignored; a polygon with no turns at all is
// not convex.
func IsConvex(pts []Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		a, b, c := pts[i], pts[(i+1)%n], pts[(i+2)%n]
		cr := cross(a, b, c)
		switch {
		case cr > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case cr < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return sign != 0
}

// cross returns the z component of (b-a) x (c-b).
func cross(a, b, c Point) int {
	return (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
}

// Centroid returns the area centroid of a closed polygon. Degenerate polygons
// fall back to the mean of their vertices.
func Centroid(pts []Point) PointF {
	n := len(pts)
	if n == 0 {
		return PointF{}
	}
	a2 := signedArea(pts)
	if a2 == 0 {
		var sx, sy float64
		for _, p := range pts {
			sx += float64(p.X)
			sy += float64(p.Y)
		}
		return PointF{X: sx / float64(n), Y: sy / float64(n)}
	}

	var cx, cy float64
	for i := 0; i < n; i++ {
		p, q := pts[i], pts[(i+1)%n]
		f := float64(p.X)*float64(q.Y) - float64(q.X)*float64(p.Y)
		cx += float64(p.X+q.X) * f
		cy += float64(p.Y+q.Y) * f
	}
	return PointF{X: cx / (3 * a2), Y: cy / (3 * a2)}
}

// ConvexHull returns the convex hull of pts (Andrew's monotone chain) without
// collinear points.
func ConvexHull(pts []Point) []Point {
	sorted := append([]Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	if len(sorted) < 3 {
		return sorted
	}

	turn := func(o, a, b Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// MinAreaRect returns the minimum-area oriented rectangle enclosing pts.
//
// One side of the optimal rectangle is collinear with a hull edge, so every
// hull edge is tried as a base direction.
func MinAreaRect(pts []Point) RotatedRect {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{Center: hull[0].Float()}
	}

	best := RotatedRect{}
	bestArea := math.Inf(1)
	for i := range hull {
		a, b := hull[i].Float(), hull[(i+1)%len(hull)].Float()
		length := a.Dist(b)
		if length == 0 {
			continue
		}
		ux, uy := (b.X-a.X)/length, (b.Y-a.Y)/length

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			dx, dy := float64(p.X)-a.X, float64(p.Y)-a.Y
			u := dx*ux + dy*uy
			v := -dx*uy + dy*ux
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		w, h := maxU-minU, maxV-minV
		if area := w * h; area < bestArea {
			bestArea = area
			mu, mv := (minU+maxU)/2, (minV+maxV)/2
			best = RotatedRect{
				Center: PointF{X: a.X + mu*ux - mv*uy, Y: a.Y + mu*uy + mv*ux},
				Width:  w,
				Height: h,
				Angle:  math.Atan2(uy, ux) * 180 / math.Pi,
			}
		}
	}
	return best
}
