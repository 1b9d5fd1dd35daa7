package detection

import "math"

// ApproxPolygon simplifies a closed boundary with the Douglas-Peucker
// algorithm using tolerance epsilon in pixels.
//
// The boundary is split at the point farthest from its first point, each half
// is simplified as an open chain, and a final cyclic pass removes vertices
// that lie within epsilon of the segment joining their neighbours. The last
// pass matters when the first point sits on a straight run rather than at a
// corner.
func ApproxPolygon(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n < 3 {
		return append([]Point(nil), pts...)
	}

	far, farDist := 0, -1.0
	origin := pts[0].Float()
	for i := 1; i < n; i++ {
		if d := origin.Dist(pts[i].Float()); d > farDist {
			far, farDist = i, d
		}
	}
	if farDist <= 0 {
		return []Point{pts[0]}
	}

	// Two open chains sharing both split points: 0..far and far..n-1,0.
	ring := make([]Point, 0, n+1)
	ring = append(ring, pts...)
	ring = append(ring, pts[0])

	keep := make([]bool, n+1)
	simplifyChain(ring, 0, far, epsilon, keep)
	simplifyChain(ring, far, n, epsilon, keep)

	poly := make([]Point, 0, 8)
	for i := 0; i < n; i++ {
		if keep[i] {
			poly = append(poly, ring[i])
		}
	}
	return pruneCollinear(poly, epsilon)
}

// simplifyChain marks the points of pts[lo..hi] that survive open-chain
// Douglas-Peucker. Both endpoints are always kept.
func simplifyChain(pts []Point, lo, hi int, epsilon float64, keep []bool) {
	keep[lo], keep[hi] = true, true

	type span struct{ lo, hi int }
	stack := []span{{lo, hi}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.hi-s.lo < 2 {
			continue
		}

		a, b := pts[s.lo].Float(), pts[s.hi].Float()
		idx, maxDist := -1, epsilon
		for i := s.lo + 1; i < s.hi; i++ {
			if d := segmentDistance(pts[i].Float(), a, b); d > maxDist {
				idx, maxDist = i, d
			}
		}
		if idx < 0 {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
	}
}

// pruneCollinear repeatedly drops the vertex closest to the segment joining
// its neighbours while that distance is within epsilon.
func pruneCollinear(poly []Point, epsilon float64) []Point {
	for len(poly) > 3 {
		n := len(poly)
		idx, minDist := -1, math.Inf(1)
		for i := 0; i < n; i++ {
			d := segmentDistance(poly[i].Float(), poly[(i+n-1)%n].Float(), poly[(i+1)%n].Float())
			if d < minDist {
				idx, minDist = i, d
			}
		}
		if minDist > epsilon {
			break
		}
		poly = append(poly[:idx], poly[idx+1:]...)
	}
	return poly
}

// segmentDistance returns the distance from p to the segment ab.
func segmentDistance(p, a, b PointF) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(PointF{X: a.X + t*dx, Y: a.Y + t*dy})
}
