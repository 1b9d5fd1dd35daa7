package detection

// Quad holds four corners in canonical order.
type Quad struct {
	TL Point `json:"top_left"`
	TR Point `json:"top_right"`
	BR Point `json:"bottom_right"`
	BL Point `json:"bottom_left"`
}

// Points returns the corners in TL, TR, BR, BL order.
func (q Quad) Points() [4]Point {
	return [4]Point{q.TL, q.TR, q.BR, q.BL}
}

// OrderCorners labels four unordered points.
//
// The point with the smallest x+y is top-left and the one with the largest
// x+y is bottom-right. Of the remaining two, the one with the larger x is
// top-right (on equal x, the higher one) and the other bottom-left. The rule
// holds for convex quadrilaterals rotated less than about 45° from the image
// axes.
func OrderCorners(pts [4]Point) Quad {
	tl, br := 0, -1
	for i := 1; i < 4; i++ {
		if sum(pts[i]) < sum(pts[tl]) {
			tl = i
		}
	}
	for i := 0; i < 4; i++ {
		if i == tl {
			continue
		}
		if br < 0 || sum(pts[i]) > sum(pts[br]) {
			br = i
		}
	}

	rest := make([]Point, 0, 2)
	for i := 0; i < 4; i++ {
		if i != tl && i != br {
			rest = append(rest, pts[i])
		}
	}
	tr, bl := rest[0], rest[1]
	if bl.X > tr.X || (bl.X == tr.X && bl.Y < tr.Y) {
		tr, bl = bl, tr
	}

	return Quad{TL: pts[tl], TR: tr, BR: pts[br], BL: bl}
}

func sum(p Point) int {
	return p.X + p.Y
}
