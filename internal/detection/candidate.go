package detection

import (
	"fmt"

	"github.com/ironsheep/card-scanner/internal/imaging"
)

// ContourParams configures candidate extraction.
type ContourParams struct {
	// MinArea rejects boundaries enclosing fewer square pixels.
	MinArea float64

	// MinAreaRatio rejects boundaries smaller than this fraction of the frame.
	// Zero disables the check.
	MinAreaRatio float64

	// EpsilonRatio is the Douglas-Peucker tolerance as a fraction of the
	// boundary perimeter.
	EpsilonRatio float64
}

// DefaultContourParams returns the extraction settings used for card capture.
func DefaultContourParams() ContourParams {
	return ContourParams{MinArea: 1000, EpsilonRatio: 0.02}
}

// Candidate is a quadrilateral that may be the card outline.
type Candidate struct {
	// Points are the polygon vertices in boundary order (clockwise). Use
	// OrderCorners for the canonical TL, TR, BR, BL labelling.
	Points [4]Point `json:"points"`

	// Area is the shoelace area of the quadrilateral.
	Area float64 `json:"area"`

	Convex   bool        `json:"convex"`
	Centroid PointF      `json:"centroid"`
	Box      RotatedRect `json:"box"` // minimum-area oriented rectangle
}

// NewCandidate derives the scalar attributes of a quadrilateral.
func NewCandidate(pts [4]Point) (Candidate, error) {
	poly := pts[:]
	area := PolygonArea(poly)
	if area <= 0 {
		return Candidate{}, fmt.Errorf("quadrilateral %v has no area", pts)
	}
	return Candidate{
		Points:   pts,
		Area:     area,
		Convex:   IsConvex(poly),
		Centroid: Centroid(poly),
		Box:      MinAreaRect(poly),
	}, nil
}

// Aspect returns long/short side of the candidate's oriented bounding box.
func (c Candidate) Aspect() float64 {
	return c.Box.Aspect()
}

// FindQuads returns every external boundary that passes the area filters and
// simplifies to exactly four vertices, in the order FindContours reports them.
func FindQuads(edges *imaging.EdgeMap, frameArea float64, p ContourParams) ([]Candidate, error) {
	if edges == nil {
		return nil, fmt.Errorf("nil edge map")
	}
	if p.EpsilonRatio <= 0 {
		return nil, fmt.Errorf("approximation tolerance must be positive, got %g", p.EpsilonRatio)
	}

	minArea := p.MinArea
	if p.MinAreaRatio > 0 && p.MinAreaRatio*frameArea > minArea {
		minArea = p.MinAreaRatio * frameArea
	}

	quads := make([]Candidate, 0)
	for _, c := range FindContours(edges) {
		if len(c.Points) < 4 || c.Area() < minArea {
			continue
		}
		poly := ApproxPolygon(c.Points, p.EpsilonRatio*Perimeter(c.Points))
		if len(poly) != 4 {
			continue
		}
		cand, err := NewCandidate([4]Point{poly[0], poly[1], poly[2], poly[3]})
		if err != nil {
			continue
		}
		quads = append(quads, cand)
	}
	return quads, nil
}

// ExtractCandidate returns the largest quadrilateral in the edge map, or nil
// when none survives. Equal areas keep the first one found in raster order.
func ExtractCandidate(edges *imaging.EdgeMap, frameArea float64, p ContourParams) (*Candidate, error) {
	quads, err := FindQuads(edges, frameArea, p)
	if err != nil {
		return nil, err
	}
	return Largest(quads), nil
}

// Largest returns the candidate with maximum area, preferring the earliest on
// ties, or nil for an empty slice.
func Largest(quads []Candidate) *Candidate {
	var best *Candidate
	for i := range quads {
		if best == nil || quads[i].Area > best.Area {
			best = &quads[i]
		}
	}
	return best
}
