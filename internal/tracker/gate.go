package tracker

import (
	"github.com/ironsheep/card-scanner/internal/detection"
)

// Reason explains why a candidate failed the quality gate.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMissing   Reason = "no_candidate"
	ReasonTooSmall  Reason = "too_small"
	ReasonTooLarge  Reason = "too_large"
	ReasonNotConvex Reason = "not_convex"
	ReasonAspect    Reason = "aspect_ratio"
)

// Gate bounds the shape of an acceptable candidate.
type Gate struct {
	MinAreaRatio  float64
	MaxAreaRatio  float64
	MinAspect     float64
	MaxAspect     float64
	RequireConvex bool
}

// GateResult is the outcome of Gate.Check.
type GateResult struct {
	Passed    bool    `json:"passed"`
	Reason    Reason  `json:"reason,omitempty"`
	AreaRatio float64 `json:"area_ratio"`
	Aspect    float64 `json:"aspect"`
}

// Check applies the gate to a candidate. A nil candidate or a frame with no
// area fails with ReasonMissing. Bounds are inclusive.
func (g Gate) Check(c *detection.Candidate, frameArea float64) GateResult {
	if c == nil || frameArea <= 0 {
		return GateResult{Reason: ReasonMissing}
	}

	r := GateResult{AreaRatio: c.Area / frameArea, Aspect: c.Aspect()}
	switch {
	case r.AreaRatio < g.MinAreaRatio:
		r.Reason = ReasonTooSmall
	case r.AreaRatio > g.MaxAreaRatio:
		r.Reason = ReasonTooLarge
	case g.RequireConvex && !c.Convex:
		r.Reason = ReasonNotConvex
	case r.Aspect < g.MinAspect || r.Aspect > g.MaxAspect:
		r.Reason = ReasonAspect
	default:
		r.Passed = true
	}
	return r
}
