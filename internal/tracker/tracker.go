// Package tracker decides, frame by frame, when a detected card has been held
// still long enough to capture and when a session has gone on too long
// without one.
//
// The tracker is a pure function of its inputs: Evaluate and TimeOut take a
// State and return the next one. The caller owns the single live State of a
// session and threads it through successive calls.
package tracker

import (
	"math"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/detection"
)

// Params configures a Tracker.
type Params struct {
	Gate Gate

	// MaxMovement is the centroid displacement in pixels below which a frame
	// counts as stable.
	MaxMovement float64

	// MaxAreaChange is the relative area change below which a frame counts
	// as stable.
	MaxAreaChange float64

	// LockFrames is the number of consecutive stable frames that locks.
	LockFrames int
}

// DefaultParams returns the capture defaults.
func DefaultParams() Params {
	return ParamsFromConfig(config.DefaultConfig())
}

// ParamsFromConfig extracts the tracker settings from a scanner config.
func ParamsFromConfig(cfg config.Config) Params {
	return Params{
		Gate: Gate{
			MinAreaRatio:  cfg.Gate.MinAreaRatio,
			MaxAreaRatio:  cfg.Gate.MaxAreaRatio,
			MinAspect:     cfg.Gate.MinAspect,
			MaxAspect:     cfg.Gate.MaxAspect,
			RequireConvex: cfg.Gate.RequireConvex,
		},
		MaxMovement:   cfg.Stability.MaxMovement,
		MaxAreaChange: cfg.Stability.MaxAreaChange,
		LockFrames:    cfg.Stability.LockFrames,
	}
}

// Verdict reports how one frame was judged.
type Verdict struct {
	Gate GateResult `json:"gate"`

	// Stable is true when the candidate passed the gate and stayed within the
	// movement and area tolerances of the previous sample.
	Stable bool `json:"stable"`

	Movement   float64 `json:"movement"`
	AreaChange float64 `json:"area_change"`

	// Degenerate is set when the stored sample could not be compared (zero
	// area). The session was reset.
	Degenerate bool `json:"degenerate,omitempty"`

	// Locked is set on the one frame that reached the lock threshold.
	Locked bool `json:"locked,omitempty"`
}

// Tracker holds the immutable parameters of the stability state machine.
type Tracker struct {
	params Params
}

// New returns a Tracker. LockFrames below one is treated as one.
func New(p Params) Tracker {
	if p.LockFrames < 1 {
		p.LockFrames = 1
	}
	return Tracker{params: p}
}

// Params returns the tracker configuration.
func (t Tracker) Params() Params {
	return t.params
}

// Reset returns a fresh session state: Searching, count 0, no sample.
func (t Tracker) Reset() State {
	return State{}
}

// Progress returns lock progress in [0, 1].
func (t Tracker) Progress(s State) float64 {
	switch s.Phase {
	case Locked:
		return 1
	case Locking:
		return math.Min(1, float64(s.Count)/float64(t.params.LockFrames))
	}
	return 0
}

// Evaluate advances the state machine by one frame. c is the frame's
// candidate, or nil when none was found.
//
// Transitions:
//   - gate fails or no candidate: Searching, count 0
//   - gate passes, unstable: CandidateUnstable, count 0
//   - gate passes, stable: Locking(count+1), or Locked once count reaches
//     LockFrames
//
// Every gate-passing candidate becomes the new sample. The first gate-passing
// candidate with no sample to compare against is stable. Terminal states are
// returned unchanged.
func (t Tracker) Evaluate(s State, c *detection.Candidate, frameArea float64) (State, Verdict) {
	if s.Phase.Terminal() {
		return s, Verdict{}
	}

	var v Verdict
	v.Gate = t.params.Gate.Check(c, frameArea)
	if !v.Gate.Passed {
		s.Phase, s.Count = Searching, 0
		return s, v
	}

	sample := Sample{CX: c.Centroid.X, CY: c.Centroid.Y, Area: c.Area}
	if s.HasSample {
		if s.Sample.Area <= 0 {
			v.Degenerate = true
			return t.Reset(), v
		}
		v.Movement = math.Hypot(sample.CX-s.Sample.CX, sample.CY-s.Sample.CY)
		v.AreaChange = math.Abs(sample.Area-s.Sample.Area) / s.Sample.Area
		v.Stable = v.Movement < t.params.MaxMovement && v.AreaChange < t.params.MaxAreaChange
	} else {
		v.Stable = true
	}
	s.Sample, s.HasSample = sample, true

	if !v.Stable {
		s.Phase, s.Count = CandidateUnstable, 0
		return s, v
	}

	s.Count++
	if s.Count >= t.params.LockFrames {
		s.Phase = Locked
		v.Locked = true
	} else {
		s.Phase = Locking
	}
	return s, v
}

// TimeOut applies an expired no-candidate timer. Only Searching and
// CandidateUnstable time out; the second return value reports whether the
// transition happened.
func (t Tracker) TimeOut(s State) (State, bool) {
	if s.Phase != Searching && s.Phase != CandidateUnstable {
		return s, false
	}
	s.Phase, s.Count = TimedOut, 0
	return s, true
}
