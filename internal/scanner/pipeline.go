package scanner

import (
	"fmt"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/rectify"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

// State is everything a session carries from one frame to the next.
type State struct {
	Tracker tracker.State `json:"tracker"`

	// Failures counts consecutive frames on which detection failed.
	Failures int `json:"failures"`
}

// Event is the outcome of one Step.
type Event struct {
	Seq uint64

	// Candidate is the largest quadrilateral of the frame, gated or not.
	Candidate *detection.Candidate

	// Corners is the canonical ordering of Candidate.
	Corners *detection.Quad

	Verdict tracker.Verdict

	// Result is set on the frame that locked and rectified successfully.
	Result *rectify.Result

	// DetectErr is the recovered detection failure of this frame, if any.
	DetectErr error

	// Degenerate is set when the locked quad could not be rectified. The
	// tracker was reset and scanning continues.
	Degenerate error
}

// Pipeline runs preprocessing, extraction, tracking and rectification for
// one frame at a time. It holds no per-session state and is safe for
// concurrent use.
type Pipeline struct {
	edge        imaging.EdgeParams
	contour     detection.ContourParams
	tracker     tracker.Tracker
	minSize     int
	maxFailures int
}

// NewPipeline builds a pipeline from a validated configuration.
func NewPipeline(cfg config.Config) *Pipeline {
	return &Pipeline{
		edge: imaging.EdgeParams{
			Low:              cfg.Edge.ThresholdLow,
			High:             cfg.Edge.ThresholdHigh,
			BlurRadius:       cfg.Edge.BlurRadius,
			DilateIterations: cfg.Edge.DilateIterations,
		},
		contour: detection.ContourParams{
			MinArea:      cfg.Contour.MinArea,
			MinAreaRatio: cfg.Contour.MinAreaRatio,
			EpsilonRatio: cfg.Contour.ApproxEpsilonRatio,
		},
		tracker:     tracker.New(tracker.ParamsFromConfig(cfg)),
		minSize:     cfg.Rectify.MinOutputSize,
		maxFailures: cfg.Detection.MaxConsecutiveFailures,
	}
}

// Tracker returns the stability tracker used by the pipeline.
func (p *Pipeline) Tracker() tracker.Tracker {
	return p.tracker
}

// EdgeParams returns the preprocessing settings.
func (p *Pipeline) EdgeParams() imaging.EdgeParams {
	return p.edge
}

// ContourParams returns the candidate extraction settings.
func (p *Pipeline) ContourParams() detection.ContourParams {
	return p.contour
}

// Reset returns a fresh session state.
func (p *Pipeline) Reset() State {
	return State{Tracker: p.tracker.Reset()}
}

// Detect runs preprocessing and contour extraction on f. Panics inside either
// stage are returned as ErrDetection.
func (p *Pipeline) Detect(f imaging.Frame) (c *detection.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%w: panic: %v", ErrDetection, r)
		}
	}()

	edges, err := imaging.Preprocess(f, p.edge)
	if err != nil {
		return nil, fmt.Errorf("%w: preprocess: %v", ErrDetection, err)
	}
	c, err = detection.ExtractCandidate(edges, f.Area(), p.contour)
	if err != nil {
		return nil, fmt.Errorf("%w: extract: %v", ErrDetection, err)
	}
	return c, nil
}

// Step processes one frame against state s and returns the next state.
//
// A detection failure is treated as a frame without a candidate and counted;
// once more than the configured number of consecutive failures is reached
// Step returns an error wrapping ErrDetection. When the tracker locks, the
// corners are ordered and the frame rectified. A rectification failure
// resets the session and is reported in Event.Degenerate rather than as an
// error.
//
// Terminal states are returned unchanged without touching the frame.
func (p *Pipeline) Step(s State, f imaging.Frame) (State, Event, error) {
	ev := Event{Seq: f.Seq}
	if s.Tracker.Phase.Terminal() {
		return s, ev, nil
	}

	cand, err := p.Detect(f)
	if err != nil {
		ev.DetectErr = err
		s.Failures++
		if s.Failures > p.maxFailures {
			return s, ev, fmt.Errorf("%d consecutive failures: %w", s.Failures, err)
		}
	} else {
		s.Failures = 0
	}

	ev.Candidate = cand
	if cand != nil {
		q := detection.OrderCorners(cand.Points)
		ev.Corners = &q
	}

	s.Tracker, ev.Verdict = p.tracker.Evaluate(s.Tracker, cand, f.Area())
	if !ev.Verdict.Locked {
		return s, ev, nil
	}

	res, err := rectify.Rectify(f, *ev.Corners, p.minSize)
	if err != nil {
		ev.Degenerate = err
		s.Tracker = p.tracker.Reset()
		return s, ev, nil
	}
	ev.Result = res
	return s, ev, nil
}
