package scanner

import (
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/rectify"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

// OverlayEvent describes one processed frame for live display.
//
// Frame is only valid during the Overlay call; sinks that keep pixels must
// copy them.
type OverlayEvent struct {
	Session   string               `json:"session"`
	Seq       uint64               `json:"seq"`
	Timestamp time.Time            `json:"timestamp"`
	Frame     imaging.Frame        `json:"-"`
	Candidate *detection.Candidate `json:"candidate,omitempty"`
	Corners   *detection.Quad      `json:"corners,omitempty"`
	State     tracker.State        `json:"state"`
	Verdict   tracker.Verdict      `json:"verdict"`
	Progress  float64              `json:"progress"`
	Color     string               `json:"color"` // hex, from the stability ramp
	Message   string               `json:"message"`
}

// Annotation converts the event into drawing instructions for
// imaging.DrawOverlay.
func (e OverlayEvent) Annotation() imaging.Annotation {
	a := imaging.Annotation{Progress: e.Progress, Message: e.Message}
	if e.Corners != nil {
		for _, p := range e.Corners.Points() {
			a.Outline = append(a.Outline, imagePoint(p))
		}
	}
	return a
}

// CaptureEvent carries the single rectified image of a session.
type CaptureEvent struct {
	Session   string          `json:"session"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Result    *rectify.Result `json:"result"`
}

// StatusKind classifies a StatusEvent.
type StatusKind string

const (
	StatusStarted     StatusKind = "started"
	StatusReset       StatusKind = "reset"
	StatusTimedOut    StatusKind = "timed_out"
	StatusDegenerate  StatusKind = "degenerate"
	StatusDetectError StatusKind = "detection_error"
	StatusFailed      StatusKind = "failed"
	StatusCaptured    StatusKind = "captured"
)

// StatusEvent is a session-level notice.
type StatusEvent struct {
	Session   string     `json:"session"`
	Kind      StatusKind `json:"kind"`
	Message   string     `json:"message"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Sink receives everything a session wants to show. Calls are made from the
// session goroutine, one at a time, and must not block for long.
type Sink interface {
	Overlay(OverlayEvent)
	Capture(CaptureEvent)
	Status(StatusEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Overlay(OverlayEvent) {}
func (NopSink) Capture(CaptureEvent) {}
func (NopSink) Status(StatusEvent)   {}

func imagePoint(p detection.Point) image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// Message returns the user-facing status line for a tracker state.
func Message(s tracker.State, progress float64) string {
	switch s.Phase {
	case tracker.Searching:
		return "Looking for card edges..."
	case tracker.CandidateUnstable:
		return "Card detected, aligning..."
	case tracker.Locking:
		return fmt.Sprintf("Hold still, capturing... %d%%", int(progress*100))
	case tracker.Locked:
		return "Captured"
	case tracker.TimedOut:
		return "No card found"
	}
	return ""
}
