package present

import "github.com/ironsheep/card-scanner/internal/scanner"

// Multi fans events out to several sinks in order.
type Multi []scanner.Sink

func (m Multi) Overlay(e scanner.OverlayEvent) {
	for _, s := range m {
		s.Overlay(e)
	}
}

func (m Multi) Capture(e scanner.CaptureEvent) {
	for _, s := range m {
		s.Capture(e)
	}
}

func (m Multi) Status(e scanner.StatusEvent) {
	for _, s := range m {
		s.Status(e)
	}
}
