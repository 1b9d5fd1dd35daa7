package scanner

import (
	"errors"

	"github.com/ironsheep/card-scanner/internal/rectify"
)

var (
	// ErrAcquisition reports that the frame source failed or ran dry. It ends
	// the session.
	ErrAcquisition = errors.New("frame acquisition failed")

	// ErrDetection reports a fault inside preprocessing or contour
	// extraction. A single failure is absorbed; a run longer than the retry
	// budget ends the session.
	ErrDetection = errors.New("detection failed")

	// ErrTimeoutExpired reports that no acceptable card was seen before the
	// timeout. It is the normal "nothing found" outcome, not a crash.
	ErrTimeoutExpired = errors.New("no card found before timeout")

	// ErrDegenerateGeometry is reported in Event.Degenerate when a locked
	// quadrilateral could not be rectified.
	ErrDegenerateGeometry = rectify.ErrDegenerateGeometry
)
