//go:build !gocv

package source

import (
	"context"
	"errors"

	"github.com/ironsheep/card-scanner/internal/imaging"
)

// ErrNoCamera is returned by OpenWebcam in builds without OpenCV.
var ErrNoCamera = errors.New("camera support not built in (rebuild with -tags gocv)")

// Webcam is unavailable in this build.
type Webcam struct{}

// OpenWebcam always fails without the gocv build tag.
func OpenWebcam(device, width, height int) (*Webcam, error) {
	return nil, ErrNoCamera
}

func (w *Webcam) Next(ctx context.Context) (imaging.Frame, error) {
	return imaging.Frame{}, ErrNoCamera
}

func (w *Webcam) Close() error {
	return nil
}
