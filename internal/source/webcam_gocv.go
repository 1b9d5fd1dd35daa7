//go:build gocv

package source

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ironsheep/card-scanner/internal/imaging"
)

// Webcam reads frames from a camera through OpenCV.
type Webcam struct {
	device int
	cap    *gocv.VideoCapture
	seq    uint64

	// pending holds a read that outlived the context of its Next call.
	pending chan readResult
}

type readResult struct {
	img image.Image
	err error
}

// OpenWebcam opens camera device. width and height request a capture size;
// zero keeps the device default.
func OpenWebcam(device, width, height int) (*Webcam, error) {
	vc, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("error opening video capture device %d: %w", device, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Webcam{device: device, cap: vc}, nil
}

// Next reads one frame. The camera paces delivery. A read that is still
// blocked when ctx ends is picked up by the following call, so the device is
// never read from two goroutines.
func (w *Webcam) Next(ctx context.Context) (imaging.Frame, error) {
	if err := ctx.Err(); err != nil {
		return imaging.Frame{}, err
	}
	if w.pending == nil {
		ch := make(chan readResult, 1)
		w.pending = ch
		go func() { ch <- w.read() }()
	}

	select {
	case <-ctx.Done():
		return imaging.Frame{}, ctx.Err()
	case r := <-w.pending:
		w.pending = nil
		if r.err != nil {
			return imaging.Frame{}, r.err
		}
		w.seq++
		return imaging.NewFrame(r.img, w.seq, time.Now())
	}
}

func (w *Webcam) read() readResult {
	mat := gocv.NewMat()
	defer mat.Close()

	if ok := w.cap.Read(&mat); !ok {
		return readResult{err: fmt.Errorf("cannot read device %d", w.device)}
	}
	if mat.Empty() {
		return readResult{err: fmt.Errorf("no image on device %d", w.device)}
	}
	img, err := mat.ToImage()
	if err != nil {
		return readResult{err: fmt.Errorf("convert frame: %w", err)}
	}
	return readResult{img: img}
}

// Close releases the camera.
func (w *Webcam) Close() error {
	return w.cap.Close()
}
