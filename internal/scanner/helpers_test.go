package scanner

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/card-scanner/internal/imaging"
)

const (
	frameW = 320
	frameH = 240
	cardW  = 170
	cardH  = 110
)

// cardFrame renders a card with its top-left corner at (x, y).
func cardFrame(t *testing.T, seq uint64, x, y int) imaging.Frame {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{20, 24, 28, 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x, y, x+cardW, y+cardH), image.NewUniform(color.NRGBA{240, 238, 230, 255}), image.Point{}, draw.Src)
	f, err := imaging.NewFrame(img, seq, time.Unix(1700000000, int64(seq)))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// blankFrame renders the background only.
func blankFrame(t *testing.T, seq uint64) imaging.Frame {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{20, 24, 28, 255}), image.Point{}, draw.Src)
	f, err := imaging.NewFrame(img, seq, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// scriptedFrames builds jumps, an arrival frame and n frames at the arrival
// position.
func scriptedFrames(t *testing.T, n int) []imaging.Frame {
	t.Helper()
	positions := [][2]int{{20, 20}, {120, 100}, {40, 110}, {70, 60}}
	for i := 0; i < n; i++ {
		positions = append(positions, [2]int{70, 60})
	}
	frames := make([]imaging.Frame, len(positions))
	for i, p := range positions {
		frames[i] = cardFrame(t, uint64(i+1), p[0], p[1])
	}
	return frames
}

// sliceSource plays back frames and then returns io.EOF.
type sliceSource struct {
	frames []imaging.Frame
	next   int
}

func (s *sliceSource) Next(ctx context.Context) (imaging.Frame, error) {
	if err := ctx.Err(); err != nil {
		return imaging.Frame{}, err
	}
	if s.next >= len(s.frames) {
		return imaging.Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

// funcSource produces frames forever from fn, one every interval.
type funcSource struct {
	fn       func(seq uint64) imaging.Frame
	interval time.Duration
	seq      uint64
}

func (s *funcSource) Next(ctx context.Context) (imaging.Frame, error) {
	select {
	case <-ctx.Done():
		return imaging.Frame{}, ctx.Err()
	case <-time.After(s.interval):
	}
	s.seq++
	return s.fn(s.seq), nil
}

// stalledSource plays back frames and then blocks until ctx is done, like a
// camera that stopped streaming.
type stalledSource struct {
	frames      []imaging.Frame
	next        int
	interrupted int
}

func (s *stalledSource) Next(ctx context.Context) (imaging.Frame, error) {
	if s.next < len(s.frames) {
		f := s.frames[s.next]
		s.next++
		return f, nil
	}
	<-ctx.Done()
	s.interrupted++
	return imaging.Frame{}, ctx.Err()
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu       sync.Mutex
	overlays []OverlayEvent
	captures []CaptureEvent
	statuses []StatusEvent
}

func (r *recordingSink) Overlay(e OverlayEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Frame = imaging.Frame{}
	r.overlays = append(r.overlays, e)
}

func (r *recordingSink) Capture(e CaptureEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, e)
}

func (r *recordingSink) Status(e StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, e)
}

func (r *recordingSink) count(kind StatusKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.statuses {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}
