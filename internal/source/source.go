// Package source provides frame sources for capture sessions: image
// sequences on disk, scripted synthetic scenes and, with the gocv build tag,
// a live camera.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/imaging"
)

// ErrExhausted is returned by Next when a finite source has no more frames.
var ErrExhausted = errors.New("no more frames")

// Source delivers frames one at a time.
type Source interface {
	// Next blocks until the next frame is ready or ctx is done.
	Next(ctx context.Context) (imaging.Frame, error)
	Close() error
}

// pacer spaces out frames to a target rate.
type pacer struct {
	interval time.Duration
	last     time.Time
}

func newPacer(fps int) pacer {
	if fps <= 0 {
		return pacer{}
	}
	return pacer{interval: time.Second / time.Duration(fps)}
}

// wait sleeps until one interval has passed since the previous frame.
func (p *pacer) wait(ctx context.Context) error {
	if p.interval > 0 && !p.last.IsZero() {
		if d := time.Until(p.last.Add(p.interval)); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.last = time.Now()
	return nil
}

// Options selects and configures a source for Open.
type Options struct {
	Frames string // image directory
	Camera int    // camera index, used when Frames is empty and Demo is false
	Demo   bool   // scripted synthetic scene
}

// Open returns the source selected by opts.
func Open(opts Options, cfg config.SourceConfig) (Source, error) {
	switch {
	case opts.Demo:
		return NewSynthetic(DemoScript(cfg.Width, cfg.Height), cfg.FPS), nil
	case opts.Frames != "":
		return NewDirSource(opts.Frames, cfg.FPS, cfg.Loop)
	default:
		src, err := OpenWebcam(opts.Camera, cfg.Width, cfg.Height)
		if err != nil {
			return nil, fmt.Errorf("open camera %d: %w", opts.Camera, err)
		}
		return src, nil
	}
}
