package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/rectify"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

// Source delivers frames to a session. Next blocks until a frame is
// available or ctx is done.
type Source interface {
	Next(ctx context.Context) (imaging.Frame, error)
}

// Session drives one capture attempt: frames are pulled from the source one
// at a time and stepped through the pipeline until a card is captured, the
// timeout expires or an unrecoverable error occurs.
type Session struct {
	// ID names the current run. Every Run after the first starts with a
	// fresh one.
	ID string

	pipeline *Pipeline
	src      Source
	sink     Sink
	base     *logrus.Entry
	log      *logrus.Entry
	timeout  time.Duration
	runs     int

	resetCh chan struct{}

	// Timer tokens. gen is owned by Run; expired is written by the timer
	// goroutine and fired wakes Run.
	timer   *time.Timer
	gen     uint64
	expired atomic.Uint64
	fired   chan struct{}

	// cancelNext aborts a Next call in flight when the timer fires.
	mu         sync.Mutex
	cancelNext context.CancelFunc

	state State
}

// NewSession creates a session with a fresh id. A nil sink discards events;
// a nil logger uses the logrus standard logger.
func NewSession(cfg config.Config, src Source, sink Sink, logger *logrus.Logger) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Session{
		pipeline: NewPipeline(cfg),
		src:      src,
		sink:     sink,
		base:     logger.WithField("component", "scanner"),
		timeout:  cfg.Stability.Timeout,
		resetCh:  make(chan struct{}, 1),
		fired:    make(chan struct{}, 1),
	}
	s.renew()
	return s
}

func (s *Session) renew() {
	s.ID = uuid.NewString()
	s.log = s.base.WithField("session", s.ID)
}

// State returns the current session state. It is only meaningful after Run
// has returned.
func (s *Session) State() State {
	return s.state
}

// Reset requests a restart from Searching. It is safe to call from any
// goroutine; the request is applied at the top of the next iteration and
// never interrupts a rectification in progress. Requests made while Run is
// not executing are picked up by WaitReset or the next Run.
func (s *Session) Reset() {
	select {
	case s.resetCh <- struct{}{}:
	default:
	}
}

// WaitReset blocks until Reset is called or ctx is done.
func (s *Session) WaitReset(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.resetCh:
		return nil
	}
}

// Run scans until a card is captured and returns the rectified image.
//
// It returns ErrTimeoutExpired when nothing acceptable was seen for the
// configured timeout, an error wrapping ErrAcquisition when the source fails
// and an error wrapping ErrDetection after too many consecutive detection
// failures. Cancelling ctx returns ctx.Err().
//
// The timeout also interrupts a source that stops delivering frames.
func (s *Session) Run(ctx context.Context) (*rectify.Result, error) {
	if s.runs > 0 {
		s.renew()
	}
	s.runs++
	s.reset(StatusStarted, "Looking for card edges...")
	defer s.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.resetCh:
			s.reset(StatusReset, "Session reset")
			continue
		case <-s.fired:
			if s.expired.Load() != s.gen {
				continue
			}
			next, ok := s.pipeline.Tracker().TimeOut(s.state.Tracker)
			if !ok {
				// Locking when the timer expired; give the lock a fresh window.
				s.armTimer()
				continue
			}
			s.transition(next)
			s.state.Tracker = next
			s.status(StatusTimedOut, Message(next, 0), ErrTimeoutExpired)
			s.log.WithField("timeout", s.timeout).Info("No card found before timeout")
			return nil, ErrTimeoutExpired
		default:
		}

		f, expired, err := s.next(ctx)
		if expired {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			err = fmt.Errorf("%w: %w", ErrAcquisition, err)
			s.status(StatusFailed, "Frame source failed", err)
			s.log.WithError(err).Error("Frame acquisition failed")
			return nil, err
		}

		next, ev, err := s.pipeline.Step(s.state, f)
		if err != nil {
			s.state = next
			s.status(StatusFailed, "Detection failed", err)
			s.log.WithError(err).Error("Detection failed repeatedly")
			return nil, err
		}
		if ev.DetectErr != nil {
			s.status(StatusDetectError, "Detection failed on frame", ev.DetectErr)
			s.log.WithError(ev.DetectErr).WithField("seq", f.Seq).Warn("Frame skipped")
		}
		if ev.Verdict.Gate.Passed {
			s.armTimer()
		}
		s.transition(next.Tracker)
		s.state = next

		s.overlay(f, ev)

		if ev.Degenerate != nil {
			s.log.WithError(ev.Degenerate).WithField("seq", f.Seq).Warn("Locked quad could not be rectified")
			s.status(StatusDegenerate, "Card shape unusable, rescanning", ev.Degenerate)
			s.reset(StatusReset, "Looking for card edges...")
			continue
		}

		if ev.Result != nil {
			s.sink.Capture(CaptureEvent{
				Session:   s.ID,
				Seq:       f.Seq,
				Timestamp: f.Timestamp,
				Result:    ev.Result,
			})
			s.status(StatusCaptured, Message(s.state.Tracker, 1), nil)
			s.log.WithFields(logrus.Fields{
				"seq":    f.Seq,
				"width":  ev.Result.Width,
				"height": ev.Result.Height,
			}).Info("Card captured")
			return ev.Result, nil
		}
	}
}

// next pulls one frame. expired reports that the current timeout window ran
// out while waiting; the timer token is then handled at the top of Run.
func (s *Session) next(ctx context.Context) (f imaging.Frame, expired bool, err error) {
	nctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancelNext = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelNext = nil
		s.mu.Unlock()
	}()

	// The timer may have fired before cancelNext was visible to it.
	if s.timeout > 0 && s.expired.Load() == s.gen {
		return imaging.Frame{}, true, nil
	}

	f, err = s.src.Next(nctx)
	if err != nil && ctx.Err() == nil && nctx.Err() != nil {
		return imaging.Frame{}, true, nil
	}
	return f, false, err
}

// reset is the single path back to Searching.
func (s *Session) reset(kind StatusKind, msg string) {
	s.state = s.pipeline.Reset()
	s.armTimer()
	s.status(kind, msg, nil)
	s.log.WithField("kind", kind).Debug("Session reset")
}

func (s *Session) transition(next tracker.State) {
	if next.Phase == s.state.Tracker.Phase {
		return
	}
	s.log.WithFields(logrus.Fields{
		"from": s.state.Tracker.Phase,
		"to":   next.Phase,
	}).Debug("State transition")
}

func (s *Session) overlay(f imaging.Frame, ev Event) {
	progress := s.pipeline.Tracker().Progress(s.state.Tracker)
	s.sink.Overlay(OverlayEvent{
		Session:   s.ID,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		Frame:     f,
		Candidate: ev.Candidate,
		Corners:   ev.Corners,
		State:     s.state.Tracker,
		Verdict:   ev.Verdict,
		Progress:  progress,
		Color:     imaging.StabilityColor(progress).Hex(),
		Message:   Message(s.state.Tracker, progress),
	})
}

func (s *Session) status(kind StatusKind, msg string, err error) {
	ev := StatusEvent{Session: s.ID, Kind: kind, Message: msg, Timestamp: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.sink.Status(ev)
}

// armTimer starts a new timeout window. Tokens from earlier windows are
// ignored by Run.
func (s *Session) armTimer() {
	if s.timeout <= 0 {
		return
	}
	s.stopTimer()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.timeout, func() {
		s.expired.Store(gen)
		select {
		case s.fired <- struct{}{}:
		default:
		}
		s.mu.Lock()
		if s.cancelNext != nil {
			s.cancelNext()
		}
		s.mu.Unlock()
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// IsTimeout reports whether err is the normal "nothing found" outcome.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeoutExpired)
}
