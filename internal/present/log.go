package present

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/card-scanner/internal/scanner"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

// LogSink writes events to a logrus logger. Overlays are logged at debug
// level and only when the tracker phase changes.
type LogSink struct {
	log *logrus.Entry

	mu   sync.Mutex
	last map[string]tracker.Phase
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{
		log:  logger.WithField("component", "present"),
		last: make(map[string]tracker.Phase),
	}
}

func (l *LogSink) Overlay(e scanner.OverlayEvent) {
	l.mu.Lock()
	prev, seen := l.last[e.Session]
	l.last[e.Session] = e.State.Phase
	l.mu.Unlock()
	if seen && prev == e.State.Phase {
		return
	}

	fields := logrus.Fields{
		"session": e.Session,
		"seq":     e.Seq,
		"state":   e.State.String(),
	}
	if e.Candidate != nil {
		fields["area"] = e.Candidate.Area
		fields["aspect"] = e.Candidate.Aspect()
	}
	if r := e.Verdict.Gate.Reason; r != tracker.ReasonNone {
		fields["rejected"] = r
	}
	l.log.WithFields(fields).Debug(e.Message)
}

func (l *LogSink) Capture(e scanner.CaptureEvent) {
	l.log.WithFields(logrus.Fields{
		"session": e.Session,
		"seq":     e.Seq,
		"width":   e.Result.Width,
		"height":  e.Result.Height,
		"corners": e.Result.Corners,
	}).Info("Rectified card ready")
}

func (l *LogSink) Status(e scanner.StatusEvent) {
	entry := l.log.WithFields(logrus.Fields{"session": e.Session, "kind": e.Kind})
	switch e.Kind {
	case scanner.StatusFailed:
		entry.WithField("error", e.Error).Error(e.Message)
	case scanner.StatusDegenerate, scanner.StatusDetectError, scanner.StatusTimedOut:
		entry.WithField("error", e.Error).Warn(e.Message)
	case scanner.StatusStarted, scanner.StatusReset:
		entry.Debug(e.Message)
		l.mu.Lock()
		delete(l.last, e.Session)
		l.mu.Unlock()
	default:
		entry.Info(e.Message)
	}
}
