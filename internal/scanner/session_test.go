package scanner

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

func TestSession_CapturesAfterLockFrames(t *testing.T) {
	cfg := config.DefaultConfig()
	sink := &recordingSink{}
	src := &sliceSource{frames: scriptedFrames(t, 30)}
	sess := NewSession(cfg, src, sink, quietLogger())

	res, err := sess.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected a rectified image")
	}
	if len(sink.captures) != 1 {
		t.Fatalf("captures: got %d, want 1", len(sink.captures))
	}
	if sink.captures[0].Session != sess.ID {
		t.Errorf("capture session: got %q, want %q", sink.captures[0].Session, sess.ID)
	}
	if math.Abs(float64(res.Width-cardW)) > 6 || math.Abs(float64(res.Height-cardH)) > 6 {
		t.Errorf("result size: got %dx%d, want about %dx%d", res.Width, res.Height, cardW, cardH)
	}
	if sess.State().Tracker.Phase != tracker.Locked {
		t.Errorf("final phase: got %v, want locked", sess.State().Tracker.Phase)
	}
	if src.next != len(src.frames) {
		t.Errorf("capture should happen on the last frame, consumed %d of %d", src.next, len(src.frames))
	}
	if len(sink.overlays) != len(src.frames) {
		t.Errorf("overlays: got %d, want one per frame (%d)", len(sink.overlays), len(src.frames))
	}
	if sink.count(StatusCaptured) != 1 {
		t.Errorf("captured status: got %d, want 1", sink.count(StatusCaptured))
	}
}

func TestSession_OneFrameShortDoesNotCapture(t *testing.T) {
	sink := &recordingSink{}
	src := &sliceSource{frames: scriptedFrames(t, 29)}
	sess := NewSession(config.DefaultConfig(), src, sink, quietLogger())

	res, err := sess.Run(context.Background())
	if !errors.Is(err, ErrAcquisition) {
		t.Fatalf("expected ErrAcquisition once frames run out, got %v", err)
	}
	if res != nil || len(sink.captures) != 0 {
		t.Fatal("no capture expected")
	}
	st := sess.State().Tracker
	if st.Phase != tracker.Locking || st.Count != 29 {
		t.Errorf("final state: got %v, want locking(29)", st)
	}
}

func TestSession_OverlayProgression(t *testing.T) {
	sink := &recordingSink{}
	src := &sliceSource{frames: scriptedFrames(t, 30)}
	sess := NewSession(config.DefaultConfig(), src, sink, quietLogger())
	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	first := sink.overlays[0]
	if first.State.Phase != tracker.Locking || first.State.Count != 1 {
		t.Errorf("first gate-passing frame should be stable, got %v", first.State)
	}
	for i := 1; i <= 3; i++ {
		if p := sink.overlays[i].State.Phase; p != tracker.CandidateUnstable {
			t.Errorf("frame %d: got %v, want candidate_unstable", i+1, p)
		}
		if sink.overlays[i].Message != "Card detected, aligning..." {
			t.Errorf("frame %d message: %q", i+1, sink.overlays[i].Message)
		}
	}
	last := sink.overlays[len(sink.overlays)-1]
	if last.Progress != 1 || last.Message != "Captured" {
		t.Errorf("last overlay: progress=%g message=%q", last.Progress, last.Message)
	}
	if last.Corners == nil {
		t.Fatal("last overlay should carry ordered corners")
	}
	if last.Color != imaging.StabilityColor(1).Hex() {
		t.Errorf("last color: got %s", last.Color)
	}
	prev := 0.0
	for _, o := range sink.overlays[4:] {
		if o.Progress < prev {
			t.Errorf("progress went backwards: %g after %g", o.Progress, prev)
		}
		prev = o.Progress
	}
}

func TestSession_TimesOut(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.Timeout = 60 * time.Millisecond
	sink := &recordingSink{}
	src := &funcSource{
		interval: 5 * time.Millisecond,
		fn:       func(seq uint64) imaging.Frame { return blankFrame(t, seq) },
	}
	sess := NewSession(cfg, src, sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := sess.Run(ctx)
	if !errors.Is(err, ErrTimeoutExpired) {
		t.Fatalf("expected ErrTimeoutExpired, got %v", err)
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout should recognise the error")
	}
	if elapsed := time.Since(start); elapsed < cfg.Stability.Timeout {
		t.Errorf("timed out too early: %v", elapsed)
	}
	if n := sink.count(StatusTimedOut); n != 1 {
		t.Errorf("timed_out statuses: got %d, want 1", n)
	}
	if sess.State().Tracker.Phase != tracker.TimedOut {
		t.Errorf("final phase: got %v", sess.State().Tracker.Phase)
	}
}

func TestSession_TimesOutWhileSourceStalls(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.Timeout = 50 * time.Millisecond
	src := &stalledSource{frames: []imaging.Frame{blankFrame(t, 1)}}
	sink := &recordingSink{}
	sess := NewSession(cfg, src, sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := sess.Run(ctx)
	if !errors.Is(err, ErrTimeoutExpired) {
		t.Fatalf("expected ErrTimeoutExpired, got %v", err)
	}
	if sess.State().Tracker.Phase != tracker.TimedOut {
		t.Errorf("final phase: got %v", sess.State().Tracker.Phase)
	}
	if src.interrupted > 1 {
		t.Errorf("blocked reads interrupted: got %d, want at most 1", src.interrupted)
	}
	if n := sink.count(StatusTimedOut); n != 1 {
		t.Errorf("timed_out statuses: got %d, want 1", n)
	}
}

func TestSession_StallWhileLockingDoesNotTimeOut(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.Timeout = 30 * time.Millisecond
	cfg.Stability.LockFrames = 1000
	src := &stalledSource{frames: []imaging.Frame{
		cardFrame(t, 1, 70, 60),
		cardFrame(t, 2, 70, 60),
	}}
	sess := NewSession(cfg, src, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := sess.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context to end the run, got %v", err)
	}
	if st := sess.State().Tracker; st.Phase != tracker.Locking || st.Count != 2 {
		t.Errorf("final state: got %v, want locking(2)", st)
	}
	if src.interrupted < 2 {
		t.Errorf("expected the timer to interrupt the stalled read repeatedly, got %d", src.interrupted)
	}
}

func TestSession_EachRunHasItsOwnID(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.LockFrames = 3
	frames := make([]imaging.Frame, 6)
	for i := range frames {
		frames[i] = cardFrame(t, uint64(i+1), 70, 60)
	}
	sink := &recordingSink{}
	sess := NewSession(cfg, &sliceSource{frames: frames}, sink, quietLogger())

	first := sess.ID
	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.ID != first {
		t.Errorf("first run changed the id: %s -> %s", first, sess.ID)
	}
	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := sess.ID
	if second == first {
		t.Fatal("second run reused the id")
	}

	if len(sink.captures) != 2 {
		t.Fatalf("captures: got %d, want 2", len(sink.captures))
	}
	if sink.captures[0].Session != first || sink.captures[1].Session != second {
		t.Errorf("capture sessions: got %s, %s", sink.captures[0].Session, sink.captures[1].Session)
	}
}

func TestSession_GatePassingFramesRearmTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.Timeout = 150 * time.Millisecond
	cfg.Stability.LockFrames = 1000

	// A card that keeps jumping never locks but keeps passing the gate.
	spots := [][2]int{{20, 20}, {120, 100}}
	src := &funcSource{
		interval: 10 * time.Millisecond,
		fn: func(seq uint64) imaging.Frame {
			p := spots[seq%2]
			return cardFrame(t, seq, p[0], p[1])
		},
	}
	sess := NewSession(cfg, src, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	_, err := sess.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context to end the run, got %v", err)
	}
}

func TestSession_FatalDetection(t *testing.T) {
	cfg := config.DefaultConfig()
	sink := &recordingSink{}
	frames := make([]imaging.Frame, 10)
	for i := range frames {
		frames[i] = imaging.Frame{Seq: uint64(i + 1)}
	}
	sess := NewSession(cfg, &sliceSource{frames: frames}, sink, quietLogger())

	_, err := sess.Run(context.Background())
	if !errors.Is(err, ErrDetection) {
		t.Fatalf("expected ErrDetection, got %v", err)
	}
	if n := sink.count(StatusDetectError); n != cfg.Detection.MaxConsecutiveFailures {
		t.Errorf("absorbed failures: got %d, want %d", n, cfg.Detection.MaxConsecutiveFailures)
	}
	if sink.count(StatusFailed) != 1 {
		t.Error("expected one failed status")
	}
}

func TestSession_DegenerateResetsAndContinues(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.LockFrames = 3
	cfg.Rectify.MinOutputSize = 1000

	frames := make([]imaging.Frame, 7)
	for i := range frames {
		frames[i] = cardFrame(t, uint64(i+1), 70, 60)
	}
	sink := &recordingSink{}
	sess := NewSession(cfg, &sliceSource{frames: frames}, sink, quietLogger())

	_, err := sess.Run(context.Background())
	if !errors.Is(err, ErrAcquisition) {
		t.Fatalf("expected the source to run dry, got %v", err)
	}
	if n := sink.count(StatusDegenerate); n != 2 {
		t.Errorf("degenerate statuses: got %d, want 2", n)
	}
	if len(sink.captures) != 0 {
		t.Error("degenerate geometry must not be captured")
	}
	st := sess.State().Tracker
	if st.Phase != tracker.Locking || st.Count != 1 {
		t.Errorf("final state: got %v, want locking(1)", st)
	}
}

func TestSession_Reset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stability.LockFrames = 3
	frames := make([]imaging.Frame, 3)
	for i := range frames {
		frames[i] = cardFrame(t, uint64(i+1), 70, 60)
	}
	sink := &recordingSink{}
	sess := NewSession(cfg, &sliceSource{frames: frames}, sink, quietLogger())

	sess.Reset()
	sess.Reset() // coalesced

	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := sink.count(StatusReset); n != 1 {
		t.Errorf("reset statuses: got %d, want 1", n)
	}
	if n := sink.count(StatusStarted); n != 1 {
		t.Errorf("started statuses: got %d, want 1", n)
	}
}

func TestSession_WaitReset(t *testing.T) {
	sess := NewSession(config.DefaultConfig(), &sliceSource{}, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sess.WaitReset(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}

	go sess.Reset()
	if err := sess.WaitReset(context.Background()); err != nil {
		t.Errorf("WaitReset: %v", err)
	}
}

func TestSession_Cancelled(t *testing.T) {
	src := &funcSource{
		interval: time.Hour,
		fn:       func(seq uint64) imaging.Frame { return blankFrame(t, seq) },
	}
	sess := NewSession(config.DefaultConfig(), src, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := sess.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
