package present

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/rectify"
	"github.com/ironsheep/card-scanner/internal/scanner"
	"github.com/ironsheep/card-scanner/internal/tracker"
)

func testFrame(t *testing.T, seq uint64) imaging.Frame {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 160, 120))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{20, 24, 28, 255}), image.Point{}, draw.Src)
	f, err := imaging.NewFrame(img, seq, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func testCapture(session string) scanner.CaptureEvent {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 100))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{240, 238, 230, 255}), image.Point{}, draw.Src)
	q := detection.Quad{TL: detection.Point{X: 0, Y: 0}, TR: detection.Point{X: 120, Y: 0}, BR: detection.Point{X: 120, Y: 100}, BL: detection.Point{X: 0, Y: 100}}
	return scanner.CaptureEvent{
		Session: session,
		Seq:     42,
		Result:  &rectify.Result{Image: img, Width: 120, Height: 100, Corners: q},
	}
}

func overlay(t *testing.T, session string, seq uint64, phase tracker.Phase) scanner.OverlayEvent {
	q := detection.Quad{TL: detection.Point{X: 20, Y: 20}, TR: detection.Point{X: 140, Y: 20}, BR: detection.Point{X: 140, Y: 100}, BL: detection.Point{X: 20, Y: 100}}
	st := tracker.State{Phase: phase}
	return scanner.OverlayEvent{
		Session: session,
		Seq:     seq,
		Frame:   testFrame(t, seq),
		Corners: &q,
		State:   st,
		Message: scanner.Message(st, 0),
	}
}

type countingSink struct {
	overlays, captures, statuses int
}

func (c *countingSink) Overlay(scanner.OverlayEvent) { c.overlays++ }
func (c *countingSink) Capture(scanner.CaptureEvent) { c.captures++ }
func (c *countingSink) Status(scanner.StatusEvent)   { c.statuses++ }

func TestMulti(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, b}

	m.Overlay(scanner.OverlayEvent{})
	m.Overlay(scanner.OverlayEvent{})
	m.Capture(scanner.CaptureEvent{})
	m.Status(scanner.StatusEvent{})

	for i, s := range []*countingSink{a, b} {
		if s.overlays != 2 || s.captures != 1 || s.statuses != 1 {
			t.Errorf("sink %d: got %+v", i, *s)
		}
	}
}

func TestLogSink_OnlyPhaseChanges(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	sink := NewLogSink(logger)

	phases := []tracker.Phase{
		tracker.Searching, tracker.Searching, tracker.CandidateUnstable,
		tracker.Locking, tracker.Locking, tracker.Locking, tracker.Locked,
	}
	for i, p := range phases {
		sink.Overlay(overlay(t, "s1", uint64(i+1), p))
	}

	if n := len(hook.AllEntries()); n != 4 {
		t.Errorf("entries: got %d, want 4 (one per phase change)", n)
	}
	if last := hook.LastEntry(); last.Data["state"] != "locked" {
		t.Errorf("last state: got %v", last.Data["state"])
	}

	// A reset forgets the last phase.
	hook.Reset()
	sink.Status(scanner.StatusEvent{Session: "s1", Kind: scanner.StatusReset})
	sink.Overlay(overlay(t, "s1", 10, tracker.Locked))
	if n := len(hook.AllEntries()); n != 2 {
		t.Errorf("after reset: got %d entries, want 2", n)
	}
}

func TestLogSink_Levels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogSink(logger)

	sink.Status(scanner.StatusEvent{Kind: scanner.StatusFailed, Message: "boom", Error: "x"})
	if hook.LastEntry().Level != logrus.ErrorLevel {
		t.Errorf("failed: got %v", hook.LastEntry().Level)
	}
	sink.Status(scanner.StatusEvent{Kind: scanner.StatusTimedOut, Message: "No card found"})
	if hook.LastEntry().Level != logrus.WarnLevel {
		t.Errorf("timed out: got %v", hook.LastEntry().Level)
	}
	sink.Capture(testCapture("s2"))
	if e := hook.LastEntry(); e.Level != logrus.InfoLevel || e.Data["width"] != 120 {
		t.Errorf("capture: got %v %v", e.Level, e.Data)
	}
}

func TestFileSink_Capture(t *testing.T) {
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	sink := NewFileSink(dir, false, logger)

	sink.Overlay(overlay(t, "abc", 1, tracker.Searching))
	sink.Capture(testCapture("abc"))

	want := filepath.Join(dir, "business-card-scan-abc.png")
	saved := sink.Saved()
	if len(saved) != 1 || saved[0] != want {
		t.Fatalf("Saved: got %v, want [%s]", saved, want)
	}
	f, err := imaging.LoadFrame(want, 0)
	if err != nil {
		t.Fatalf("capture not readable: %v", err)
	}
	if f.Width() != 120 || f.Height() != 100 {
		t.Errorf("capture size: got %dx%d", f.Width(), f.Height())
	}
	if _, err := os.Stat(filepath.Join(dir, "previews")); !os.IsNotExist(err) {
		t.Error("previews should not be written when disabled")
	}
}

func TestFileSink_Previews(t *testing.T) {
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	sink := NewFileSink(dir, true, logger)

	sink.Overlay(overlay(t, "abc", 7, tracker.Locking))
	sink.Overlay(scanner.OverlayEvent{Session: "abc", Seq: 8}) // no frame

	entries, err := os.ReadDir(filepath.Join(dir, "previews"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "abc-000007.png" {
		t.Errorf("previews: got %v", entries)
	}
}

func TestCaptureName(t *testing.T) {
	if got := CaptureName("1234"); got != "business-card-scan-1234.png" {
		t.Errorf("got %q", got)
	}
}
