package present

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/scanner"
)

// CaptureName returns the file name used for a session's rectified card.
func CaptureName(session string) string {
	return fmt.Sprintf("business-card-scan-%s.png", session)
}

// FileSink writes captures, and optionally annotated preview frames, to a
// directory.
type FileSink struct {
	dir      string
	previews bool
	log      *logrus.Entry

	mu    sync.Mutex
	saved []string
}

// NewFileSink writes into dir. With previews set every overlay is rendered
// with imaging.DrawOverlay and saved under dir/previews.
func NewFileSink(dir string, previews bool, logger *logrus.Logger) *FileSink {
	return &FileSink{
		dir:      dir,
		previews: previews,
		log:      logger.WithField("component", "files"),
	}
}

// Saved returns the paths of the captures written so far.
func (s *FileSink) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

func (s *FileSink) Overlay(e scanner.OverlayEvent) {
	if !s.previews || e.Frame.Empty() {
		return
	}
	img := imaging.DrawOverlay(e.Frame, e.Annotation())
	path := filepath.Join(s.dir, "previews", fmt.Sprintf("%s-%06d.png", e.Session, e.Seq))
	if err := imaging.Save(img, path); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Failed to save preview")
	}
}

func (s *FileSink) Capture(e scanner.CaptureEvent) {
	path := filepath.Join(s.dir, CaptureName(e.Session))
	if err := imaging.Save(e.Result.Image, path); err != nil {
		s.log.WithError(err).WithField("path", path).Error("Failed to save capture")
		return
	}
	s.mu.Lock()
	s.saved = append(s.saved, path)
	s.mu.Unlock()
	s.log.WithField("path", path).Info("Capture saved")
}

func (s *FileSink) Status(scanner.StatusEvent) {}
