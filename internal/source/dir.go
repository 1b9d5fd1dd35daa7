package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ironsheep/card-scanner/internal/imaging"
)

// DirSource plays back the images of a directory in lexical order.
type DirSource struct {
	paths []string
	next  int
	seq   uint64
	loop  bool
	pace  pacer
}

// NewDirSource lists the image files in dir. fps <= 0 delivers frames as fast
// as they decode. With loop set the sequence restarts instead of ending.
func NewDirSource(dir string, fps int, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imaging.IsImageFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	sort.Strings(paths)
	return &DirSource{paths: paths, loop: loop, pace: newPacer(fps)}, nil
}

// Len returns the number of images in one pass.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Next decodes the next image. It returns ErrExhausted after the last image
// unless the source loops.
func (s *DirSource) Next(ctx context.Context) (imaging.Frame, error) {
	if s.next >= len(s.paths) {
		if !s.loop {
			return imaging.Frame{}, ErrExhausted
		}
		s.next = 0
	}
	if err := s.pace.wait(ctx); err != nil {
		return imaging.Frame{}, err
	}
	path := s.paths[s.next]
	s.next++
	s.seq++
	return imaging.LoadFrame(path, s.seq)
}

// Close is a no-op.
func (s *DirSource) Close() error {
	return nil
}
