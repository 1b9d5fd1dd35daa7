package imaging

import (
	"fmt"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// ImageCache provides thread-safe caching of decoded frames keyed by path.
//
// Images are decoded with EXIF auto-orientation and normalized to NRGBA on
// first load, so repeated detector runs over the same still skip both the disk
// read and the conversion.
//
// Cached frames remain in memory until removed via Evict() or Clear().
type ImageCache struct {
	mu     sync.RWMutex
	frames map[string]Frame
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		frames: make(map[string]Frame),
	}
}

// Load returns the cached frame for path, decoding it from disk on a miss.
//
// The path string is the cache key; different spellings of the same file get
// separate entries. Callers must not modify the returned pixels.
func (c *ImageCache) Load(path string) (Frame, error) {
	c.mu.RLock()
	if f, ok := c.frames[path]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	f, err := LoadFrame(path, 0)
	if err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	c.frames[path] = f
	c.mu.Unlock()

	return f, nil
}

// Clear removes all frames from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.frames = make(map[string]Frame)
	c.mu.Unlock()
}

// Evict removes one path from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.frames, path)
	c.mu.Unlock()
}

// Len returns the number of cached frames.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// LoadFrame decodes an image file into a Frame stamped with seq and the file's
// modification time.
func LoadFrame(path string, seq uint64) (Frame, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to open image: %w", err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode image: %w", err)
	}

	f, err := NewFrame(img, seq, stat.ModTime())
	if err != nil {
		return Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// IsImageFile reports whether path has an extension LoadFrame can decode.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Format        string    `json:"format"` // png, jpeg, gif or unknown, from the extension
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModTime       time.Time `json:"mod_time"`
	Cached        bool      `json:"cached"`
}

// LoadImageInfo loads path through the cache and reports its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	cache.mu.RLock()
	_, cached := cache.frames[path]
	cache.mu.RUnlock()

	f, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	return &ImageInfo{
		Width:         f.Width(),
		Height:        f.Height(),
		Format:        format,
		FileSizeBytes: stat.Size(),
		ModTime:       f.Timestamp,
		Cached:        cached,
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// AreaPixels is width × height, the denominator of the detector's relative
	// size checks.
	AreaPixels int `json:"area_pixels"`
}

// GetDimensions returns the dimensions of an image.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	f, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	return &DimensionsResult{
		Width:      f.Width(),
		Height:     f.Height(),
		AreaPixels: f.Width() * f.Height(),
	}, nil
}
