package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 encodes img as PNG and returns the standard base64 form used
// in tool results and websocket messages.
func EncodePNGBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Preview scales img down to fit within maxWidth x maxHeight, preserving the
// aspect ratio. Images that already fit are returned unchanged.
func Preview(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || maxHeight <= 0 || (b.Dx() <= maxWidth && b.Dy() <= maxHeight) {
		return img
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Linear)
}

// Save writes img to path, creating parent directories. The format is chosen
// from the file extension.
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
