package storage

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// DefaultThumbnailSize bounds thumbnails when the caller gives no size.
	DefaultThumbnailSize = 256
	// MaxThumbnailSize caps requested thumbnail dimensions.
	MaxThumbnailSize = 1024
)

// Thumbnail decodes the image at path and returns a JPEG scaled to fit
// within w x h, preserving aspect ratio.
func Thumbnail(s Store, path string, w, h int) ([]byte, error) {
	if w <= 0 {
		w = DefaultThumbnailSize
	}
	if h <= 0 {
		h = DefaultThumbnailSize
	}
	if w > MaxThumbnailSize {
		w = MaxThumbnailSize
	}
	if h > MaxThumbnailSize {
		h = MaxThumbnailSize
	}

	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	fitted := imaging.Fit(img, w, h, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail for %s: %w", path, err)
	}
	return buf.Bytes(), nil
}
