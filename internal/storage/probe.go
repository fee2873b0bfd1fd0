package storage

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/annoview/annoview/internal/models"
)

// ProbeDimensions reads just enough of the image at path to determine its
// natural pixel size. Decoders for every extension IsImageFile accepts are
// registered via the blank imports above.
func ProbeDimensions(s Store, path string) (models.Dimensions, error) {
	data, err := s.ReadFile(path)
	if err != nil {
		return models.Dimensions{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Dimensions{}, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	return models.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
