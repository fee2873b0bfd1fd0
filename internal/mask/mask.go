// Package mask renders flat-filled grayscale class masks from polygon
// annotations. The background is zero; each polygon with at least 3
// vertices is filled with its class id (1-255). The fill is an exact
// even-odd scanline rasterizer: anti-aliased coverage rasterizers would
// blend neighboring class ids, which the mask format cannot tolerate.
package mask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"github.com/annoview/annoview/internal/models"
)

// Render rasterizes the annotations into a width x height grayscale image.
// Polygons are filled in sequence order, so later annotations overwrite
// earlier ones where they overlap, matching on-screen z-order. Annotations
// whose class has no id, or with fewer than 3 points, are skipped; the JSON
// export still carries them, masks are renderable-geometry-only.
func Render(width, height int, annotations []models.Annotation, classIDs map[string]int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask dimensions %dx%d", width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for _, ann := range annotations {
		if len(ann.Points) < models.MinMaskVertices {
			continue
		}
		id, ok := classIDs[ann.ClassName]
		if !ok || id < 1 || id > 255 {
			continue
		}
		fillPolygon(img, ann.Points, uint8(id))
	}
	return img, nil
}

// RenderPNG renders the mask and encodes it as a PNG.
func RenderPNG(width, height int, annotations []models.Annotation, classIDs map[string]int) ([]byte, error) {
	img, err := Render(width, height, annotations, classIDs)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode mask png: %w", err)
	}
	return buf.Bytes(), nil
}

// fillPolygon flood-fills the closed polygon with value using even-odd
// scanline crossings at pixel-center sample points.
func fillPolygon(img *image.Gray, pts []models.Point, value uint8) {
	bounds := img.Bounds()

	minY := math.Inf(1)
	maxY := math.Inf(-1)
	for _, p := range pts {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	y0 := int(math.Max(math.Floor(minY), float64(bounds.Min.Y)))
	y1 := int(math.Min(math.Ceil(maxY), float64(bounds.Max.Y-1)))

	xs := make([]float64, 0, len(pts))
	for y := y0; y <= y1; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := range pts {
			a := pts[i]
			b := pts[(i+1)%len(pts)]
			if (a.Y <= cy) == (b.Y <= cy) {
				continue
			}
			// Edge crosses the scanline; record the intersection x.
			t := (cy - a.Y) / (b.Y - a.Y)
			xs = append(xs, a.X+t*(b.X-a.X))
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Max(math.Ceil(xs[i]-0.5), float64(bounds.Min.X)))
			x1 := int(math.Min(math.Floor(xs[i+1]-0.5), float64(bounds.Max.X-1)))
			for x := x0; x <= x1; x++ {
				img.SetGray(x, y, color.Gray{Y: value})
			}
		}
	}
}
