package models

// Point is a polygon vertex in the image's natural (unscaled) pixel
// coordinate space. Annotations are independent of any viewport transform.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnnotationClass is a named, numerically-identified annotation category.
// IDs double as the grayscale value written into mask PNGs, so they are
// restricted to 1-255. Classes are never deleted within a session.
type AnnotationClass struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Annotation is a user-drawn closed polygon tagged with a class name.
// Point order is vertex order; annotation order within an image is z-order
// (later entries are drawn on top and hit-tested first).
type Annotation struct {
	ID        string  `json:"id"`
	Points    []Point `json:"points"`
	ClassName string  `json:"className"`
}

// MinMaskVertices is the vertex count below which a polygon has no area and
// is excluded from pixel statistics and mask rendering.
const MinMaskVertices = 3

// Area returns the polygon area via the shoelace formula, using the closed
// wraparound ordering. Polygons with fewer than MinMaskVertices points have
// zero area. The result is orientation-independent.
func (a *Annotation) Area() float64 {
	return PolygonArea(a.Points)
}

// PolygonArea computes |sum(x_i*y_{i+1} - x_{i+1}*y_i)| / 2 over the closed
// polygon described by pts.
func PolygonArea(pts []Point) float64 {
	if len(pts) < MinMaskVertices {
		return 0
	}
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// Dimensions holds an image's natural pixel size. A zero value means the
// image has not been probed yet (or probing failed) and the image must be
// excluded from cross-image pixel statistics.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether the dimensions were successfully probed.
func (d Dimensions) Known() bool {
	return d.Width > 0 && d.Height > 0
}
