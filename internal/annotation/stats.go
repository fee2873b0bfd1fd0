package annotation

// ClassAreas sums polygon areas per class name for one image. Polygons with
// fewer than 3 points have zero area and contribute nothing.
func (s *Store) ClassAreas(imageIndex int) map[string]float64 {
	areas := make(map[string]float64)
	for _, ann := range s.annotations[imageIndex] {
		if area := ann.Area(); area > 0 {
			areas[ann.ClassName] += area
		}
	}
	return areas
}

// TotalArea sums all polygon areas on one image.
func (s *Store) TotalArea(imageIndex int) float64 {
	total := 0.0
	for _, area := range s.ClassAreas(imageIndex) {
		total += area
	}
	return total
}

// ClassAreasForImages sums per-class areas across the given image indices.
// The caller passes only indices whose natural dimensions are known; images
// not yet dimension-probed are excluded from cross-image statistics rather
// than assumed to contribute zero.
func (s *Store) ClassAreasForImages(indices []int) map[string]float64 {
	areas := make(map[string]float64)
	for _, idx := range indices {
		for name, area := range s.ClassAreas(idx) {
			areas[name] += area
		}
	}
	return areas
}

// AnnotationsOfClass counts annotations per class name on one image,
// including zero-area polygons.
func (s *Store) AnnotationsOfClass(imageIndex int) map[string]int {
	counts := make(map[string]int)
	for _, ann := range s.annotations[imageIndex] {
		counts[ann.ClassName]++
	}
	return counts
}
