// Package annotation owns the per-image polygon annotations and the class
// set for a loaded project. The store is not internally synchronized; the
// owning session serializes access.
package annotation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/annoview/annoview/internal/models"
)

var (
	// ErrDuplicateClass is returned when a class name or id already exists.
	ErrDuplicateClass = errors.New("duplicate class")
	// ErrInvalidClassID is returned for ids outside [1,255].
	ErrInvalidClassID = errors.New("class id must be between 1 and 255")
	// ErrInvalidClassName is returned for empty or whitespace-only names.
	ErrInvalidClassName = errors.New("class name must not be empty")
	// ErrNoClassSelected is returned when an annotation is added with no
	// active class.
	ErrNoClassSelected = errors.New("no annotation class selected")
)

// palette is the fixed class color cycle. Color assignment is deterministic:
// by current class count on interactive creation, by sorted-id index on
// reload.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// PaletteColor returns the palette entry for index i, cycling on overflow.
func PaletteColor(i int) string {
	return palette[i%len(palette)]
}

// Store holds the class set and the per-image annotation sequences, keyed by
// position in the currently loaded image list.
type Store struct {
	classes       []models.AnnotationClass
	selectedClass string

	annotations        map[int][]models.Annotation
	selectedAnnotation string
}

// NewStore creates an empty annotation store.
func NewStore() *Store {
	return &Store{annotations: make(map[int][]models.Annotation)}
}

// Reset drops all classes and annotations.
func (s *Store) Reset() {
	s.classes = nil
	s.selectedClass = ""
	s.annotations = make(map[int][]models.Annotation)
	s.selectedAnnotation = ""
}

// AddClass registers a new class. Name and id must each be unique; the id
// must fit in a mask byte. The new class gets the next palette color, and
// becomes the selected class if none is selected yet.
func (s *Store) AddClass(name string, id int) (models.AnnotationClass, error) {
	if strings.TrimSpace(name) == "" {
		return models.AnnotationClass{}, ErrInvalidClassName
	}
	if id < 1 || id > 255 {
		return models.AnnotationClass{}, fmt.Errorf("%w: got %d", ErrInvalidClassID, id)
	}
	for _, c := range s.classes {
		if c.Name == name {
			return models.AnnotationClass{}, fmt.Errorf("%w: name %q already exists", ErrDuplicateClass, name)
		}
		if c.ID == id {
			return models.AnnotationClass{}, fmt.Errorf("%w: id %d already used by %q", ErrDuplicateClass, id, c.Name)
		}
	}
	class := models.AnnotationClass{
		ID:    id,
		Name:  name,
		Color: PaletteColor(len(s.classes)),
	}
	s.classes = append(s.classes, class)
	if s.selectedClass == "" {
		s.selectedClass = name
	}
	return class, nil
}

// UpdateClassColor replaces the color of the named class, leaving id and
// name untouched. Unknown names are silently ignored.
func (s *Store) UpdateClassColor(name, color string) {
	for i := range s.classes {
		if s.classes[i].Name == name {
			s.classes[i].Color = color
			return
		}
	}
}

// SelectClass sets the active class for new annotations. Existence is not
// validated; selecting an unknown name is allowed and non-fatal.
func (s *Store) SelectClass(name string) {
	s.selectedClass = name
}

// SelectedClass returns the active class name, or "" if none.
func (s *Store) SelectedClass() string {
	return s.selectedClass
}

// Classes returns a copy of the class list in creation order.
func (s *Store) Classes() []models.AnnotationClass {
	out := make([]models.AnnotationClass, len(s.classes))
	copy(out, s.classes)
	return out
}

// ClassID resolves a class name to its id.
func (s *Store) ClassID(name string) (int, bool) {
	for _, c := range s.classes {
		if c.Name == name {
			return c.ID, true
		}
	}
	return 0, false
}

// RebuildClasses reconstructs the class set from classId/className pairs
// seen in persisted annotation files. Entries are deduplicated by name and
// sorted by ascending id; palette colors are assigned by position in that
// sorted order so reloads produce stable colors regardless of file order.
func (s *Store) RebuildClasses(idsByName map[string]int) {
	classes := make([]models.AnnotationClass, 0, len(idsByName))
	for name, id := range idsByName {
		classes = append(classes, models.AnnotationClass{ID: id, Name: name})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	for i := range classes {
		classes[i].Color = PaletteColor(i)
	}
	s.classes = classes
	if s.selectedClass == "" && len(classes) > 0 {
		s.selectedClass = classes[0].Name
	}
}

// AddAnnotation appends a polygon to the image's annotation sequence
// (append order is z-order). Paths with fewer than 2 points are silently
// discarded: no annotation, no error. className defaults to the selected
// class; with neither present the call fails.
func (s *Store) AddAnnotation(imageIndex int, points []models.Point, className string) (*models.Annotation, error) {
	if className == "" {
		className = s.selectedClass
	}
	if className == "" {
		return nil, ErrNoClassSelected
	}
	if len(points) < 2 {
		return nil, nil
	}
	ann := models.Annotation{
		ID:        uuid.NewString(),
		Points:    append([]models.Point(nil), points...),
		ClassName: className,
	}
	s.annotations[imageIndex] = append(s.annotations[imageIndex], ann)
	return &ann, nil
}

// SetAnnotations replaces the annotation sequence of one image. Used when
// reconciling persisted files on directory load.
func (s *Store) SetAnnotations(imageIndex int, anns []models.Annotation) {
	if len(anns) == 0 {
		delete(s.annotations, imageIndex)
		return
	}
	s.annotations[imageIndex] = append([]models.Annotation(nil), anns...)
}

// Annotations returns a copy of one image's annotation sequence.
func (s *Store) Annotations(imageIndex int) []models.Annotation {
	anns := s.annotations[imageIndex]
	out := make([]models.Annotation, len(anns))
	copy(out, anns)
	return out
}

// Count returns the number of annotations on one image.
func (s *Store) Count(imageIndex int) int {
	return len(s.annotations[imageIndex])
}

// ImagesWithAnnotations returns the indices that have at least one
// annotation.
func (s *Store) ImagesWithAnnotations() []int {
	out := make([]int, 0, len(s.annotations))
	for idx, anns := range s.annotations {
		if len(anns) > 0 {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// DeleteAnnotation removes the matching annotation; absent ids are a no-op.
// The selected-annotation reference is cleared if it pointed at the deleted
// id.
func (s *Store) DeleteAnnotation(imageIndex int, id string) {
	anns := s.annotations[imageIndex]
	for i, a := range anns {
		if a.ID == id {
			s.annotations[imageIndex] = append(anns[:i:i], anns[i+1:]...)
			if s.selectedAnnotation == id {
				s.selectedAnnotation = ""
			}
			return
		}
	}
}

// SelectAnnotation records the annotation the user has selected.
func (s *Store) SelectAnnotation(id string) {
	s.selectedAnnotation = id
}

// SelectedAnnotation returns the selected annotation id, or "".
func (s *Store) SelectedAnnotation() string {
	return s.selectedAnnotation
}

// RemapAfterImageRemoval removes the entry at removedIndex and shifts every
// higher key down by one. The session applies the same remap to its timer,
// dimension and completion maps in the same critical section.
func (s *Store) RemapAfterImageRemoval(removedIndex int) {
	s.annotations = RemapIntKeys(s.annotations, removedIndex)
}

// RemapIntKeys removes removed from m and decrements every key greater than
// removed, preserving all other associations.
func RemapIntKeys[V any](m map[int]V, removed int) map[int]V {
	out := make(map[int]V, len(m))
	for k, v := range m {
		switch {
		case k == removed:
		case k > removed:
			out[k-1] = v
		default:
			out[k] = v
		}
	}
	return out
}
