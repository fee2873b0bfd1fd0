package annotation

import (
	"errors"
	"reflect"
	"testing"

	"github.com/annoview/annoview/internal/models"
)

func TestAddClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		className string
		classID   int
		setup     func(*Store)
		wantErr   error
	}{
		{
			name:      "valid class",
			className: "tree",
			classID:   1,
		},
		{
			name:      "duplicate name",
			className: "tree",
			classID:   2,
			setup: func(s *Store) {
				if _, err := s.AddClass("tree", 1); err != nil {
					t.Fatal(err)
				}
			},
			wantErr: ErrDuplicateClass,
		},
		{
			name:      "duplicate id",
			className: "water",
			classID:   1,
			setup: func(s *Store) {
				if _, err := s.AddClass("tree", 1); err != nil {
					t.Fatal(err)
				}
			},
			wantErr: ErrDuplicateClass,
		},
		{
			name:      "id zero",
			className: "tree",
			classID:   0,
			wantErr:   ErrInvalidClassID,
		},
		{
			name:      "id above mask range",
			className: "tree",
			classID:   256,
			wantErr:   ErrInvalidClassID,
		},
		{
			name:      "whitespace name",
			className: "   ",
			classID:   1,
			wantErr:   ErrInvalidClassName,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewStore()
			if tt.setup != nil {
				tt.setup(s)
			}
			_, err := s.AddClass(tt.className, tt.classID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddClass() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddClassAssignsPaletteAndSelection(t *testing.T) {
	t.Parallel()

	s := NewStore()
	first, err := s.AddClass("tree", 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AddClass("water", 1)
	if err != nil {
		t.Fatal(err)
	}

	if first.Color != PaletteColor(0) {
		t.Errorf("first class color = %q, want %q", first.Color, PaletteColor(0))
	}
	if second.Color != PaletteColor(1) {
		t.Errorf("second class color = %q, want %q", second.Color, PaletteColor(1))
	}
	if got := s.SelectedClass(); got != "tree" {
		t.Errorf("selected class = %q, want first-created %q", got, "tree")
	}
}

func TestUpdateClassColor(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if _, err := s.AddClass("tree", 1); err != nil {
		t.Fatal(err)
	}

	s.UpdateClassColor("tree", "#123456")
	if got := s.Classes()[0].Color; got != "#123456" {
		t.Errorf("color = %q, want %q", got, "#123456")
	}

	// Unknown name is a no-op.
	s.UpdateClassColor("water", "#ffffff")
	if got := len(s.Classes()); got != 1 {
		t.Errorf("class count = %d, want 1", got)
	}
}

func TestRebuildClasses(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.RebuildClasses(map[string]int{
		"water": 7,
		"tree":  3,
		"road":  12,
	})

	classes := s.Classes()
	wantOrder := []string{"tree", "water", "road"}
	if len(classes) != len(wantOrder) {
		t.Fatalf("class count = %d, want %d", len(classes), len(wantOrder))
	}
	for i, want := range wantOrder {
		if classes[i].Name != want {
			t.Errorf("classes[%d].Name = %q, want %q", i, classes[i].Name, want)
		}
		if classes[i].Color != PaletteColor(i) {
			t.Errorf("classes[%d].Color = %q, want %q", i, classes[i].Color, PaletteColor(i))
		}
	}
	if got := s.SelectedClass(); got != "tree" {
		t.Errorf("selected class = %q, want lowest-id %q", got, "tree")
	}
}

func TestAddAnnotation(t *testing.T) {
	t.Parallel()

	pts := []models.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}

	t.Run("no class selected", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		_, err := s.AddAnnotation(0, pts, "")
		if !errors.Is(err, ErrNoClassSelected) {
			t.Errorf("error = %v, want %v", err, ErrNoClassSelected)
		}
	})

	t.Run("single point discarded", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		if _, err := s.AddClass("tree", 1); err != nil {
			t.Fatal(err)
		}
		ann, err := s.AddAnnotation(0, []models.Point{{X: 1, Y: 1}}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ann != nil {
			t.Errorf("annotation = %+v, want nil discard", ann)
		}
		if got := s.Count(0); got != 0 {
			t.Errorf("count = %d, want 0", got)
		}
	})

	t.Run("uses selected class by default", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		if _, err := s.AddClass("tree", 1); err != nil {
			t.Fatal(err)
		}
		ann, err := s.AddAnnotation(2, pts, "")
		if err != nil {
			t.Fatal(err)
		}
		if ann.ClassName != "tree" {
			t.Errorf("class = %q, want %q", ann.ClassName, "tree")
		}
		if ann.ID == "" {
			t.Error("annotation id is empty")
		}
		if got := s.Count(2); got != 1 {
			t.Errorf("count = %d, want 1", got)
		}
	})

	t.Run("append order is preserved", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		if _, err := s.AddClass("tree", 1); err != nil {
			t.Fatal(err)
		}
		a, _ := s.AddAnnotation(0, pts, "")
		b, _ := s.AddAnnotation(0, pts, "")
		got := s.Annotations(0)
		if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
			t.Errorf("annotation order = %v, want [%s %s]", got, a.ID, b.ID)
		}
	})
}

func TestDeleteAnnotation(t *testing.T) {
	t.Parallel()

	pts := []models.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}
	s := NewStore()
	if _, err := s.AddClass("tree", 1); err != nil {
		t.Fatal(err)
	}
	ann, err := s.AddAnnotation(0, pts, "")
	if err != nil {
		t.Fatal(err)
	}

	s.SelectAnnotation(ann.ID)
	s.DeleteAnnotation(0, ann.ID)

	if got := s.Count(0); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
	if got := s.SelectedAnnotation(); got != "" {
		t.Errorf("selection = %q, want cleared", got)
	}

	// Absent id is a no-op.
	s.DeleteAnnotation(0, "missing")
}

func TestRemapIntKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      map[int]string
		removed int
		want    map[int]string
	}{
		{
			name:    "middle removal shifts higher keys",
			in:      map[int]string{0: "a", 1: "b", 2: "c", 3: "d"},
			removed: 1,
			want:    map[int]string{0: "a", 1: "c", 2: "d"},
		},
		{
			name:    "removing absent key still shifts",
			in:      map[int]string{0: "a", 5: "f"},
			removed: 2,
			want:    map[int]string{0: "a", 4: "f"},
		},
		{
			name:    "last key removal",
			in:      map[int]string{0: "a", 1: "b"},
			removed: 1,
			want:    map[int]string{0: "a"},
		},
		{
			name:    "empty map",
			in:      map[int]string{},
			removed: 0,
			want:    map[int]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RemapIntKeys(tt.in, tt.removed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RemapIntKeys() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemapAfterImageRemoval(t *testing.T) {
	t.Parallel()

	pts := []models.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}
	s := NewStore()
	if _, err := s.AddClass("tree", 1); err != nil {
		t.Fatal(err)
	}
	for idx := 0; idx < 3; idx++ {
		if _, err := s.AddAnnotation(idx, pts, ""); err != nil {
			t.Fatal(err)
		}
	}
	before2 := s.Annotations(2)

	s.RemapAfterImageRemoval(1)

	if got := s.ImagesWithAnnotations(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("indices = %v, want [0 1]", got)
	}
	if got := s.Annotations(1); !reflect.DeepEqual(got, before2) {
		t.Errorf("annotations at shifted index differ: got %v, want %v", got, before2)
	}
}
