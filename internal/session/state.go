package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/annoview/annoview/internal/dashboard"
	"github.com/annoview/annoview/internal/models"
	"github.com/annoview/annoview/internal/save"
	"github.com/annoview/annoview/internal/storage"
)

// AddClass registers a new annotation class.
func (s *Session) AddClass(name string, id int) (models.AnnotationClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations.AddClass(name, id)
}

// UpdateClassColor replaces the color of the named class; unknown names are
// ignored.
func (s *Session) UpdateClassColor(name, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations.UpdateClassColor(name, color)
}

// SelectClass sets the active class for new annotations.
func (s *Session) SelectClass(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations.SelectClass(name)
}

// Classes returns the class list together with the active class name.
func (s *Session) Classes() ([]models.AnnotationClass, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations.Classes(), s.annotations.SelectedClass()
}

// AddAnnotation appends a polygon to the current image. Paths with fewer
// than 2 points yield no annotation and no error.
func (s *Session) AddAnnotation(points []models.Point, className string) (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || len(s.images) == 0 {
		return nil, ErrNoProject
	}
	return s.annotations.AddAnnotation(s.current, points, className)
}

// DeleteAnnotation removes an annotation from the current image; absent ids
// are a no-op.
func (s *Session) DeleteAnnotation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations.DeleteAnnotation(s.current, id)
}

// SelectAnnotationID records the user's annotation selection.
func (s *Session) SelectAnnotationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations.SelectAnnotation(id)
}

// CurrentAnnotations returns the current image's annotation sequence.
func (s *Session) CurrentAnnotations() []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations.Annotations(s.current)
}

// CurrentImage returns the current image file, if any.
func (s *Session) CurrentImage() (storage.FileInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || len(s.images) == 0 {
		return storage.FileInfo{}, false
	}
	return s.images[s.current], true
}

// SaveAll persists the current image through the save coordinator.
// Overlapping calls collapse into the in-flight save.
func (s *Session) SaveAll(ctx context.Context, silent bool) error {
	if !s.loadedWithImages() {
		return ErrNoProject
	}
	return s.coordinator.SaveAll(ctx, s, silent)
}

// SaveSnapshot captures the state a save needs in one critical section. A
// not-completed current image has its live timer counters flushed into the
// per-image maps here, so the time log and dashboard entry see the
// in-flight values. Non-silent saves append the new dashboard entry (with
// FIFO cap eviction) before the snapshot is handed to the writer.
func (s *Session) SaveSnapshot(silent bool) (*save.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || len(s.images) == 0 {
		return nil, ErrNoImages
	}
	// Flushed under s.mu so the counters belong to s.current.
	total, active := s.timers.Flush()

	img := s.images[s.current]
	classIDs := make(map[string]int)
	for _, c := range s.annotations.Classes() {
		classIDs[c.Name] = c.ID
	}
	imageNames := make([]string, len(s.images))
	for i, f := range s.images {
		imageNames[i] = f.Name
	}
	totals, actives := s.timers.AllTimes()

	snap := &save.Snapshot{
		ImageName:   img.Name,
		Dimensions:  s.dims[s.current],
		Annotations: s.annotations.Annotations(s.current),
		ClassIDs:    classIDs,
		ImageNames:  imageNames,
		Totals:      totals,
		Actives:     actives,
		Dirs:        s.dirs,
	}

	if !silent {
		entry := models.DashboardEntry{
			ID:                   uuid.NewString(),
			ImageName:            img.Name,
			ImagePath:            img.Path,
			Timestamp:            time.Now().UTC(),
			AnnotationCount:      s.annotations.Count(s.current),
			TotalPixelsAnnotated: s.annotations.TotalArea(s.current),
			TotalTimeSeconds:     total,
			ActiveTimeSeconds:    active,
		}
		s.history = dashboard.Append(s.history, entry, models.MaxDashboardEntries)
		snap.Dashboard = append([]models.DashboardEntry(nil), s.history...)
	}
	return snap, nil
}

// State is the session snapshot returned to the frontend.
type State struct {
	Loaded            bool                     `json:"loaded"`
	Root              string                   `json:"root"`
	Images            []storage.FileInfo       `json:"images"`
	CurrentIndex      int                      `json:"currentIndex"`
	CurrentImage      string                   `json:"currentImage,omitempty"`
	Dimensions        models.Dimensions        `json:"dimensions"`
	Classes           []models.AnnotationClass `json:"classes"`
	SelectedClass     string                   `json:"selectedClass,omitempty"`
	Annotations       []models.Annotation      `json:"annotations"`
	CompletedImages   map[int]bool             `json:"completedImages"`
	TotalTimeSeconds  int                      `json:"totalTimeSeconds"`
	ActiveTimeSeconds int                      `json:"activeTimeSeconds"`
	IsTimerPaused     bool                     `json:"isTimerPaused"`
	OutputPaths       models.OutputPaths       `json:"outputPaths"`
}

// Snapshot assembles the full frontend-facing state. The timer is read under
// s.mu so the reported counters always belong to the reported current index,
// even while a navigation is in flight.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	total, active, paused := s.timers.Current()
	st := State{
		Loaded:            s.loaded,
		Root:              s.root,
		Images:            append([]storage.FileInfo(nil), s.images...),
		CurrentIndex:      s.current,
		Dimensions:        s.dims[s.current],
		Classes:           s.annotations.Classes(),
		SelectedClass:     s.annotations.SelectedClass(),
		Annotations:       s.annotations.Annotations(s.current),
		CompletedImages:   make(map[int]bool, len(s.completed)),
		TotalTimeSeconds:  total,
		ActiveTimeSeconds: active,
		IsTimerPaused:     paused,
		OutputPaths: models.OutputPaths{
			Annotations: s.dirs.Annotations,
			Masks:       s.dirs.Masks,
			Times:       s.dirs.Times,
		},
	}
	for k, v := range s.completed {
		st.CompletedImages[k] = v
	}
	if s.loaded && len(s.images) > 0 {
		st.CurrentImage = s.images[s.current].Name
	}
	return st
}

// Stats are the pixel and time statistics for the stats panel.
type Stats struct {
	CurrentImage     map[string]float64 `json:"currentImage"`
	CurrentTotal     float64            `json:"currentTotal"`
	AllImages        map[string]float64 `json:"allImages"`
	AllImagesTotal   float64            `json:"allImagesTotal"`
	ProjectTotalTime int                `json:"projectTotalTimeSeconds"`
	ProjectActive    int                `json:"projectActiveTimeSeconds"`
}

// Stats computes per-class pixel areas for the current image and across the
// project. Cross-image sums cover only images whose natural dimensions are
// known; unprobed images are excluded rather than counted as zero.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	projectTotal, projectActive := s.timers.ProjectTotals()
	known := make([]int, 0, len(s.dims))
	for idx, d := range s.dims {
		if d.Known() {
			known = append(known, idx)
		}
	}
	st := Stats{
		CurrentImage:     s.annotations.ClassAreas(s.current),
		CurrentTotal:     s.annotations.TotalArea(s.current),
		AllImages:        s.annotations.ClassAreasForImages(known),
		ProjectTotalTime: projectTotal,
		ProjectActive:    projectActive,
	}
	for _, v := range st.AllImages {
		st.AllImagesTotal += v
	}
	return st
}

// DashboardView bundles the aggregated dashboard payloads.
type DashboardView struct {
	Summary    dashboard.Summary       `json:"summary"`
	Projection dashboard.Projection    `json:"projection"`
	Daily      []dashboard.DayActivity `json:"daily"`
	Entries    []models.DashboardEntry `json:"entries"`
}

// Dashboard recomputes the aggregated view over the history snapshot.
func (s *Session) Dashboard() DashboardView {
	s.mu.Lock()
	entries := append([]models.DashboardEntry(nil), s.history...)
	imageCount := len(s.images)
	s.mu.Unlock()

	return DashboardView{
		Summary:    dashboard.Summarize(entries),
		Projection: dashboard.Project(entries, imageCount),
		Daily:      dashboard.DailyActivity(entries),
		Entries:    entries,
	}
}
