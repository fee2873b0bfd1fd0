// Package session owns the loaded image set and orchestrates everything
// around it: directory load with reconciliation of persisted annotations,
// times and dashboard history, save-before-navigate semantics, per-image
// completion, and image deletion with the synchronized index remap across
// all per-image maps.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/annoview/annoview/internal/annotation"
	"github.com/annoview/annoview/internal/models"
	"github.com/annoview/annoview/internal/paths"
	"github.com/annoview/annoview/internal/save"
	"github.com/annoview/annoview/internal/storage"
	"github.com/annoview/annoview/internal/timer"
)

var (
	// ErrNoProject is returned when no directory is loaded.
	ErrNoProject = errors.New("no project loaded")
	// ErrNoImages is returned when the loaded directory has no images.
	ErrNoImages = errors.New("project has no images")
	// ErrIndexOutOfRange is returned by GoToIndex for invalid targets.
	ErrIndexOutOfRange = errors.New("image index out of range")
)

// probeConcurrency bounds the dimension-probe fan-out on directory load.
const probeConcurrency = 8

// Session is the live annotation session for one project directory. All
// exported methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	store       storage.Store
	logger      *zap.Logger
	coordinator *save.Coordinator

	annotations *annotation.Store
	timers      *timer.Engine

	loaded    bool
	root      string
	dirs      paths.OutputDirs
	images    []storage.FileInfo
	current   int
	dims      map[int]models.Dimensions
	completed map[int]bool
	history   []models.DashboardEntry
}

// New creates an empty session writing through store.
func New(store storage.Store, logger *zap.Logger) *Session {
	return &Session{
		store:       store,
		logger:      logger,
		coordinator: save.NewCoordinator(store, logger),
		annotations: annotation.NewStore(),
		timers:      timer.NewEngine(),
		dims:        make(map[int]models.Dimensions),
		completed:   make(map[int]bool),
	}
}

// LoadDirectory hard-resets the session and loads the images in root,
// reconciling previously persisted annotations, times and dashboard history
// from the project's output folders.
func (s *Session) LoadDirectory(ctx context.Context, root string) error {
	images, err := s.store.ListImages(root)
	if err != nil {
		return fmt.Errorf("failed to load directory: %w", err)
	}

	s.mu.Lock()
	s.reset()
	s.loaded = true
	s.root = root
	s.images = images

	rawConfig, err := s.store.ReadFile(paths.Join(root, paths.ConfigFileName))
	if err != nil {
		rawConfig = nil
	}
	s.dirs = paths.Resolve(root, rawConfig)
	s.mu.Unlock()

	s.probeAllDimensions(ctx, images)
	s.loadAnnotations(images)
	s.loadTimes(images)
	s.seedDashboard(images)

	s.mu.Lock()
	s.current = 0
	// ctx only scopes the load's I/O; the tick loop outlives the request.
	s.timers.Start()
	s.timers.SwitchTo(0, s.completed[0], time.Now())
	s.mu.Unlock()

	s.logger.Info("directory_loaded",
		zap.String("root", root),
		zap.Int("image_count", len(images)),
	)
	return nil
}

// reset clears every piece of session state. Callers hold s.mu.
func (s *Session) reset() {
	s.annotations.Reset()
	s.timers.Reset()
	s.loaded = false
	s.root = ""
	s.dirs = paths.OutputDirs{}
	s.images = nil
	s.current = 0
	s.dims = make(map[int]models.Dimensions)
	s.completed = make(map[int]bool)
	s.history = nil
}

// probeAllDimensions concurrently determines the natural pixel size of
// every image. A failed probe leaves that image at {0,0} and never aborts
// the siblings.
func (s *Session) probeAllDimensions(ctx context.Context, images []storage.FileInfo) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			dims, err := storage.ProbeDimensions(s.store, img.Path)
			if err != nil {
				s.logger.Warn("dimension_probe_failed",
					zap.String("image", img.Name),
					zap.Error(err),
				)
				return nil
			}
			s.mu.Lock()
			s.dims[i] = dims
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// diskAnnotation is the untrusted on-disk annotation shape. Fields are kept
// raw so malformed entries can be skipped individually.
type diskAnnotation struct {
	ClassName json.RawMessage `json:"className"`
	ClassID   json.RawMessage `json:"classId"`
	Points    json.RawMessage `json:"points"`
}

// loadAnnotations reads the annotations output folder and associates each
// JSON file to an image by base name. Loaded classId values rebuild the
// class set; malformed entries are skipped with a warning.
func (s *Session) loadAnnotations(images []storage.FileInfo) {
	s.mu.Lock()
	dir := s.dirs.Annotations
	s.mu.Unlock()

	files, err := s.store.ListJSON(dir)
	if err != nil {
		// A missing annotations folder means no persisted annotations.
		s.logger.Debug("no_annotations_folder", zap.String("dir", dir), zap.Error(err))
		return
	}

	indexByBase := make(map[string]int, len(images))
	for i, img := range images {
		indexByBase[paths.BaseName(img.Name)] = i
	}

	idsByName := make(map[string]int)
	for _, f := range files {
		idx, ok := indexByBase[paths.BaseName(f.Name)]
		if !ok {
			continue
		}
		data, err := s.store.ReadFile(f.Path)
		if err != nil {
			s.logger.Warn("annotation_file_unreadable", zap.String("file", f.Name), zap.Error(err))
			continue
		}
		var doc struct {
			Annotations []diskAnnotation `json:"annotations"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("annotation_file_malformed", zap.String("file", f.Name), zap.Error(err))
			continue
		}

		anns := make([]models.Annotation, 0, len(doc.Annotations))
		for _, raw := range doc.Annotations {
			ann, classID, ok := decodeDiskAnnotation(raw)
			if !ok {
				s.logger.Warn("annotation_entry_skipped", zap.String("file", f.Name))
				continue
			}
			anns = append(anns, ann)
			if classID >= 1 && classID <= 255 {
				if _, seen := idsByName[ann.ClassName]; !seen {
					idsByName[ann.ClassName] = classID
				}
			}
		}

		s.mu.Lock()
		s.annotations.SetAnnotations(idx, anns)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.annotations.RebuildClasses(idsByName)
	s.mu.Unlock()
}

// decodeDiskAnnotation validates one untrusted entry: className must be a
// string and points an array of numeric pairs. classID is 0 when absent or
// malformed.
func decodeDiskAnnotation(raw diskAnnotation) (models.Annotation, int, bool) {
	var className string
	if err := json.Unmarshal(raw.ClassName, &className); err != nil || className == "" {
		return models.Annotation{}, 0, false
	}
	var rawPoints []struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw.Points, &rawPoints); err != nil {
		return models.Annotation{}, 0, false
	}
	points := make([]models.Point, 0, len(rawPoints))
	for _, p := range rawPoints {
		if p.X == nil || p.Y == nil {
			return models.Annotation{}, 0, false
		}
		points = append(points, models.Point{X: *p.X, Y: *p.Y})
	}

	classID := 0
	if len(raw.ClassID) > 0 {
		var id float64
		if err := json.Unmarshal(raw.ClassID, &id); err == nil {
			classID = int(id)
		}
	}
	return models.Annotation{
		ID:        uuid.NewString(),
		Points:    points,
		ClassName: className,
	}, classID, true
}

// loadTimes parses the persisted time log. An image is inferred completed
// when its persisted total time is positive and it has at least one loaded
// annotation; absence of either disqualifies auto-completion.
func (s *Session) loadTimes(images []storage.FileInfo) {
	s.mu.Lock()
	logPath := s.dirs.TimeLogFile()
	s.mu.Unlock()

	data, err := s.store.ReadFile(logPath)
	if err != nil {
		s.logger.Debug("no_time_log", zap.String("path", logPath))
		return
	}
	times := save.ParseTimeLog(string(data))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, img := range images {
		pair, ok := times[img.Name]
		if !ok {
			continue
		}
		s.timers.SetTimes(i, pair.Total, pair.Active)
		if pair.Total > 0 && s.annotations.Count(i) > 0 {
			s.completed[i] = true
		}
	}
}

// seedDashboard loads the on-disk dashboard snapshot, or synthesizes one
// from the just-loaded annotations and times (one entry per image with any
// annotations or recorded time) and persists it so future loads read it
// directly.
func (s *Session) seedDashboard(images []storage.FileInfo) {
	s.mu.Lock()
	snapshotPath := s.dirs.DashboardFile()
	s.mu.Unlock()

	var entries []models.DashboardEntry
	if err := storage.ReadJSON(s.store, snapshotPath, &entries); err == nil {
		s.mu.Lock()
		s.history = entries
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	now := time.Now().UTC()
	for i, img := range images {
		total, active := s.timers.Times(i)
		count := s.annotations.Count(i)
		if count == 0 && total == 0 {
			continue
		}
		entries = append(entries, models.DashboardEntry{
			ID:                   uuid.NewString(),
			ImageName:            img.Name,
			ImagePath:            img.Path,
			Timestamp:            now,
			AnnotationCount:      count,
			TotalPixelsAnnotated: s.annotations.TotalArea(i),
			TotalTimeSeconds:     total,
			ActiveTimeSeconds:    active,
		})
	}
	s.history = entries
	s.mu.Unlock()

	if len(entries) > 0 {
		if err := storage.WriteJSON(s.store, snapshotPath, entries); err != nil {
			s.logger.Warn("dashboard_seed_write_failed", zap.Error(err))
		}
	}
}

// Close flushes the active image with a best-effort silent save and stops
// the timer loop.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	loaded := s.loaded && len(s.images) > 0
	s.mu.Unlock()
	if loaded {
		if err := s.SaveAll(ctx, true); err != nil {
			s.logger.Warn("shutdown_save_failed", zap.Error(err))
		}
	}
	s.timers.Stop()
}
