// Package save persists the current image's state: annotation export JSON,
// rasterized class mask, the project-wide time log, and (on non-silent
// saves) a dashboard history snapshot. Saves are single-flight per session:
// a save requested while one is in progress shares the in-flight result, so
// at most one set of writes is ever outstanding against the project files.
package save

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/annoview/annoview/internal/mask"
	"github.com/annoview/annoview/internal/models"
	"github.com/annoview/annoview/internal/paths"
	"github.com/annoview/annoview/internal/storage"
)

// Snapshot is everything a save needs, captured from live session state in
// one critical section. Capturing up front keeps the file writes free of
// locks.
type Snapshot struct {
	ImageName  string
	Dimensions models.Dimensions

	Annotations []models.Annotation
	ClassIDs    map[string]int

	ImageNames []string
	Totals     map[int]int
	Actives    map[int]int

	Dirs paths.OutputDirs

	// Dashboard is the full history to persist; nil on silent saves.
	Dashboard []models.DashboardEntry
}

// Source produces a save snapshot from current session state. Building the
// snapshot is where the session flushes in-flight timer counters and, on
// non-silent saves, appends the new dashboard entry.
type Source interface {
	SaveSnapshot(silent bool) (*Snapshot, error)
}

// Coordinator serializes saves for one session and fans the artifact writes
// out through the storage collaborator.
type Coordinator struct {
	store  storage.Store
	logger *zap.Logger
	group  singleflight.Group
}

// NewCoordinator creates a save coordinator writing through store.
func NewCoordinator(store storage.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// SaveAll persists the current image. Overlapping calls collapse into the
// in-flight save and share its result; the in-flight call's silent flag
// governs the dashboard append. The save succeeds only if every write
// succeeds; a failure may leave some artifacts written, and callers retry
// the whole save. silent only suppresses user-facing notification upstream,
// never the writes or the error.
func (c *Coordinator) SaveAll(ctx context.Context, src Source, silent bool) error {
	_, err, _ := c.group.Do("save", func() (any, error) {
		snap, err := src.SaveSnapshot(silent)
		if err != nil {
			return nil, err
		}
		return nil, c.write(ctx, snap)
	})
	return err
}

func (c *Coordinator) write(ctx context.Context, snap *Snapshot) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		return storage.WriteJSON(c.store, snap.Dirs.AnnotationFile(snap.ImageName), ExportAnnotations(snap.ImageName, snap.Annotations, snap.ClassIDs))
	})

	g.Go(func() error {
		if !snap.Dimensions.Known() {
			// The mask needs the image's natural size; an unprobed image
			// keeps its previous mask until dimensions are available.
			c.logger.Warn("mask_skipped_unknown_dimensions",
				zap.String("image", snap.ImageName),
			)
			return nil
		}
		data, err := mask.RenderPNG(snap.Dimensions.Width, snap.Dimensions.Height, snap.Annotations, snap.ClassIDs)
		if err != nil {
			return fmt.Errorf("failed to render mask for %s: %w", snap.ImageName, err)
		}
		return c.store.WriteFile(snap.Dirs.MaskFile(snap.ImageName), data)
	})

	g.Go(func() error {
		text := FormatTimeLog(snap.ImageNames, snap.Totals, snap.Actives)
		return c.store.WriteFile(snap.Dirs.TimeLogFile(), []byte(text))
	})

	if snap.Dashboard != nil {
		g.Go(func() error {
			return storage.WriteJSON(c.store, snap.Dirs.DashboardFile(), snap.Dashboard)
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Error("save_failed",
			zap.String("image", snap.ImageName),
			zap.Error(err),
		)
		return err
	}
	c.logger.Debug("save_completed", zap.String("image", snap.ImageName))
	return nil
}

// ExportAnnotations builds the per-image export document. Every polygon
// with >= 2 points is exported; annotations referencing an unknown class
// keep their name and omit the id rather than being dropped.
func ExportAnnotations(imageName string, annotations []models.Annotation, classIDs map[string]int) models.AnnotationExport {
	out := models.AnnotationExport{
		ImageName:   imageName,
		Annotations: make([]models.ExportedAnnotation, 0, len(annotations)),
	}
	for _, ann := range annotations {
		exported := models.ExportedAnnotation{
			ClassName: ann.ClassName,
			Points:    ann.Points,
		}
		if id, ok := classIDs[ann.ClassName]; ok {
			exported.ClassID = &id
		}
		out.Annotations = append(out.Annotations, exported)
	}
	return out
}
