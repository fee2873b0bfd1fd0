package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/annotation"
	"github.com/annoview/annoview/internal/storage"
)

// Next moves to the following image, wrapping at the end of the list. The
// outgoing image is silent-saved first; a save failure is reported as a
// warning and never blocks the navigation.
func (s *Session) Next(ctx context.Context) (int, error) {
	return s.navigate(ctx, func(current, count int) int {
		return (current + 1) % count
	})
}

// Previous moves to the preceding image, wrapping at the start.
func (s *Session) Previous(ctx context.Context) (int, error) {
	return s.navigate(ctx, func(current, count int) int {
		return (current - 1 + count) % count
	})
}

// GoToIndex jumps to an absolute index. Out-of-range targets fail before
// any save is attempted.
func (s *Session) GoToIndex(ctx context.Context, index int) (int, error) {
	s.mu.Lock()
	count := len(s.images)
	s.mu.Unlock()
	if !s.loadedWithImages() {
		return 0, ErrNoProject
	}
	if index < 0 || index >= count {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, count)
	}
	return s.navigate(ctx, func(current, count int) int {
		return index
	})
}

func (s *Session) loadedWithImages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && len(s.images) > 0
}

// navigate runs the save-then-navigate sequence: the silent save completes
// (or fails) before the index changes, and navigation proceeds regardless
// of the save's outcome.
func (s *Session) navigate(ctx context.Context, target func(current, count int) int) (int, error) {
	if !s.loadedWithImages() {
		return 0, ErrNoProject
	}

	if err := s.SaveAll(ctx, true); err != nil {
		s.logger.Warn("silent_save_before_navigate_failed", zap.Error(err))
	}

	s.mu.Lock()
	next := target(s.current, len(s.images))
	s.current = next
	// Force a fresh dimension probe for the incoming image.
	delete(s.dims, next)
	img := s.images[next]
	// Switched under s.mu so snapshots never pair the new index with the
	// outgoing image's counters.
	s.timers.SwitchTo(next, s.completed[next], time.Now())
	s.mu.Unlock()

	if dims, err := storage.ProbeDimensions(s.store, img.Path); err == nil {
		s.mu.Lock()
		if s.current == next {
			s.dims[next] = dims
		}
		s.mu.Unlock()
	} else {
		s.logger.Warn("dimension_probe_failed",
			zap.String("image", img.Name),
			zap.Error(err),
		)
	}

	return next, nil
}

// DeleteCurrentImage removes the current image file together with its
// annotation JSON and mask PNG, then atomically remaps every per-image map.
// Confirmation is the caller's responsibility.
func (s *Session) DeleteCurrentImage(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded || len(s.images) == 0 {
		s.mu.Unlock()
		return ErrNoProject
	}
	removed := s.current
	img := s.images[removed]
	annotationFile := s.dirs.AnnotationFile(img.Name)
	maskFile := s.dirs.MaskFile(img.Name)
	s.mu.Unlock()

	// Associated files may be absent; Delete treats missing as a no-op.
	if err := s.store.Delete(img.Path); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if err := s.store.Delete(annotationFile); err != nil {
		s.logger.Warn("annotation_file_delete_failed", zap.Error(err))
	}
	if err := s.store.Delete(maskFile); err != nil {
		s.logger.Warn("mask_file_delete_failed", zap.Error(err))
	}

	s.mu.Lock()
	s.images = append(s.images[:removed:removed], s.images[removed+1:]...)
	s.annotations.RemapAfterImageRemoval(removed)
	s.timers.RemapAfterImageRemoval(removed)
	s.dims = annotation.RemapIntKeys(s.dims, removed)
	s.completed = annotation.RemapIntKeys(s.completed, removed)

	if len(s.images) == 0 {
		s.reset()
		s.mu.Unlock()
		s.logger.Info("last_image_deleted_project_reset")
		return nil
	}

	next := removed
	if next > len(s.images)-1 {
		next = len(s.images) - 1
	}
	s.current = next
	s.timers.SwitchTo(next, s.completed[next], time.Now())
	s.mu.Unlock()

	s.logger.Info("image_deleted",
		zap.String("image", img.Name),
		zap.Int("new_index", next),
	)
	return nil
}

// SetCompleted toggles the completion flag of the current image, freezing
// or thawing its timers. Unmarking resumes from the frozen values.
func (s *Session) SetCompleted(completed bool) error {
	s.mu.Lock()
	if !s.loaded || len(s.images) == 0 {
		s.mu.Unlock()
		return ErrNoProject
	}
	if completed {
		s.completed[s.current] = true
		s.timers.MarkComplete()
	} else {
		delete(s.completed, s.current)
		s.timers.Unmark(time.Now())
	}
	s.mu.Unlock()
	return nil
}

// Activity records user input for the inactivity watchdog. drawing, when
// non-nil, toggles active-time accumulation (set on draw-gesture start,
// cleared on draw-gesture end).
func (s *Session) Activity(drawing *bool) {
	s.timers.Activity(time.Now())
	if drawing != nil {
		s.timers.SetDrawing(*drawing)
	}
}
