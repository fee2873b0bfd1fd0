package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/models"
	"github.com/annoview/annoview/internal/storage"
)

// memStore is an in-memory storage.Store for session tests.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

func (m *memStore) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *memStore) ListImages(dir string) ([]storage.FileInfo, error) {
	return m.list(dir, storage.IsImageFile)
}

func (m *memStore) ListJSON(dir string) ([]storage.FileInfo, error) {
	return m.list(dir, func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ".json")
	})
}

func (m *memStore) list(dir string, keep func(string) bool) ([]storage.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.FileInfo
	prefix := strings.TrimRight(dir, "/") + "/"
	for path := range m.files {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		name := path[len(prefix):]
		if keep(name) {
			out = append(out, storage.FileInfo{Name: name, Path: path})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("not found: " + path)
	}
	return data, nil
}

func (m *memStore) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// seedProject builds a two-image project with a persisted triangle on a.png,
// a matching time log, and no dashboard snapshot.
func seedProject(t *testing.T) *memStore {
	t.Helper()
	store := newMemStore()
	store.put("/p/a.png", pngBytes(t, 32, 24))
	store.put("/p/b.png", pngBytes(t, 16, 16))
	store.put("/p/annotations/a.json", []byte(`{
		"imageName": "a.png",
		"annotations": [
			{"className": "tree", "classId": 3, "points": [{"x":0,"y":0},{"x":10,"y":0},{"x":0,"y":10}]}
		]
	}`))
	store.put("/p/times/annotation_times.txt", []byte(
		"Annotation Time Log\n\na.png:\n  - Total Time: 1 minute(s) 30 second(s)\n  - Active Annotation Time: 0 minute(s) 30 second(s)\n"))
	return store
}

func loadedSession(t *testing.T, store *memStore) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := New(store, zap.NewNop())
	if err := s.LoadDirectory(ctx, "/p"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.timers.Stop)
	return s
}

func TestLoadDirectoryReconcilesPersistedState(t *testing.T) {
	t.Parallel()

	s := loadedSession(t, seedProject(t))
	st := s.Snapshot()

	if !st.Loaded || len(st.Images) != 2 {
		t.Fatalf("loaded = %v, images = %d, want true, 2", st.Loaded, len(st.Images))
	}
	if st.CurrentIndex != 0 || st.CurrentImage != "a.png" {
		t.Errorf("current = (%d, %q), want (0, a.png)", st.CurrentIndex, st.CurrentImage)
	}
	if st.Dimensions.Width != 32 || st.Dimensions.Height != 24 {
		t.Errorf("dimensions = %+v, want 32x24", st.Dimensions)
	}

	// Class rebuilt from the persisted classId.
	if len(st.Classes) != 1 || st.Classes[0].Name != "tree" || st.Classes[0].ID != 3 {
		t.Errorf("classes = %+v, want [tree id=3]", st.Classes)
	}
	if st.Classes[0].Color == "" {
		t.Error("rebuilt class has no color")
	}
	if st.SelectedClass != "tree" {
		t.Errorf("selected class = %q, want tree", st.SelectedClass)
	}
	if len(st.Annotations) != 1 || len(st.Annotations[0].Points) != 3 {
		t.Errorf("annotations = %+v, want one triangle", st.Annotations)
	}

	// Positive time plus annotations infers completion; the timer is frozen
	// at the persisted values.
	if !st.CompletedImages[0] {
		t.Error("image 0 not inferred completed")
	}
	if st.CompletedImages[1] {
		t.Error("image 1 wrongly completed")
	}
	if st.TotalTimeSeconds != 90 || st.ActiveTimeSeconds != 30 {
		t.Errorf("times = (%d, %d), want (90, 30)", st.TotalTimeSeconds, st.ActiveTimeSeconds)
	}
}

func TestLoadDirectorySkipsMalformedAnnotationEntries(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("/p/a.png", pngBytes(t, 8, 8))
	store.put("/p/annotations/a.json", []byte(`{
		"annotations": [
			{"className": "tree", "classId": 3, "points": [{"x":0,"y":0},{"x":4,"y":0},{"x":0,"y":4}]},
			{"className": 42, "points": [{"x":0,"y":0}]},
			{"className": "water", "points": [{"x":1},{"y":2}]},
			{"className": "rock", "classId": 9000, "points": [{"x":0,"y":0},{"x":2,"y":0},{"x":0,"y":2}]}
		]
	}`))

	s := loadedSession(t, store)
	st := s.Snapshot()

	// The valid entries survive; the broken ones are dropped.
	if len(st.Annotations) != 2 {
		t.Fatalf("annotations = %d, want 2", len(st.Annotations))
	}
	// rock's out-of-range id contributes no class.
	if len(st.Classes) != 1 || st.Classes[0].Name != "tree" {
		t.Errorf("classes = %+v, want [tree]", st.Classes)
	}
}

func TestLoadDirectorySeedsDashboardFromArtifacts(t *testing.T) {
	t.Parallel()

	store := seedProject(t)
	s := loadedSession(t, store)

	view := s.Dashboard()
	if len(view.Entries) != 1 {
		t.Fatalf("entries = %d, want 1 seeded from a.png", len(view.Entries))
	}
	e := view.Entries[0]
	if e.ImageName != "a.png" || e.TotalTimeSeconds != 90 || e.AnnotationCount != 1 {
		t.Errorf("seeded entry = %+v", e)
	}
	if e.TotalPixelsAnnotated != 50 {
		t.Errorf("seeded pixels = %v, want triangle area 50", e.TotalPixelsAnnotated)
	}

	// The synthesized history is persisted for the next load.
	if !store.has("/p/times/annotation_dashboard.json") {
		t.Error("seeded dashboard not persisted")
	}
}

func TestNavigationSavesAndWraps(t *testing.T) {
	t.Parallel()

	store := seedProject(t)
	s := loadedSession(t, store)
	ctx := context.Background()

	idx, err := s.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Fatalf("Next = %d, want 1", idx)
	}
	// The outgoing image was silent-saved.
	if !store.has("/p/masks/a_mask.png") {
		t.Error("mask not written on navigate away")
	}

	if idx, err = s.Next(ctx); err != nil || idx != 0 {
		t.Fatalf("Next wrap = (%d, %v), want (0, nil)", idx, err)
	}
	if idx, err = s.Previous(ctx); err != nil || idx != 1 {
		t.Fatalf("Previous wrap = (%d, %v), want (1, nil)", idx, err)
	}
}

func TestGoToIndex(t *testing.T) {
	t.Parallel()

	s := loadedSession(t, seedProject(t))
	ctx := context.Background()

	if idx, err := s.GoToIndex(ctx, 1); err != nil || idx != 1 {
		t.Fatalf("GoToIndex(1) = (%d, %v)", idx, err)
	}
	if _, err := s.GoToIndex(ctx, 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("GoToIndex(2) error = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := s.GoToIndex(ctx, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("GoToIndex(-1) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestTimerTicksAfterLoadContextDone(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("/p/a.png", pngBytes(t, 8, 8))

	ctx, cancel := context.WithCancel(context.Background())
	s := New(store, zap.NewNop())
	if err := s.LoadDirectory(ctx, "/p"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.timers.Stop)
	// An HTTP-initiated load's context ends as soon as the handler returns;
	// the tick loop must keep counting for the rest of the session.
	cancel()

	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		s.Activity(nil)
		if s.Snapshot().TotalTimeSeconds > 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("timer stopped advancing once the load context was cancelled")
}

func TestSnapshotPairsTimerWithCurrentIndex(t *testing.T) {
	t.Parallel()

	s := loadedSession(t, seedProject(t))
	ctx := context.Background()

	// Freeze both images so each index reports a fixed total.
	if _, err := s.GoToIndex(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCompleted(true); err != nil {
		t.Fatal(err)
	}
	want := map[int]int{1: s.Snapshot().TotalTimeSeconds}
	if _, err := s.GoToIndex(ctx, 0); err != nil {
		t.Fatal(err)
	}
	want[0] = s.Snapshot().TotalTimeSeconds

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := s.Next(ctx); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	for {
		select {
		case <-done:
			return
		default:
		}
		// A snapshot taken mid-navigation must never pair one image's index
		// with the other image's counters.
		st := s.Snapshot()
		if st.TotalTimeSeconds != want[st.CurrentIndex] {
			t.Fatalf("index %d reported total %d, want %d",
				st.CurrentIndex, st.TotalTimeSeconds, want[st.CurrentIndex])
		}
	}
}

func TestNavigateWithoutProject(t *testing.T) {
	t.Parallel()

	s := New(newMemStore(), zap.NewNop())
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrNoProject) {
		t.Errorf("Next error = %v, want ErrNoProject", err)
	}
	if _, err := s.AddAnnotation([]models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, "tree"); !errors.Is(err, ErrNoProject) {
		t.Errorf("AddAnnotation error = %v, want ErrNoProject", err)
	}
}

func TestDeleteCurrentImageRemaps(t *testing.T) {
	t.Parallel()

	store := seedProject(t)
	s := loadedSession(t, store)
	ctx := context.Background()

	if err := s.DeleteCurrentImage(ctx); err != nil {
		t.Fatal(err)
	}

	if store.has("/p/a.png") || store.has("/p/annotations/a.json") {
		t.Error("deleted image artifacts still present")
	}

	st := s.Snapshot()
	if len(st.Images) != 1 || st.CurrentImage != "b.png" {
		t.Fatalf("after delete: images = %d, current = %q, want 1, b.png", len(st.Images), st.CurrentImage)
	}
	// a.png's annotations and completion must not leak onto b.png.
	if len(st.Annotations) != 0 {
		t.Errorf("annotations leaked to shifted index: %+v", st.Annotations)
	}
	if st.CompletedImages[0] {
		t.Error("completion flag leaked to shifted index")
	}
}

func TestDeleteLastImageResetsProject(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("/p/only.png", pngBytes(t, 8, 8))
	s := loadedSession(t, store)

	if err := s.DeleteCurrentImage(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Loaded || len(st.Images) != 0 {
		t.Errorf("after last delete: loaded = %v, images = %d, want unloaded empty", st.Loaded, len(st.Images))
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrNoProject) {
		t.Errorf("Next after reset error = %v, want ErrNoProject", err)
	}
}

func TestSetCompletedFreezesTimer(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.put("/p/a.png", pngBytes(t, 8, 8))
	s := loadedSession(t, store)

	if err := s.SetCompleted(true); err != nil {
		t.Fatal(err)
	}
	if !s.Snapshot().CompletedImages[0] {
		t.Error("completion flag not set")
	}

	if err := s.SetCompleted(false); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().CompletedImages[0] {
		t.Error("completion flag not cleared")
	}
}

func TestSaveAllAppendsDashboardEntry(t *testing.T) {
	t.Parallel()

	store := seedProject(t)
	s := loadedSession(t, store)

	before := len(s.Dashboard().Entries)
	if err := s.SaveAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	after := s.Dashboard().Entries
	if len(after) != before+1 {
		t.Fatalf("entries = %d, want %d", len(after), before+1)
	}
	if after[len(after)-1].ImageName != "a.png" {
		t.Errorf("appended entry = %+v, want a.png", after[len(after)-1])
	}

	// Non-silent saves persist the history snapshot.
	data, err := store.ReadFile("/p/times/annotation_dashboard.json")
	if err != nil {
		t.Fatal(err)
	}
	var persisted []models.DashboardEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != len(after) {
		t.Errorf("persisted %d entries, want %d", len(persisted), len(after))
	}
}

func TestSaveAllSilentDoesNotAppend(t *testing.T) {
	t.Parallel()

	s := loadedSession(t, seedProject(t))

	before := len(s.Dashboard().Entries)
	if err := s.SaveAll(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Dashboard().Entries); got != before {
		t.Errorf("entries = %d, want unchanged %d", got, before)
	}
}

func TestStatsExcludeUnprobedImages(t *testing.T) {
	t.Parallel()

	store := seedProject(t)
	// b.png is not a decodable image, so its probe fails and it stays
	// dimensionless.
	store.put("/p/b.png", []byte("not an image"))
	s := loadedSession(t, store)

	// Give the unprobed image an annotation; it must not count toward the
	// cross-image totals.
	if _, err := s.GoToIndex(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	square := []models.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}
	if _, err := s.AddAnnotation(square, "tree"); err != nil {
		t.Fatal(err)
	}

	stats := s.Stats()
	if stats.AllImagesTotal != 50 {
		t.Errorf("AllImagesTotal = %v, want only a.png's 50", stats.AllImagesTotal)
	}
	if stats.CurrentTotal != 16 {
		t.Errorf("CurrentTotal = %v, want 16", stats.CurrentTotal)
	}
	if stats.ProjectTotalTime < 90 {
		t.Errorf("ProjectTotalTime = %d, want at least the persisted 90", stats.ProjectTotalTime)
	}
}
