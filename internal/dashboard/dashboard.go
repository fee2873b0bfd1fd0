// Package dashboard derives cross-image statistics from the append-only
// history of save snapshots. The history keeps one entry per save event;
// every summary is computed over the "canonical" view, which retains only
// the latest entry per image path. Aggregation never mutates the history,
// so the full log stays on disk for audit.
package dashboard

import (
	"sort"

	"github.com/annoview/annoview/internal/models"
)

// Append adds an entry to the history, evicting oldest entries first once
// max is exceeded.
func Append(entries []models.DashboardEntry, e models.DashboardEntry, max int) []models.DashboardEntry {
	entries = append(entries, e)
	if max > 0 && len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	return entries
}

// DedupeLatestByPath keeps, per distinct image path, only the entry with
// the maximum timestamp. Ties keep the earliest-appended entry, so the
// result is deterministic. Relative order of the kept entries follows the
// input order.
func DedupeLatestByPath(entries []models.DashboardEntry) []models.DashboardEntry {
	best := make(map[string]int, len(entries))
	for i, e := range entries {
		if j, ok := best[e.ImagePath]; !ok || e.Timestamp.After(entries[j].Timestamp) {
			best[e.ImagePath] = i
		}
	}
	keep := make([]int, 0, len(best))
	for _, i := range best {
		keep = append(keep, i)
	}
	sort.Ints(keep)
	out := make([]models.DashboardEntry, 0, len(keep))
	for _, i := range keep {
		out = append(out, entries[i])
	}
	return out
}

// Summary holds the cross-image statistics displayed on the dashboard, all
// computed over the canonical (deduplicated) entry set.
type Summary struct {
	ImageCount             int     `json:"imageCount"`
	TotalPixelsAnnotated   float64 `json:"totalPixelsAnnotated"`
	AveragePixelsPerImage  float64 `json:"averagePixelsPerImage"`
	TotalTimeSeconds       int     `json:"totalTimeSeconds"`
	AverageTimeSeconds     float64 `json:"averageTimeSeconds"`
	TotalActiveSeconds     int     `json:"totalActiveSeconds"`
	AverageActiveSeconds   float64 `json:"averageActiveSeconds"`
	AverageAnnotationCount float64 `json:"averageAnnotationCount"`
}

// Summarize computes the canonical summary for a history snapshot.
func Summarize(entries []models.DashboardEntry) Summary {
	canonical := DedupeLatestByPath(entries)
	s := Summary{ImageCount: len(canonical)}
	if len(canonical) == 0 {
		return s
	}
	annotations := 0
	for _, e := range canonical {
		s.TotalPixelsAnnotated += e.TotalPixelsAnnotated
		s.TotalTimeSeconds += e.TotalTimeSeconds
		s.TotalActiveSeconds += e.ActiveTimeSeconds
		annotations += e.AnnotationCount
	}
	n := float64(len(canonical))
	s.AveragePixelsPerImage = s.TotalPixelsAnnotated / n
	s.AverageTimeSeconds = float64(s.TotalTimeSeconds) / n
	s.AverageActiveSeconds = float64(s.TotalActiveSeconds) / n
	s.AverageAnnotationCount = float64(annotations) / n
	return s
}

// Projection estimates the work left for the images that have no canonical
// entry yet.
type Projection struct {
	RemainingImages        int     `json:"remainingImages"`
	ProjectedTotalSeconds  float64 `json:"projectedTotalSeconds"`
	ProjectedActiveSeconds float64 `json:"projectedActiveSeconds"`
	ProjectedPixels        float64 `json:"projectedPixels"`
	// Basis is "time" when a time-based average was available, otherwise
	// "pixels" for the pixel-rate fallback.
	Basis string `json:"basis"`
}

// Project multiplies the remaining image count by the observed per-image
// averages. With no recorded time it falls back to a pixel-based estimate.
func Project(entries []models.DashboardEntry, totalImagesInProject int) Projection {
	sum := Summarize(entries)
	remaining := totalImagesInProject - sum.ImageCount
	if remaining < 0 {
		remaining = 0
	}
	p := Projection{RemainingImages: remaining}
	if sum.TotalTimeSeconds > 0 {
		p.Basis = "time"
		p.ProjectedTotalSeconds = float64(remaining) * sum.AverageTimeSeconds
		p.ProjectedActiveSeconds = float64(remaining) * sum.AverageActiveSeconds
		p.ProjectedPixels = float64(remaining) * sum.AveragePixelsPerImage
		return p
	}
	p.Basis = "pixels"
	p.ProjectedPixels = float64(remaining) * sum.AveragePixelsPerImage
	return p
}

// DayActivity aggregates canonical entries that fall on one calendar day.
type DayActivity struct {
	Date             string  `json:"date"`
	Pixels           float64 `json:"pixels"`
	TotalTimeSeconds int     `json:"totalTimeSeconds"`
	ActiveSeconds    int     `json:"activeSeconds"`
	AnnotationCount  int     `json:"annotationCount"`
	ImageCount       int     `json:"imageCount"`
}

// DailyActivity buckets canonical entries by the date portion of their
// timestamp (calendar day, not a rolling 24h window), most recent first.
func DailyActivity(entries []models.DashboardEntry) []DayActivity {
	byDay := make(map[string]*DayActivity)
	for _, e := range DedupeLatestByPath(entries) {
		day := e.Timestamp.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DayActivity{Date: day}
			byDay[day] = d
		}
		d.Pixels += e.TotalPixelsAnnotated
		d.TotalTimeSeconds += e.TotalTimeSeconds
		d.ActiveSeconds += e.ActiveTimeSeconds
		d.AnnotationCount += e.AnnotationCount
		d.ImageCount++
	}
	out := make([]DayActivity, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
