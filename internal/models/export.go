package models

import "time"

// ExportedAnnotation is the on-disk shape of a single annotation inside a
// per-image export file. ClassID is resolved through the class name->id map
// at save time; annotations referencing an unknown class are exported with
// the id omitted rather than dropped.
type ExportedAnnotation struct {
	ClassName string  `json:"className"`
	ClassID   *int    `json:"classId,omitempty"`
	Points    []Point `json:"points"`
}

// AnnotationExport is the per-image annotation file
// (<annotations>/<imageBaseName>.json).
type AnnotationExport struct {
	ImageName   string               `json:"imageName"`
	Annotations []ExportedAnnotation `json:"annotations"`
}

// OutputPaths are the directories the three artifact kinds are written to.
// Defaults are computed relative to the project root but each is
// independently overridable through the per-project config file.
type OutputPaths struct {
	Annotations string `json:"annotations"`
	Masks       string `json:"masks"`
	Times       string `json:"times"`
}

// DashboardEntry is one append-only history record, written on every
// non-silent save. The history accumulates one entry per save event, so
// duplicates per image are expected; aggregation deduplicates by latest
// timestamp per image path.
type DashboardEntry struct {
	ID                   string    `json:"id"`
	ImageName            string    `json:"imageName"`
	ImagePath            string    `json:"imagePath"`
	Timestamp            time.Time `json:"timestamp"`
	AnnotationCount      int       `json:"annotationCount"`
	TotalPixelsAnnotated float64   `json:"totalPixelsAnnotated"`
	TotalTimeSeconds     int       `json:"totalTimeSeconds"`
	ActiveTimeSeconds    int       `json:"activeTimeSeconds"`
}

// MaxDashboardEntries caps the retained history length. Oldest entries are
// evicted first when the cap is exceeded.
const MaxDashboardEntries = 1000
