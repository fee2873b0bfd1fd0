// Package paths computes canonical artifact locations for a project
// directory. Paths are treated as opaque strings supplied by the frontend,
// so joining must work for both forward- and backslash-separated bases
// instead of assuming the server OS convention.
package paths

import (
	"encoding/json"
	"strings"
)

// ConfigFileName is the per-project config file stored in the project root.
const ConfigFileName = ".viewer-config.json"

// TimeLogFileName is the time-log artifact inside the times output folder.
const TimeLogFileName = "annotation_times.txt"

// DashboardFileName is the dashboard snapshot inside the times output folder.
const DashboardFileName = "annotation_dashboard.json"

// Separator returns the separator a base path uses. A path containing only
// backslashes is Windows-style; anything else (including mixed) joins with
// forward slashes.
func Separator(base string) string {
	if strings.Contains(base, "\\") && !strings.Contains(base, "/") {
		return "\\"
	}
	return "/"
}

// Join appends segments to base, reusing the separator style of base and
// trimming duplicate trailing separators.
func Join(base string, segments ...string) string {
	sep := Separator(base)
	out := strings.TrimRight(base, "/\\")
	for _, s := range segments {
		s = strings.Trim(s, "/\\")
		if s == "" {
			continue
		}
		out += sep + s
	}
	return out
}

// BaseName returns the final path element of p without its extension.
// Annotation and mask artifacts are matched to images by this name.
func BaseName(p string) string {
	p = strings.TrimRight(p, "/\\")
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndex(p, "."); i > 0 {
		p = p[:i]
	}
	return p
}

// Defaults returns the default output folders for a project root.
func Defaults(root string) OutputDirs {
	return OutputDirs{
		Annotations: Join(root, "annotations"),
		Masks:       Join(root, "masks"),
		Times:       Join(root, "times"),
	}
}

// OutputDirs are the resolved artifact directories for a project.
type OutputDirs struct {
	Annotations string `json:"annotations"`
	Masks       string `json:"masks"`
	Times       string `json:"times"`
}

// Resolve merges a raw per-project config file over the defaults for root.
// The config is untrusted: any outputPaths field that is absent or not a
// string falls back to the computed default, unknown fields are ignored, and
// a malformed document resolves to pure defaults.
func Resolve(root string, rawConfig []byte) OutputDirs {
	dirs := Defaults(root)
	if len(rawConfig) == 0 {
		return dirs
	}
	var doc struct {
		OutputPaths map[string]any `json:"outputPaths"`
	}
	if err := json.Unmarshal(rawConfig, &doc); err != nil {
		return dirs
	}
	if s, ok := doc.OutputPaths["annotations"].(string); ok && s != "" {
		dirs.Annotations = s
	}
	if s, ok := doc.OutputPaths["masks"].(string); ok && s != "" {
		dirs.Masks = s
	}
	if s, ok := doc.OutputPaths["times"].(string); ok && s != "" {
		dirs.Times = s
	}
	return dirs
}

// AnnotationFile returns the export path for an image inside dirs.
func (d OutputDirs) AnnotationFile(imageName string) string {
	return Join(d.Annotations, BaseName(imageName)+".json")
}

// MaskFile returns the mask path for an image inside dirs.
func (d OutputDirs) MaskFile(imageName string) string {
	return Join(d.Masks, BaseName(imageName)+"_mask.png")
}

// TimeLogFile returns the time-log path inside dirs.
func (d OutputDirs) TimeLogFile() string {
	return Join(d.Times, TimeLogFileName)
}

// DashboardFile returns the dashboard snapshot path inside dirs.
func (d OutputDirs) DashboardFile() string {
	return Join(d.Times, DashboardFileName)
}
