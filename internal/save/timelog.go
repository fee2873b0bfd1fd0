package save

import (
	"fmt"
	"regexp"
	"strings"
)

// TimeLogHeader is the first line of the time-log artifact.
const TimeLogHeader = "Annotation Time Log"

var durationPattern = regexp.MustCompile(`(\d+) minute\(s\) (\d+) second\(s\)`)

// FormatSeconds renders a second count as "<m> minute(s) <s> second(s)".
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d minute(s) %d second(s)", seconds/60, seconds%60)
}

// TimePair is one image's recorded times.
type TimePair struct {
	Total  int
	Active int
}

// FormatTimeLog renders the plain-text time log for every image in the
// project: a header line, then a 3-line block per image separated by blank
// lines.
func FormatTimeLog(imageNames []string, totals, actives map[int]int) string {
	var b strings.Builder
	b.WriteString(TimeLogHeader + "\n")
	for i, name := range imageNames {
		b.WriteString("\n")
		b.WriteString(name + ":\n")
		b.WriteString("  - Total Time: " + FormatSeconds(totals[i]) + "\n")
		b.WriteString("  - Active Annotation Time: " + FormatSeconds(actives[i]) + "\n")
	}
	return b.String()
}

// ParseTimeLog extracts per-image times from a time-log document. Lookup is
// line-index-relative: for each "<name>:" line, the total is read from the
// next line and the active time from the one after. Images without a
// matching block simply have no entry; malformed blocks are skipped.
func ParseTimeLog(text string) map[string]TimePair {
	out := make(map[string]TimePair)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasSuffix(trimmed, ":") || len(trimmed) < 2 {
			continue
		}
		if strings.Contains(trimmed, "- Total Time") || strings.Contains(trimmed, "- Active Annotation Time") {
			continue
		}
		if i+2 >= len(lines) {
			continue
		}
		total, okTotal := parseSeconds(lines[i+1])
		active, okActive := parseSeconds(lines[i+2])
		if !okTotal || !okActive {
			continue
		}
		name := strings.TrimSuffix(trimmed, ":")
		out[name] = TimePair{Total: total, Active: active}
	}
	return out
}

func parseSeconds(line string) (int, bool) {
	m := durationPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	var minutes, seconds int
	if _, err := fmt.Sscanf(m[1]+" "+m[2], "%d %d", &minutes, &seconds); err != nil {
		return 0, false
	}
	return minutes*60 + seconds, true
}
