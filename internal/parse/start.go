package parse

import (
	"fmt"
	"strings"
	"time"
)

// startLayouts are the timestamp shapes seen in the course list "start" field.
// Layouts without a zone are interpreted in the caller's location.
var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// CourseStart parses a course start timestamp.
func CourseStart(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty start time")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised start time %q", raw)
}

// CourseDate renders a start timestamp for notification text. Values that
// cannot be parsed are returned unchanged.
func CourseDate(raw string, loc *time.Location) string {
	t, err := CourseStart(raw, loc)
	if err != nil {
		return raw
	}
	return t.Format("Mon 02.01.2006 15:04")
}
