package locus

import (
	"fmt"
	"strings"
	"time"
)

// Controls is the enabled/visible state of the action controls.
type Controls struct {
	ShowEnabled    bool `json:"show_enabled"`
	StopEnabled    bool `json:"stop_enabled"`
	IdleVisible    bool `json:"idle_visible"`    // show and clear buttons
	RunningVisible bool `json:"running_visible"` // stop button
}

// CanShow reports whether a replay may be started for the selected range.
func CanShow(hasStart, hasEnd bool) bool {
	return hasStart && hasEnd
}

// Gate derives the controls for the selected range and replay state.
// While a replay runs only the stop control is reachable.
func Gate(hasStart, hasEnd bool, s State) Controls {
	if s == Running {
		return Controls{StopEnabled: true, RunningVisible: true}
	}
	return Controls{
		ShowEnabled: CanShow(hasStart, hasEnd),
		IdleVisible: true,
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	RawTimeLayout,
}

// ParseTime parses a picker value or a timezone qualified instant.
// Values without an offset are interpreted in loc.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidRange
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidRange, value)
}

// ParseRange parses the start and end values of a query.
func ParseRange(st, et string, loc *time.Location) (start, end time.Time, err error) {
	if start, err = ParseTime(st, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = ParseTime(et, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
