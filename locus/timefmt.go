package locus

import (
	"fmt"
	"time"
)

// RawTimeLayout is the layout of a date-time picker value (HTML datetime-local).
const RawTimeLayout = "2006-01-02T15:04"

// FormatOffset renders the wall clock fields of t followed by a UTC offset
// built from offsetMinutes (minutes east of UTC). Only whole hours of the
// offset are rendered and the minute part is always "00"; a zero offset is
// rendered as "-00:00".
func FormatOffset(t time.Time, offsetMinutes int) string {
	sign := '-'
	if offsetMinutes > 0 {
		sign = '+'
	}
	hours := offsetMinutes / 60
	if hours < 0 {
		hours = -hours
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d%c%02d:00",
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		sign, hours)
}

// FormatISO8601 formats t in its own location.
func FormatISO8601(t time.Time) string {
	_, offset := t.Zone()
	return FormatOffset(t, offset/60)
}

// FormatQueryTime encodes a query bound for the st/et parameters.
func FormatQueryTime(t time.Time, raw bool) string {
	if raw {
		return t.Format(RawTimeLayout)
	}
	return FormatISO8601(t)
}
