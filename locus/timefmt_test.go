package locus

import (
	"testing"
	"time"
)

func TestFormatOffset(t *testing.T) {
	local := time.Date(2018, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{"tokyo", 540, "2018-01-02T03:04:05+09:00"},
		{"new york", -300, "2018-01-02T03:04:05-05:00"},
		{"utc renders negative zero", 0, "2018-01-02T03:04:05-00:00"},
		{"half hour offsets drop minutes", 330, "2018-01-02T03:04:05+05:00"},
		{"negative half hour", -210, "2018-01-02T03:04:05-03:00"},
		{"fourteen hours", 840, "2018-01-02T03:04:05+14:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatOffset(local, tt.offset)
			if got != tt.want {
				t.Errorf("FormatOffset(%d) = %s, want %s", tt.offset, got, tt.want)
			}
		})
	}
}

func TestFormatOffsetIsStable(t *testing.T) {
	local := time.Date(2019, 12, 31, 23, 59, 59, 999, time.UTC)
	first := FormatOffset(local, 60)
	for i := 0; i < 3; i++ {
		if got := FormatOffset(local, 60); got != first {
			t.Fatalf("Expected stable output %s, got %s", first, got)
		}
	}
}

func TestFormatISO8601UsesLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2018, 1, 6, 3, 4, 5, 0, jst)

	if got, want := FormatISO8601(ts), "2018-01-06T03:04:05+09:00"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	// The same instant formatted in UTC shows UTC wall clock fields.
	if got, want := FormatISO8601(ts.UTC()), "2018-01-05T18:04:05-00:00"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestFormatQueryTime(t *testing.T) {
	ts := time.Date(2018, 1, 2, 3, 4, 5, 0, time.FixedZone("", -8*60*60))

	if got, want := FormatQueryTime(ts, true), "2018-01-02T03:04"; got != want {
		t.Errorf("Expected raw %s, got %s", want, got)
	}
	if got, want := FormatQueryTime(ts, false), "2018-01-02T03:04:05-08:00"; got != want {
		t.Errorf("Expected qualified %s, got %s", want, got)
	}
}
