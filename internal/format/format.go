// Package format turns raw backend values (millisecond durations, ISO
// timestamps, ids, byte counts) into display strings. Every function is pure
// and never panics on bad input.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// NotAvailable is shown for missing dates.
const NotAvailable = "N/A"

// DateLayout is the display layout for timestamps.
const DateLayout = "Jan 2, 2006, 03:04 PM"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Duration renders a millisecond value as H:MM:SS when it spans an hour or
// more, M:SS otherwise. Negative, NaN and infinite input yields "0:00".
func Duration(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return "0:00"
	}
	total := int64(ms / 1000)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Seconds is Duration for values expressed in seconds.
func Seconds(sec float64) string {
	return Duration(sec * 1000)
}

// Clock renders a millisecond offset as zero-padded HH:MM:SS.
func Clock(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return "00:00:00"
	}
	total := int64(ms / 1000)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Date renders an ISO-ish timestamp in the local time zone.
func Date(value string) string {
	return DateIn(value, time.Local)
}

// DateIn renders value in loc. Empty input yields "N/A"; input that does not
// parse is returned unchanged.
func DateIn(value string, loc *time.Location) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return NotAvailable
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, trimmed, loc)
		if err == nil {
			return t.In(loc).Format(DateLayout)
		}
	}
	return value
}

// ShortID keeps the last twelve characters of long ids.
func ShortID(id string) string {
	if id == "" {
		return "Unknown ID"
	}
	if len(id) > 12 {
		return id[len(id)-12:]
	}
	return id
}

// Bytes renders a byte count such as "2.1 MB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Elapsed renders an elapsed duration as "1m 05s".
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dm %02ds", total/60, total%60)
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// ParseClock reverses Clock, returning the offset in milliseconds.
func ParseClock(value string) (float64, bool) {
	var h, m, s int
	if n, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d:%d", &h, &m, &s); err != nil || n != 3 {
		return 0, false
	}
	if h < 0 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, false
	}
	return float64((h*3600 + m*60 + s) * 1000), true
}
