// Package timeframe implements the Period Aligner: mapping a millisecond
// timestamp to the start of its bucket for one of the closed set of
// supported timeframes, and the label registry used on the wire.
//
// All alignment is done in UTC exclusively so that bucket boundaries never
// shift under daylight-saving transitions — this mirrors the bucket math in
// tfbuilder.go, generalized from that package's flat seconds-based buckets
// to this registry's minute-based set plus week/month calendar rules.
package timeframe

import (
	"fmt"
	"time"
)

const (
	minuteMs = int64(60_000)
	hourMs   = 60 * minuteMs
	dayMs    = 24 * hourMs
	weekMs   = 7 * dayMs
)

// Minutes is the closed set of supported timeframe durations, in minutes.
var Minutes = []int{1, 3, 5, 15, 30, 45, 60, 120, 180, 240, 480, 720, 1440, 10080, 43200}

var labels = map[int]string{
	1: "1", 3: "3", 5: "5", 15: "15", 30: "30", 45: "45",
	60: "1H", 120: "2H", 180: "3H", 240: "4H", 480: "8H", 720: "12H",
	1440: "1D", 10080: "1W", 43200: "1M",
}

var byLabel = func() map[string]int {
	m := make(map[string]int, len(labels))
	for min, lbl := range labels {
		m[lbl] = min
	}
	return m
}()

// Valid reports whether tfMinutes is a member of the closed registry.
func Valid(tfMinutes int) bool {
	_, ok := labels[tfMinutes]
	return ok
}

// Label returns the wire label for a registry timeframe, e.g. 60 -> "1H".
// Returns the bare number as a string for an unrecognized value rather than
// panicking — callers that need strict validation should call Valid first.
func Label(tfMinutes int) string {
	if lbl, ok := labels[tfMinutes]; ok {
		return lbl
	}
	return fmt.Sprintf("%d", tfMinutes)
}

// Parse resolves a wire label back to its minute count. ok is false for any
// label outside the closed registry.
func Parse(label string) (minutes int, ok bool) {
	minutes, ok = byLabel[label]
	return
}

// Align returns the UTC bucket-start timestamp (milliseconds since epoch)
// that tsMs falls into for the given registry timeframe.
func Align(tsMs int64, tfMinutes int) int64 {
	switch {
	case tfMinutes <= 0:
		return tsMs
	case tfMinutes < 60:
		// Minute granularities: floor minute-of-hour to a multiple of tfMinutes.
		hourStart := tsMs - (tsMs % hourMs)
		minuteOfHour := (tsMs - hourStart) / minuteMs
		return hourStart + (minuteOfHour/int64(tfMinutes))*int64(tfMinutes)*minuteMs
	case tfMinutes < 1440:
		// Hour granularities: floor hour-of-day to a multiple of tfMinutes/60.
		bucketMs := int64(tfMinutes) * minuteMs
		return tsMs - (tsMs % bucketMs)
	case tfMinutes == 1440:
		return tsMs - (tsMs % dayMs)
	case tfMinutes == 10080:
		return alignWeek(tsMs)
	case tfMinutes == 43200:
		return alignMonth(tsMs)
	default:
		bucketMs := int64(tfMinutes) * minuteMs
		return tsMs - (tsMs % bucketMs)
	}
}

// alignWeek floors tsMs to the most recent Monday 00:00:00 UTC.
func alignWeek(tsMs int64) int64 {
	dayStart := tsMs - (tsMs % dayMs)
	t := time.UnixMilli(dayStart).UTC()
	// time.Weekday: Sunday=0 ... Saturday=6. Days since Monday:
	offset := (int(t.Weekday()) + 6) % 7
	return dayStart - int64(offset)*dayMs
}

// alignMonth floors tsMs to the first day of its UTC calendar month.
func alignMonth(tsMs int64) int64 {
	t := time.UnixMilli(tsMs).UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.UnixMilli()
}

// Next returns the bucket start immediately following bucketStartMs for the
// given timeframe. Used to detect bucket-transition without recomputing
// Align on every tick for calendar-based (week/month) timeframes.
func Next(bucketStartMs int64, tfMinutes int) int64 {
	switch tfMinutes {
	case 10080:
		return bucketStartMs + weekMs
	case 43200:
		t := time.UnixMilli(bucketStartMs).UTC()
		next := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		return next.UnixMilli()
	default:
		return Align(bucketStartMs+int64(tfMinutes)*minuteMs, tfMinutes)
	}
}
