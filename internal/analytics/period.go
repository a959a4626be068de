package analytics

import "time"

// Period tokens recognized by ResolvePeriod
const (
	PeriodAllTime = "all_time"
	PeriodYTD     = "ytd"
	PeriodQTD     = "qtd"
	PeriodLast90  = "last_90"
	PeriodLast30  = "last_30"
	PeriodLast14  = "last_14"
	PeriodLast7   = "last_7"
	PeriodToday   = "today"
	PeriodLast24h = "last_24h"
	PeriodLast3h  = "last_3h"

	// DefaultPeriod is substituted for unrecognized tokens
	DefaultPeriod = PeriodLast30

	// allTimeFloor anchors the open-ended "all_time" window
	allTimeFloor = 2000
)

// ResolvePeriod maps a named period token to an absolute [start, end) range
// relative to civil "now" in the given timezone. End is always now.
// Unrecognized tokens fall back to last_30 rather than failing; collectors
// pass user-supplied period strings straight through and a typo should
// degrade to the default view, not an error.
func ResolvePeriod(period string, now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	var start time.Time
	switch period {
	case PeriodAllTime:
		start = time.Date(allTimeFloor, time.January, 1, 0, 0, 0, 0, loc)
	case PeriodYTD:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
	case PeriodQTD:
		quarter := (int(now.Month()) - 1) / 3
		start = time.Date(now.Year(), time.Month(quarter*3+1), 1, 0, 0, 0, 0, loc)
	case PeriodLast90:
		start = now.AddDate(0, 0, -90)
	case PeriodLast30:
		start = now.AddDate(0, 0, -30)
	case PeriodLast14:
		start = now.AddDate(0, 0, -14)
	case PeriodLast7:
		start = now.AddDate(0, 0, -7)
	case PeriodToday:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case PeriodLast24h:
		start = now.Add(-24 * time.Hour)
	case PeriodLast3h:
		start = now.Add(-3 * time.Hour)
	default:
		start = now.AddDate(0, 0, -30)
	}

	return start, now
}
