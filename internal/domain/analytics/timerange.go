package analytics

import "time"

// Range is a closed-open [Start, End) time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// BucketRange computes the closed-open range covering the timeframe bucket
// that contains ts. The timestamp is truncated to the bucket's natural
// boundary in UTC: top of the hour, midnight, start of the calendar week
// (Sunday), or the first of the month. A range never crosses its boundary.
func BucketRange(timeframe Timeframe, ts time.Time) Range {
	ts = ts.UTC()

	switch timeframe {
	case TimeframeHourly:
		start := ts.Truncate(time.Hour)
		return Range{Start: start, End: start.Add(time.Hour)}

	case TimeframeDaily:
		start := startOfDay(ts)
		return Range{Start: start, End: start.AddDate(0, 0, 1)}

	case TimeframeWeekly:
		day := startOfDay(ts)
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return Range{Start: start, End: start.AddDate(0, 0, 7)}

	case TimeframeMonthly:
		start := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: start, End: start.AddDate(0, 1, 0)}

	default:
		// Fall back to the daily bucket for unrecognized timeframes;
		// ParseTimeframe guards the external entry points.
		start := startOfDay(ts)
		return Range{Start: start, End: start.AddDate(0, 0, 1)}
	}
}

// PriorRange returns the bucket immediately preceding r for the given
// timeframe. Used for the new-vs-returning visitor split.
func PriorRange(timeframe Timeframe, r Range) Range {
	switch timeframe {
	case TimeframeHourly:
		return Range{Start: r.Start.Add(-time.Hour), End: r.Start}
	case TimeframeDaily:
		return Range{Start: r.Start.AddDate(0, 0, -1), End: r.Start}
	case TimeframeWeekly:
		return Range{Start: r.Start.AddDate(0, 0, -7), End: r.Start}
	case TimeframeMonthly:
		return Range{Start: r.Start.AddDate(0, -1, 0), End: r.Start}
	default:
		return Range{Start: r.Start.Add(-r.Duration()), End: r.Start}
	}
}

func startOfDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
