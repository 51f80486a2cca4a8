package interval

import (
	"errors"
	"fmt"
	"time"
)

// Precision selects how interval bounds are interpreted.
type Precision string

const (
	// PrecisionDateTime keeps bounds as supplied, truncated to whole seconds.
	PrecisionDateTime Precision = "datetime"
	// PrecisionDate truncates bounds to midnight UTC; the end bound is the
	// first day not covered, so a one-day booking is [day, day+1).
	PrecisionDate Precision = "date"
)

const dateLayout = "2006-01-02"

var (
	ErrEndNotAfterStart = errors.New("interval end must be after start")
	ErrMissingStart     = errors.New("interval start is required")
	ErrMissingEnd       = errors.New("interval end is required")
)

// Interval is a half-open time range [Start, End) in UTC.
type Interval struct {
	Start     time.Time
	End       time.Time
	Precision Precision
}

// Normalize builds a canonical interval from raw bounds. For date precision
// both bounds are truncated to midnight UTC and a zero end defaults to
// start + 1 day. Datetime bounds are truncated to whole seconds, the
// resolution the store keeps; a sub-second interval that would collapse to
// zero length is rejected here rather than silently losing its conflict
// checks. Start must land strictly before End.
func Normalize(start, end time.Time, p Precision) (Interval, error) {
	if start.IsZero() {
		return Interval{}, ErrMissingStart
	}

	if p == "" {
		p = PrecisionDateTime
	}

	switch p {
	case PrecisionDate:
		start = StartOfDay(start)
		if end.IsZero() {
			end = start.AddDate(0, 0, 1)
		} else {
			end = StartOfDay(end)
		}
	case PrecisionDateTime:
		if end.IsZero() {
			return Interval{}, ErrMissingEnd
		}
		start = start.UTC().Truncate(time.Second)
		end = end.UTC().Truncate(time.Second)
	default:
		return Interval{}, fmt.Errorf("unknown precision %q", p)
	}

	if !start.Before(end) {
		return Interval{}, ErrEndNotAfterStart
	}

	return Interval{Start: start, End: end, Precision: p}, nil
}

// Overlaps reports whether two half-open intervals intersect. Touching
// intervals (one ends exactly where the other starts) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// ParseBound parses a single interval bound: either an RFC 3339 timestamp or
// a bare YYYY-MM-DD date. The returned precision tells which form was used.
func ParseBound(raw string) (time.Time, Precision, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), PrecisionDateTime, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), PrecisionDate, nil
	}
	return time.Time{}, "", fmt.Errorf("invalid time %q: expected RFC 3339 or YYYY-MM-DD", raw)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
