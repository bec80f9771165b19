package pool

import "time"

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now". It is injected rather than read ambiently so
// period boundary computation is deterministic and testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to the Clock interface (useful in tests).
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// =============================================================================
// PERIOD RESOLVER - Calendar month boundaries
// =============================================================================

// Period is a calendar month: [first instant, last instant].
type Period struct {
	Start time.Time
	End   time.Time
}

// Year and Month are derived from the period end.
func (p Period) Year() int         { return p.End.Year() }
func (p Period) Month() time.Month { return p.End.Month() }

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// CurrentPeriod returns the bounds of the month containing now.
func CurrentPeriod(now time.Time) Period {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// PeriodAt returns the bounds of the month offsetMonths before now.
// PeriodAt(now, 0) is equivalent to CurrentPeriod(now).
//
// The anchor is normalized to the first of the month before the offset
// is applied, so day-of-month overflow (e.g. March 31 minus one month)
// cannot skew the result.
func PeriodAt(now time.Time, offsetMonths int) Period {
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return CurrentPeriod(anchor.AddDate(0, -offsetMonths, 0))
}
