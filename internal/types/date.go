package types

import (
	"fmt"
	"time"
	_ "time/tzdata"

	ierr "github.com/flexprice/retainer/internal/errors"
)

// DateLayout is the wire and CLI format of calendar dates
const DateLayout = "2006-01-02"

// NewDate returns midnight of the given calendar day in loc
func NewDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// TruncateToDay drops the clock part of t, interpreting t in loc
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	t = t.In(loc)
	return NewDate(t.Year(), t.Month(), t.Day(), loc)
}

// AsDate keeps the calendar day t shows in its own location and anchors it
// at midnight in loc. Dates read back from the store use this.
func AsDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	return NewDate(t.Year(), t.Month(), t.Day(), loc)
}

// ParseDate parses a YYYY-MM-DD string as a calendar day in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("invalid date %q, expected YYYY-MM-DD", s).
			Mark(ierr.ErrValidation)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays moves a calendar day by n days without going through durations,
// so DST transitions never shift the result off midnight
func AddDays(t time.Time, n int) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day()+n, t.Location())
}

// StartOfMonth returns the first day of t's month
func StartOfMonth(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), 1, t.Location())
}

// EndOfMonth returns the last calendar day of t's month
func EndOfMonth(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), DaysInMonth(t.Year(), t.Month()), t.Location())
}

// NextMonth returns the first day of the month after t's month
func NextMonth(t time.Time) time.Time {
	return AddClampedDate(StartOfMonth(t), 0, 1, 0)
}

// DaysInMonth returns the number of calendar days of the month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInclusive counts the calendar days of [start, end], zero when end is before start
func DaysInclusive(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// SameMonth reports whether a and b fall in the same calendar month
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// IsFullMonth reports whether [start, end] covers every day of its month
func IsFullMonth(start, end time.Time) bool {
	return SameMonth(start, end) &&
		start.Day() == 1 &&
		end.Day() == DaysInMonth(end.Year(), end.Month())
}

// MaxDate returns the later of a and b
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MinDate returns the earlier of a and b
func MinDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// AddClampedDate adds years, months and days to t, clamping the day to the
// last valid day of the resulting month (Jan 31 + 1 month = Feb 28/29)
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	lastDay := DaysInMonth(newY, newM)

	newD := d + days
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// MonthKey formats a year and month as YYYY-MM
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
