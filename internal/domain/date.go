package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used on every external boundary.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO YYYY-MM-DD string into a UTC-midnight date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRequest, s)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf truncates t to its calendar date, keeping the wall-clock fields.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInRange returns every date from start to end inclusive. It returns nil
// when end is before start.
func DaysInRange(start, end time.Time) []time.Time {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// SameDayInYear maps the month and day of date onto year. February 29 has
// no counterpart in a non-leap year; it resolves to February 28 and
// substituted is true. time.Date would silently roll it to March 1 instead.
func SameDayInYear(date time.Time, year int) (mapped time.Time, substituted bool) {
	month, day := date.Month(), date.Day()
	if month == time.February && day == 29 && !IsLeapYear(year) {
		return time.Date(year, time.February, 28, 0, 0, 0, 0, time.UTC), true
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), false
}
