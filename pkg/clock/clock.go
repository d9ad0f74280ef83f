// Package clock provides parsing and arithmetic for the naive date and
// clock strings used throughout the scheduling core. Dates are ISO
// "YYYY-MM-DD" and times are 24-hour "HH:MM"; both are timezone-free and
// interpreted in the deployment's single local timezone.
package clock

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseMinutes converts an "HH:MM" string to minutes since midnight.
func ParseMinutes(s string) (int, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes converts minutes since midnight to an "HH:MM" string.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a time as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Hour returns the hour component of an "HH:MM" string, or -1 when the
// string is malformed.
func Hour(s string) int {
	m, err := ParseMinutes(s)
	if err != nil {
		return -1
	}
	return m / 60
}

// Overlaps reports whether two half-open minute intervals
// [start1, start1+dur1) and [start2, start2+dur2) intersect.
func Overlaps(start1, dur1, start2, dur2 int) bool {
	return start1 < start2+dur2 && start2 < start1+dur1
}

// Weekday returns the day of week for an ISO date string.
func Weekday(date string) (time.Weekday, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// IsWeekend reports whether the weekday is Saturday or Sunday.
func IsWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
