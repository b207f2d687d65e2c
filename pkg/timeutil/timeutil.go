// Package timeutil provides UTC calendar utilities for streak tracking and
// date formatting. Every calendar-day boundary in Mentor Hub is a UTC midnight,
// regardless of the server or user timezone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Clock returns the current time. Engines take a Clock instead of calling
// time.Now directly so tests can pin the date.
type Clock func() time.Time

// SystemClock returns the current time in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Date creates a UTC time at midnight of the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateTime creates a UTC time with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// StartOfDay returns the start of the UTC calendar day (00:00:00).
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the UTC calendar day (23:59:59.999999999).
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfWeek returns the start of the ISO week (Monday 00:00:00 UTC).
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(u.AddDate(0, 0, -(weekday - 1)))
}

// EndOfWeek returns the end of the ISO week (Sunday 23:59:59 UTC).
func EndOfWeek(t time.Time) time.Time {
	return EndOfDay(StartOfWeek(t).AddDate(0, 0, 6))
}

// IsSameDay checks if two times fall on the same UTC calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// IsConsecutiveDay checks if t2 falls on the UTC day right after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return DayDelta(t1, t2) == 1
}

// DayDelta returns the signed number of UTC calendar days from t1 to t2.
// It is negative when t2 is on an earlier day than t1.
func DayDelta(t1, t2 time.Time) int {
	d := StartOfDay(t2).Sub(StartOfDay(t1))
	return int(d.Hours() / 24)
}

// DaysBetween returns the absolute number of UTC calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	days := DayDelta(t1, t2)
	if days < 0 {
		days = -days
	}
	return days
}

// WeekDelta returns the signed number of ISO weeks from t1 to t2.
func WeekDelta(t1, t2 time.Time) int {
	return DayDelta(StartOfWeek(t1), StartOfWeek(t2)) / 7
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"

	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a UTC date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// ParseDateOrTimestamp accepts either a bare date or an RFC 3339 timestamp.
func ParseDateOrTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: %q is neither a date nor an RFC 3339 timestamp", value)
	}
	return t, nil
}

// FormatRelative returns a human-readable relative time string.
func FormatRelative(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return formatFutureDuration(-diff)
	}
	return formatPastDuration(diff)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return pluralize(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return pluralize(int(d.Hours()), "hour") + " ago"
	default:
		return pluralize(int(d.Hours()/24), "day") + " ago"
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "in a moment"
	case d < time.Hour:
		return "in " + pluralize(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return "in " + pluralize(int(d.Hours()), "hour")
	default:
		return "in " + pluralize(int(d.Hours()/24), "day")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
