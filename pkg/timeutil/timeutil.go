// Package timeutil provides calendar-day helpers for study tracking.
// All day boundaries are computed in UTC so that streaks, staleness checks
// and archive keys agree regardless of where the engine runs.
package timeutil

import (
	"time"
)

// StartOfDay returns 00:00:00 UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IsSameDay checks if two times fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := t1.UTC(), t2.UTC()
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(StartOfDay(t1).AddDate(0, 0, 1), t2)
}

// ElapsedDays returns how many full 24h periods passed between then and now.
// Negative intervals count as zero.
func ElapsedDays(then, now time.Time) float64 {
	d := now.Sub(then)
	if d < 0 {
		return 0
	}
	return d.Hours() / 24
}
