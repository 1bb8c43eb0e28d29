// Package timeutil holds the calendar arithmetic used by scheduling.
package timeutil

import (
	"fmt"
	"time"
)

// Day is the fixed length used for frequency arithmetic.
const Day = 24 * time.Hour

// TimeAgo formats t relative to the current time.
func TimeAgo(t time.Time) string { return FormatTimeAgo(t, time.Now()) }

// FormatTimeAgo renders the distance from t to now in the coarsest bucket
// that fits. Each bucket is [lower, upper); a boundary value belongs to the
// next coarser bucket. Timestamps in the future render "just now".
func FormatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < Day:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	}
	days := int(d / Day)
	switch {
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days < 30:
		return fmt.Sprintf("%dw ago", days/7)
	default:
		return fmt.Sprintf("%dmo ago", days/30)
	}
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a's date to b's date,
// both read in a's location. Negative when b is on an earlier day.
func DaysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	// UTC midnights avoid DST-length days skewing the division.
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / Day)
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool { return DaysBetween(a, b) == 0 }

// AddDays shifts t by n fixed-length days.
func AddDays(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * Day) }
