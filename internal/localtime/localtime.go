// Package localtime converts absolute instants into a user's wall-clock view.
// Every function tolerates a bad IANA zone name by falling back to UTC: a
// misconfigured timezone must never abort a notification batch.
package localtime

import (
	"fmt"
	"time"
)

const displayLayout = "January 02, 2006 at 03:04 PM"

// ToLocal returns t in the named IANA zone, or t in UTC when the zone name
// cannot be resolved.
func ToLocal(t time.Time, zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// Format renders t for human display in the named zone,
// e.g. "March 07, 2025 at 06:30 PM".
func Format(t time.Time, zone string) string {
	return ToLocal(t, zone).Format(displayLayout)
}

// TimeOfDay is a civil wall-clock time with minute granularity.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Of truncates t to its time-of-day components, dropping seconds.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// FromMinutes builds a TimeOfDay from minutes since midnight (0..1439).
func FromMinutes(m int) TimeOfDay {
	m %= 24 * 60
	if m < 0 {
		m += 24 * 60
	}
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// Minutes returns the value as minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// Matches reports whether both times fall in the same minute of the day.
func (t TimeOfDay) Matches(other TimeOfDay) bool {
	return t.Hour == other.Hour && t.Minute == other.Minute
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }
