package core

import "fmt"

const minutesPerDay = 24 * 60

// DeriveDuration returns the minutes between start and end, wrapping past
// midnight. When either time is missing or malformed current is returned
// unchanged.
func DeriveDuration(start, end string, current int) int {
	if start == "" || end == "" {
		return current
	}
	s, ok := ParseClock(start)
	if !ok {
		return current
	}
	e, ok := ParseClock(end)
	if !ok {
		return current
	}
	diff := e - s
	if diff < 0 {
		diff += minutesPerDay
	}
	return diff
}

// FormatDuration renders minutes the way the case form shows them.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d mins", minutes)
	}
	hrs := minutes / 60
	rem := minutes % 60
	unit := "hours"
	if hrs == 1 {
		unit = "hour"
	}
	if rem == 0 {
		return fmt.Sprintf("%d %s", hrs, unit)
	}
	return fmt.Sprintf("%d %s %d minutes", hrs, unit, rem)
}
