// Package timeslot converts between "HH:MM" clock strings and minute-of-day
// offsets, and expands a doctor's working window into concrete bookable slots.
package timeslot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ToMinutes parses a 24-hour "HH:MM" string into minutes since midnight.
func ToMinutes(s string) (int, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid time format %q: expected HH:MM", s)
	}
	parts := strings.SplitN(s, ":", 2)
	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	return hours*60 + minutes, nil
}

// FromMinutes formats minutes since midnight as a zero-padded "HH:MM" string.
// The inverse of ToMinutes for any value in [0, 1440).
func FromMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ValidClock reports whether s is a well-formed 24-hour "HH:MM" string.
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}
