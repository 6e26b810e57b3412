package timeslot

import (
	"errors"
	"fmt"
)

// DayOfWeek is one of the seven lowercase day tokens. Schedules are usually
// restricted to weekdays by configuration, but the type admits all seven.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// ErrInvalidDayOfWeek reports a token outside the seven-day enumeration.
var ErrInvalidDayOfWeek = errors.New("invalid day of week")

// Weekdays lists the five days the scheduling UI offers by default.
var Weekdays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday}

var validDays = map[DayOfWeek]struct{}{
	Monday:    {},
	Tuesday:   {},
	Wednesday: {},
	Thursday:  {},
	Friday:    {},
	Saturday:  {},
	Sunday:    {},
}

// IsValidDayOfWeek reports whether s is one of the seven lowercase tokens.
// The comparison is case-sensitive; callers normalise before validating.
func IsValidDayOfWeek(s string) bool {
	_, ok := validDays[DayOfWeek(s)]
	return ok
}

// ParseDayOfWeek validates and converts a raw token.
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	if !IsValidDayOfWeek(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDayOfWeek, s)
	}
	return DayOfWeek(s), nil
}

// Valid reports whether d is a member of the enumeration.
func (d DayOfWeek) Valid() bool {
	return IsValidDayOfWeek(string(d))
}
