// Package timeslot implements the availability and conflict engine used by
// the scheduling services: a canonical time-of-day model, day-scoped interval
// algebra and a resolver that decides whether a candidate schedule can be
// placed without colliding with existing schedules or teacher availability.
//
// The package performs no I/O and holds no state; every function is pure and
// safe for concurrent use.
package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// TimeOfDay is a count of minutes since midnight in the range [0, 1440).
// All human-facing time strings are converted to this form before any
// comparison happens.
type TimeOfDay int

// MinutesPerDay bounds the valid TimeOfDay range.
const MinutesPerDay = 1440

var (
	// ErrInvalidTimeFormat reports a time string that does not match H:mm.
	ErrInvalidTimeFormat = errors.New("invalid time format, expected H:mm or HH:mm")
	// ErrInvalidTimeRange reports hour or minute components out of range.
	ErrInvalidTimeRange = errors.New("time components out of range")
	// ErrInvalidTimeOfDay reports a TimeOfDay value outside [0, 1440).
	ErrInvalidTimeOfDay = errors.New("time of day out of range")
)

var timePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseTimeOfDay converts a strict 24-hour H:mm or HH:mm string into a
// TimeOfDay. This is the sole parser in the system; callers must normalise
// ISO datetimes or other representations before reaching this boundary.
func ParseTimeOfDay(input string) (TimeOfDay, error) {
	m := timePattern.FindStringSubmatch(input)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, input)
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])

	if hours > 23 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeRange, input)
	}

	return TimeOfDay(hours*60 + minutes), nil
}

// FormatTimeOfDay renders a TimeOfDay as a zero-padded HH:mm string.
func FormatTimeOfDay(t TimeOfDay) (string, error) {
	if t < 0 || t >= MinutesPerDay {
		return "", fmt.Errorf("%w: %d", ErrInvalidTimeOfDay, int(t))
	}
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60), nil
}

// Valid reports whether t lies within [0, 1440).
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// String renders the value for logs and error messages. Out-of-range values
// fall back to the raw minute count.
func (t TimeOfDay) String() string {
	s, err := FormatTimeOfDay(t)
	if err != nil {
		return fmt.Sprintf("minute(%d)", int(t))
	}
	return s
}
