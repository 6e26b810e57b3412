package timeslot

import (
	"errors"
	"fmt"
)

// ErrInvalidInterval reports an interval whose start does not precede its
// end, or whose endpoints fall outside the valid TimeOfDay range.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is a day-scoped half-open time range [Start, End). Construct
// values through NewInterval; an Interval never changes once built and the
// predicates on it have no side effects.
type Interval struct {
	Day   DayOfWeek
	Start TimeOfDay
	End   TimeOfDay
}

// NewInterval builds a validated Interval. Zero-length and inverted ranges
// are rejected, as are out-of-range endpoints and unknown day tokens.
func NewInterval(day DayOfWeek, start, end TimeOfDay) (Interval, error) {
	iv := Interval{Day: day, Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate re-checks the interval invariants. Useful for values that arrive
// from storage rather than through NewInterval.
func (iv Interval) Validate() error {
	if !iv.Day.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDayOfWeek, string(iv.Day))
	}
	if !iv.Start.Valid() || !iv.End.Valid() || iv.Start >= iv.End {
		return fmt.Errorf("%w: %s-%s", ErrInvalidInterval, iv.Start, iv.End)
	}
	return nil
}

// Overlaps reports whether the two intervals share any minute. Intervals on
// different days never overlap. The comparison is half-open: a range ending
// at minute M does not overlap one starting at M, so back-to-back classes
// are legal.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Day == other.Day && iv.Start < other.End && other.Start < iv.End
}

// Contains reports whether inner fits entirely within iv on the same day.
// Shared endpoints count as contained.
func (iv Interval) Contains(inner Interval) bool {
	return iv.Day == inner.Day && iv.Start <= inner.Start && inner.End <= iv.End
}

// String renders the interval for logs and conflict messages.
func (iv Interval) String() string {
	return fmt.Sprintf("%s %s-%s", iv.Day, iv.Start, iv.End)
}
