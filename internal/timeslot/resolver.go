package timeslot

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument reports corrupt caller-supplied data reaching the
// resolver: a stored record whose own interval no longer validates, or a
// malformed day token. This is a data-integrity failure, deliberately kept
// on a different channel from business-rule rejections, which are expressed
// through the ConflictReport.
var ErrInvalidArgument = errors.New("invalid argument")

// Recurrence labels how often a schedule repeats. Conflict detection works
// at single day-of-week granularity regardless of the label; the label is
// carried for display and future expansion.
type Recurrence string

const (
	RecurrenceOnce     Recurrence = "once"
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
	RecurrenceMonthly  Recurrence = "monthly"
)

// ValidRecurrence reports whether r is a known recurrence label.
func ValidRecurrence(r Recurrence) bool {
	switch r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	}
	return false
}

// ScheduleRecord is an immutable snapshot of a placed class. The resolver
// never mutates records handed to it.
type ScheduleRecord struct {
	ID         string
	Subject    string
	TeacherID  string
	RoomID     string
	Interval   Interval
	Recurrence Recurrence
}

// AvailabilityRecord is a teacher's declared window on a day. Available
// false marks an explicit blackout, distinct from having no records at all.
type AvailabilityRecord struct {
	ID        string
	TeacherID string
	Interval  Interval
	Available bool
}

// Candidate is the placement being validated.
type Candidate struct {
	Interval  Interval
	TeacherID string
	RoomID    string
}

// Verdict is the overall outcome of conflict resolution.
type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictBlocked Verdict = "blocked"
)

// ReasonKind classifies a single rejection reason.
type ReasonKind string

const (
	ReasonRoomDoubleBooked    ReasonKind = "room_double_booked"
	ReasonTeacherDoubleBooked ReasonKind = "teacher_double_booked"
	ReasonTeacherUnavailable  ReasonKind = "teacher_unavailable"
	ReasonInvalidInterval     ReasonKind = "invalid_interval"
)

// Reason names one offending record and why it blocks the candidate.
// RecordID is empty when no single record is at fault, e.g. a candidate that
// is not contained by any open availability window.
type Reason struct {
	Kind     ReasonKind `json:"kind"`
	RecordID string     `json:"record_id,omitempty"`
}

// ConflictReport is the resolver's output. A blocked verdict is an expected
// first-class value, not an error: callers render it as form feedback.
type ConflictReport struct {
	Verdict Verdict  `json:"verdict"`
	Reasons []Reason `json:"reasons,omitempty"`
}

// Blocked reports whether the candidate was rejected.
func (r ConflictReport) Blocked() bool {
	return r.Verdict == VerdictBlocked
}

// ConflictStatus is a derived projection of a report for display purposes.
// It is recomputed on demand and never trusted as stored state.
type ConflictStatus string

const (
	StatusNone     ConflictStatus = "none"
	StatusWarning  ConflictStatus = "warning"
	StatusConflict ConflictStatus = "conflict"
)

// Status collapses the report into the three-valued display status:
// availability problems alone downgrade to a warning, any double booking or
// malformed interval is a hard conflict.
func (r ConflictReport) Status() ConflictStatus {
	if !r.Blocked() {
		return StatusNone
	}
	for _, reason := range r.Reasons {
		if reason.Kind != ReasonTeacherUnavailable {
			return StatusConflict
		}
	}
	return StatusWarning
}

// ResolveConflicts decides whether the candidate can be placed. It sweeps
// the existing schedules for room and teacher double bookings, then checks
// the teacher's availability windows, collecting every applicable reason so
// the caller can present a complete diagnostic. excludeID names a schedule
// to skip, supporting the edit case where a record must not conflict with
// its own prior version.
//
// Callers are expected to pre-filter records by day for efficiency; passing
// an unfiltered set is correctness-safe, only slower. An empty availability
// set for the candidate's teacher and day is treated as unconstrained.
//
// ResolveConflicts returns an error only for corrupt inputs (a stored record
// failing its own interval invariants, or a malformed day token); ordinary
// rejections arrive in the report with a blocked verdict.
func ResolveConflicts(candidate Candidate, schedules []ScheduleRecord, availability []AvailabilityRecord, excludeID string) (ConflictReport, error) {
	if !candidate.Interval.Day.Valid() {
		return ConflictReport{}, fmt.Errorf("%w: candidate day %q", ErrInvalidArgument, string(candidate.Interval.Day))
	}

	// A malformed candidate interval blocks immediately: comparisons
	// against it would be meaningless.
	if !candidate.Interval.Start.Valid() || !candidate.Interval.End.Valid() || candidate.Interval.Start >= candidate.Interval.End {
		return ConflictReport{
			Verdict: VerdictBlocked,
			Reasons: []Reason{{Kind: ReasonInvalidInterval}},
		}, nil
	}

	for _, rec := range schedules {
		if err := rec.Interval.Validate(); err != nil {
			return ConflictReport{}, fmt.Errorf("%w: schedule %q: %v", ErrInvalidArgument, rec.ID, err)
		}
	}
	for _, rec := range availability {
		if err := rec.Interval.Validate(); err != nil {
			return ConflictReport{}, fmt.Errorf("%w: availability %q: %v", ErrInvalidArgument, rec.ID, err)
		}
	}

	var reasons []Reason

	for _, rec := range schedules {
		if rec.ID == excludeID || rec.RoomID != candidate.RoomID {
			continue
		}
		if candidate.Interval.Overlaps(rec.Interval) {
			reasons = append(reasons, Reason{Kind: ReasonRoomDoubleBooked, RecordID: rec.ID})
		}
	}

	for _, rec := range schedules {
		if rec.ID == excludeID || rec.TeacherID != candidate.TeacherID {
			continue
		}
		if candidate.Interval.Overlaps(rec.Interval) {
			reasons = append(reasons, Reason{Kind: ReasonTeacherDoubleBooked, RecordID: rec.ID})
		}
	}

	reasons = append(reasons, availabilityReasons(candidate, availability)...)

	report := ConflictReport{Verdict: VerdictOK, Reasons: reasons}
	if len(reasons) > 0 {
		report.Verdict = VerdictBlocked
	}
	return report, nil
}

// availabilityReasons applies the availability policy: with no records for
// the teacher and day the candidate is unconstrained; otherwise it must fit
// inside at least one open window and must not touch any blackout.
func availabilityReasons(candidate Candidate, availability []AvailabilityRecord) []Reason {
	var windows []AvailabilityRecord
	for _, rec := range availability {
		if rec.TeacherID == candidate.TeacherID && rec.Interval.Day == candidate.Interval.Day {
			windows = append(windows, rec)
		}
	}
	if len(windows) == 0 {
		return nil
	}

	var reasons []Reason
	contained := false
	for _, w := range windows {
		if !w.Available {
			if candidate.Interval.Overlaps(w.Interval) {
				reasons = append(reasons, Reason{Kind: ReasonTeacherUnavailable, RecordID: w.ID})
			}
			continue
		}
		if w.Interval.Contains(candidate.Interval) {
			contained = true
		}
	}
	if !contained {
		reasons = append(reasons, Reason{Kind: ReasonTeacherUnavailable})
	}
	return reasons
}
