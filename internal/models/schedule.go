package models

import (
	"time"

	"github.com/timetablepro/timetablepro-api/internal/timeslot"
)

// Schedule represents a placed class occupying one weekly time slot. Times
// are stored as canonical zero-padded HH:mm strings and day_of_week as a
// lowercase token; parsing into the timeslot types happens at the service
// boundary, never on raw strings in comparisons.
type Schedule struct {
	ID         string    `db:"id" json:"id"`
	Subject    string    `db:"subject" json:"subject"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	DayOfWeek  string    `db:"day_of_week" json:"day_of_week"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	Recurrence string    `db:"recurrence" json:"recurrence"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	// ConflictStatus is a read-time projection recomputed by the schedule
	// service. It is never persisted and never trusted from storage.
	ConflictStatus timeslot.ConflictStatus `db:"-" json:"conflict_status,omitempty"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	TeacherID string
	RoomID    string
	DayOfWeek string
	Subject   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ScheduleConflictError is returned when a candidate placement is rejected
// by the conflict resolver. It carries the full report so API consumers can
// present every reason at once.
type ScheduleConflictError struct {
	Message string                  `json:"message"`
	Report  timeslot.ConflictReport `json:"report"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
