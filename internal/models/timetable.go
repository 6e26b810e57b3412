package models

import (
	"time"

	"github.com/timetablepro/timetablepro-api/internal/timeslot"
)

// TimetableEntry is one rendered cell source in a weekly view. Names are
// denormalised so the view is self-contained for UI and export consumers.
type TimetableEntry struct {
	ScheduleID     string                  `json:"schedule_id"`
	Subject        string                  `json:"subject"`
	TeacherID      string                  `json:"teacher_id"`
	TeacherName    string                  `json:"teacher_name"`
	RoomID         string                  `json:"room_id"`
	RoomName       string                  `json:"room_name"`
	DayOfWeek      string                  `json:"day_of_week"`
	StartTime      string                  `json:"start_time"`
	EndTime        string                  `json:"end_time"`
	Recurrence     string                  `json:"recurrence"`
	ConflictStatus timeslot.ConflictStatus `json:"conflict_status"`
}

// TimetableView is a weekly timetable for a single teacher or room.
type TimetableView struct {
	Scope       string           `json:"scope"`
	OwnerID     string           `json:"owner_id"`
	OwnerName   string           `json:"owner_name"`
	Days        []string         `json:"days"`
	Entries     []TimetableEntry `json:"entries"`
	GeneratedAt time.Time        `json:"generated_at"`
}
