package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/timetablepro/timetablepro-api/internal/models"
	"github.com/timetablepro/timetablepro-api/internal/timeslot"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
)

func newTimetableServiceUnderTest(repo *scheduleRepoStub, availability availabilityStub) *TimetableService {
	rooms := roomReaderStub{rooms: map[string]*models.Room{
		"room-1": {ID: "room-1", Name: "101", Active: true},
		"room-2": {ID: "room-2", Name: "102", Active: true},
	}}
	teachers := teacherReaderStub{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Ada Byron", Role: models.RoleTeacher, Active: true},
		"teacher-2": {ID: "teacher-2", FullName: "Alan Jones", Role: models.RoleTeacher, Active: true},
	}}
	return NewTimetableService(repo, availability, rooms, teachers, nil, schoolPolicy(), zap.NewNop())
}

func TestTimetableServiceForTeacherSortsWeekOrder(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {
				{ID: "s2", Subject: "Physics", TeacherID: "teacher-1", RoomID: "room-2", DayOfWeek: "monday", StartTime: "11:00", EndTime: "12:00"},
				{ID: "s1", Subject: "Maths", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"},
			},
			"wednesday": {
				{ID: "s3", Subject: "Chemistry", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "wednesday", StartTime: "08:00", EndTime: "09:00"},
			},
		},
	}
	service := newTimetableServiceUnderTest(repo, availabilityStub{})

	view, err := service.ForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, ScopeTeacher, view.Scope)
	assert.Equal(t, "Ada Byron", view.OwnerName)
	require.Len(t, view.Entries, 3)
	assert.Equal(t, []string{"s1", "s2", "s3"}, []string{view.Entries[0].ScheduleID, view.Entries[1].ScheduleID, view.Entries[2].ScheduleID})
	assert.Equal(t, "101", view.Entries[0].RoomName)
	for _, entry := range view.Entries {
		assert.Equal(t, timeslot.StatusNone, entry.ConflictStatus)
	}
}

func TestTimetableServiceForRoomFlagsConflicts(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {
				{ID: "s1", Subject: "Maths", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:30"},
				{ID: "s2", Subject: "Physics", TeacherID: "teacher-2", RoomID: "room-1", DayOfWeek: "monday", StartTime: "10:00", EndTime: "11:00"},
			},
		},
	}
	service := newTimetableServiceUnderTest(repo, availabilityStub{})

	view, err := service.ForRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, "101", view.OwnerName)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, timeslot.StatusConflict, view.Entries[0].ConflictStatus)
	assert.Equal(t, timeslot.StatusConflict, view.Entries[1].ConflictStatus)
}

func TestTimetableServiceForTeacherWarnsOutsideAvailability(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {
				{ID: "s1", Subject: "Maths", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "13:00", EndTime: "14:00"},
			},
		},
	}
	availability := availabilityStub{slots: map[string][]models.AvailabilitySlot{
		"teacher-1/monday": {{ID: "a1", TeacherID: "teacher-1", DayOfWeek: "monday", StartTime: "08:00", EndTime: "12:00", IsAvailable: true}},
	}}
	service := newTimetableServiceUnderTest(repo, availability)

	view, err := service.ForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, timeslot.StatusWarning, view.Entries[0].ConflictStatus)
}

func TestTimetableServiceUnknownOwner(t *testing.T) {
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	service := newTimetableServiceUnderTest(repo, availabilityStub{})

	_, err := service.ForTeacher(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = service.ForRoom(context.Background(), "nowhere")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceExportCSV(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {
				{ID: "s1", Subject: "Maths", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"},
			},
			"tuesday": {
				{ID: "s2", Subject: "Physics", TeacherID: "teacher-1", RoomID: "room-2", DayOfWeek: "tuesday", StartTime: "09:00", EndTime: "10:00"},
			},
		},
	}
	service := newTimetableServiceUnderTest(repo, availabilityStub{})

	payload, filename, contentType, err := service.Export(context.Background(), ScopeTeacher, "teacher-1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "timetable-teacher-teacher-1.csv", filename)
	assert.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Time,monday,tuesday,wednesday,thursday,friday", lines[0])
	assert.Contains(t, lines[1], "09:00 - 10:00")
	assert.Contains(t, lines[1], "Maths (101)")
	assert.Contains(t, lines[1], "Physics (102)")
}

func TestTimetableServiceExportPDF(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {
				{ID: "s1", Subject: "Maths", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"},
			},
		},
	}
	service := newTimetableServiceUnderTest(repo, availabilityStub{})

	payload, filename, contentType, err := service.Export(context.Background(), ScopeRoom, "room-1", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "timetable-room-room-1.pdf", filename)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestTimetableServiceExportRejectsUnknownFormat(t *testing.T) {
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	service := newTimetableServiceUnderTest(repo, availabilityStub{})

	_, _, _, err := service.Export(context.Background(), ScopeTeacher, "teacher-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, _, err = service.Export(context.Background(), "building", "b-1", FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
