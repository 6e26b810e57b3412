package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/timetablepro/timetablepro-api/internal/models"
	"github.com/timetablepro/timetablepro-api/internal/timeslot"
	"github.com/timetablepro/timetablepro-api/pkg/config"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
)

type scheduleRepoStub struct {
	byID    map[string]*models.Schedule
	byDay   map[string][]models.Schedule
	created []*models.Schedule
	updated []*models.Schedule
	deleted []string
	listErr error
}

func (s *scheduleRepoStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	var out []models.Schedule
	for _, items := range s.byDay {
		out = append(out, items...)
	}
	return out, len(out), s.listErr
}

func (s *scheduleRepoStub) ListByDay(ctx context.Context, dayOfWeek string) ([]models.Schedule, error) {
	return s.byDay[dayOfWeek], s.listErr
}

func (s *scheduleRepoStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, items := range s.byDay {
		for _, item := range items {
			if item.TeacherID == teacherID {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (s *scheduleRepoStub) ListByRoom(ctx context.Context, roomID string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, items := range s.byDay {
		for _, item := range items {
			if item.RoomID == roomID {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (s *scheduleRepoStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	if item, ok := s.byID[id]; ok {
		return item, nil
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleRepoStub) Create(ctx context.Context, schedule *models.Schedule) error {
	schedule.ID = "generated-id"
	s.created = append(s.created, schedule)
	return nil
}

func (s *scheduleRepoStub) Update(ctx context.Context, schedule *models.Schedule) error {
	s.updated = append(s.updated, schedule)
	return nil
}

func (s *scheduleRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type availabilityStub struct {
	slots map[string][]models.AvailabilitySlot
	err   error
}

func (s availabilityStub) ListByTeacherDay(ctx context.Context, teacherID, dayOfWeek string) ([]models.AvailabilitySlot, error) {
	return s.slots[teacherID+"/"+dayOfWeek], s.err
}

type roomReaderStub struct {
	rooms map[string]*models.Room
}

func (s roomReaderStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := s.rooms[id]; ok {
		return room, nil
	}
	return nil, sql.ErrNoRows
}

type teacherReaderStub struct {
	users map[string]*models.User
}

func (s teacherReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type cacheInvalidatorStub struct {
	calls int
}

func (s *cacheInvalidatorStub) InvalidateTimetables(ctx context.Context) {
	s.calls++
}

func schoolPolicy() config.ScheduleConfig {
	return config.ScheduleConfig{
		Days:     []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		DayStart: "07:00",
		DayEnd:   "18:00",
	}
}

func newScheduleServiceUnderTest(repo *scheduleRepoStub, availability availabilityStub, cache *cacheInvalidatorStub) *ScheduleService {
	rooms := roomReaderStub{rooms: map[string]*models.Room{
		"room-1": {ID: "room-1", Name: "101", Active: true},
		"room-2": {ID: "room-2", Name: "102", Active: true},
		"room-closed": {ID: "room-closed", Name: "Annex", Active: false},
	}}
	teachers := teacherReaderStub{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Ada Byron", Role: models.RoleTeacher, Active: true},
		"teacher-2": {ID: "teacher-2", FullName: "Alan Jones", Role: models.RoleTeacher, Active: true},
		"student-1": {ID: "student-1", FullName: "Sam Pupil", Role: models.RoleStudent, Active: true},
	}}
	return NewScheduleService(repo, availability, rooms, teachers, cache, nil, schoolPolicy(), nil, zap.NewNop())
}

func TestScheduleServiceWarnsOnMalformedDayBounds(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	policy := config.ScheduleConfig{
		Days:     []string{"monday"},
		DayStart: "7am",
		DayEnd:   "18:00",
	}
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	rooms := roomReaderStub{rooms: map[string]*models.Room{"room-1": {ID: "room-1", Name: "101", Active: true}}}
	teachers := teacherReaderStub{users: map[string]*models.User{"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, Active: true}}}
	service := NewScheduleService(repo, availabilityStub{}, rooms, teachers, &cacheInvalidatorStub{}, nil, policy, nil, zap.New(core))

	require.Equal(t, 1, logs.FilterMessage("malformed school day start, bound disabled").Len())

	// The unparseable opening bound falls open; the valid closing bound
	// still applies.
	created, err := service.Create(context.Background(), CreateScheduleRequest{
		Subject:   "Math",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "05:00",
		EndTime:   "06:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "05:00", created.StartTime)

	_, err = service.Create(context.Background(), CreateScheduleRequest{
		Subject:   "Math",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "17:30",
		EndTime:   "18:30",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateStoresCanonicalForm(t *testing.T) {
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	cache := &cacheInvalidatorStub{}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, cache)

	created, err := service.Create(context.Background(), CreateScheduleRequest{
		Subject:   "Mathematics",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "Monday",
		StartTime: "9:00",
		EndTime:   "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "monday", created.DayOfWeek)
	assert.Equal(t, "09:00", created.StartTime)
	assert.Equal(t, "10:30", created.EndTime)
	assert.Equal(t, string(timeslot.RecurrenceWeekly), created.Recurrence)
	assert.Equal(t, timeslot.StatusNone, created.ConflictStatus)
	require.Len(t, repo.created, 1)
	assert.Equal(t, 1, cache.calls)
}

func TestScheduleServiceCreateRejectsRoomConflict(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {{ID: "s1", Subject: "Physics", TeacherID: "teacher-2", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:30"}},
		},
	}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	_, err := service.Create(context.Background(), CreateScheduleRequest{
		Subject:   "Mathematics",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Report.Reasons, 1)
	assert.Equal(t, timeslot.ReasonRoomDoubleBooked, conflictErr.Report.Reasons[0].Kind)
	assert.Equal(t, "s1", conflictErr.Report.Reasons[0].RecordID)
	assert.Empty(t, repo.created)
}

func TestScheduleServiceCreateAllowsBackToBack(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {{ID: "s1", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}},
		},
	}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	_, err := service.Create(context.Background(), CreateScheduleRequest{
		Subject:   "Mathematics",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.NoError(t, err)
}

func TestScheduleServiceCreateRejectsTeacherUnavailable(t *testing.T) {
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	availability := availabilityStub{slots: map[string][]models.AvailabilitySlot{
		"teacher-1/monday": {{ID: "a1", TeacherID: "teacher-1", DayOfWeek: "monday", StartTime: "08:00", EndTime: "12:00", IsAvailable: true}},
	}}
	service := newScheduleServiceUnderTest(repo, availability, &cacheInvalidatorStub{})

	_, err := service.Create(context.Background(), CreateScheduleRequest{
		Subject:   "Mathematics",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "11:00",
		EndTime:   "13:00",
	})
	require.Error(t, err)
	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Report.Reasons, 1)
	assert.Equal(t, timeslot.ReasonTeacherUnavailable, conflictErr.Report.Reasons[0].Kind)
}

func TestScheduleServiceCreateRejectsBadInput(t *testing.T) {
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	base := CreateScheduleRequest{Subject: "Math", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}

	cases := []struct {
		name   string
		mutate func(*CreateScheduleRequest)
		code   string
	}{
		{"unknown day", func(r *CreateScheduleRequest) { r.DayOfWeek = "funday" }, appErrors.ErrInvalidDay.Code},
		{"weekend outside policy", func(r *CreateScheduleRequest) { r.DayOfWeek = "sunday" }, appErrors.ErrValidation.Code},
		{"bad time format", func(r *CreateScheduleRequest) { r.StartTime = "abc" }, appErrors.ErrInvalidTime.Code},
		{"out of range time", func(r *CreateScheduleRequest) { r.EndTime = "24:00" }, appErrors.ErrInvalidTime.Code},
		{"empty interval", func(r *CreateScheduleRequest) { r.StartTime = "10:00"; r.EndTime = "10:00" }, appErrors.ErrValidation.Code},
		{"before opening", func(r *CreateScheduleRequest) { r.StartTime = "06:00"; r.EndTime = "08:00" }, appErrors.ErrValidation.Code},
		{"after closing", func(r *CreateScheduleRequest) { r.StartTime = "17:00"; r.EndTime = "19:00" }, appErrors.ErrValidation.Code},
		{"unknown recurrence", func(r *CreateScheduleRequest) { r.Recurrence = "hourly" }, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := service.Create(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.created)
}

func TestScheduleServiceCreateRejectsBadReferences(t *testing.T) {
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{}, byDay: map[string][]models.Schedule{}}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	base := CreateScheduleRequest{Subject: "Math", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}

	missingTeacher := base
	missingTeacher.TeacherID = "nobody"
	_, err := service.Create(context.Background(), missingTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	notATeacher := base
	notATeacher.TeacherID = "student-1"
	_, err = service.Create(context.Background(), notATeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	closedRoom := base
	closedRoom.RoomID = "room-closed"
	_, err = service.Create(context.Background(), closedRoom)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceUpdateExcludesSelf(t *testing.T) {
	existing := models.Schedule{ID: "s1", Subject: "Math", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}
	repo := &scheduleRepoStub{
		byID:  map[string]*models.Schedule{"s1": &existing},
		byDay: map[string][]models.Schedule{"monday": {existing}},
	}
	cache := &cacheInvalidatorStub{}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, cache)

	updated, err := service.Update(context.Background(), "s1", UpdateScheduleRequest{
		Subject:   "Mathematics",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "09:30",
		EndTime:   "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", updated.StartTime)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, 1, cache.calls)
}

func TestScheduleServiceUpdateStillConflictsWithOthers(t *testing.T) {
	existing := models.Schedule{ID: "s1", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}
	other := models.Schedule{ID: "s2", TeacherID: "teacher-2", RoomID: "room-1", DayOfWeek: "monday", StartTime: "10:00", EndTime: "11:00"}
	repo := &scheduleRepoStub{
		byID:  map[string]*models.Schedule{"s1": &existing},
		byDay: map[string][]models.Schedule{"monday": {existing, other}},
	}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	_, err := service.Update(context.Background(), "s1", UpdateScheduleRequest{
		Subject:   "Math",
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "10:30",
		EndTime:   "11:30",
	})
	require.Error(t, err)
	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, timeslot.ReasonRoomDoubleBooked, conflictErr.Report.Reasons[0].Kind)
	assert.Equal(t, "s2", conflictErr.Report.Reasons[0].RecordID)
}

func TestScheduleServiceCheckReturnsBlockedReportWithoutError(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {{ID: "s1", TeacherID: "teacher-1", RoomID: "room-2", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}},
		},
	}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	report, err := service.Check(context.Background(), CheckScheduleRequest{
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "09:30",
		EndTime:   "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, timeslot.VerdictBlocked, report.Verdict)
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, timeslot.ReasonTeacherDoubleBooked, report.Reasons[0].Kind)

	excluded, err := service.Check(context.Background(), CheckScheduleRequest{
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "09:30",
		EndTime:   "10:30",
		ExcludeID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, timeslot.VerdictOK, excluded.Verdict)
}

func TestScheduleServiceCheckNormalisesPaddedDay(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {{ID: "s1", TeacherID: "teacher-2", RoomID: "room-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}},
		},
	}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	// Surrounding whitespace and mixed case must hit the same stored day
	// the canonical token does.
	for _, day := range []string{" Monday", "MONDAY ", "monday"} {
		report, err := service.Check(context.Background(), CheckScheduleRequest{
			TeacherID: "teacher-1",
			RoomID:    "room-1",
			DayOfWeek: day,
			StartTime: "09:30",
			EndTime:   "10:30",
		})
		require.NoError(t, err)
		assert.Equal(t, timeslot.VerdictBlocked, report.Verdict, "day token %q", day)
		require.Len(t, report.Reasons, 1)
		assert.Equal(t, timeslot.ReasonRoomDoubleBooked, report.Reasons[0].Kind)
	}
}

func TestScheduleServiceCorruptStoredRecord(t *testing.T) {
	repo := &scheduleRepoStub{
		byID: map[string]*models.Schedule{},
		byDay: map[string][]models.Schedule{
			"monday": {{ID: "bad", TeacherID: "teacher-2", RoomID: "room-2", DayOfWeek: "monday", StartTime: "11:00", EndTime: "10:00"}},
		},
	}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, &cacheInvalidatorStub{})

	_, err := service.Check(context.Background(), CheckScheduleRequest{
		TeacherID: "teacher-1",
		RoomID:    "room-1",
		DayOfWeek: "monday",
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCorruptRecord.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceGetRecomputesStatus(t *testing.T) {
	stored := models.Schedule{ID: "s1", Subject: "Math", TeacherID: "teacher-1", RoomID: "room-1", DayOfWeek: "monday", StartTime: "13:00", EndTime: "14:00"}
	repo := &scheduleRepoStub{
		byID:  map[string]*models.Schedule{"s1": &stored},
		byDay: map[string][]models.Schedule{"monday": {stored}},
	}
	availability := availabilityStub{slots: map[string][]models.AvailabilitySlot{
		"teacher-1/monday": {{ID: "a1", TeacherID: "teacher-1", DayOfWeek: "monday", StartTime: "08:00", EndTime: "12:00", IsAvailable: true}},
	}}
	service := newScheduleServiceUnderTest(repo, availability, &cacheInvalidatorStub{})

	got, err := service.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, timeslot.StatusWarning, got.ConflictStatus)
}

func TestScheduleServiceDelete(t *testing.T) {
	stored := models.Schedule{ID: "s1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00", TeacherID: "teacher-1", RoomID: "room-1"}
	repo := &scheduleRepoStub{byID: map[string]*models.Schedule{"s1": &stored}, byDay: map[string][]models.Schedule{}}
	cache := &cacheInvalidatorStub{}
	service := newScheduleServiceUnderTest(repo, availabilityStub{}, cache)

	require.NoError(t, service.Delete(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
	assert.Equal(t, 1, cache.calls)

	err := service.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
