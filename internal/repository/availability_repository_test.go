package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetablepro/timetablepro-api/internal/models"
)

func availabilityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "day_of_week", "start_time", "end_time", "is_available", "created_at", "updated_at"}).
		AddRow("a1", "t1", "monday", "09:00", "12:00", true, time.Now(), time.Now())
}

func TestAvailabilityRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, day_of_week, start_time, end_time, is_available, created_at, updated_at FROM availability_slots WHERE teacher_id = $1 ORDER BY day_of_week ASC, start_time ASC")).
		WithArgs("t1").
		WillReturnRows(availabilityRows())

	slots, err := repo.ListByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryListByTeacherDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM availability_slots WHERE teacher_id = $1 AND day_of_week = $2")).
		WithArgs("t1", "monday").
		WillReturnRows(availabilityRows())

	slots, err := repo.ListByTeacherDay(context.Background(), "t1", "monday")
	require.NoError(t, err)
	assert.Len(t, slots, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryReplaceForTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_slots WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO availability_slots").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO availability_slots").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	slots := []models.AvailabilitySlot{
		{DayOfWeek: "monday", StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
		{DayOfWeek: "monday", StartTime: "13:00", EndTime: "15:00", IsAvailable: false},
	}
	require.NoError(t, repo.ReplaceForTeacher(context.Background(), "t1", slots))
	assert.NotEmpty(t, slots[0].ID)
	assert.Equal(t, "t1", slots[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryReplaceRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_slots WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceForTeacher(context.Background(), "t1", nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryReplaceEmptySetClearsWeek(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_slots WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceForTeacher(context.Background(), "t1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
