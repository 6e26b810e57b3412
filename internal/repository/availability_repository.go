package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timetablepro/timetablepro-api/internal/models"
)

const availabilityColumns = "id, teacher_id, day_of_week, start_time, end_time, is_available, created_at, updated_at"

// AvailabilityRepository persists teacher availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByTeacher returns every availability window declared by a teacher.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_slots WHERE teacher_id = $1 ORDER BY day_of_week ASC, start_time ASC", availabilityColumns)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability by teacher: %w", err)
	}
	return slots, nil
}

// ListByTeacherDay returns a teacher's windows restricted to one day. This
// is the availability input to the conflict resolver.
func (r *AvailabilityRepository) ListByTeacherDay(ctx context.Context, teacherID, dayOfWeek string) ([]models.AvailabilitySlot, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_slots WHERE teacher_id = $1 AND day_of_week = $2 ORDER BY start_time ASC", availabilityColumns)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list availability by teacher/day: %w", err)
	}
	return slots, nil
}

// ReplaceForTeacher atomically swaps a teacher's full availability set:
// delete everything, insert the new windows, one transaction. The resolver
// must never observe a half-replaced week.
func (r *AvailabilityRepository) ReplaceForTeacher(ctx context.Context, teacherID string, slots []models.AvailabilitySlot) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace availability: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM availability_slots WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}

	now := time.Now().UTC()
	for i := range slots {
		slot := slots[i]
		slot.TeacherID = teacherID
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		slot.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, `INSERT INTO availability_slots (id, teacher_id, day_of_week, start_time, end_time, is_available, created_at, updated_at) VALUES (:id, :teacher_id, :day_of_week, :start_time, :end_time, :is_available, :created_at, :updated_at)`, &slot); err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
		slots[i] = slot
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace availability: %w", err)
	}
	return nil
}

// DeleteForTeacher removes every window for the teacher.
func (r *AvailabilityRepository) DeleteForTeacher(ctx context.Context, teacherID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_slots WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("delete availability for teacher: %w", err)
	}
	return nil
}
