package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/timetablepro/timetablepro-api/internal/models"
	"github.com/timetablepro/timetablepro-api/internal/timeslot"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
)

type availabilityRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error)
	ListByTeacherDay(ctx context.Context, teacherID, dayOfWeek string) ([]models.AvailabilitySlot, error)
	ReplaceForTeacher(ctx context.Context, teacherID string, slots []models.AvailabilitySlot) error
	DeleteForTeacher(ctx context.Context, teacherID string) error
}

// AvailabilitySlotInput is one declared window in a replace request.
type AvailabilitySlotInput struct {
	DayOfWeek   string `json:"day_of_week" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	IsAvailable *bool  `json:"is_available"`
}

// ReplaceAvailabilityRequest swaps a teacher's full set of windows in one
// call. An empty slice clears the teacher back to unconstrained.
type ReplaceAvailabilityRequest struct {
	Slots []AvailabilitySlotInput `json:"slots" validate:"dive"`
}

// AvailabilityService manages teacher availability windows and blackouts.
type AvailabilityService struct {
	repo      availabilityRepository
	teachers  scheduleTeacherReader
	cache     scheduleCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, teachers scheduleTeacherReader, cache scheduleCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// ListForTeacher returns all declared windows for a teacher, availability
// and blackouts alike. An empty result means the teacher is unconstrained.
func (s *AvailabilityService) ListForTeacher(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return slots, nil
}

// Replace atomically swaps the teacher's windows. Every slot is parsed and
// validated before anything is written so a bad row cannot leave the teacher
// half-updated.
func (s *AvailabilityService) Replace(ctx context.Context, teacherID string, req ReplaceAvailabilityRequest) ([]models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	slots := make([]models.AvailabilitySlot, 0, len(req.Slots))
	for _, input := range req.Slots {
		slot, err := s.normaliseSlot(teacherID, input)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	if err := s.repo.ReplaceForTeacher(ctx, teacherID, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability")
	}
	s.logger.Info("availability replaced",
		zap.String("teacher_id", teacherID),
		zap.Int("slots", len(slots)),
	)
	if s.cache != nil {
		s.cache.InvalidateTimetables(ctx)
	}

	stored, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload availability")
	}
	return stored, nil
}

// Clear removes every window for the teacher, returning them to the
// unconstrained default.
func (s *AvailabilityService) Clear(ctx context.Context, teacherID string) error {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return err
	}
	if err := s.repo.DeleteForTeacher(ctx, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear availability")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetables(ctx)
	}
	return nil
}

func (s *AvailabilityService) normaliseSlot(teacherID string, input AvailabilitySlotInput) (models.AvailabilitySlot, error) {
	day := strings.ToLower(strings.TrimSpace(input.DayOfWeek))
	if !timeslot.IsValidDayOfWeek(day) {
		return models.AvailabilitySlot{}, appErrors.Clone(appErrors.ErrInvalidDay, "unknown day of week: "+input.DayOfWeek)
	}
	start, err := timeslot.ParseTimeOfDay(input.StartTime)
	if err != nil {
		return models.AvailabilitySlot{}, appErrors.Wrap(err, appErrors.ErrInvalidTime.Code, appErrors.ErrInvalidTime.Status, "invalid start time")
	}
	end, err := timeslot.ParseTimeOfDay(input.EndTime)
	if err != nil {
		return models.AvailabilitySlot{}, appErrors.Wrap(err, appErrors.ErrInvalidTime.Code, appErrors.ErrInvalidTime.Status, "invalid end time")
	}
	if start >= end {
		return models.AvailabilitySlot{}, appErrors.Clone(appErrors.ErrValidation, "start time must precede end time")
	}

	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}

	startText, _ := timeslot.FormatTimeOfDay(start)
	endText, _ := timeslot.FormatTimeOfDay(end)
	return models.AvailabilitySlot{
		TeacherID:   teacherID,
		DayOfWeek:   day,
		StartTime:   startText,
		EndTime:     endText,
		IsAvailable: available,
	}, nil
}

func (s *AvailabilityService) ensureTeacher(ctx context.Context, teacherID string) error {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}
	return nil
}
