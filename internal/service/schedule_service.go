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
	"github.com/timetablepro/timetablepro-api/pkg/config"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	ListByDay(ctx context.Context, dayOfWeek string) ([]models.Schedule, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

type availabilityReader interface {
	ListByTeacherDay(ctx context.Context, teacherID, dayOfWeek string) ([]models.AvailabilitySlot, error)
}

type scheduleRoomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type scheduleTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type scheduleCacheInvalidator interface {
	InvalidateTimetables(ctx context.Context)
}

// CreateScheduleRequest describes payload for creating a schedule.
type CreateScheduleRequest struct {
	Subject    string `json:"subject" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	RoomID     string `json:"room_id" validate:"required"`
	DayOfWeek  string `json:"day_of_week" validate:"required"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	Recurrence string `json:"recurrence"`
}

// UpdateScheduleRequest updates an existing schedule.
type UpdateScheduleRequest struct {
	Subject    string `json:"subject" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	RoomID     string `json:"room_id" validate:"required"`
	DayOfWeek  string `json:"day_of_week" validate:"required"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	Recurrence string `json:"recurrence"`
}

// CheckScheduleRequest asks whether a placement would be accepted without
// writing anything. ExcludeID supports checking edits against everything but
// the record being edited.
type CheckScheduleRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	ExcludeID string `json:"exclude_id"`
}

// ScheduleService coordinates schedule CRUD, routing every write through
// the conflict resolver first.
type ScheduleService struct {
	repo         scheduleRepository
	availability availabilityReader
	rooms        scheduleRoomReader
	teachers     scheduleTeacherReader
	cache        scheduleCacheInvalidator
	metrics      *MetricsService
	policy       config.ScheduleConfig
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, availability availabilityReader, rooms scheduleRoomReader, teachers scheduleTeacherReader, cache scheduleCacheInvalidator, metrics *MetricsService, policy config.ScheduleConfig, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.DayStart != "" {
		if _, err := timeslot.ParseTimeOfDay(policy.DayStart); err != nil {
			logger.Warn("malformed school day start, bound disabled", zap.String("day_start", policy.DayStart), zap.Error(err))
		}
	}
	if policy.DayEnd != "" {
		if _, err := timeslot.ParseTimeOfDay(policy.DayEnd); err != nil {
			logger.Warn("malformed school day end, bound disabled", zap.String("day_end", policy.DayEnd), zap.Error(err))
		}
	}
	return &ScheduleService{
		repo:         repo,
		availability: availability,
		rooms:        rooms,
		teachers:     teachers,
		cache:        cache,
		metrics:      metrics,
		policy:       policy,
		validator:    validate,
		logger:       logger,
	}
}

// List returns schedules with pagination metadata. Conflict statuses are not
// annotated here; Get performs the authoritative recompute per record.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	filter.DayOfWeek = strings.ToLower(filter.DayOfWeek)
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return schedules, pagination, nil
}

// Get loads one schedule and recomputes its conflict status from current
// data. The stored record carries no trusted status.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	report, err := s.resolve(ctx, timeslot.Candidate{
		Interval:  mustRecordInterval(schedule),
		TeacherID: schedule.TeacherID,
		RoomID:    schedule.RoomID,
	}, schedule.DayOfWeek, schedule.TeacherID, schedule.ID)
	if err != nil {
		return nil, err
	}
	schedule.ConflictStatus = report.Status()
	return schedule, nil
}

// ListByTeacher returns schedules for a teacher.
func (s *ScheduleService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error) {
	schedules, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher schedules")
	}
	return schedules, nil
}

// ListByRoom returns schedules placed in a room.
func (s *ScheduleService) ListByRoom(ctx context.Context, roomID string) ([]models.Schedule, error) {
	schedules, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room schedules")
	}
	return schedules, nil
}

// Create inserts a new schedule after conflict resolution.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedule, err := s.normalise(models.Schedule{
		Subject:    req.Subject,
		TeacherID:  req.TeacherID,
		RoomID:     req.RoomID,
		DayOfWeek:  req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Recurrence: req.Recurrence,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ensureReferences(ctx, schedule.TeacherID, schedule.RoomID); err != nil {
		return nil, err
	}
	if err := s.ensurePlaceable(ctx, schedule, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	s.invalidate(ctx)
	schedule.ConflictStatus = timeslot.StatusNone
	return &schedule, nil
}

// Update modifies an existing schedule, excluding its own prior version from
// the conflict sweep.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	updated, err := s.normalise(models.Schedule{
		ID:         existing.ID,
		Subject:    req.Subject,
		TeacherID:  req.TeacherID,
		RoomID:     req.RoomID,
		DayOfWeek:  req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Recurrence: req.Recurrence,
		CreatedAt:  existing.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ensureReferences(ctx, updated.TeacherID, updated.RoomID); err != nil {
		return nil, err
	}
	if err := s.ensurePlaceable(ctx, updated, existing.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	s.invalidate(ctx)
	updated.ConflictStatus = timeslot.StatusNone
	return &updated, nil
}

// Delete removes a schedule entry.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.invalidate(ctx)
	return nil
}

// Check runs conflict resolution for a hypothetical placement and returns
// the full report. A blocked verdict is a successful response here, not an
// error: the UI renders it as form feedback.
func (s *ScheduleService) Check(ctx context.Context, req CheckScheduleRequest) (*timeslot.ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check payload")
	}

	candidate, err := s.buildCandidate(req.DayOfWeek, req.StartTime, req.EndTime, req.TeacherID, req.RoomID)
	if err != nil {
		return nil, err
	}

	report, err := s.resolve(ctx, candidate, string(candidate.Interval.Day), req.TeacherID, req.ExcludeID)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// normalise lowercases the day token, parses and re-formats the times into
// canonical zero-padded form and applies the school scheduling policy.
func (s *ScheduleService) normalise(schedule models.Schedule) (models.Schedule, error) {
	schedule.DayOfWeek = strings.ToLower(strings.TrimSpace(schedule.DayOfWeek))
	if !timeslot.IsValidDayOfWeek(schedule.DayOfWeek) {
		return models.Schedule{}, appErrors.Clone(appErrors.ErrInvalidDay, "unknown day of week: "+schedule.DayOfWeek)
	}
	if !s.dayAllowed(schedule.DayOfWeek) {
		return models.Schedule{}, appErrors.Clone(appErrors.ErrValidation, "day not part of the school week: "+schedule.DayOfWeek)
	}

	start, err := timeslot.ParseTimeOfDay(schedule.StartTime)
	if err != nil {
		return models.Schedule{}, appErrors.Wrap(err, appErrors.ErrInvalidTime.Code, appErrors.ErrInvalidTime.Status, "invalid start time")
	}
	end, err := timeslot.ParseTimeOfDay(schedule.EndTime)
	if err != nil {
		return models.Schedule{}, appErrors.Wrap(err, appErrors.ErrInvalidTime.Code, appErrors.ErrInvalidTime.Status, "invalid end time")
	}
	if start >= end {
		return models.Schedule{}, appErrors.Clone(appErrors.ErrValidation, "start time must precede end time")
	}
	if err := s.withinSchoolDay(start, end); err != nil {
		return models.Schedule{}, err
	}

	if schedule.Recurrence == "" {
		schedule.Recurrence = string(timeslot.RecurrenceWeekly)
	}
	if !timeslot.ValidRecurrence(timeslot.Recurrence(schedule.Recurrence)) {
		return models.Schedule{}, appErrors.Clone(appErrors.ErrValidation, "unknown recurrence: "+schedule.Recurrence)
	}

	// Store the canonical zero-padded rendering regardless of input padding.
	schedule.StartTime, _ = timeslot.FormatTimeOfDay(start)
	schedule.EndTime, _ = timeslot.FormatTimeOfDay(end)
	return schedule, nil
}

func (s *ScheduleService) dayAllowed(day string) bool {
	if len(s.policy.Days) == 0 {
		return true
	}
	for _, d := range s.policy.Days {
		if d == day {
			return true
		}
	}
	return false
}

func (s *ScheduleService) withinSchoolDay(start, end timeslot.TimeOfDay) error {
	if s.policy.DayStart != "" {
		open, err := timeslot.ParseTimeOfDay(s.policy.DayStart)
		if err == nil && start < open {
			return appErrors.Clone(appErrors.ErrValidation, "class starts before the school day opens")
		}
	}
	if s.policy.DayEnd != "" {
		close, err := timeslot.ParseTimeOfDay(s.policy.DayEnd)
		if err == nil && end > close {
			return appErrors.Clone(appErrors.ErrValidation, "class ends after the school day closes")
		}
	}
	return nil
}

func (s *ScheduleService) buildCandidate(day, startTime, endTime, teacherID, roomID string) (timeslot.Candidate, error) {
	token := strings.ToLower(strings.TrimSpace(day))
	parsedDay, err := timeslot.ParseDayOfWeek(token)
	if err != nil {
		return timeslot.Candidate{}, appErrors.Wrap(err, appErrors.ErrInvalidDay.Code, appErrors.ErrInvalidDay.Status, "unknown day of week")
	}
	start, err := timeslot.ParseTimeOfDay(startTime)
	if err != nil {
		return timeslot.Candidate{}, appErrors.Wrap(err, appErrors.ErrInvalidTime.Code, appErrors.ErrInvalidTime.Status, "invalid start time")
	}
	end, err := timeslot.ParseTimeOfDay(endTime)
	if err != nil {
		return timeslot.Candidate{}, appErrors.Wrap(err, appErrors.ErrInvalidTime.Code, appErrors.ErrInvalidTime.Status, "invalid end time")
	}
	interval, err := timeslot.NewInterval(parsedDay, start, end)
	if err != nil {
		return timeslot.Candidate{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid interval")
	}
	return timeslot.Candidate{Interval: interval, TeacherID: teacherID, RoomID: roomID}, nil
}

// resolve gathers the day's schedules and the teacher's windows and runs the
// resolver. Repository pre-filtering keeps the sweep small; the resolver
// itself re-applies the day and identity checks.
func (s *ScheduleService) resolve(ctx context.Context, candidate timeslot.Candidate, day, teacherID, excludeID string) (timeslot.ConflictReport, error) {
	sameDay, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return timeslot.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules for conflict check")
	}
	records, err := toScheduleRecords(sameDay)
	if err != nil {
		return timeslot.ConflictReport{}, err
	}

	slots, err := s.availability.ListByTeacherDay(ctx, teacherID, day)
	if err != nil {
		return timeslot.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability for conflict check")
	}
	windows, err := toAvailabilityRecords(slots)
	if err != nil {
		return timeslot.ConflictReport{}, err
	}

	report, err := timeslot.ResolveConflicts(candidate, records, windows, excludeID)
	if err != nil {
		return timeslot.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrCorruptRecord.Code, appErrors.ErrCorruptRecord.Status, "conflict resolution failed on stored data")
	}
	s.metrics.RecordConflictCheck(report.Blocked())
	return report, nil
}

func (s *ScheduleService) ensurePlaceable(ctx context.Context, schedule models.Schedule, excludeID string) error {
	candidate, err := s.buildCandidate(schedule.DayOfWeek, schedule.StartTime, schedule.EndTime, schedule.TeacherID, schedule.RoomID)
	if err != nil {
		return err
	}
	report, err := s.resolve(ctx, candidate, schedule.DayOfWeek, schedule.TeacherID, excludeID)
	if err != nil {
		return err
	}
	if report.Blocked() {
		s.logger.Info("schedule placement rejected",
			zap.String("teacher_id", schedule.TeacherID),
			zap.String("room_id", schedule.RoomID),
			zap.String("day", schedule.DayOfWeek),
			zap.Int("reasons", len(report.Reasons)),
		)
		domainErr := &models.ScheduleConflictError{Message: "placement conflicts with existing records", Report: report}
		return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict detected")
	}
	return nil
}

func (s *ScheduleService) ensureReferences(ctx context.Context, teacherID, roomID string) error {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user is not a teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "assigned teacher is inactive")
	}

	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if !room.Active {
		return appErrors.Clone(appErrors.ErrValidation, "room is not bookable")
	}
	return nil
}

func (s *ScheduleService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateTimetables(ctx)
	}
}

// toScheduleRecords parses stored rows into resolver records. A row that no
// longer parses is corrupt upstream data, reported on the error channel
// rather than as a conflict reason.
func toScheduleRecords(schedules []models.Schedule) ([]timeslot.ScheduleRecord, error) {
	records := make([]timeslot.ScheduleRecord, 0, len(schedules))
	for _, item := range schedules {
		interval, err := parseStoredInterval(item.DayOfWeek, item.StartTime, item.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCorruptRecord.Code, appErrors.ErrCorruptRecord.Status, "schedule "+item.ID+" failed validation")
		}
		records = append(records, timeslot.ScheduleRecord{
			ID:         item.ID,
			Subject:    item.Subject,
			TeacherID:  item.TeacherID,
			RoomID:     item.RoomID,
			Interval:   interval,
			Recurrence: timeslot.Recurrence(item.Recurrence),
		})
	}
	return records, nil
}

func toAvailabilityRecords(slots []models.AvailabilitySlot) ([]timeslot.AvailabilityRecord, error) {
	records := make([]timeslot.AvailabilityRecord, 0, len(slots))
	for _, slot := range slots {
		interval, err := parseStoredInterval(slot.DayOfWeek, slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCorruptRecord.Code, appErrors.ErrCorruptRecord.Status, "availability "+slot.ID+" failed validation")
		}
		records = append(records, timeslot.AvailabilityRecord{
			ID:        slot.ID,
			TeacherID: slot.TeacherID,
			Interval:  interval,
			Available: slot.IsAvailable,
		})
	}
	return records, nil
}

func parseStoredInterval(day, startTime, endTime string) (timeslot.Interval, error) {
	parsedDay, err := timeslot.ParseDayOfWeek(day)
	if err != nil {
		return timeslot.Interval{}, err
	}
	start, err := timeslot.ParseTimeOfDay(startTime)
	if err != nil {
		return timeslot.Interval{}, err
	}
	end, err := timeslot.ParseTimeOfDay(endTime)
	if err != nil {
		return timeslot.Interval{}, err
	}
	return timeslot.NewInterval(parsedDay, start, end)
}

// mustRecordInterval converts a stored schedule's own fields, falling back
// to a zero interval when the row is corrupt; the resolver then reports it.
func mustRecordInterval(schedule *models.Schedule) timeslot.Interval {
	interval, err := parseStoredInterval(schedule.DayOfWeek, schedule.StartTime, schedule.EndTime)
	if err != nil {
		return timeslot.Interval{Day: timeslot.DayOfWeek(schedule.DayOfWeek)}
	}
	return interval
}
