package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/timetablepro/timetablepro-api/internal/models"
	"github.com/timetablepro/timetablepro-api/internal/timeslot"
	"github.com/timetablepro/timetablepro-api/pkg/config"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
	"github.com/timetablepro/timetablepro-api/pkg/export"
)

// Timetable view scopes.
const (
	ScopeTeacher = "teacher"
	ScopeRoom    = "room"
)

// Export formats accepted by the download endpoint.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type timetableScheduleReader interface {
	ListByDay(ctx context.Context, dayOfWeek string) ([]models.Schedule, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.Schedule, error)
}

type tableExporter interface {
	Render(table export.Table) ([]byte, error)
}

// TimetableService renders weekly views for a teacher or a room, caching
// the result in Redis and serving CSV and PDF downloads.
type TimetableService struct {
	schedules    timetableScheduleReader
	availability availabilityReader
	rooms        scheduleRoomReader
	teachers     scheduleTeacherReader
	cache        *CacheService
	policy       config.ScheduleConfig
	csv          tableExporter
	pdf          tableExporter
	logger       *zap.Logger
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(schedules timetableScheduleReader, availability availabilityReader, rooms scheduleRoomReader, teachers scheduleTeacherReader, cache *CacheService, policy config.ScheduleConfig, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		schedules:    schedules,
		availability: availability,
		rooms:        rooms,
		teachers:     teachers,
		cache:        cache,
		policy:       policy,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
	}
}

// ForTeacher renders the weekly timetable for one teacher.
func (s *TimetableService) ForTeacher(ctx context.Context, teacherID string) (*models.TimetableView, error) {
	key := "timetable:teacher:" + teacherID
	var cached models.TimetableView
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}

	schedules, err := s.schedules.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedules")
	}

	view, err := s.buildView(ctx, ScopeTeacher, teacherID, teacher.FullName, schedules)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, view)
	return view, nil
}

// ForRoom renders the weekly timetable for one room.
func (s *TimetableService) ForRoom(ctx context.Context, roomID string) (*models.TimetableView, error) {
	key := "timetable:room:" + roomID
	var cached models.TimetableView
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	schedules, err := s.schedules.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room schedules")
	}

	view, err := s.buildView(ctx, ScopeRoom, roomID, room.Name, schedules)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, view)
	return view, nil
}

// Export renders a view into the requested download format, returning the
// payload, suggested filename and content type.
func (s *TimetableService) Export(ctx context.Context, scope, ownerID, format string) ([]byte, string, string, error) {
	var (
		view *models.TimetableView
		err  error
	)
	switch scope {
	case ScopeTeacher:
		view, err = s.ForTeacher(ctx, ownerID)
	case ScopeRoom:
		view, err = s.ForRoom(ctx, ownerID)
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unknown timetable scope: "+scope)
	}
	if err != nil {
		return nil, "", "", err
	}

	table := s.buildTable(view)
	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, fmt.Sprintf("timetable-%s-%s.csv", scope, ownerID), "text/csv", nil
	case FormatPDF:
		payload, err := s.pdf.Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, fmt.Sprintf("timetable-%s-%s.pdf", scope, ownerID), "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unknown export format: "+format)
	}
}

// buildView annotates every entry with its recomputed conflict status and
// sorts the result into week order.
func (s *TimetableService) buildView(ctx context.Context, scope, ownerID, ownerName string, schedules []models.Schedule) (*models.TimetableView, error) {
	entries := make([]models.TimetableEntry, 0, len(schedules))
	teacherNames := map[string]string{}
	roomNames := map[string]string{}

	for _, schedule := range schedules {
		status, err := s.statusFor(ctx, schedule)
		if err != nil {
			return nil, err
		}
		teacherName, err := s.teacherName(ctx, teacherNames, schedule.TeacherID)
		if err != nil {
			return nil, err
		}
		roomName, err := s.roomName(ctx, roomNames, schedule.RoomID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.TimetableEntry{
			ScheduleID:     schedule.ID,
			Subject:        schedule.Subject,
			TeacherID:      schedule.TeacherID,
			TeacherName:    teacherName,
			RoomID:         schedule.RoomID,
			RoomName:       roomName,
			DayOfWeek:      schedule.DayOfWeek,
			StartTime:      schedule.StartTime,
			EndTime:        schedule.EndTime,
			Recurrence:     schedule.Recurrence,
			ConflictStatus: status,
		})
	}

	dayRank := s.dayOrder()
	sort.SliceStable(entries, func(i, j int) bool {
		if dayRank[entries[i].DayOfWeek] != dayRank[entries[j].DayOfWeek] {
			return dayRank[entries[i].DayOfWeek] < dayRank[entries[j].DayOfWeek]
		}
		if entries[i].StartTime != entries[j].StartTime {
			return entries[i].StartTime < entries[j].StartTime
		}
		return entries[i].ScheduleID < entries[j].ScheduleID
	})

	return &models.TimetableView{
		Scope:       scope,
		OwnerID:     ownerID,
		OwnerName:   ownerName,
		Days:        s.weekDays(),
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// statusFor recomputes one schedule's conflict status against current data,
// excluding the schedule itself from the sweep.
func (s *TimetableService) statusFor(ctx context.Context, schedule models.Schedule) (timeslot.ConflictStatus, error) {
	interval, err := parseStoredInterval(schedule.DayOfWeek, schedule.StartTime, schedule.EndTime)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrCorruptRecord.Code, appErrors.ErrCorruptRecord.Status, "schedule "+schedule.ID+" failed validation")
	}

	sameDay, err := s.schedules.ListByDay(ctx, schedule.DayOfWeek)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules for status")
	}
	records, err := toScheduleRecords(sameDay)
	if err != nil {
		return "", err
	}

	slots, err := s.availability.ListByTeacherDay(ctx, schedule.TeacherID, schedule.DayOfWeek)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability for status")
	}
	windows, err := toAvailabilityRecords(slots)
	if err != nil {
		return "", err
	}

	report, err := timeslot.ResolveConflicts(timeslot.Candidate{
		Interval:  interval,
		TeacherID: schedule.TeacherID,
		RoomID:    schedule.RoomID,
	}, records, windows, schedule.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrCorruptRecord.Code, appErrors.ErrCorruptRecord.Status, "conflict resolution failed on stored data")
	}
	return report.Status(), nil
}

func (s *TimetableService) teacherName(ctx context.Context, memo map[string]string, teacherID string) (string, error) {
	if name, ok := memo[teacherID]; ok {
		return name, nil
	}
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			memo[teacherID] = ""
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	memo[teacherID] = teacher.FullName
	return teacher.FullName, nil
}

func (s *TimetableService) roomName(ctx context.Context, memo map[string]string, roomID string) (string, error) {
	if name, ok := memo[roomID]; ok {
		return name, nil
	}
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			memo[roomID] = ""
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	memo[roomID] = room.Name
	return room.Name, nil
}

func (s *TimetableService) weekDays() []string {
	if len(s.policy.Days) > 0 {
		return s.policy.Days
	}
	days := make([]string, 0, len(timeslot.Weekdays))
	for _, day := range timeslot.Weekdays {
		days = append(days, string(day))
	}
	return days
}

func (s *TimetableService) dayOrder() map[string]int {
	order := map[string]int{}
	for i, day := range timeslot.Weekdays {
		order[string(day)] = i
	}
	return order
}

// buildTable lays the view out as a grid: one row per distinct time span,
// one column per school day, cells listing the classes in that slot.
func (s *TimetableService) buildTable(view *models.TimetableView) export.Table {
	days := view.Days
	columns := append([]string{"Time"}, days...)

	type cellKey struct {
		span string
		day  string
	}
	cells := map[cellKey][]string{}
	spans := []string{}
	seen := map[string]bool{}

	for _, entry := range view.Entries {
		span := entry.StartTime + " - " + entry.EndTime
		if !seen[span] {
			seen[span] = true
			spans = append(spans, span)
		}
		label := entry.Subject
		switch view.Scope {
		case ScopeTeacher:
			if entry.RoomName != "" {
				label += " (" + entry.RoomName + ")"
			}
		case ScopeRoom:
			if entry.TeacherName != "" {
				label += " (" + entry.TeacherName + ")"
			}
		}
		key := cellKey{span: span, day: entry.DayOfWeek}
		cells[key] = append(cells[key], label)
	}
	sort.Strings(spans)

	rows := make([][]string, 0, len(spans))
	for _, span := range spans {
		row := make([]string, 0, len(columns))
		row = append(row, span)
		for _, day := range days {
			row = append(row, strings.Join(cells[cellKey{span: span, day: day}], " / "))
		}
		rows = append(rows, row)
	}

	title := fmt.Sprintf("Weekly Timetable: %s", view.OwnerName)
	if view.OwnerName == "" {
		title = "Weekly Timetable"
	}
	return export.Table{Title: title, Columns: columns, Rows: rows}
}
