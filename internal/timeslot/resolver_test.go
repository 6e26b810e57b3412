package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverCandidate(t *testing.T, day DayOfWeek, start, end TimeOfDay, teacherID, roomID string) Candidate {
	t.Helper()
	return Candidate{Interval: mustInterval(t, day, start, end), TeacherID: teacherID, RoomID: roomID}
}

func TestResolveConflictsCleanPlacement(t *testing.T) {
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
	}
	candidate := resolverCandidate(t, Monday, 660, 720, "t2", "r2")

	report, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
	assert.Empty(t, report.Reasons)
	assert.Equal(t, StatusNone, report.Status())
}

func TestResolveConflictsRoomDoubleBooking(t *testing.T) {
	// Existing: room R1, monday 9:00-10:30. Candidate overlaps at 10:00.
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
	}
	candidate := resolverCandidate(t, Monday, 600, 660, "t2", "r1")

	report, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	require.True(t, report.Blocked())
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, ReasonRoomDoubleBooked, report.Reasons[0].Kind)
	assert.Equal(t, "s1", report.Reasons[0].RecordID)
	assert.Equal(t, StatusConflict, report.Status())

	// Shifted to start exactly when the existing class ends: back-to-back is fine.
	candidate = resolverCandidate(t, Monday, 630, 660, "t2", "r1")
	report, err = ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
}

func TestResolveConflictsTeacherDoubleBooking(t *testing.T) {
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Tuesday, 540, 630)},
	}
	candidate := resolverCandidate(t, Tuesday, 600, 690, "t1", "r2")

	report, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, ReasonTeacherDoubleBooked, report.Reasons[0].Kind)
	assert.Equal(t, "s1", report.Reasons[0].RecordID)
}

func TestResolveConflictsCollectsAllReasons(t *testing.T) {
	// Same record hits both the room and the teacher sweep: both reasons
	// must be reported, room first.
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
		{ID: "s2", TeacherID: "t2", RoomID: "r1", Interval: mustInterval(t, Monday, 555, 615)},
	}
	candidate := resolverCandidate(t, Monday, 540, 600, "t1", "r1")

	report, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	require.Len(t, report.Reasons, 3)
	assert.Equal(t, []Reason{
		{Kind: ReasonRoomDoubleBooked, RecordID: "s1"},
		{Kind: ReasonRoomDoubleBooked, RecordID: "s2"},
		{Kind: ReasonTeacherDoubleBooked, RecordID: "s1"},
	}, report.Reasons)
}

func TestResolveConflictsExcludeSelfOnUpdate(t *testing.T) {
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
	}
	// Candidate identical to the stored record, excluded by its own id.
	candidate := resolverCandidate(t, Monday, 540, 630, "t1", "r1")

	report, err := ResolveConflicts(candidate, existing, nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
}

func TestResolveConflictsDayIsolation(t *testing.T) {
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
	}
	candidate := resolverCandidate(t, Wednesday, 540, 630, "t1", "r1")

	report, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
}

func TestResolveConflictsAvailabilityContainment(t *testing.T) {
	availability := []AvailabilityRecord{
		{ID: "a1", TeacherID: "t1", Interval: mustInterval(t, Monday, 540, 720), Available: true},
	}

	// 11:00-13:00 spills past the 12:00 end of the open window.
	candidate := resolverCandidate(t, Monday, 660, 780, "t1", "r1")
	report, err := ResolveConflicts(candidate, nil, availability, "")
	require.NoError(t, err)
	require.True(t, report.Blocked())
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, ReasonTeacherUnavailable, report.Reasons[0].Kind)
	assert.Equal(t, StatusWarning, report.Status())

	// 9:30-11:00 fits entirely inside the window.
	candidate = resolverCandidate(t, Monday, 570, 660, "t1", "r1")
	report, err = ResolveConflicts(candidate, nil, availability, "")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
}

func TestResolveConflictsEmptyAvailabilityIsUnconstrained(t *testing.T) {
	// No availability rows for the teacher on that day: absence of data
	// must not block an otherwise valid booking.
	otherTeacher := []AvailabilityRecord{
		{ID: "a1", TeacherID: "t2", Interval: mustInterval(t, Tuesday, 540, 720), Available: true},
	}
	candidate := resolverCandidate(t, Tuesday, 480, 540, "t1", "r1")

	report, err := ResolveConflicts(candidate, nil, otherTeacher, "")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
}

func TestResolveConflictsBlackoutWindow(t *testing.T) {
	availability := []AvailabilityRecord{
		{ID: "a1", TeacherID: "t1", Interval: mustInterval(t, Monday, 480, 720), Available: true},
		{ID: "a2", TeacherID: "t1", Interval: mustInterval(t, Monday, 600, 660), Available: false},
	}
	// Contained by the open window but crossing the declared blackout.
	candidate := resolverCandidate(t, Monday, 630, 690, "t1", "r1")

	report, err := ResolveConflicts(candidate, nil, availability, "")
	require.NoError(t, err)
	require.True(t, report.Blocked())
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, ReasonTeacherUnavailable, report.Reasons[0].Kind)
	assert.Equal(t, "a2", report.Reasons[0].RecordID)

	// Candidate ending exactly when the blackout starts does not touch it.
	candidate = resolverCandidate(t, Monday, 540, 600, "t1", "r1")
	report, err = ResolveConflicts(candidate, nil, availability, "")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, report.Verdict)
}

func TestResolveConflictsOnlyBlackoutsForDay(t *testing.T) {
	// Records exist for the day but none is an open window: nothing can
	// contain the candidate, so it is unavailable even off the blackout.
	availability := []AvailabilityRecord{
		{ID: "a1", TeacherID: "t1", Interval: mustInterval(t, Monday, 600, 660), Available: false},
	}
	candidate := resolverCandidate(t, Monday, 480, 540, "t1", "r1")

	report, err := ResolveConflicts(candidate, nil, availability, "")
	require.NoError(t, err)
	require.True(t, report.Blocked())
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, ReasonTeacherUnavailable, report.Reasons[0].Kind)
	assert.Empty(t, report.Reasons[0].RecordID)
}

func TestResolveConflictsInvalidCandidateInterval(t *testing.T) {
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
	}
	candidate := Candidate{
		Interval:  Interval{Day: Monday, Start: 600, End: 540},
		TeacherID: "t1",
		RoomID:    "r1",
	}

	// Malformed candidate blocks with a single invalid_interval reason and
	// skips all record comparisons.
	report, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	require.True(t, report.Blocked())
	require.Len(t, report.Reasons, 1)
	assert.Equal(t, ReasonInvalidInterval, report.Reasons[0].Kind)
	assert.Equal(t, StatusConflict, report.Status())
}

func TestResolveConflictsCorruptStoredRecord(t *testing.T) {
	corrupt := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: Interval{Day: Monday, Start: 630, End: 540}},
	}
	candidate := resolverCandidate(t, Monday, 540, 600, "t1", "r1")

	_, err := ResolveConflicts(candidate, corrupt, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveConflictsMalformedCandidateDay(t *testing.T) {
	candidate := Candidate{
		Interval:  Interval{Day: "Funday", Start: 540, End: 600},
		TeacherID: "t1",
		RoomID:    "r1",
	}

	_, err := ResolveConflicts(candidate, nil, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveConflictsIsDeterministic(t *testing.T) {
	existing := []ScheduleRecord{
		{ID: "s1", TeacherID: "t1", RoomID: "r1", Interval: mustInterval(t, Monday, 540, 630)},
		{ID: "s2", TeacherID: "t1", RoomID: "r2", Interval: mustInterval(t, Monday, 540, 630)},
	}
	candidate := resolverCandidate(t, Monday, 540, 600, "t1", "r1")

	first, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	second, err := ResolveConflicts(candidate, existing, nil, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
