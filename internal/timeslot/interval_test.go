package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInterval(t *testing.T, day DayOfWeek, start, end TimeOfDay) Interval {
	t.Helper()
	iv, err := NewInterval(day, start, end)
	require.NoError(t, err)
	return iv
}

func TestNewIntervalValidation(t *testing.T) {
	_, err := NewInterval(Monday, 540, 600)
	require.NoError(t, err)

	_, err = NewInterval(Monday, 600, 600)
	assert.ErrorIs(t, err, ErrInvalidInterval, "zero-length")

	_, err = NewInterval(Monday, 660, 600)
	assert.ErrorIs(t, err, ErrInvalidInterval, "inverted")

	_, err = NewInterval(Monday, -10, 600)
	assert.ErrorIs(t, err, ErrInvalidInterval, "negative start")

	_, err = NewInterval(Monday, 540, 1500)
	assert.ErrorIs(t, err, ErrInvalidInterval, "end past midnight")

	_, err = NewInterval("Monday", 540, 600)
	assert.ErrorIs(t, err, ErrInvalidDayOfWeek, "case-sensitive day token")
}

func TestOverlapsHalfOpenBoundary(t *testing.T) {
	// 9:00-10:00 followed by 10:00-11:00 is legal back-to-back scheduling.
	a := mustInterval(t, Monday, 540, 600)
	b := mustInterval(t, Monday, 600, 660)
	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
}

func TestOverlapsSymmetry(t *testing.T) {
	a := mustInterval(t, Monday, 540, 630)
	b := mustInterval(t, Monday, 600, 660)
	assert.True(t, a.Overlaps(b))
	assert.Equal(t, a.Overlaps(b), b.Overlaps(a))
}

func TestOverlapsDayIsolation(t *testing.T) {
	// Identical minutes on different days never conflict.
	a := mustInterval(t, Monday, 540, 600)
	b := mustInterval(t, Tuesday, 540, 600)
	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
}

func TestOverlapsContainment(t *testing.T) {
	outer := mustInterval(t, Friday, 480, 720)
	inner := mustInterval(t, Friday, 540, 600)
	assert.True(t, outer.Overlaps(inner))
	assert.True(t, inner.Overlaps(outer))
}

func TestContains(t *testing.T) {
	outer := mustInterval(t, Monday, 540, 720)
	inner := mustInterval(t, Monday, 570, 660)
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))

	// Reflexivity: every interval contains itself.
	assert.True(t, outer.Contains(outer))

	// Shared boundaries still count as contained.
	edge := mustInterval(t, Monday, 540, 720)
	assert.True(t, outer.Contains(edge))

	// Same minutes on another day are never contained.
	otherDay := mustInterval(t, Tuesday, 570, 660)
	assert.False(t, outer.Contains(otherDay))

	// Partial overlap is not containment.
	spill := mustInterval(t, Monday, 660, 780)
	assert.False(t, outer.Contains(spill))
}
