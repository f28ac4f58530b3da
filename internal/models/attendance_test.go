package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectedRecord() AttendanceRecord {
	rec := NewExpectedRecord("ses-1", "child-1", nil)
	rec.ID = "att-1"
	rec.Version = 1
	return rec
}

func strPtr(s string) *string { return &s }

func TestAttendanceCheckIn(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	rec := expectedRecord()

	next, err := rec.CheckIn(at, strPtr("dropped off by dad"), "staff-1")
	require.NoError(t, err)
	assert.Equal(t, AttendanceStatusCheckedIn, next.Status)
	require.NotNil(t, next.CheckInTime)
	assert.True(t, next.CheckInTime.Equal(at))
	assert.Equal(t, "dropped off by dad", *next.CheckInNotes)
	assert.Equal(t, "staff-1", *next.CheckInActor)

	// Receiver is untouched.
	assert.Equal(t, AttendanceStatusExpected, rec.Status)
	assert.Nil(t, rec.CheckInTime)
}

func TestAttendanceCheckInIllegalStates(t *testing.T) {
	at := time.Now().UTC()
	for _, status := range []AttendanceStatus{
		AttendanceStatusCheckedIn,
		AttendanceStatusCheckedOut,
		AttendanceStatusAbsent,
		AttendanceStatusExcused,
	} {
		rec := expectedRecord()
		rec.Status = status
		_, err := rec.CheckIn(at, nil, "staff-1")
		require.Error(t, err, "status %s", status)
	}
}

func TestAttendanceCheckOut(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	checkOut := time.Date(2026, 3, 2, 11, 55, 0, 0, time.UTC)

	rec := expectedRecord()
	rec, err := rec.CheckIn(checkIn, nil, "staff-1")
	require.NoError(t, err)

	out, err := rec.CheckOut(checkOut, strPtr("picked up"), "staff-2")
	require.NoError(t, err)
	assert.Equal(t, AttendanceStatusCheckedOut, out.Status)
	require.NotNil(t, out.CheckOutTime)
	assert.Equal(t, "staff-2", *out.CheckOutActor)

	duration, ok := out.AttendanceDuration()
	require.True(t, ok)
	assert.Equal(t, int64(10200), int64(duration.Seconds()))
}

func TestAttendanceCheckOutBeforeCheckIn(t *testing.T) {
	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	rec := expectedRecord()
	rec, err := rec.CheckIn(checkIn, nil, "staff-1")
	require.NoError(t, err)

	_, err = rec.CheckOut(checkIn.Add(-time.Minute), nil, "staff-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check-out cannot precede check-in")

	// Equal timestamps are allowed.
	out, err := rec.CheckOut(checkIn, nil, "staff-1")
	require.NoError(t, err)
	duration, ok := out.AttendanceDuration()
	require.True(t, ok)
	assert.Zero(t, duration)
}

func TestAttendanceCheckOutRequiresCheckedIn(t *testing.T) {
	rec := expectedRecord()
	_, err := rec.CheckOut(time.Now().UTC(), nil, "staff-1")
	require.Error(t, err)

	// The record stays unchanged after a refused transition.
	assert.Equal(t, AttendanceStatusExpected, rec.Status)
	assert.Nil(t, rec.CheckOutTime)
}

func TestAttendanceMarkAbsentClearsFields(t *testing.T) {
	rec := expectedRecord()
	rec, err := rec.CheckIn(time.Now().UTC(), strPtr("note"), "staff-1")
	require.NoError(t, err)

	absent, err := rec.MarkAbsent()
	require.NoError(t, err)
	assert.Equal(t, AttendanceStatusAbsent, absent.Status)
	assert.Nil(t, absent.CheckInTime)
	assert.Nil(t, absent.CheckInNotes)
	assert.Nil(t, absent.CheckInActor)
	assert.Nil(t, absent.CheckOutTime)
}

func TestAttendanceMarkExcused(t *testing.T) {
	rec := expectedRecord()
	excused, err := rec.MarkExcused()
	require.NoError(t, err)
	assert.Equal(t, AttendanceStatusExcused, excused.Status)

	_, err = excused.MarkAbsent()
	require.Error(t, err)

	checkedOut := expectedRecord()
	checkedOut.Status = AttendanceStatusCheckedOut
	_, err = checkedOut.MarkExcused()
	require.Error(t, err)
}

func TestAttendanceSubmittedIsImmutable(t *testing.T) {
	submittedAt := time.Now().UTC()
	rec := expectedRecord()
	rec.Status = AttendanceStatusCheckedOut
	rec.SubmittedAt = &submittedAt

	_, err := rec.CheckIn(time.Now().UTC(), nil, "staff-1")
	require.Error(t, err)
	_, err = rec.CheckOut(time.Now().UTC(), nil, "staff-1")
	require.Error(t, err)
	_, err = rec.MarkAbsent()
	require.Error(t, err)
	_, err = rec.MarkExcused()
	require.Error(t, err)
}

func TestAttendanceDurationMissingTimestamps(t *testing.T) {
	rec := expectedRecord()
	_, ok := rec.AttendanceDuration()
	assert.False(t, ok)

	checkIn := time.Now().UTC()
	rec.CheckInTime = &checkIn
	_, ok = rec.AttendanceDuration()
	assert.False(t, ok)
}

func TestAttendanceStatusSubmittable(t *testing.T) {
	assert.False(t, AttendanceStatusExpected.Submittable())
	assert.False(t, AttendanceStatusCheckedIn.Submittable())
	assert.True(t, AttendanceStatusCheckedOut.Submittable())
	assert.True(t, AttendanceStatusAbsent.Submittable())
	assert.True(t, AttendanceStatusExcused.Submittable())
}
