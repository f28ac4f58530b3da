package models

import (
	"fmt"
	"time"

	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusExpected   AttendanceStatus = "expected"
	AttendanceStatusCheckedIn  AttendanceStatus = "checked_in"
	AttendanceStatusCheckedOut AttendanceStatus = "checked_out"
	AttendanceStatusAbsent     AttendanceStatus = "absent"
	AttendanceStatusExcused    AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusExpected, AttendanceStatusCheckedIn, AttendanceStatusCheckedOut,
		AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Submittable reports whether a record in this status may enter a payroll batch.
func (s AttendanceStatus) Submittable() bool {
	switch s {
	case AttendanceStatusCheckedOut, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one child's attendance state within one session. At
// most one record exists per (session, child); the store enforces that.
// Transitions operate on value copies, never in place, and refuse to touch
// submitted records.
type AttendanceRecord struct {
	ID            string           `db:"id" json:"id"`
	SessionID     string           `db:"session_id" json:"session_id"`
	ChildID       string           `db:"child_id" json:"child_id"`
	ParentID      *string          `db:"parent_id" json:"parent_id,omitempty"`
	ProviderID    *string          `db:"provider_id" json:"provider_id,omitempty"`
	Status        AttendanceStatus `db:"status" json:"status"`
	CheckInTime   *time.Time       `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckInNotes  *string          `db:"check_in_notes" json:"check_in_notes,omitempty"`
	CheckInActor  *string          `db:"check_in_actor" json:"check_in_actor,omitempty"`
	CheckOutTime  *time.Time       `db:"check_out_time" json:"check_out_time,omitempty"`
	CheckOutNotes *string          `db:"check_out_notes" json:"check_out_notes,omitempty"`
	CheckOutActor *string          `db:"check_out_actor" json:"check_out_actor,omitempty"`
	SubmittedAt   *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	SubmittedBy   *string          `db:"submitted_by" json:"submitted_by,omitempty"`
	Version       int              `db:"version" json:"version"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// NewExpectedRecord builds the implicit initial record for a (session, child) pair.
func NewExpectedRecord(sessionID, childID string, parentID *string) AttendanceRecord {
	return AttendanceRecord{
		SessionID: sessionID,
		ChildID:   childID,
		ParentID:  parentID,
		Status:    AttendanceStatusExpected,
	}
}

// Submitted reports whether the record has been locked by a payroll batch.
func (r AttendanceRecord) Submitted() bool {
	return r.SubmittedAt != nil
}

func (r AttendanceRecord) guardMutable() error {
	if r.Submitted() {
		return appErrors.Clone(appErrors.ErrFinalized, "attendance record already submitted for payroll")
	}
	return nil
}

// CheckIn transitions expected → checked_in, recording time, notes and actor.
func (r AttendanceRecord) CheckIn(at time.Time, notes *string, actor string) (AttendanceRecord, error) {
	if err := r.guardMutable(); err != nil {
		return AttendanceRecord{}, err
	}
	if r.Status != AttendanceStatusExpected {
		return AttendanceRecord{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot check in record with status %s", r.Status))
	}
	at = at.UTC()
	r.Status = AttendanceStatusCheckedIn
	r.CheckInTime = &at
	r.CheckInNotes = notes
	r.CheckInActor = &actor
	return r, nil
}

// CheckOut transitions checked_in → checked_out. The check-out time must not
// precede the stored check-in time.
func (r AttendanceRecord) CheckOut(at time.Time, notes *string, actor string) (AttendanceRecord, error) {
	if err := r.guardMutable(); err != nil {
		return AttendanceRecord{}, err
	}
	if r.Status != AttendanceStatusCheckedIn {
		return AttendanceRecord{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot check out record with status %s", r.Status))
	}
	at = at.UTC()
	if r.CheckInTime != nil && at.Before(*r.CheckInTime) {
		return AttendanceRecord{}, appErrors.Clone(appErrors.ErrValidation,
			"check-out cannot precede check-in")
	}
	r.Status = AttendanceStatusCheckedOut
	r.CheckOutTime = &at
	r.CheckOutNotes = notes
	r.CheckOutActor = &actor
	return r, nil
}

// MarkAbsent transitions expected|checked_in → absent and clears the
// check-in/out fields.
func (r AttendanceRecord) MarkAbsent() (AttendanceRecord, error) {
	return r.markMissed(AttendanceStatusAbsent)
}

// MarkExcused transitions expected|checked_in → excused and clears the
// check-in/out fields.
func (r AttendanceRecord) MarkExcused() (AttendanceRecord, error) {
	return r.markMissed(AttendanceStatusExcused)
}

func (r AttendanceRecord) markMissed(target AttendanceStatus) (AttendanceRecord, error) {
	if err := r.guardMutable(); err != nil {
		return AttendanceRecord{}, err
	}
	if r.Status != AttendanceStatusExpected && r.Status != AttendanceStatusCheckedIn {
		return AttendanceRecord{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot mark record with status %s as %s", r.Status, target))
	}
	r.Status = target
	r.CheckInTime = nil
	r.CheckInNotes = nil
	r.CheckInActor = nil
	r.CheckOutTime = nil
	r.CheckOutNotes = nil
	r.CheckOutActor = nil
	return r, nil
}

// AttendanceDuration returns the elapsed time between check-in and
// check-out. The second return value is false when either timestamp is
// missing.
func (r AttendanceRecord) AttendanceDuration() (time.Duration, bool) {
	if r.CheckInTime == nil || r.CheckOutTime == nil {
		return 0, false
	}
	return r.CheckOutTime.Sub(*r.CheckInTime), true
}

// AttendanceRosterEntry extends a record with the child's display name for
// roster queries and exports.
type AttendanceRosterEntry struct {
	AttendanceRecord
	ChildName string `db:"child_name" json:"child_name"`
}

// SessionRoster joins a session with all of its attendance records.
type SessionRoster struct {
	Session ProgramSession          `json:"session"`
	Roster  []AttendanceRosterEntry `json:"roster"`
}

// SubmissionMeta carries the payroll batch metadata.
type SubmissionMeta struct {
	SubmittedBy string
	SubmittedAt time.Time
}
