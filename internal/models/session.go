package models

import (
	"fmt"
	"time"

	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

// SessionStatus represents the lifecycle state of a program session.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further lifecycle transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// ProgramSession is one scheduled, time-boxed occurrence of a program.
// Status is only ever changed through the transition methods; they operate
// on value copies and never mutate the receiver's stored row.
type ProgramSession struct {
	ID          string        `db:"id" json:"id"`
	ProgramID   string        `db:"program_id" json:"program_id"`
	SessionDate time.Time     `db:"session_date" json:"session_date"`
	StartTime   time.Time     `db:"start_time" json:"start_time"`
	EndTime     time.Time     `db:"end_time" json:"end_time"`
	MaxCapacity int           `db:"max_capacity" json:"max_capacity"`
	Status      SessionStatus `db:"status" json:"status"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
	Version     int           `db:"version" json:"version"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Validate checks structural invariants before any write.
func (s ProgramSession) Validate() error {
	if s.ProgramID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "program id is required")
	}
	if !s.EndTime.After(s.StartTime) {
		return appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if s.MaxCapacity < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "max capacity must not be negative")
	}
	if !s.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", s.Status))
	}
	return nil
}

// HasCapacity reports whether another child fits. Zero means unlimited.
func (s ProgramSession) HasCapacity(currentCount int) bool {
	return s.MaxCapacity == 0 || currentCount < s.MaxCapacity
}

// Start transitions scheduled → in_progress.
func (s ProgramSession) Start() (ProgramSession, error) {
	if s.Status != SessionStatusScheduled {
		return ProgramSession{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot start session with status %s", s.Status))
	}
	s.Status = SessionStatusInProgress
	return s, nil
}

// Complete transitions in_progress → completed.
func (s ProgramSession) Complete() (ProgramSession, error) {
	if s.Status != SessionStatusInProgress {
		return ProgramSession{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot complete session with status %s", s.Status))
	}
	s.Status = SessionStatusCompleted
	return s, nil
}

// Cancel transitions scheduled|in_progress → cancelled.
func (s ProgramSession) Cancel() (ProgramSession, error) {
	if s.Status.Terminal() {
		return ProgramSession{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot cancel session with status %s", s.Status))
	}
	s.Status = SessionStatusCancelled
	return s, nil
}
