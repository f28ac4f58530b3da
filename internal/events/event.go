package events

import (
	"time"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

// Kind identifies a domain event type.
type Kind string

const (
	KindSessionStarted      Kind = "session_started"
	KindSessionCompleted    Kind = "session_completed"
	KindSessionCancelled    Kind = "session_cancelled"
	KindChildCheckedIn      Kind = "child_checked_in"
	KindChildCheckedOut     Kind = "child_checked_out"
	KindAttendanceSubmitted Kind = "attendance_submitted"
)

// Event is the payload handed to subscribers after a committed write.
// Critical events must not be silently dropped; downstream billing depends
// on check-in/check-out delivery.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Critical   bool      `json:"critical"`

	SessionID string `json:"session_id"`
	ChildID   string `json:"child_id,omitempty"`
	ChildName string `json:"child_name,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`

	// DurationSeconds is set on child_checked_out only.
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`

	// RecordIDs is set on attendance_submitted only.
	RecordIDs []string `json:"record_ids,omitempty"`
}

func newEvent(kind Kind, sessionID string, at time.Time, critical bool) (Event, error) {
	if sessionID == "" {
		return Event{}, appErrors.Clone(appErrors.ErrValidation, "event requires a session id")
	}
	if at.IsZero() {
		return Event{}, appErrors.Clone(appErrors.ErrValidation, "event requires an occurrence time")
	}
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: at.UTC(),
		Critical:   critical,
		SessionID:  sessionID,
	}, nil
}

// NewSessionStarted builds a session_started event.
func NewSessionStarted(sessionID string, at time.Time) (Event, error) {
	return newEvent(KindSessionStarted, sessionID, at, false)
}

// NewSessionCompleted builds a session_completed event.
func NewSessionCompleted(sessionID string, at time.Time) (Event, error) {
	return newEvent(KindSessionCompleted, sessionID, at, false)
}

// NewSessionCancelled builds a session_cancelled event.
func NewSessionCancelled(sessionID string, at time.Time) (Event, error) {
	return newEvent(KindSessionCancelled, sessionID, at, false)
}

// NewChildCheckedIn builds a critical child_checked_in event.
func NewChildCheckedIn(sessionID, childID, childName, actorID string, at time.Time) (Event, error) {
	ev, err := newEvent(KindChildCheckedIn, sessionID, at, true)
	if err != nil {
		return Event{}, err
	}
	if childID == "" {
		return Event{}, appErrors.Clone(appErrors.ErrValidation, "check-in event requires a child id")
	}
	ev.ChildID = childID
	ev.ChildName = childName
	ev.ActorID = actorID
	return ev, nil
}

// NewChildCheckedOut builds a critical child_checked_out event carrying the
// attendance duration.
func NewChildCheckedOut(sessionID, childID, childName, actorID string, at time.Time, duration time.Duration) (Event, error) {
	ev, err := newEvent(KindChildCheckedOut, sessionID, at, true)
	if err != nil {
		return Event{}, err
	}
	if childID == "" {
		return Event{}, appErrors.Clone(appErrors.ErrValidation, "check-out event requires a child id")
	}
	if duration < 0 {
		return Event{}, appErrors.Clone(appErrors.ErrValidation, "attendance duration must not be negative")
	}
	seconds := int64(duration.Seconds())
	ev.ChildID = childID
	ev.ChildName = childName
	ev.ActorID = actorID
	ev.DurationSeconds = &seconds
	return ev, nil
}

// NewAttendanceSubmitted builds the single aggregate event for a payroll
// batch. Exactly one event covers the whole batch.
func NewAttendanceSubmitted(sessionID string, recordIDs []string, submittedBy string, at time.Time) (Event, error) {
	ev, err := newEvent(KindAttendanceSubmitted, sessionID, at, false)
	if err != nil {
		return Event{}, err
	}
	if len(recordIDs) == 0 {
		return Event{}, appErrors.Clone(appErrors.ErrValidation, "submission event requires record ids")
	}
	for _, id := range recordIDs {
		if id == "" {
			return Event{}, appErrors.Clone(appErrors.ErrValidation, "submission event contains an empty record id")
		}
	}
	ev.RecordIDs = recordIDs
	ev.ActorID = submittedBy
	return ev, nil
}
