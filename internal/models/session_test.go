package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledSession() ProgramSession {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return ProgramSession{
		ID:          "ses-1",
		ProgramID:   "prog-1",
		SessionDate: date,
		StartTime:   date.Add(9 * time.Hour),
		EndTime:     date.Add(12 * time.Hour),
		MaxCapacity: 20,
		Status:      SessionStatusScheduled,
		Version:     1,
	}
}

func TestProgramSessionValidate(t *testing.T) {
	valid := scheduledSession()
	require.NoError(t, valid.Validate())

	missingProgram := valid
	missingProgram.ProgramID = ""
	assert.Error(t, missingProgram.Validate())

	endBeforeStart := valid
	endBeforeStart.EndTime = endBeforeStart.StartTime.Add(-time.Hour)
	assert.Error(t, endBeforeStart.Validate())

	endEqualsStart := valid
	endEqualsStart.EndTime = endEqualsStart.StartTime
	assert.Error(t, endEqualsStart.Validate())

	negativeCapacity := valid
	negativeCapacity.MaxCapacity = -1
	assert.Error(t, negativeCapacity.Validate())
}

func TestProgramSessionHasCapacity(t *testing.T) {
	session := scheduledSession()
	assert.True(t, session.HasCapacity(0))
	assert.True(t, session.HasCapacity(19))
	assert.False(t, session.HasCapacity(20))
	assert.False(t, session.HasCapacity(25))

	unlimited := session
	unlimited.MaxCapacity = 0
	assert.True(t, unlimited.HasCapacity(10000))
}

func TestProgramSessionTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    SessionStatus
		apply   func(ProgramSession) (ProgramSession, error)
		want    SessionStatus
		wantErr bool
	}{
		{"start from scheduled", SessionStatusScheduled, ProgramSession.Start, SessionStatusInProgress, false},
		{"start from in_progress", SessionStatusInProgress, ProgramSession.Start, "", true},
		{"start from completed", SessionStatusCompleted, ProgramSession.Start, "", true},
		{"start from cancelled", SessionStatusCancelled, ProgramSession.Start, "", true},
		{"complete from in_progress", SessionStatusInProgress, ProgramSession.Complete, SessionStatusCompleted, false},
		{"complete from scheduled", SessionStatusScheduled, ProgramSession.Complete, "", true},
		{"complete from completed", SessionStatusCompleted, ProgramSession.Complete, "", true},
		{"cancel from scheduled", SessionStatusScheduled, ProgramSession.Cancel, SessionStatusCancelled, false},
		{"cancel from in_progress", SessionStatusInProgress, ProgramSession.Cancel, SessionStatusCancelled, false},
		{"cancel from completed", SessionStatusCompleted, ProgramSession.Cancel, "", true},
		{"cancel from cancelled", SessionStatusCancelled, ProgramSession.Cancel, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := scheduledSession()
			session.Status = tc.from
			next, err := tc.apply(session)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, next.Status)
			// The receiver is a value; the original stays untouched.
			assert.Equal(t, tc.from, session.Status)
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionStatusScheduled.Terminal())
	assert.False(t, SessionStatusInProgress.Terminal())
	assert.True(t, SessionStatusCompleted.Terminal())
	assert.True(t, SessionStatusCancelled.Terminal())
}
