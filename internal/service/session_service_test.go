package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asp-booking-api/internal/events"
	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]models.ProgramSession
}

func newMockSessionRepo(seed ...models.ProgramSession) *mockSessionRepo {
	repo := &mockSessionRepo{sessions: make(map[string]models.ProgramSession)}
	for _, s := range seed {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == "" {
		session.ID = "ses-new"
	}
	for _, existing := range m.sessions {
		if existing.ProgramID == session.ProgramID &&
			existing.SessionDate.Equal(session.SessionDate) &&
			existing.StartTime.Equal(session.StartTime) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "a session already exists for this program, date and start time")
		}
	}
	stored := *session
	stored.Version = 1
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	m.sessions[stored.ID] = stored
	return &stored, nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*models.ProgramSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
}

func (m *mockSessionRepo) ListByProgram(ctx context.Context, programID string) ([]models.ProgramSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProgramSession
	for _, s := range m.sessions {
		if s.ProgramID == programID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) ListForDate(ctx context.Context, date time.Time) ([]models.ProgramSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProgramSession
	for _, s := range m.sessions {
		if s.SessionDate.Equal(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[session.ID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	if stored.Version != session.Version {
		return nil, appErrors.Clone(appErrors.ErrStaleData, "session was modified concurrently, reload and retry")
	}
	updated := *session
	updated.Version = stored.Version + 1
	updated.UpdatedAt = time.Now().UTC()
	m.sessions[updated.ID] = updated
	return &updated, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	fail   bool
}

func (p *capturingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

func scheduledSession(id string) models.ProgramSession {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return models.ProgramSession{
		ID:          id,
		ProgramID:   "prog-1",
		SessionDate: date,
		StartTime:   date.Add(15 * time.Hour),
		EndTime:     date.Add(17 * time.Hour),
		MaxCapacity: 20,
		Status:      models.SessionStatusScheduled,
		Version:     1,
	}
}

func TestSessionServiceCreate(t *testing.T) {
	repo := newMockSessionRepo()
	svc := NewSessionService(repo, nil, nil, nil, nil)

	session, err := svc.Create(context.Background(), CreateSessionRequest{
		ProgramID:   "prog-1",
		SessionDate: "2026-03-02",
		StartTime:   "15:00",
		EndTime:     "17:00",
		MaxCapacity: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	assert.Equal(t, 1, session.Version)
	assert.Equal(t, time.March, session.SessionDate.Month())
}

func TestSessionServiceCreateRejectsInvertedTimes(t *testing.T) {
	repo := newMockSessionRepo()
	svc := NewSessionService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateSessionRequest{
		ProgramID:   "prog-1",
		SessionDate: "2026-03-02",
		StartTime:   "17:00",
		EndTime:     "15:00",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSessionServiceCreateDuplicateSlot(t *testing.T) {
	repo := newMockSessionRepo()
	svc := NewSessionService(repo, nil, nil, nil, nil)

	req := CreateSessionRequest{
		ProgramID:   "prog-1",
		SessionDate: "2026-03-02",
		StartTime:   "15:00",
		EndTime:     "17:00",
	}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicate))
}

func TestSessionServiceStartPublishesEvent(t *testing.T) {
	repo := newMockSessionRepo(scheduledSession("ses-1"))
	publisher := &capturingPublisher{}
	svc := NewSessionService(repo, publisher, nil, nil, nil)

	session, err := svc.Start(context.Background(), "ses-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, session.Status)
	assert.Equal(t, 2, session.Version)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.KindSessionStarted, published[0].Kind)
	assert.Equal(t, "ses-1", published[0].SessionID)
}

func TestSessionServiceStartRejectsCompleted(t *testing.T) {
	session := scheduledSession("ses-1")
	session.Status = models.SessionStatusCompleted
	repo := newMockSessionRepo(session)
	svc := NewSessionService(repo, nil, nil, nil, nil)

	_, err := svc.Start(context.Background(), "ses-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestSessionServiceCompleteLifecycle(t *testing.T) {
	repo := newMockSessionRepo(scheduledSession("ses-1"))
	publisher := &capturingPublisher{}
	svc := NewSessionService(repo, publisher, nil, nil, nil)

	_, err := svc.Start(context.Background(), "ses-1")
	require.NoError(t, err)
	session, err := svc.Complete(context.Background(), "ses-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)

	published := publisher.published()
	require.Len(t, published, 2)
	assert.Equal(t, events.KindSessionCompleted, published[1].Kind)
}

func TestSessionServiceCancelTerminalIsRejected(t *testing.T) {
	session := scheduledSession("ses-1")
	session.Status = models.SessionStatusCancelled
	repo := newMockSessionRepo(session)
	svc := NewSessionService(repo, nil, nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "ses-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

type staleOnUpdateRepo struct {
	*mockSessionRepo
}

func (m *staleOnUpdateRepo) Update(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error) {
	return nil, appErrors.Clone(appErrors.ErrStaleData, "session was modified concurrently, reload and retry")
}

func TestSessionServiceStaleUpdateSurfaces(t *testing.T) {
	// A concurrent writer bumps the row between our read and update.
	repo := &staleOnUpdateRepo{mockSessionRepo: newMockSessionRepo(scheduledSession("ses-1"))}
	svc := NewSessionService(repo, nil, nil, nil, nil)

	_, err := svc.Start(context.Background(), "ses-1")
	assert.True(t, errors.Is(err, appErrors.ErrStaleData))
}

func TestSessionServicePublishFailureDoesNotFailTransition(t *testing.T) {
	repo := newMockSessionRepo(scheduledSession("ses-1"))
	publisher := &capturingPublisher{fail: true}
	svc := NewSessionService(repo, publisher, nil, nil, nil)

	session, err := svc.Start(context.Background(), "ses-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, session.Status)
}

func TestSessionServiceListByProgramRequiresID(t *testing.T) {
	svc := NewSessionService(newMockSessionRepo(), nil, nil, nil, nil)
	_, err := svc.ListByProgram(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
