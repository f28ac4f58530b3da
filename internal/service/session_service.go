package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/asp-booking-api/internal/events"
	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error)
	GetByID(ctx context.Context, id string) (*models.ProgramSession, error)
	ListByProgram(ctx context.Context, programID string) ([]models.ProgramSession, error)
	ListForDate(ctx context.Context, date time.Time) ([]models.ProgramSession, error)
	Update(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error)
}

// SessionService coordinates the program session lifecycle.
type SessionService struct {
	repo      sessionRepository
	publisher events.Publisher
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionRepository, publisher events.Publisher, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &SessionService{repo: repo, publisher: publisher, validator: validate, metrics: metrics, logger: logger}
}

// CreateSessionRequest describes the payload for scheduling a session.
type CreateSessionRequest struct {
	ProgramID   string  `json:"program_id" validate:"required"`
	SessionDate string  `json:"session_date" validate:"required"`
	StartTime   string  `json:"start_time" validate:"required"`
	EndTime     string  `json:"end_time" validate:"required"`
	MaxCapacity int     `json:"max_capacity" validate:"gte=0"`
	Notes       *string `json:"notes"`
}

// Create schedules a new session in the scheduled state.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.ProgramSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := time.Parse("2006-01-02", req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date, expected YYYY-MM-DD")
	}
	start, err := combineDateTime(date, req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time, expected HH:MM")
	}
	end, err := combineDateTime(date, req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time, expected HH:MM")
	}

	session := models.ProgramSession{
		ProgramID:   req.ProgramID,
		SessionDate: date,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: req.MaxCapacity,
		Status:      models.SessionStatusScheduled,
		Notes:       req.Notes,
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.repo.Create(ctx, &session)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Start moves a scheduled session into in_progress and announces it.
func (s *SessionService) Start(ctx context.Context, sessionID string) (*models.ProgramSession, error) {
	return s.transition(ctx, sessionID, "start", models.ProgramSession.Start, events.NewSessionStarted)
}

// Complete moves an in_progress session into completed.
func (s *SessionService) Complete(ctx context.Context, sessionID string) (*models.ProgramSession, error) {
	return s.transition(ctx, sessionID, "complete", models.ProgramSession.Complete, events.NewSessionCompleted)
}

// Cancel moves a scheduled or in_progress session into cancelled.
func (s *SessionService) Cancel(ctx context.Context, sessionID string) (*models.ProgramSession, error) {
	return s.transition(ctx, sessionID, "cancel", models.ProgramSession.Cancel, events.NewSessionCancelled)
}

func (s *SessionService) transition(
	ctx context.Context,
	sessionID string,
	operation string,
	apply func(models.ProgramSession) (models.ProgramSession, error),
	makeEvent func(string, time.Time) (events.Event, error),
) (*models.ProgramSession, error) {
	began := time.Now()
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next, err := apply(*session)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Update(ctx, &next)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrStaleData.Code {
			s.metrics.RecordStaleConflict()
		}
		return nil, err
	}
	s.metrics.ObserveTransition("session_"+operation, time.Since(began))

	s.publish(ctx, func() (events.Event, error) {
		return makeEvent(stored.ID, time.Now().UTC())
	})
	return stored, nil
}

// publish builds and dispatches an event after a committed write. Failures
// are logged and counted; they never fail the use case.
func (s *SessionService) publish(ctx context.Context, build func() (events.Event, error)) {
	ev, err := build()
	if err != nil {
		s.logger.Error("malformed domain event", zap.Error(err))
		return
	}
	s.metrics.RecordEventPublished(string(ev.Kind))
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.metrics.RecordEventFailure(string(ev.Kind))
		s.logger.Warn("event publish failed",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}

// GetByID fetches a single session.
func (s *SessionService) GetByID(ctx context.Context, sessionID string) (*models.ProgramSession, error) {
	return s.repo.GetByID(ctx, sessionID)
}

// ListByProgram returns a program's sessions ordered by date then start time.
func (s *SessionService) ListByProgram(ctx context.Context, programID string) ([]models.ProgramSession, error) {
	if programID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program id is required")
	}
	return s.repo.ListByProgram(ctx, programID)
}

// ListForDate returns all sessions on a date ordered by start time.
func (s *SessionService) ListForDate(ctx context.Context, date time.Time) ([]models.ProgramSession, error) {
	return s.repo.ListForDate(ctx, date)
}

func combineDateTime(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
