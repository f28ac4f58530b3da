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

type attendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	GetBySessionAndChild(ctx context.Context, sessionID, childID string) (*models.AttendanceRecord, error)
	Update(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	CheckInAtomic(ctx context.Context, sessionID, childID string, parentID *string, actor string, notes *string, at time.Time) (*models.AttendanceRecord, error)
	SubmitBatch(ctx context.Context, sessionID string, recordIDs []string, meta models.SubmissionMeta) ([]models.AttendanceRecord, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRosterEntry, error)
	ListByChild(ctx context.Context, childID string) ([]models.AttendanceRecord, error)
	ListByParent(ctx context.Context, parentID string) ([]models.AttendanceRosterEntry, error)
}

type childResolver interface {
	FindByID(ctx context.Context, id string) (*models.Child, error)
	ResolveName(ctx context.Context, childID string) (string, error)
}

// AttendanceService coordinates check-in/check-out workflows, payroll
// submission and roster queries.
type AttendanceService struct {
	repo      attendanceRepository
	sessions  sessionRepository
	children  childResolver
	publisher events.Publisher
	cache     *CacheService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	repo attendanceRepository,
	sessions sessionRepository,
	children childResolver,
	publisher events.Publisher,
	cache *CacheService,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &AttendanceService{
		repo:      repo,
		sessions:  sessions,
		children:  children,
		publisher: publisher,
		cache:     cache,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// CheckInRequest describes a staff check-in action.
type CheckInRequest struct {
	SessionID string     `json:"session_id" validate:"required"`
	ChildID   string     `json:"child_id" validate:"required"`
	ParentID  *string    `json:"parent_id"`
	Actor     string     `json:"actor" validate:"required"`
	Notes     *string    `json:"notes"`
	At        *time.Time `json:"at"`
}

// CheckOutRequest describes a staff check-out action. Version carries the
// optimistic lock value the caller read; zero means "use the latest".
type CheckOutRequest struct {
	SessionID string     `json:"session_id" validate:"required"`
	ChildID   string     `json:"child_id" validate:"required"`
	Actor     string     `json:"actor" validate:"required"`
	Notes     *string    `json:"notes"`
	At        *time.Time `json:"at"`
	Version   int        `json:"version"`
}

// MarkRequest covers absent/excused marking.
type MarkRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	ChildID   string `json:"child_id" validate:"required"`
}

// SubmitRequest names the records of one payroll batch.
type SubmitRequest struct {
	SessionID   string   `json:"session_id" validate:"required"`
	RecordIDs   []string `json:"record_ids"`
	SubmittedBy string   `json:"submitted_by" validate:"required"`
}

// RecordCheckIn checks a child into a session through the atomic upsert
// path. A duplicate tap re-confirms the existing checked_in state instead of
// erroring; concurrent taps never produce two records.
func (s *AttendanceService) RecordCheckIn(ctx context.Context, req CheckInRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	began := time.Now()
	at := began.UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"cannot check in to a "+string(session.Status)+" session")
	}

	// Capacity is only charged for a child without an existing record. The
	// check is advisory; the upsert itself stays race-free regardless.
	if session.MaxCapacity > 0 {
		if _, err := s.repo.GetBySessionAndChild(ctx, req.SessionID, req.ChildID); err != nil {
			if appErrors.FromError(err).Code != appErrors.ErrNotFound.Code {
				return nil, err
			}
			count, err := s.repo.CountBySession(ctx, req.SessionID)
			if err != nil {
				return nil, err
			}
			if !session.HasCapacity(count) {
				return nil, appErrors.Clone(appErrors.ErrSessionFull, "session is at capacity")
			}
		}
	}

	parentID := req.ParentID
	if parentID == nil && s.children != nil {
		// Denormalise the parent link onto the record so parent history
		// queries survive a child row going inactive later.
		if child, err := s.children.FindByID(ctx, req.ChildID); err == nil && child.ParentID != "" {
			parentID = &child.ParentID
		}
	}

	stored, err := s.repo.CheckInAtomic(ctx, req.SessionID, req.ChildID, parentID, req.Actor, req.Notes, at)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("check_in", time.Since(began))
	s.invalidateRoster(ctx, req.SessionID)

	s.publish(ctx, func() (events.Event, error) {
		name := s.resolveChildName(ctx, req.ChildID)
		return events.NewChildCheckedIn(req.SessionID, req.ChildID, name, req.Actor, at)
	})
	return stored, nil
}

// RecordCheckOut checks a child out through the version-checked update path.
// A stale version yields a stale-data error; the caller reloads and retries.
func (s *AttendanceService) RecordCheckOut(ctx context.Context, req CheckOutRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-out payload")
	}
	began := time.Now()
	at := began.UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	record, err := s.repo.GetBySessionAndChild(ctx, req.SessionID, req.ChildID)
	if err != nil {
		return nil, err
	}
	if req.Version > 0 {
		record.Version = req.Version
	}

	next, err := record.CheckOut(at, req.Notes, req.Actor)
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
	s.metrics.ObserveTransition("check_out", time.Since(began))
	s.invalidateRoster(ctx, req.SessionID)

	s.publish(ctx, func() (events.Event, error) {
		name := s.resolveChildName(ctx, req.ChildID)
		duration, _ := stored.AttendanceDuration()
		return events.NewChildCheckedOut(req.SessionID, req.ChildID, name, req.Actor, at, duration)
	})
	return stored, nil
}

// MarkAbsent marks a child absent, clearing any check-in state.
func (s *AttendanceService) MarkAbsent(ctx context.Context, req MarkRequest) (*models.AttendanceRecord, error) {
	return s.mark(ctx, req, models.AttendanceRecord.MarkAbsent)
}

// MarkExcused marks a child excused, clearing any check-in state.
func (s *AttendanceService) MarkExcused(ctx context.Context, req MarkRequest) (*models.AttendanceRecord, error) {
	return s.mark(ctx, req, models.AttendanceRecord.MarkExcused)
}

func (s *AttendanceService) mark(ctx context.Context, req MarkRequest, apply func(models.AttendanceRecord) (models.AttendanceRecord, error)) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	record, err := s.repo.GetBySessionAndChild(ctx, req.SessionID, req.ChildID)
	if err != nil {
		if appErrors.FromError(err).Code != appErrors.ErrNotFound.Code {
			return nil, err
		}
		// No record yet: create the implicit expected one first so the
		// marking survives as a row.
		created := models.NewExpectedRecord(req.SessionID, req.ChildID, nil)
		record, err = s.repo.Create(ctx, &created)
		if err != nil {
			return nil, err
		}
	}

	next, err := apply(*record)
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
	s.invalidateRoster(ctx, req.SessionID)
	return stored, nil
}

// Submit performs the all-or-nothing payroll submission of a batch and
// emits exactly one aggregate event for it.
func (s *AttendanceService) Submit(ctx context.Context, req SubmitRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if len(req.RecordIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySelection, "no attendance records selected for submission")
	}

	submittedAt := time.Now().UTC()
	records, err := s.repo.SubmitBatch(ctx, req.SessionID, req.RecordIDs, models.SubmissionMeta{
		SubmittedBy: req.SubmittedBy,
		SubmittedAt: submittedAt,
	})
	if err != nil {
		return nil, err
	}
	s.invalidateRoster(ctx, req.SessionID)

	s.publish(ctx, func() (events.Event, error) {
		return events.NewAttendanceSubmitted(req.SessionID, req.RecordIDs, req.SubmittedBy, submittedAt)
	})
	return records, nil
}

// GetSessionWithRoster joins a session with its attendance records in a
// single round trip, consulting the roster cache first.
func (s *AttendanceService) GetSessionWithRoster(ctx context.Context, sessionID string) (*models.SessionRoster, error) {
	key := rosterCacheKey(sessionID)
	var cached models.SessionRoster
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	roster, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &models.SessionRoster{Session: *session, Roster: roster}
	s.cache.Set(ctx, key, result)
	return result, nil
}

// ListBySession returns a session's attendance entries.
func (s *AttendanceService) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRosterEntry, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	return s.repo.ListBySession(ctx, sessionID)
}

// ListByChild returns a child's attendance history, newest first.
func (s *AttendanceService) ListByChild(ctx context.Context, childID string) ([]models.AttendanceRecord, error) {
	if childID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "child id is required")
	}
	return s.repo.ListByChild(ctx, childID)
}

// ListByParent aggregates attendance across all of a parent's children.
func (s *AttendanceService) ListByParent(ctx context.Context, parentID string) ([]models.AttendanceRosterEntry, error) {
	if parentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "parent id is required")
	}
	return s.repo.ListByParent(ctx, parentID)
}

// resolveChildName enriches events with a display name. Resolution failure
// degrades to a placeholder; it never blocks the transition.
func (s *AttendanceService) resolveChildName(ctx context.Context, childID string) string {
	if s.children == nil {
		return models.UnknownChildName
	}
	name, err := s.children.ResolveName(ctx, childID)
	if err != nil || name == "" {
		s.logger.Warn("child name resolution failed",
			zap.String("child_id", childID),
			zap.Error(err))
		return models.UnknownChildName
	}
	return name
}

func (s *AttendanceService) publish(ctx context.Context, build func() (events.Event, error)) {
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

func (s *AttendanceService) invalidateRoster(ctx context.Context, sessionID string) {
	s.cache.Invalidate(ctx, rosterCacheKey(sessionID))
}

func rosterCacheKey(sessionID string) string {
	return "roster:" + sessionID
}
