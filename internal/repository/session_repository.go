package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

const pqUniqueViolation = "23505"

const sessionColumns = `id, program_id, session_date, start_time, end_time, max_capacity, status, notes, version, created_at, updated_at`

// SessionRepository handles persistence for program sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session. A second session for the same
// (program, date, start time) maps to a duplicate error.
func (r *SessionRepository) Create(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error) {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	query := `INSERT INTO program_sessions (id, program_id, session_date, start_time, end_time, max_capacity, status, notes, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)
RETURNING ` + sessionColumns
	var stored models.ProgramSession
	err := r.db.GetContext(ctx, &stored, query,
		session.ID, session.ProgramID, session.SessionDate, session.StartTime, session.EndTime,
		session.MaxCapacity, session.Status, session.Notes, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "a session already exists for this program, date and start time")
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &stored, nil
}

// GetByID fetches a single session.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.ProgramSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM program_sessions WHERE id = $1`
	var session models.ProgramSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// ListByProgram returns the program's sessions ordered by date then start time.
func (r *SessionRepository) ListByProgram(ctx context.Context, programID string) ([]models.ProgramSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM program_sessions
WHERE program_id = $1
ORDER BY session_date ASC, start_time ASC`
	var sessions []models.ProgramSession
	if err := r.db.SelectContext(ctx, &sessions, query, programID); err != nil {
		return nil, fmt.Errorf("list sessions by program: %w", err)
	}
	return sessions, nil
}

// ListForDate returns all sessions on a date ordered by start time.
func (r *SessionRepository) ListForDate(ctx context.Context, date time.Time) ([]models.ProgramSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM program_sessions
WHERE session_date = $1
ORDER BY start_time ASC`
	var sessions []models.ProgramSession
	if err := r.db.SelectContext(ctx, &sessions, query, date); err != nil {
		return nil, fmt.Errorf("list sessions for date: %w", err)
	}
	return sessions, nil
}

// Update persists a session using optimistic locking. The supplied version
// must match the stored row; a mismatch yields a stale-data error so the
// caller can reload and retry.
func (r *SessionRepository) Update(ctx context.Context, session *models.ProgramSession) (*models.ProgramSession, error) {
	now := time.Now().UTC()
	query := `UPDATE program_sessions
SET status = $1, notes = $2, max_capacity = $3, start_time = $4, end_time = $5,
    version = version + 1, updated_at = $6
WHERE id = $7 AND version = $8
RETURNING ` + sessionColumns
	var stored models.ProgramSession
	err := r.db.GetContext(ctx, &stored, query,
		session.Status, session.Notes, session.MaxCapacity, session.StartTime, session.EndTime,
		now, session.ID, session.Version)
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update session: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM program_sessions WHERE id = $1)`, session.ID); err != nil {
		return nil, fmt.Errorf("check session existence: %w", err)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrStaleData, "session was modified concurrently, reload and retry")
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
}
