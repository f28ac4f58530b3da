package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows(session models.ProgramSession) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "program_id", "session_date", "start_time", "end_time",
		"max_capacity", "status", "notes", "version", "created_at", "updated_at",
	}).AddRow(session.ID, session.ProgramID, session.SessionDate, session.StartTime, session.EndTime,
		session.MaxCapacity, session.Status, session.Notes, session.Version, session.CreatedAt, session.UpdatedAt)
}

func sampleSession() models.ProgramSession {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return models.ProgramSession{
		ID:          "ses-1",
		ProgramID:   "prog-1",
		SessionDate: date,
		StartTime:   date.Add(15 * time.Hour),
		EndTime:     date.Add(17 * time.Hour),
		MaxCapacity: 20,
		Status:      models.SessionStatusScheduled,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := sampleSession()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO program_sessions")).
		WithArgs(session.ID, session.ProgramID, session.SessionDate, session.StartTime, session.EndTime,
			session.MaxCapacity, session.Status, session.Notes, sqlmock.AnyArg()).
		WillReturnRows(sessionRows(session))

	stored, err := repo.Create(context.Background(), &session)
	require.NoError(t, err)
	require.Equal(t, "ses-1", stored.ID)
	require.Equal(t, 1, stored.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := sampleSession()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO program_sessions")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.Create(context.Background(), &session)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + sessionColumns + " FROM program_sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListByProgram(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := sampleSession()
	mock.ExpectQuery("SELECT .+ FROM program_sessions\\s+WHERE program_id = \\$1").
		WithArgs("prog-1").
		WillReturnRows(sessionRows(session))

	sessions, err := repo.ListByProgram(context.Background(), "prog-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := sampleSession()
	session.Status = models.SessionStatusInProgress
	returned := session
	returned.Version = 2

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE program_sessions")).
		WithArgs(session.Status, session.Notes, session.MaxCapacity, session.StartTime, session.EndTime,
			sqlmock.AnyArg(), session.ID, session.Version).
		WillReturnRows(sessionRows(returned))

	stored, err := repo.Update(context.Background(), &session)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Version)
	require.Equal(t, models.SessionStatusInProgress, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStale(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := sampleSession()
	session.Version = 1

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE program_sessions")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM program_sessions WHERE id = $1)")).
		WithArgs(session.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.Update(context.Background(), &session)
	require.True(t, errors.Is(err, appErrors.ErrStaleData))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := sampleSession()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE program_sessions")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM program_sessions WHERE id = $1)")).
		WithArgs(session.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.Update(context.Background(), &session)
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
