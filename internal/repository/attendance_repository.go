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

const attendanceColumns = `id, session_id, child_id, parent_id, provider_id, status,
check_in_time, check_in_notes, check_in_actor,
check_out_time, check_out_notes, check_out_actor,
submitted_at, submitted_by, version, created_at, updated_at`

// AttendanceRepository handles persistence for attendance records. The
// uniqueness of (session_id, child_id) lives here, not in the model.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a new record. A concurrent insert for the same
// (session, child) maps to a duplicate error.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	query := `INSERT INTO attendance_records (id, session_id, child_id, parent_id, provider_id, status,
check_in_time, check_in_notes, check_in_actor, check_out_time, check_out_notes, check_out_actor,
version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $13)
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.SessionID, record.ChildID, record.ParentID, record.ProviderID, record.Status,
		record.CheckInTime, record.CheckInNotes, record.CheckInActor,
		record.CheckOutTime, record.CheckOutNotes, record.CheckOutActor, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "an attendance record already exists for this child in this session")
		}
		return nil, fmt.Errorf("create attendance record: %w", err)
	}
	return &stored, nil
}

// GetByID fetches a single record.
func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return &record, nil
}

// GetBySessionAndChild fetches the unique record for a (session, child) pair.
func (r *AttendanceRepository) GetBySessionAndChild(ctx context.Context, sessionID, childID string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE session_id = $1 AND child_id = $2`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, childID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, fmt.Errorf("get attendance record by session and child: %w", err)
	}
	return &record, nil
}

// Update persists a record using optimistic locking. Submitted records are
// immutable; the caller never reaches this path for them because the model
// transitions refuse, but the WHERE clause guards against races anyway.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	query := `UPDATE attendance_records
SET status = $1,
    check_in_time = $2, check_in_notes = $3, check_in_actor = $4,
    check_out_time = $5, check_out_notes = $6, check_out_actor = $7,
    version = version + 1, updated_at = $8
WHERE id = $9 AND version = $10 AND submitted_at IS NULL
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query,
		record.Status,
		record.CheckInTime, record.CheckInNotes, record.CheckInActor,
		record.CheckOutTime, record.CheckOutNotes, record.CheckOutActor,
		now, record.ID, record.Version)
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update attendance record: %w", err)
	}

	var submitted sql.NullTime
	if err := r.db.GetContext(ctx, &submitted, `SELECT submitted_at FROM attendance_records WHERE id = $1`, record.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, fmt.Errorf("check attendance record existence: %w", err)
	}
	if submitted.Valid {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "attendance record already submitted for payroll")
	}
	return nil, appErrors.Clone(appErrors.ErrStaleData, "attendance record was modified concurrently, reload and retry")
}

// CheckInAtomic performs the single conditional write for check-in: insert a
// checked_in record, or overwrite only the check-in fields of an existing
// non-terminal one. Race-free under concurrent taps; a repeated call simply
// re-confirms the checked_in state (last check-in wins).
func (r *AttendanceRepository) CheckInAtomic(ctx context.Context, sessionID, childID string, parentID *string, actor string, notes *string, at time.Time) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	at = at.UTC()
	query := `INSERT INTO attendance_records (id, session_id, child_id, parent_id, status,
check_in_time, check_in_notes, check_in_actor, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)
ON CONFLICT (session_id, child_id) DO UPDATE
SET status = EXCLUDED.status,
    check_in_time = EXCLUDED.check_in_time,
    check_in_notes = EXCLUDED.check_in_notes,
    check_in_actor = EXCLUDED.check_in_actor,
    version = attendance_records.version + 1,
    updated_at = EXCLUDED.updated_at
WHERE attendance_records.status IN ($10, $11) AND attendance_records.submitted_at IS NULL
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query,
		uuid.NewString(), sessionID, childID, parentID, models.AttendanceStatusCheckedIn,
		at, notes, actor, now,
		models.AttendanceStatusExpected, models.AttendanceStatusCheckedIn)
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("atomic check-in: %w", err)
	}

	// The conflict target matched but the guard refused: the record is
	// already checked out, absent, excused or submitted.
	existing, lookupErr := r.GetBySessionAndChild(ctx, sessionID, childID)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing.Submitted() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "attendance record already submitted for payroll")
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot check in record with status %s", existing.Status))
}

// SubmitBatch locks and transitions every named record into its submitted
// form inside one transaction. Either all records become immutable or none
// do.
func (r *AttendanceRepository) SubmitBatch(ctx context.Context, sessionID string, recordIDs []string, meta models.SubmissionMeta) ([]models.AttendanceRecord, error) {
	if len(recordIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySelection, "no attendance records selected for submission")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance submission: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	lockQuery := `SELECT id, status, submitted_at FROM attendance_records
WHERE session_id = $1 AND id = ANY($2)
ORDER BY id
FOR UPDATE`
	locked := []struct {
		ID          string                  `db:"id"`
		Status      models.AttendanceStatus `db:"status"`
		SubmittedAt sql.NullTime            `db:"submitted_at"`
	}{}
	if err := tx.SelectContext(ctx, &locked, lockQuery, sessionID, pq.Array(recordIDs)); err != nil {
		return nil, fmt.Errorf("lock attendance records: %w", err)
	}
	if len(locked) != len(recordIDs) {
		return nil, appErrors.Clone(appErrors.ErrNotFound,
			fmt.Sprintf("submission names %d records but only %d belong to this session", len(recordIDs), len(locked)))
	}
	for _, row := range locked {
		if row.SubmittedAt.Valid {
			return nil, appErrors.Clone(appErrors.ErrFinalized,
				fmt.Sprintf("record %s is already submitted", row.ID))
		}
		if !row.Status.Submittable() {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("record %s has status %s and cannot be submitted", row.ID, row.Status))
		}
	}

	submittedAt := meta.SubmittedAt.UTC()
	updateQuery := `UPDATE attendance_records
SET submitted_at = $1, submitted_by = $2, version = version + 1, updated_at = $3
WHERE id = ANY($4)
RETURNING ` + attendanceColumns
	var updated []models.AttendanceRecord
	if err := tx.SelectContext(ctx, &updated, updateQuery, submittedAt, meta.SubmittedBy, time.Now().UTC(), pq.Array(recordIDs)); err != nil {
		return nil, fmt.Errorf("submit attendance records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance submission: %w", err)
	}
	committed = true
	return updated, nil
}

// CountBySession returns the number of attendance records in a session,
// used for capacity checks.
func (r *AttendanceRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance_records WHERE session_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("count attendance records: %w", err)
	}
	return count, nil
}

// ListBySession returns a session's records with child display names.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRosterEntry, error) {
	query := `SELECT ar.id, ar.session_id, ar.child_id, ar.parent_id, ar.provider_id, ar.status,
ar.check_in_time, ar.check_in_notes, ar.check_in_actor,
ar.check_out_time, ar.check_out_notes, ar.check_out_actor,
ar.submitted_at, ar.submitted_by, ar.version, ar.created_at, ar.updated_at,
COALESCE(c.full_name, '') AS child_name
FROM attendance_records ar
LEFT JOIN children c ON c.id = ar.child_id
WHERE ar.session_id = $1
ORDER BY child_name ASC, ar.child_id ASC`
	var entries []models.AttendanceRosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance by session: %w", err)
	}
	return entries, nil
}

// ListByChild returns a child's records across sessions, newest first.
func (r *AttendanceRepository) ListByChild(ctx context.Context, childID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
WHERE child_id = $1
ORDER BY created_at DESC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, childID); err != nil {
		return nil, fmt.Errorf("list attendance by child: %w", err)
	}
	return records, nil
}

// ListByParent aggregates records across all of a parent's children.
func (r *AttendanceRepository) ListByParent(ctx context.Context, parentID string) ([]models.AttendanceRosterEntry, error) {
	query := `SELECT ar.id, ar.session_id, ar.child_id, ar.parent_id, ar.provider_id, ar.status,
ar.check_in_time, ar.check_in_notes, ar.check_in_actor,
ar.check_out_time, ar.check_out_notes, ar.check_out_actor,
ar.submitted_at, ar.submitted_by, ar.version, ar.created_at, ar.updated_at,
c.full_name AS child_name
FROM attendance_records ar
JOIN children c ON c.id = ar.child_id
WHERE c.parent_id = $1
ORDER BY ar.created_at DESC`
	var entries []models.AttendanceRosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, parentID); err != nil {
		return nil, fmt.Errorf("list attendance by parent: %w", err)
	}
	return entries, nil
}
