package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

// ChildRepository reads children reference data owned by the identity
// system. This service never writes to it.
type ChildRepository struct {
	db *sqlx.DB
}

// NewChildRepository constructs the repository.
func NewChildRepository(db *sqlx.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// FindByID fetches a child row.
func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.Child, error) {
	query := `SELECT id, parent_id, full_name, active, created_at FROM children WHERE id = $1`
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, fmt.Errorf("get child: %w", err)
	}
	return &child, nil
}

// ResolveName returns the child's display name for event enrichment.
func (r *ChildRepository) ResolveName(ctx context.Context, childID string) (string, error) {
	var name string
	if err := r.db.GetContext(ctx, &name, `SELECT full_name FROM children WHERE id = $1`, childID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return "", fmt.Errorf("resolve child name: %w", err)
	}
	return name, nil
}
