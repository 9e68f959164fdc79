package repository

import (
	"context"
	"errors"
	"fmt"

	"hallpass-backend/internal/models"
	"hallpass-backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchoolRepository handles database operations for schools.
type SchoolRepository struct {
	db *pgxpool.Pool
}

var _ store.SchoolStore = (*SchoolRepository)(nil)

// NewSchoolRepository creates a new school repository.
func NewSchoolRepository(db *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// GetByID retrieves a school by ID.
func (r *SchoolRepository) GetByID(ctx context.Context, id string) (*models.School, error) {
	query := `
		SELECT id, name, domain, admin_first_name, admin_last_name, admin_email,
		       max_passes_daily, locations, admin_id, created_at
		FROM schools
		WHERE id = $1
	`
	var school models.School
	err := r.db.QueryRow(ctx, query, id).Scan(
		&school.ID, &school.Name, &school.Domain, &school.AdminFirstName,
		&school.AdminLastName, &school.AdminEmail, &school.MaxPassesDaily,
		&school.Locations, &school.AdminID, &school.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return &school, nil
}

// Update overwrites the mutable fields of a school.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	query := `
		UPDATE schools SET max_passes_daily = $2, locations = $3
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, school.ID, school.MaxPassesDaily, school.Locations)
	if err != nil {
		return fmt.Errorf("failed to update school: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
