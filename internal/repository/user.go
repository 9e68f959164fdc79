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

const userColumns = `
	id, username, first_name, last_name, email, password, role, grade_level,
	auto_pass_locations, subjects, pass, last_reset, day_passes,
	favorite_destinations, favorite_teachers, school_id, created_at
`

// UserRepository handles database operations for users. The pass is stored
// as a JSONB column on the user row, so a user can never hold more than one.
type UserRepository struct {
	db *pgxpool.Pool
}

var _ store.UserStore = (*UserRepository)(nil)

// NewUserRepository creates a new user repository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.Email,
		user.Password, user.Role, user.GradeLevel, user.AutoPassLocations,
		user.Subjects, user.Pass, user.LastReset, user.DayPasses,
		user.FavoriteDestinations, user.FavoriteTeachers, user.SchoolID, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// GetByPassID retrieves the user holding the pass with the given id.
func (r *UserRepository) GetByPassID(ctx context.Context, passID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE pass->>'id' = $1`
	return r.getOne(ctx, query, passID)
}

// ListBySchool retrieves users of a school, optionally filtered by role.
func (r *UserRepository) ListBySchool(ctx context.Context, schoolID string, role models.Role) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE school_id = $1`
	args := []any{schoolID}
	if role != "" {
		query += ` AND role = $2`
		args = append(args, role)
	}
	return r.list(ctx, query, args...)
}

// ListWithPass retrieves every user whose pass slot is non-null.
func (r *UserRepository) ListWithPass(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE pass IS NOT NULL`
	return r.list(ctx, query)
}

// ListWithActivePass retrieves every user holding an active, started pass.
func (r *UserRepository) ListWithActivePass(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE pass IS NOT NULL
		  AND pass->>'status' = 'active'
		  AND pass->>'start' IS NOT NULL`
	return r.list(ctx, query)
}

// Update overwrites the mutable fields of a user, including the pass slot.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			username = $2, first_name = $3, last_name = $4, email = $5,
			password = $6, role = $7, grade_level = $8, auto_pass_locations = $9,
			subjects = $10, pass = $11, last_reset = $12, day_passes = $13,
			favorite_destinations = $14, favorite_teachers = $15
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.Email,
		user.Password, user.Role, user.GradeLevel, user.AutoPassLocations,
		user.Subjects, user.Pass, user.LastReset, user.DayPasses,
		user.FavoriteDestinations, user.FavoriteTeachers,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete deletes a user by ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email,
		&user.Password, &user.Role, &user.GradeLevel, &user.AutoPassLocations,
		&user.Subjects, &user.Pass, &user.LastReset, &user.DayPasses,
		&user.FavoriteDestinations, &user.FavoriteTeachers, &user.SchoolID, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email,
			&user.Password, &user.Role, &user.GradeLevel, &user.AutoPassLocations,
			&user.Subjects, &user.Pass, &user.LastReset, &user.DayPasses,
			&user.FavoriteDestinations, &user.FavoriteTeachers, &user.SchoolID, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
