// Package store defines the persistence boundary of the pass system. The
// lifecycle engine and the sweepers only see these interfaces, so they can be
// exercised against the in-memory implementation without a database.
package store

import (
	"context"
	"errors"

	"hallpass-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("not found")

// UserStore provides access to user records and the pass embedded in them.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByPassID resolves the user currently holding the pass with the given id.
	GetByPassID(ctx context.Context, passID string) (*models.User, error)
	ListBySchool(ctx context.Context, schoolID string, role models.Role) ([]*models.User, error)
	// ListWithPass returns every user whose pass slot is non-null.
	ListWithPass(ctx context.Context) ([]*models.User, error)
	// ListWithActivePass returns every user holding an active, started pass.
	ListWithActivePass(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// SchoolStore provides access to school policy records.
type SchoolStore interface {
	GetByID(ctx context.Context, id string) (*models.School, error)
	Update(ctx context.Context, school *models.School) error
}
