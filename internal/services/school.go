package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hallpass-backend/internal/models"
	"hallpass-backend/internal/store"
)

const (
	minMaxPasses = 1
	maxMaxPasses = 25
)

// SchoolService handles school policy: valid destinations and the daily
// pass quota.
type SchoolService struct {
	schools store.SchoolStore
	users   store.UserStore
}

// NewSchoolService creates a new school service.
func NewSchoolService(schools store.SchoolStore, users store.UserStore) *SchoolService {
	return &SchoolService{schools: schools, users: users}
}

// GetByID retrieves a school record.
func (s *SchoolService) GetByID(ctx context.Context, id string) (*models.School, error) {
	return s.schools.GetByID(ctx, id)
}

// Teachers returns the school's teacher roster, derived from the user
// records rather than a denormalized copy on the school.
func (s *SchoolService) Teachers(ctx context.Context, schoolID string) ([]*models.User, error) {
	return s.users.ListBySchool(ctx, schoolID, models.RoleTeacher)
}

// AddLocation registers a new valid destination for the school. Locations
// are stored lowercased.
func (s *SchoolService) AddLocation(ctx context.Context, schoolID, location string) (string, error) {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return "", fmt.Errorf("no location found")
	}

	school, err := s.schools.GetByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("no school found")
		}
		return "", err
	}
	if school.HasLocation(location) {
		return "", fmt.Errorf("location already in school")
	}

	school.Locations = append(school.Locations, location)
	if err := s.schools.Update(ctx, school); err != nil {
		return "", err
	}
	return location, nil
}

// SetMaxPasses changes the school's daily pass quota.
func (s *SchoolService) SetMaxPasses(ctx context.Context, schoolID string, passes int) error {
	if passes < minMaxPasses || passes > maxMaxPasses {
		return fmt.Errorf("passes not in accepted range")
	}

	school, err := s.schools.GetByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no school found")
		}
		return err
	}

	school.MaxPassesDaily = passes
	return s.schools.Update(ctx, school)
}
