package store

import (
	"context"
	"sync"

	"hallpass-backend/internal/models"
)

// Memory is an in-memory UserStore and SchoolStore. It backs the unit tests
// and local development without Postgres. All records are deep-copied on the
// way in and out, so a caller mutating a returned user changes nothing until
// it calls Update.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	schools map[string]*models.School
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*models.User),
		schools: make(map[string]*models.School),
	}
}

var (
	_ UserStore   = (*Memory)(nil)
	_ SchoolStore = (*memorySchools)(nil)
)

// Schools returns the SchoolStore view over the same records.
func (m *Memory) Schools() SchoolStore {
	return &memorySchools{m: m}
}

// GetByID retrieves a user by id.
func (m *Memory) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

// GetByEmail retrieves a user by email.
func (m *Memory) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// GetByPassID retrieves the user holding the pass with the given id.
func (m *Memory) GetByPassID(_ context.Context, passID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Pass != nil && u.Pass.ID == passID {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// ListBySchool returns users of a school, optionally filtered by role.
func (m *Memory) ListBySchool(_ context.Context, schoolID string, role models.Role) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.User
	for _, u := range m.users {
		if u.SchoolID != schoolID {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u.Clone())
	}
	return out, nil
}

// ListWithPass returns every user whose pass slot is non-null.
func (m *Memory) ListWithPass(_ context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.User
	for _, u := range m.users {
		if u.Pass != nil {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

// ListWithActivePass returns every user holding an active, started pass.
func (m *Memory) ListWithActivePass(_ context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.User
	for _, u := range m.users {
		if u.Pass != nil && u.Pass.Status == models.StatusActive && u.Pass.Start != nil {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

// Create stores a new user record.
func (m *Memory) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user.Clone()
	return nil
}

// Update overwrites the stored user record.
func (m *Memory) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	m.users[user.ID] = user.Clone()
	return nil
}

// Delete removes a user record.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// PutSchool stores a school record, creating it if absent.
func (m *Memory) PutSchool(school *models.School) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[school.ID] = cloneSchool(school)
}

// memorySchools adapts Memory to the SchoolStore interface.
type memorySchools struct {
	m *Memory
}

// GetByID retrieves a school by id.
func (s *memorySchools) GetByID(_ context.Context, id string) (*models.School, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	sc, ok := s.m.schools[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSchool(sc), nil
}

// Update overwrites the stored school record.
func (s *memorySchools) Update(_ context.Context, school *models.School) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.schools[school.ID]; !ok {
		return ErrNotFound
	}
	s.m.schools[school.ID] = cloneSchool(school)
	return nil
}

func cloneSchool(s *models.School) *models.School {
	cp := *s
	cp.Locations = append([]string(nil), s.Locations...)
	return &cp
}
