package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hallpass-backend/internal/models"
	"hallpass-backend/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const jwtExpHours = 24

// Accounts are provisioned by an admin with a placeholder password the user
// changes on first login.
const tempPassword = "1"

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrInvalidCredentials is returned by Login for a bad email or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService handles authentication and user provisioning.
type UserService struct {
	users     store.UserStore
	schools   store.SchoolStore
	jwtSecret string
}

// NewUserService creates a new user service.
func NewUserService(users store.UserStore, schools store.SchoolStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		schools:   schools,
		jwtSecret: jwtSecret,
	}
}

// GenerateJWT signs a token carrying the user's id, role and school.
func (s *UserService) GenerateJWT(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   user.ID,
		"role":      string(user.Role),
		"school_id": user.SchoolID,
		"exp":       time.Now().Add(jwtExpHours * time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT verifies a token and returns the actor identity it carries.
func (s *UserService) ValidateJWT(tokenString string) (Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Actor{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, fmt.Errorf("invalid token claims")
	}
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	schoolID, _ := claims["school_id"].(string)
	if userID == "" || role == "" {
		return Actor{}, fmt.Errorf("incomplete token claims")
	}

	return Actor{ID: userID, Role: models.Role(role), SchoolID: schoolID}, nil
}

// Login checks the password and issues a token for the user.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateJWT(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetByID retrieves a user record.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateStudent provisions a student account in the admin's school.
func (s *UserService) CreateStudent(ctx context.Context, actor Actor, email, gradeLevel string) (*models.User, error) {
	if email == "" || gradeLevel == "" {
		return nil, fmt.Errorf("missing fields")
	}
	if grade, err := strconv.Atoi(gradeLevel); err != nil || grade < 1 || grade > 12 {
		return nil, fmt.Errorf("invalid grade level")
	}
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("invalid email format")
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email in use")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	student := &models.User{
		ID:                   uuid.New().String(),
		Username:             strings.SplitN(email, "@", 2)[0],
		Email:                email,
		Password:             string(hashed),
		Role:                 models.RoleStudent,
		GradeLevel:           &gradeLevel,
		LastReset:            &now,
		DayPasses:            0,
		FavoriteDestinations: []string{},
		FavoriteTeachers:     []string{},
		SchoolID:             actor.SchoolID,
		CreatedAt:            now,
	}
	if err := s.users.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// CreateTeacher provisions a teacher account in the admin's school.
func (s *UserService) CreateTeacher(ctx context.Context, actor Actor, email, firstName, lastName, subjects string) (*models.User, error) {
	if email == "" || firstName == "" || lastName == "" || subjects == "" {
		return nil, fmt.Errorf("missing fields")
	}
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("invalid email format")
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email in use")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var subjectList []string
	for _, subject := range strings.Split(subjects, ",") {
		if trimmed := strings.TrimSpace(subject); trimmed != "" {
			subjectList = append(subjectList, trimmed)
		}
	}

	teacher := &models.User{
		ID:                uuid.New().String(),
		Username:          strings.SplitN(email, "@", 2)[0],
		FirstName:         &firstName,
		LastName:          &lastName,
		Email:             email,
		Password:          string(hashed),
		Role:              models.RoleTeacher,
		AutoPassLocations: []string{},
		Subjects:          subjectList,
		SchoolID:          actor.SchoolID,
		CreatedAt:         time.Now(),
	}
	if err := s.users.Create(ctx, teacher); err != nil {
		return nil, err
	}
	return teacher, nil
}

// DeleteStudent removes a student from the admin's school.
func (s *UserService) DeleteStudent(ctx context.Context, actor Actor, id string) error {
	student, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("student not found")
		}
		return err
	}
	if student.SchoolID != actor.SchoolID {
		return fmt.Errorf("not allowed: different school")
	}
	return s.users.Delete(ctx, id)
}

// ListBySchool lists users of a school filtered by role.
func (s *UserService) ListBySchool(ctx context.Context, schoolID string, role models.Role) ([]*models.User, error) {
	return s.users.ListBySchool(ctx, schoolID, role)
}

// AddAutoPassLocation pre-authorizes a school location for the teacher.
// Passes from this teacher to the location can then be self-started.
func (s *UserService) AddAutoPassLocation(ctx context.Context, actor Actor, location string) ([]string, error) {
	teacher, school, err := s.loadTeacherAndSchool(ctx, actor)
	if err != nil {
		return nil, err
	}
	if contains(teacher.AutoPassLocations, location) {
		return nil, fmt.Errorf("location already in teacher autopass locations")
	}
	if !school.HasLocation(location) {
		return nil, fmt.Errorf("school location not found")
	}

	teacher.AutoPassLocations = append(teacher.AutoPassLocations, location)
	if err := s.users.Update(ctx, teacher); err != nil {
		return nil, err
	}
	return teacher.AutoPassLocations, nil
}

// RemoveAutoPassLocation withdraws a teacher's pre-authorization.
func (s *UserService) RemoveAutoPassLocation(ctx context.Context, actor Actor, location string) ([]string, error) {
	teacher, school, err := s.loadTeacherAndSchool(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !contains(teacher.AutoPassLocations, location) {
		return nil, fmt.Errorf("location not in teacher autopass locations")
	}
	if !school.HasLocation(location) {
		return nil, fmt.Errorf("school location not found")
	}

	var kept []string
	for _, l := range teacher.AutoPassLocations {
		if l != location {
			kept = append(kept, l)
		}
	}
	teacher.AutoPassLocations = kept
	if err := s.users.Update(ctx, teacher); err != nil {
		return nil, err
	}
	return teacher.AutoPassLocations, nil
}

func (s *UserService) loadTeacherAndSchool(ctx context.Context, actor Actor) (*models.User, *models.School, error) {
	teacher, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("teacher not found")
		}
		return nil, nil, err
	}
	if teacher.Role != models.RoleTeacher {
		return nil, nil, fmt.Errorf("must be a teacher")
	}
	school, err := s.schools.GetByID(ctx, teacher.SchoolID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("school not found")
		}
		return nil, nil, err
	}
	return teacher, school, nil
}
