package services

import (
	"context"
	"errors"
	"testing"

	"hallpass-backend/internal/models"
	"hallpass-backend/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func newUserService(mem *store.Memory) *UserService {
	return NewUserService(mem, mem.Schools(), "test-secret")
}

func TestJWTRoundTrip(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)

	user := &models.User{ID: "user-1", Role: models.RoleTeacher, SchoolID: "school-1"}
	token, err := svc.GenerateJWT(user)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	actor, err := svc.ValidateJWT(token)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if actor.ID != "user-1" || actor.Role != models.RoleTeacher || actor.SchoolID != "school-1" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)

	token, err := svc.GenerateJWT(&models.User{ID: "user-1", Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	other := NewUserService(mem, mem.Schools(), "other-secret")
	if _, err := other.ValidateJWT(token); err == nil {
		t.Fatalf("token accepted with wrong secret")
	}
}

func TestLogin(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)

	hashed, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := mem.Create(context.Background(), &models.User{
		ID:       "user-1",
		Email:    "user@test.edu",
		Password: string(hashed),
		Role:     models.RoleStudent,
		SchoolID: "school-1",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	user, token, err := svc.Login(context.Background(), "user@test.edu", "hunter2")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if user.ID != "user-1" || token == "" {
		t.Fatalf("unexpected login result")
	}

	if _, _, err := svc.Login(context.Background(), "user@test.edu", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@test.edu", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateStudentValidation(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)
	actor := Actor{ID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"}

	cases := []struct {
		name    string
		email   string
		grade   string
		wantErr string
	}{
		{"missing email", "", "9", "missing fields"},
		{"missing grade", "kid@test.edu", "", "missing fields"},
		{"grade not a number", "kid@test.edu", "freshman", "invalid grade level"},
		{"grade too high", "kid@test.edu", "13", "invalid grade level"},
		{"grade too low", "kid@test.edu", "0", "invalid grade level"},
		{"bad email", "not-an-email", "9", "invalid email format"},
	}
	for _, tc := range cases {
		if _, err := svc.CreateStudent(context.Background(), actor, tc.email, tc.grade); err == nil || err.Error() != tc.wantErr {
			t.Fatalf("%s: got %v, want %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestCreateStudent(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)
	actor := Actor{ID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"}

	student, err := svc.CreateStudent(context.Background(), actor, "kid@test.edu", "9")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if student.Username != "kid" || student.SchoolID != "school-1" || student.Role != models.RoleStudent {
		t.Fatalf("unexpected student: %+v", student)
	}
	if student.GradeLevel == nil || *student.GradeLevel != "9" {
		t.Fatalf("grade level not set")
	}

	// The placeholder password must verify.
	if bcrypt.CompareHashAndPassword([]byte(student.Password), []byte("1")) != nil {
		t.Fatalf("temp password does not verify")
	}

	// Duplicate email is refused.
	if _, err := svc.CreateStudent(context.Background(), actor, "kid@test.edu", "10"); err == nil || err.Error() != "email in use" {
		t.Fatalf("got %v, want email in use", err)
	}
}

func TestCreateTeacherSplitsSubjects(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)
	actor := Actor{ID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"}

	teacher, err := svc.CreateTeacher(context.Background(), actor, "prof@test.edu", "Ada", "Lovelace", "math, cs ,physics")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	want := []string{"math", "cs", "physics"}
	if len(teacher.Subjects) != len(want) {
		t.Fatalf("got subjects %v, want %v", teacher.Subjects, want)
	}
	for i, s := range want {
		if teacher.Subjects[i] != s {
			t.Fatalf("got subjects %v, want %v", teacher.Subjects, want)
		}
	}
}

func TestDeleteStudentSchoolGuard(t *testing.T) {
	mem := store.NewMemory()
	svc := newUserService(mem)

	if err := mem.Create(context.Background(), &models.User{
		ID: "student-1", Email: "kid@test.edu", Role: models.RoleStudent, SchoolID: "school-2",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	actor := Actor{ID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"}
	if err := svc.DeleteStudent(context.Background(), actor, "student-1"); err == nil || err.Error() != "not allowed: different school" {
		t.Fatalf("got %v, want school guard error", err)
	}
	if err := svc.DeleteStudent(context.Background(), actor, "no-such-student"); err == nil || err.Error() != "student not found" {
		t.Fatalf("got %v, want student not found", err)
	}
}

func TestAutoPassLocations(t *testing.T) {
	mem := store.NewMemory()
	mem.PutSchool(&models.School{ID: "school-1", Locations: []string{"bathroom", "library"}})
	svc := newUserService(mem)

	if err := mem.Create(context.Background(), &models.User{
		ID: "teacher-1", Email: "prof@test.edu", Role: models.RoleTeacher, SchoolID: "school-1",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	actor := Actor{ID: "teacher-1", Role: models.RoleTeacher, SchoolID: "school-1"}

	locations, err := svc.AddAutoPassLocation(context.Background(), actor, "bathroom")
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	if len(locations) != 1 || locations[0] != "bathroom" {
		t.Fatalf("got %v", locations)
	}

	if _, err := svc.AddAutoPassLocation(context.Background(), actor, "bathroom"); err == nil || err.Error() != "location already in teacher autopass locations" {
		t.Fatalf("got %v, want duplicate error", err)
	}
	if _, err := svc.AddAutoPassLocation(context.Background(), actor, "gym"); err == nil || err.Error() != "school location not found" {
		t.Fatalf("got %v, want unknown location error", err)
	}

	locations, err = svc.RemoveAutoPassLocation(context.Background(), actor, "bathroom")
	if err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if len(locations) != 0 {
		t.Fatalf("got %v, want empty", locations)
	}
	if _, err := svc.RemoveAutoPassLocation(context.Background(), actor, "bathroom"); err == nil || err.Error() != "location not in teacher autopass locations" {
		t.Fatalf("got %v, want missing error", err)
	}
}

func TestAutoPassLocationsRequiresTeacher(t *testing.T) {
	mem := store.NewMemory()
	mem.PutSchool(&models.School{ID: "school-1", Locations: []string{"bathroom"}})
	svc := newUserService(mem)

	if err := mem.Create(context.Background(), &models.User{
		ID: "student-1", Email: "kid@test.edu", Role: models.RoleStudent, SchoolID: "school-1",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	actor := Actor{ID: "student-1", Role: models.RoleStudent, SchoolID: "school-1"}

	if _, err := svc.AddAutoPassLocation(context.Background(), actor, "bathroom"); err == nil || err.Error() != "must be a teacher" {
		t.Fatalf("got %v, want must be a teacher", err)
	}
}
