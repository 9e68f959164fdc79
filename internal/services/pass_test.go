package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"hallpass-backend/internal/models"
	"hallpass-backend/internal/store"
)

type fakePublisher struct {
	mu      sync.Mutex
	schools []string
}

func (f *fakePublisher) PassesUpdated(schoolID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schools = append(f.schools, schoolID)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.schools)
}

type passEnv struct {
	svc       *PassService
	mem       *store.Memory
	publisher *fakePublisher
	school    *models.School
}

func newPassEnv(t *testing.T) *passEnv {
	t.Helper()
	mem := store.NewMemory()
	school := &models.School{
		ID:             "school-1",
		Name:           "Test High",
		MaxPassesDaily: 3,
		Locations:      []string{"bathroom", "library"},
	}
	mem.PutSchool(school)

	publisher := &fakePublisher{}
	svc := NewPassService(mem, mem.Schools(), store.NewUserLocks(), publisher)
	return &passEnv{svc: svc, mem: mem, publisher: publisher, school: school}
}

func (e *passEnv) seedStudent(t *testing.T, id string) *models.User {
	t.Helper()
	grade := "10"
	u := &models.User{
		ID:         id,
		Username:   id,
		Email:      id + "@test.edu",
		Role:       models.RoleStudent,
		GradeLevel: &grade,
		SchoolID:   e.school.ID,
	}
	if err := e.mem.Create(context.Background(), u); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return u
}

func (e *passEnv) seedTeacher(t *testing.T, id string, autoPassLocations ...string) *models.User {
	t.Helper()
	u := &models.User{
		ID:                id,
		Username:          id,
		Email:             id + "@test.edu",
		Role:              models.RoleTeacher,
		AutoPassLocations: autoPassLocations,
		SchoolID:          e.school.ID,
	}
	if err := e.mem.Create(context.Background(), u); err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	return u
}

func (e *passEnv) get(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.mem.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u
}

func studentActor(id string) Actor {
	return Actor{ID: id, Role: models.RoleStudent, SchoolID: "school-1"}
}

func teacherActor(id string) Actor {
	return Actor{ID: id, Role: models.RoleTeacher, SchoolID: "school-1"}
}

func TestCreatePassOnlyStudents(t *testing.T) {
	env := newPassEnv(t)
	env.seedTeacher(t, "teacher-1")

	res, err := env.svc.Create(context.Background(), teacherActor("teacher-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgOnlyStudents || res.Pass != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCreatePassMissingFields(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgMissingFields {
		t.Fatalf("got message %q, want %q", res.Message, msgMissingFields)
	}
}

func TestCreatePassPurposeTooLong(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")

	long := strings.Repeat("x", maxPurposeLen+1)
	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", long)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgPurposeTooLong {
		t.Fatalf("got message %q, want %q", res.Message, msgPurposeTooLong)
	}

	// Exactly at the limit is fine.
	res, err = env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", strings.Repeat("x", maxPurposeLen))
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Pass == nil {
		t.Fatalf("expected pass, got %q", res.Message)
	}
}

func TestCreatePassSlotBlocked(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}

	// Waiting pass occupies the slot.
	res, err := env.svc.Create(context.Background(), actor, "library", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgPassHeld {
		t.Fatalf("got message %q, want %q", res.Message, msgPassHeld)
	}

	// An active pass reports the ongoing variant.
	if _, err := env.svc.Start(context.Background(), actor, ""); err != nil {
		t.Fatalf("start error: %v", err)
	}
	res, err = env.svc.Create(context.Background(), actor, "library", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgPassOngoing {
		t.Fatalf("got message %q, want %q", res.Message, msgPassOngoing)
	}

	// A terminal pass still blocks until the cleanup sweeper clears the slot.
	if _, err := env.svc.End(context.Background(), actor, ""); err != nil {
		t.Fatalf("end error: %v", err)
	}
	res, err = env.svc.Create(context.Background(), actor, "library", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgPassHeld {
		t.Fatalf("got message %q, want %q", res.Message, msgPassHeld)
	}
}

func TestCreatePassQuota(t *testing.T) {
	env := newPassEnv(t)
	student := env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")

	student.DayPasses = env.school.MaxPassesDaily - 1
	if err := env.mem.Update(context.Background(), student); err != nil {
		t.Fatalf("update: %v", err)
	}

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Pass == nil {
		t.Fatalf("expected pass at quota-1, got %q", res.Message)
	}

	student = env.get(t, "student-1")
	student.Pass = nil
	student.DayPasses = env.school.MaxPassesDaily
	if err := env.mem.Update(context.Background(), student); err != nil {
		t.Fatalf("update: %v", err)
	}

	res, err = env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgMaxPasses {
		t.Fatalf("got message %q, want %q", res.Message, msgMaxPasses)
	}
}

func TestCreatePassInvalidDestination(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "gym", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Message != msgInvalidDestination {
		t.Fatalf("got message %q, want %q", res.Message, msgInvalidDestination)
	}
}

func TestCreatePassTeacherDestination(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")
	env.seedTeacher(t, "teacher-2")

	// A teacher id is a valid destination even though it is not a school location.
	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "teacher-2", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Pass == nil {
		t.Fatalf("expected pass, got %q", res.Message)
	}
	if res.Pass.Destination != "teacher-2" {
		t.Fatalf("got destination %q", res.Pass.Destination)
	}
}

func TestCreatePassAutoPass(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedStudent(t, "student-2")
	env.seedTeacher(t, "teacher-1", "bathroom")

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Pass == nil || !res.Pass.AutoPass {
		t.Fatalf("expected auto-pass, got %+v", res)
	}
	if res.Pass.Status != models.StatusWaiting {
		t.Fatalf("got status %q, want waiting", res.Pass.Status)
	}

	// Destination outside the teacher's list gets no pre-authorization.
	res, err = env.svc.Create(context.Background(), studentActor("student-2"), "library", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Pass == nil || res.Pass.AutoPass {
		t.Fatalf("expected no auto-pass, got %+v", res)
	}
}

func TestCreatePassUnknownFromTeacher(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")

	// An unresolved fromTeacher still creates the pass, just without auto-pass.
	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "nobody", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if res.Pass == nil {
		t.Fatalf("expected pass, got %q", res.Message)
	}
	if res.Pass.AutoPass {
		t.Fatalf("expected auto-pass false for unknown teacher")
	}
}

func TestStartPassRequiresApproval(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}

	res, err := env.svc.Start(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if res.Message != msgApprovalRequired {
		t.Fatalf("got message %q, want %q", res.Message, msgApprovalRequired)
	}

	user := env.get(t, "student-1")
	if user.Pass.Status != models.StatusWaiting || user.DayPasses != 0 {
		t.Fatalf("rejected start mutated the record: %+v", user)
	}
}

func TestStartPassAutoPass(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}

	res, err := env.svc.Start(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if res.Pass == nil || res.Pass.Status != models.StatusActive {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Pass.Start == nil {
		t.Fatalf("start timestamp not set")
	}

	user := env.get(t, "student-1")
	if user.DayPasses != 1 {
		t.Fatalf("got day passes %d, want 1", user.DayPasses)
	}

	// Starting again finds no waiting pass and counts nothing.
	res, err = env.svc.Start(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if res.Message != msgNoWaitingPass {
		t.Fatalf("got message %q, want %q", res.Message, msgNoWaitingPass)
	}
	if user := env.get(t, "student-1"); user.DayPasses != 1 {
		t.Fatalf("double start counted: %d", user.DayPasses)
	}
}

func TestStartPassTeacherProxy(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	passID := res.Pass.ID

	// Teacher approval overrides the missing auto-pass.
	res, err = env.svc.Start(context.Background(), teacherActor("teacher-1"), passID)
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if res.Pass == nil || res.Pass.Status != models.StatusActive {
		t.Fatalf("unexpected result: %+v", res)
	}
	if user := env.get(t, "student-1"); user.DayPasses != 1 {
		t.Fatalf("got day passes %d, want 1", user.DayPasses)
	}
}

func TestProxyRequiresTeacher(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedStudent(t, "student-2")
	env.seedTeacher(t, "teacher-1")

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	got, err := env.svc.Start(context.Background(), studentActor("student-2"), res.Pass.ID)
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if got.Message != msgOnlyTeachersStart {
		t.Fatalf("got message %q, want %q", got.Message, msgOnlyTeachersStart)
	}
}

func TestProxySameSchool(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1")

	res, err := env.svc.Create(context.Background(), studentActor("student-1"), "bathroom", "teacher-1", "")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	outsider := Actor{ID: "teacher-x", Role: models.RoleTeacher, SchoolID: "school-2"}
	got, err := env.svc.Start(context.Background(), outsider, res.Pass.ID)
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if got.Message != msgSameSchool {
		t.Fatalf("got message %q, want %q", got.Message, msgSameSchool)
	}
}

func TestProxyPassNotFound(t *testing.T) {
	env := newPassEnv(t)
	env.seedTeacher(t, "teacher-1")

	res, err := env.svc.End(context.Background(), teacherActor("teacher-1"), "no-such-pass")
	if err != nil {
		t.Fatalf("end error: %v", err)
	}
	if res.Message != msgPassNotFound {
		t.Fatalf("got message %q, want %q", res.Message, msgPassNotFound)
	}
}

func TestEndPass(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}

	// Ending a waiting pass is refused.
	res, err := env.svc.End(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("end error: %v", err)
	}
	if res.Message != msgNoActivePass {
		t.Fatalf("got message %q, want %q", res.Message, msgNoActivePass)
	}

	if _, err := env.svc.Start(context.Background(), actor, ""); err != nil {
		t.Fatalf("start error: %v", err)
	}
	res, err = env.svc.End(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("end error: %v", err)
	}
	if res.Pass == nil || res.Pass.Status != models.StatusEnded || res.Pass.End == nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	// The slot keeps the ended pass until the cleanup sweeper runs.
	if user := env.get(t, "student-1"); user.Pass == nil {
		t.Fatalf("slot cleared on end")
	}
}

func TestCancelPass(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}

	res, err := env.svc.Cancel(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if res.Pass == nil || res.Pass.Status != models.StatusCancelled || res.Pass.CancelledAt == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Pass.Start != nil || res.Pass.End != nil {
		t.Fatalf("cancel set lifecycle timestamps: %+v", res.Pass)
	}

	// Only waiting passes can be cancelled.
	res, err = env.svc.Cancel(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if res.Message != msgNoPendingPass {
		t.Fatalf("got message %q, want %q", res.Message, msgNoPendingPass)
	}
}

func TestCancelActivePassRefused(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if _, err := env.svc.Start(context.Background(), actor, ""); err != nil {
		t.Fatalf("start error: %v", err)
	}

	res, err := env.svc.Cancel(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if res.Message != msgNoPendingPass {
		t.Fatalf("got message %q, want %q", res.Message, msgNoPendingPass)
	}
}

func TestLifecyclePublishesUpdates(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if _, err := env.svc.Start(context.Background(), actor, ""); err != nil {
		t.Fatalf("start error: %v", err)
	}
	if _, err := env.svc.End(context.Background(), actor, ""); err != nil {
		t.Fatalf("end error: %v", err)
	}

	if got := env.publisher.count(); got != 3 {
		t.Fatalf("got %d notifications, want 3", got)
	}

	// Rejected operations publish nothing.
	if _, err := env.svc.Cancel(context.Background(), actor, ""); err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if got := env.publisher.count(); got != 3 {
		t.Fatalf("rejected cancel published: %d", got)
	}
}

func TestStartUsesInjectedClock(t *testing.T) {
	env := newPassEnv(t)
	env.seedStudent(t, "student-1")
	env.seedTeacher(t, "teacher-1", "bathroom")

	fixed := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return fixed }

	actor := studentActor("student-1")
	if _, err := env.svc.Create(context.Background(), actor, "bathroom", "teacher-1", ""); err != nil {
		t.Fatalf("create error: %v", err)
	}
	res, err := env.svc.Start(context.Background(), actor, "")
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if res.Pass.Start == nil || !res.Pass.Start.Equal(fixed) {
		t.Fatalf("got start %v, want %v", res.Pass.Start, fixed)
	}
}
