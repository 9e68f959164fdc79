package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"hallpass-backend/internal/metrics"
	"hallpass-backend/internal/models"
	"hallpass-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxPurposeLen = 50

// Response messages. These are part of the API surface: clients branch on
// them, so they match the historical wording exactly.
const (
	msgOnlyStudents       = "Only students can create passes!"
	msgMissingFields      = "Missing required fields"
	msgPurposeTooLong     = "Purpose too long."
	msgPassOngoing        = "Pass already ongoing!"
	msgPassHeld           = "User has pass already!"
	msgMaxPasses          = "Max passes reached!"
	msgInvalidDestination = "Invalid destination"
	msgUserNotFound       = "User not found"
	msgSchoolNotFound     = "School not found"
	msgPassNotFound       = "Pass not found"
	msgSameSchool         = "Same school necessary"
	msgNoWaitingPass      = "No pass waiting to start"
	msgApprovalRequired   = "Teacher approval required"
	msgNoActivePass       = "No active pass to end"
	msgNoPendingPass      = "No pending pass to cancel"
	msgOnlyTeachersStart  = "Only teachers can start another user's pass"
	msgOnlyTeachersEnd    = "Only teachers can end another user's pass"
	msgOnlyTeachersCancel = "Only teachers can cancel another user's pass"
	msgPassCreated        = "Pass created"
	msgPassStarted        = "Pass started"
	msgPassEnded          = "Pass ended"
	msgPassCancelled      = "Pass cancelled"
)

// Actor is the authenticated identity performing a pass operation, taken
// from the request's token claims.
type Actor struct {
	ID       string
	Role     models.Role
	SchoolID string
}

// PassResult is the outcome of a lifecycle operation. Rule violations are
// reported here with a message and a nil Pass; they are not errors. Errors
// are reserved for storage failures.
type PassResult struct {
	Message string       `json:"message"`
	Pass    *models.Pass `json:"pass,omitempty"`
}

// PassService is the pass lifecycle engine. It enforces the state machine
// and authorization rules over the shared user records, holding the per-user
// lock for the whole read-check-write of each operation.
type PassService struct {
	users     store.UserStore
	schools   store.SchoolStore
	locks     *store.UserLocks
	publisher Publisher
	now       func() time.Time
}

// NewPassService creates a new pass lifecycle engine.
func NewPassService(users store.UserStore, schools store.SchoolStore, locks *store.UserLocks, publisher Publisher) *PassService {
	return &PassService{
		users:     users,
		schools:   schools,
		locks:     locks,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create validates and stores a new waiting pass on the acting student.
func (s *PassService) Create(ctx context.Context, actor Actor, destination, fromTeacher, purpose string) (*PassResult, error) {
	if actor.Role != models.RoleStudent {
		return &PassResult{Message: msgOnlyStudents}, nil
	}
	if destination == "" || fromTeacher == "" {
		return &PassResult{Message: msgMissingFields}, nil
	}
	if utf8.RuneCountInString(purpose) > maxPurposeLen {
		return &PassResult{Message: msgPurposeTooLong}, nil
	}

	unlock := s.locks.Lock(actor.ID)
	defer unlock()

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &PassResult{Message: msgUserNotFound}, nil
		}
		return nil, err
	}

	// A terminal pass still blocks creation until the cleanup sweeper has
	// cleared the slot.
	if user.Pass != nil {
		if user.Pass.Status == models.StatusActive {
			return &PassResult{Message: msgPassOngoing}, nil
		}
		return &PassResult{Message: msgPassHeld}, nil
	}

	school, err := s.schools.GetByID(ctx, user.SchoolID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &PassResult{Message: msgSchoolNotFound}, nil
		}
		return nil, err
	}

	if user.DayPasses >= school.MaxPassesDaily {
		return &PassResult{Message: msgMaxPasses}, nil
	}

	destTeacher, err := s.lookupTeacher(ctx, destination, user.SchoolID)
	if err != nil {
		return nil, err
	}
	if destTeacher == nil && !school.HasLocation(destination) {
		return &PassResult{Message: msgInvalidDestination}, nil
	}

	// An unresolved fromTeacher means no pre-authorization, not a rejection.
	autoPass := false
	if teacher, err := s.lookupTeacher(ctx, fromTeacher, user.SchoolID); err != nil {
		return nil, err
	} else if teacher != nil {
		autoPass = contains(teacher.AutoPassLocations, destination)
	}

	pass := &models.Pass{
		ID:           uuid.New().String(),
		StudentID:    user.ID,
		StudentGrade: user.GradeLevel,
		Status:       models.StatusWaiting,
		FromTeacher:  fromTeacher,
		Destination:  destination,
		Purpose:      purpose,
		AutoPass:     autoPass,
	}
	user.Pass = pass

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.notify(user.SchoolID, "create")

	log.Info().
		Str("user_id", user.ID).
		Str("pass_id", pass.ID).
		Str("destination", destination).
		Bool("auto_pass", autoPass).
		Msg("Pass created")

	return &PassResult{Message: msgPassCreated, Pass: pass}, nil
}

// Start transitions a waiting pass to active. Without a passID the actor
// starts their own pass, which requires auto-pass approval for students.
// With a passID a teacher starts any waiting pass in their school.
func (s *PassService) Start(ctx context.Context, actor Actor, passID string) (*PassResult, error) {
	targetID, res, err := s.resolveTarget(ctx, actor, passID, msgOnlyTeachersStart)
	if res != nil || err != nil {
		return res, err
	}

	unlock := s.locks.Lock(targetID)
	defer unlock()

	user, pass, res, err := s.loadPass(ctx, targetID, passID)
	if res != nil || err != nil {
		return res, err
	}

	if pass == nil || pass.Status != models.StatusWaiting {
		return &PassResult{Message: msgNoWaitingPass}, nil
	}
	if actor.Role == models.RoleStudent && !pass.AutoPass {
		return &PassResult{Message: msgApprovalRequired}, nil
	}

	now := s.now()
	pass.Status = models.StatusActive
	pass.Start = &now
	user.DayPasses++

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.notify(user.SchoolID, "start")

	log.Info().
		Str("user_id", user.ID).
		Str("pass_id", pass.ID).
		Str("actor_id", actor.ID).
		Int("day_passes", user.DayPasses).
		Msg("Pass started")

	return &PassResult{Message: msgPassStarted, Pass: pass}, nil
}

// End transitions an active pass to ended.
func (s *PassService) End(ctx context.Context, actor Actor, passID string) (*PassResult, error) {
	targetID, res, err := s.resolveTarget(ctx, actor, passID, msgOnlyTeachersEnd)
	if res != nil || err != nil {
		return res, err
	}

	unlock := s.locks.Lock(targetID)
	defer unlock()

	user, pass, res, err := s.loadPass(ctx, targetID, passID)
	if res != nil || err != nil {
		return res, err
	}

	if pass == nil || pass.Status != models.StatusActive {
		return &PassResult{Message: msgNoActivePass}, nil
	}

	now := s.now()
	pass.Status = models.StatusEnded
	pass.End = &now

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.notify(user.SchoolID, "end")

	log.Info().
		Str("user_id", user.ID).
		Str("pass_id", pass.ID).
		Str("actor_id", actor.ID).
		Msg("Pass ended")

	return &PassResult{Message: msgPassEnded, Pass: pass}, nil
}

// Cancel withdraws a waiting pass before it starts.
func (s *PassService) Cancel(ctx context.Context, actor Actor, passID string) (*PassResult, error) {
	targetID, res, err := s.resolveTarget(ctx, actor, passID, msgOnlyTeachersCancel)
	if res != nil || err != nil {
		return res, err
	}

	unlock := s.locks.Lock(targetID)
	defer unlock()

	user, pass, res, err := s.loadPass(ctx, targetID, passID)
	if res != nil || err != nil {
		return res, err
	}

	if pass == nil || pass.Status != models.StatusWaiting {
		return &PassResult{Message: msgNoPendingPass}, nil
	}

	now := s.now()
	pass.Status = models.StatusCancelled
	pass.CancelledAt = &now

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.notify(user.SchoolID, "cancel")

	log.Info().
		Str("user_id", user.ID).
		Str("pass_id", pass.ID).
		Str("actor_id", actor.ID).
		Msg("Pass cancelled")

	return &PassResult{Message: msgPassCancelled, Pass: pass}, nil
}

// resolveTarget decides whose record the operation mutates. With a passID
// the actor must be a teacher in the holder's school; without one the actor
// targets themselves.
func (s *PassService) resolveTarget(ctx context.Context, actor Actor, passID, teachersOnlyMsg string) (string, *PassResult, error) {
	if passID == "" {
		return actor.ID, nil, nil
	}
	if actor.Role != models.RoleTeacher {
		return "", &PassResult{Message: teachersOnlyMsg}, nil
	}
	holder, err := s.users.GetByPassID(ctx, passID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", &PassResult{Message: msgPassNotFound}, nil
		}
		return "", nil, err
	}
	if holder.SchoolID != actor.SchoolID {
		return "", &PassResult{Message: msgSameSchool}, nil
	}
	return holder.ID, nil, nil
}

// loadPass re-reads the target under the lock. For proxy operations the
// pass is re-matched by id in case it changed since resolveTarget.
func (s *PassService) loadPass(ctx context.Context, targetID, passID string) (*models.User, *models.Pass, *PassResult, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if passID != "" {
				return nil, nil, &PassResult{Message: msgPassNotFound}, nil
			}
			return nil, nil, &PassResult{Message: msgUserNotFound}, nil
		}
		return nil, nil, nil, err
	}
	if passID != "" && (user.Pass == nil || user.Pass.ID != passID) {
		return nil, nil, &PassResult{Message: msgPassNotFound}, nil
	}
	return user, user.Pass, nil, nil
}

// lookupTeacher resolves an id to a teacher of the given school, or nil.
func (s *PassService) lookupTeacher(ctx context.Context, id, schoolID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if user.Role != models.RoleTeacher || user.SchoolID != schoolID {
		return nil, nil
	}
	return user, nil
}

func (s *PassService) notify(schoolID, action string) {
	metrics.PassTransitions.WithLabelValues(action).Inc()
	s.publisher.PassesUpdated(schoolID)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
