package jobs

import (
	"context"
	"time"

	"hallpass-backend/internal/metrics"
	"hallpass-backend/internal/services"
	"hallpass-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// CleanupJob clears terminal passes after the grace period, freeing the
// user's slot. This is the only path that empties a pass slot, so the grace
// period bounds how soon a student can request another pass.
type CleanupJob struct {
	users     store.UserStore
	locks     *store.UserLocks
	publisher services.Publisher
	grace     time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewCleanupJob creates the cleanup sweeper.
func NewCleanupJob(users store.UserStore, locks *store.UserLocks, publisher services.Publisher, grace, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		users:     users,
		locks:     locks,
		publisher: publisher,
		grace:     grace,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the sweep on a fixed period until the context is cancelled.
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleared, err := j.RunOnce(ctx)
				metrics.SweepRuns.WithLabelValues("cleanup").Inc()
				if err != nil {
					log.Error().Err(err).Msg("Cleanup sweep failed")
					continue
				}
				if cleared > 0 {
					log.Info().Int("cleared", cleared).Msg("Cleanup sweep cleared pass slots")
				}
			}
		}
	}()
}

// RunOnce scans all users holding a pass and clears the slots of inactive
// passes older than the grace period. Returns the number of slots cleared.
func (j *CleanupJob) RunOnce(ctx context.Context) (int, error) {
	users, err := j.users.ListWithPass(ctx)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, candidate := range users {
		ok, err := j.cleanupUser(ctx, candidate.ID)
		if err != nil {
			metrics.SweepErrors.WithLabelValues("cleanup").Inc()
			log.Error().Err(err).Str("user_id", candidate.ID).Msg("Failed to clean up pass")
			continue
		}
		if ok {
			cleared++
		}
	}
	return cleared, nil
}

func (j *CleanupJob) cleanupUser(ctx context.Context, userID string) (bool, error) {
	unlock := j.locks.Lock(userID)
	defer unlock()

	user, err := j.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	pass := user.Pass
	if pass == nil || !pass.Inactive() {
		return false, nil
	}

	ref := pass.ReferenceTime()
	if ref == nil || j.now().Sub(*ref) <= j.grace {
		return false, nil
	}

	user.Pass = nil
	if err := j.users.Update(ctx, user); err != nil {
		return false, err
	}

	metrics.PassTransitions.WithLabelValues("cleanup").Inc()
	j.publisher.PassesUpdated(user.SchoolID)

	log.Info().
		Str("user_id", user.ID).
		Str("pass_id", pass.ID).
		Str("status", string(pass.Status)).
		Msg("Pass slot cleared")
	return true, nil
}
