// Package jobs contains the background sweepers that move passes through
// the sweeper-only transitions: forced expiration of stale active passes
// and clearing of terminal passes after the grace period.
package jobs

import (
	"context"
	"time"

	"hallpass-backend/internal/metrics"
	"hallpass-backend/internal/models"
	"hallpass-backend/internal/services"
	"hallpass-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// ExpireJob forces active passes past the maximum duration to expired.
type ExpireJob struct {
	users     store.UserStore
	locks     *store.UserLocks
	publisher services.Publisher
	maxActive time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewExpireJob creates the expiration sweeper.
func NewExpireJob(users store.UserStore, locks *store.UserLocks, publisher services.Publisher, maxActive, interval time.Duration) *ExpireJob {
	return &ExpireJob{
		users:     users,
		locks:     locks,
		publisher: publisher,
		maxActive: maxActive,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the sweep on a fixed period until the context is cancelled.
func (j *ExpireJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := j.RunOnce(ctx)
				metrics.SweepRuns.WithLabelValues("expire").Inc()
				if err != nil {
					log.Error().Err(err).Msg("Expire sweep failed")
					continue
				}
				if expired > 0 {
					log.Info().Int("expired", expired).Msg("Expire sweep transitioned passes")
				}
			}
		}
	}()
}

// RunOnce scans all users with an active pass and expires the stale ones.
// Per-user failures are logged and skipped so one bad record cannot halt
// the scan. Returns the number of passes expired.
func (j *ExpireJob) RunOnce(ctx context.Context) (int, error) {
	users, err := j.users.ListWithActivePass(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range users {
		ok, err := j.expireUser(ctx, candidate.ID)
		if err != nil {
			metrics.SweepErrors.WithLabelValues("expire").Inc()
			log.Error().Err(err).Str("user_id", candidate.ID).Msg("Failed to expire pass")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (j *ExpireJob) expireUser(ctx context.Context, userID string) (bool, error) {
	unlock := j.locks.Lock(userID)
	defer unlock()

	// Re-read under the lock; a concurrent end or an earlier tick may have
	// already moved the pass on, in which case this is a no-op.
	user, err := j.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	pass := user.Pass
	if pass == nil || pass.Status != models.StatusActive || pass.Start == nil {
		return false, nil
	}

	now := j.now()
	if now.Sub(*pass.Start) <= j.maxActive {
		return false, nil
	}

	pass.Status = models.StatusExpired
	pass.End = &now
	if err := j.users.Update(ctx, user); err != nil {
		return false, err
	}

	metrics.PassTransitions.WithLabelValues("expire").Inc()
	j.publisher.PassesUpdated(user.SchoolID)

	log.Info().
		Str("user_id", user.ID).
		Str("pass_id", pass.ID).
		Msg("Pass expired")
	return true, nil
}
