// Package scheduler expires requests whose deadline passed without a claim.
// It runs on its own ticker and coordinates with claims and cancels only
// through the store's compare-and-swap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	requesterrors "openrequests/internal/requests/errors"
	"openrequests/internal/requests/events"
	"openrequests/internal/requests/lifecycle"
	"openrequests/internal/requests/repository"
	"openrequests/pkg/config"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"
)

// errSettled means another writer moved the request out of an active state
// while the sweep was retrying.
var errSettled = errors.New("request settled by another writer")

// SweepResult counts what one tick did.
type SweepResult struct {
	Scanned int
	Expired int
	// Lost counts requests claimed or cancelled between the read and the write,
	// and requests whose retries ran out.
	Lost   int
	Failed int
}

type ExpirationScheduler struct {
	store      repository.RequestStore
	notifier   events.Notifier
	interval   time.Duration
	maxRetries int
	now        func() time.Time
	log        *logger.Logger
}

func NewExpirationScheduler(store repository.RequestStore, notifier events.Notifier, cfg *config.Config) *ExpirationScheduler {
	return &ExpirationScheduler{
		store:      store,
		notifier:   notifier,
		interval:   cfg.ExpirationInterval,
		maxRetries: cfg.ClaimMaxRetries,
		now:        time.Now,
		log:        cfg.Log.Component("scheduler"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *ExpirationScheduler) Run(ctx context.Context) error {
	s.log.Info("Expiration scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Expiration sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.log.Info("Expiration scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce expires every active request whose deadline has passed.
func (s *ExpirationScheduler) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return result, err
	}
	result.Scanned = len(active)

	now := s.now()
	for _, r := range active {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if _, err := lifecycle.Transition(r, lifecycle.Command{Event: lifecycle.EventExpire, Now: now}); err != nil {
			// ListActive is sorted by deadline, so everything after this is not due either.
			if errors.Is(err, requesterrors.ErrNotDue) {
				break
			}
			s.log.Warn("Unexpected request in active list", "id", r.ID, "status", r.Status, "error", err)
			continue
		}

		expired, err := s.expire(ctx, r, now)
		switch {
		case err == nil:
			result.Expired++
			s.log.Info("Request expired", "id", r.ID, "expires_at", r.ExpiresAt, "version", expired.Version)
			if err := s.notifier.Notify(context.WithoutCancel(ctx), events.FromRequest(model.EventExpired, expired)); err != nil {
				s.log.Error("Failed to publish expired event", "id", r.ID, "error", err)
			}
		case errors.Is(err, errSettled), errors.Is(err, requesterrors.ErrVersionConflict):
			result.Lost++
			s.log.Debug("Request changed before expiry, skipping", "id", r.ID, "read_version", r.Version, "error", err)
		default:
			result.Failed++
			s.log.Error("Failed to expire request", "id", r.ID, "error", err)
		}
	}

	if result.Expired > 0 || result.Failed > 0 {
		s.log.Info("Expiration sweep completed",
			"scanned", result.Scanned,
			"expired", result.Expired,
			"lost", result.Lost,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// expire writes the expiry for current. A lost compare-and-swap re-reads the
// request and tries again while it is still active, at most maxRetries times.
func (s *ExpirationScheduler) expire(ctx context.Context, current *model.Request, now time.Time) (*model.Request, error) {
	for attempt := 0; ; attempt++ {
		mutation, err := lifecycle.Transition(current, lifecycle.Command{Event: lifecycle.EventExpire, Now: now})
		if err != nil {
			return nil, err
		}

		expired, err := s.store.CompareAndSwap(ctx, current.ID, current.Version, mutation)
		if !errors.Is(err, requesterrors.ErrVersionConflict) || attempt >= s.maxRetries {
			return expired, err
		}

		current, err = s.store.Get(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if !current.Status.IsActive() {
			return nil, fmt.Errorf("%w: now %s", errSettled, current.Status)
		}
	}
}
