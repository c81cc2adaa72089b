package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openrequests/internal/requests/events"
	requesterrors "openrequests/internal/requests/errors"
	"openrequests/internal/requests/lifecycle"
	"openrequests/internal/requests/repository"
	"openrequests/pkg/config"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"
)

type ClaimOutcome string

const (
	OutcomeClaimed      ClaimOutcome = "claimed"
	OutcomeAlreadyTaken ClaimOutcome = "already_taken"
	OutcomeExpired      ClaimOutcome = "expired"
	OutcomeInvalidState ClaimOutcome = "invalid_state"
	OutcomeNotFound     ClaimOutcome = "not_found"
	OutcomeConflict     ClaimOutcome = "conflict"
	OutcomeFailed       ClaimOutcome = "failed"
)

type ClaimResult struct {
	Outcome      ClaimOutcome   `json:"outcome"`
	AcceptedSlot string         `json:"accepted_slot,omitempty"`
	Request      *model.Request `json:"request,omitempty"`
	// Replayed is set when the provider already held the claim and nothing was written.
	Replayed bool `json:"replayed,omitempty"`
}

// ClaimCoordinator resolves concurrent claims: the first compare-and-swap
// from searching to accepted wins, everyone else observes the winner.
type ClaimCoordinator struct {
	store      repository.RequestStore
	notifier   events.Notifier
	maxRetries int
	now        func() time.Time
	log        *logger.Logger
}

func NewClaimCoordinator(store repository.RequestStore, notifier events.Notifier, cfg *config.Config) *ClaimCoordinator {
	return &ClaimCoordinator{
		store:      store,
		notifier:   notifier,
		maxRetries: cfg.ClaimMaxRetries,
		now:        time.Now,
		log:        cfg.Log.Component("claims"),
	}
}

// AttemptClaim claims requestID for providerID at slot. The returned error is
// a request sentinel matching the outcome, nil only for OutcomeClaimed.
func (c *ClaimCoordinator) AttemptClaim(ctx context.Context, requestID, providerID, slot string) (ClaimResult, error) {
	updated, written, err := casLoop(ctx, c.store, c.maxRetries, c.evaluate(requestID, providerID, slot))
	if err != nil {
		outcome := outcomeOf(err)
		c.log.Info("Claim rejected",
			"request_id", requestID,
			"provider_id", providerID,
			"slot", slot,
			"outcome", outcome,
			"error", err,
		)
		return ClaimResult{Outcome: outcome}, err
	}

	result := ClaimResult{
		Outcome:      OutcomeClaimed,
		AcceptedSlot: updated.AcceptedTimeSlot,
		Request:      updated,
		Replayed:     !written,
	}
	if !written {
		c.log.Debug("Claim replayed by winning provider", "request_id", requestID, "provider_id", providerID)
		return result, nil
	}

	c.log.Info("Request claimed",
		"request_id", requestID,
		"provider_id", providerID,
		"slot", updated.AcceptedTimeSlot,
		"version", updated.Version,
	)
	// The claim is committed; a caller hanging up must not cancel the publish.
	if err := c.notifier.Notify(context.WithoutCancel(ctx), events.FromRequest(model.EventAccepted, updated)); err != nil {
		c.log.Error("Failed to publish accepted event", "request_id", requestID, "error", err)
	}
	return result, nil
}

func (c *ClaimCoordinator) evaluate(requestID, providerID, slot string) evaluator {
	return func(ctx context.Context) (*model.Request, model.Mutation, bool, error) {
		current, err := c.store.Get(ctx, requestID)
		if err != nil {
			return nil, model.Mutation{}, false, err
		}

		// A retry by the provider that already won is answered from state.
		if current.Status == model.StatusAccepted && current.ClaimedBy == providerID {
			if current.AcceptedTimeSlot == slot {
				return current, model.Mutation{}, true, nil
			}
			return nil, model.Mutation{}, false, fmt.Errorf("%w: already claimed by this provider for %s",
				requesterrors.ErrInvalidState, current.AcceptedTimeSlot)
		}

		mutation, err := lifecycle.Transition(current, lifecycle.Command{
			Event: lifecycle.EventClaim,
			Actor: providerID,
			Slot:  slot,
			Now:   c.now(),
		})
		if err != nil {
			return nil, model.Mutation{}, false, err
		}
		return current, mutation, false, nil
	}
}

func outcomeOf(err error) ClaimOutcome {
	switch {
	case errors.Is(err, requesterrors.ErrAlreadyTaken):
		return OutcomeAlreadyTaken
	case errors.Is(err, requesterrors.ErrExpired):
		return OutcomeExpired
	case errors.Is(err, requesterrors.ErrInvalidState):
		return OutcomeInvalidState
	case errors.Is(err, requesterrors.ErrNotFound), errors.Is(err, requesterrors.ErrInvalidID):
		return OutcomeNotFound
	case errors.Is(err, requesterrors.ErrConflict):
		return OutcomeConflict
	}
	return OutcomeFailed
}
