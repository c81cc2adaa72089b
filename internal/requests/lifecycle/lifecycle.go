// Package lifecycle holds the legal state transitions of an open request.
// It is pure: it inspects a snapshot and returns the mutation to write, and
// the caller persists that mutation through a version-gated compare-and-swap.
package lifecycle

import (
	"fmt"
	"time"

	requesterrors "openrequests/internal/requests/errors"
	"openrequests/pkg/model"
)

type Event string

const (
	EventBroadcast Event = "broadcast"
	EventClaim     Event = "claim"
	EventCancel    Event = "cancel"
	EventExpire    Event = "expire"
	EventComplete  Event = "complete"
)

// Command is one lifecycle event together with its actor and the clock it is evaluated against.
type Command struct {
	Event Event
	Actor string
	Slot  string
	Now   time.Time
}

var transitions = map[model.RequestStatus]map[Event]model.RequestStatus{
	model.StatusSent: {
		EventBroadcast: model.StatusSearching,
		EventCancel:    model.StatusCancelled,
		EventExpire:    model.StatusExpired,
	},
	model.StatusSearching: {
		EventClaim:  model.StatusAccepted,
		EventCancel: model.StatusCancelled,
		EventExpire: model.StatusExpired,
	},
	model.StatusAccepted: {
		EventComplete: model.StatusCompleted,
	},
}

// Next returns the target status of event from status, if the table has a row for it.
func Next(from model.RequestStatus, event Event) (model.RequestStatus, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// Transition validates cmd against r and returns the mutation to persist.
// A rejected command never yields a mutation.
func Transition(r *model.Request, cmd Command) (model.Mutation, error) {
	to, ok := Next(r.Status, cmd.Event)
	if !ok {
		return model.Mutation{}, rejection(r, cmd)
	}

	switch cmd.Event {
	case EventClaim:
		if !cmd.Now.Before(r.ExpiresAt) {
			return model.Mutation{}, requesterrors.ErrExpired
		}
		if !r.OffersSlot(cmd.Slot) {
			return model.Mutation{}, fmt.Errorf("%w: %q", requesterrors.ErrSlotNotOffered, cmd.Slot)
		}
		return model.Mutation{
			Status:           to,
			ClaimedBy:        cmd.Actor,
			AcceptedTimeSlot: cmd.Slot,
		}, nil

	case EventCancel:
		if cmd.Actor != r.PatientID {
			return model.Mutation{}, requesterrors.ErrForbidden
		}
		return model.Mutation{Status: to}, nil

	case EventExpire:
		if cmd.Now.Before(r.ExpiresAt) {
			return model.Mutation{}, requesterrors.ErrNotDue
		}
		return model.Mutation{Status: to}, nil

	case EventComplete:
		if cmd.Actor != r.ClaimedBy {
			return model.Mutation{}, requesterrors.ErrForbidden
		}
		completedAt := cmd.Now.UTC()
		return model.Mutation{Status: to, CompletedAt: &completedAt}, nil
	}

	return model.Mutation{Status: to}, nil
}

// rejection picks the error for a command with no matching row, so callers can
// tell "someone else got it" and "it expired" apart from a plain illegal event.
func rejection(r *model.Request, cmd Command) error {
	switch cmd.Event {
	case EventClaim:
		switch r.Status {
		case model.StatusExpired:
			return requesterrors.ErrExpired
		case model.StatusAccepted, model.StatusCompleted:
			if r.ClaimedBy != cmd.Actor {
				return requesterrors.ErrAlreadyTaken
			}
		}
	case EventCancel:
		if cmd.Actor != r.PatientID {
			return requesterrors.ErrForbidden
		}
	}
	return fmt.Errorf("%w: %s from %s", requesterrors.ErrInvalidState, cmd.Event, r.Status)
}
