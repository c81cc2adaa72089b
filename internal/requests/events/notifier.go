// Package events fans request state changes out to subscribers: an in-process
// broker backing the SSE stream and a Kafka publisher for other consumers.
package events

import (
	"context"
	"errors"

	"openrequests/pkg/model"

	"github.com/google/uuid"
)

// Notifier is told about every committed state change. It is called after the
// CAS succeeded, so a failing notifier never undoes a transition.
type Notifier interface {
	Notify(ctx context.Context, event model.RequestEvent) error
}

type NotifierFunc func(ctx context.Context, event model.RequestEvent) error

func (f NotifierFunc) Notify(ctx context.Context, event model.RequestEvent) error {
	return f(ctx, event)
}

// Fanout delivers each event to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, event model.RequestEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
var Nop Notifier = NotifierFunc(func(context.Context, model.RequestEvent) error { return nil })

// FromRequest builds the event describing r's current state.
func FromRequest(eventType model.EventType, r *model.Request) model.RequestEvent {
	return model.RequestEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		RequestID:  r.ID,
		PatientID:  r.PatientID,
		Status:     r.Status,
		ClaimedBy:  r.ClaimedBy,
		Slot:       r.AcceptedTimeSlot,
		Version:    r.Version,
		OccurredAt: r.UpdatedAt,
	}
}

// TypeFor maps a status reached by a transition to the event announcing it.
func TypeFor(status model.RequestStatus) model.EventType {
	switch status {
	case model.StatusSearching:
		return model.EventBroadcast
	case model.StatusAccepted:
		return model.EventAccepted
	case model.StatusCancelled:
		return model.EventCancelled
	case model.StatusExpired:
		return model.EventExpired
	case model.StatusCompleted:
		return model.EventCompleted
	default:
		return model.EventCreated
	}
}
