package events

import (
	"context"

	"openrequests/pkg/kafka"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"
)

// Relay feeds events read from the events topic into a local notifier,
// normally the SSE broker. Every instance runs its own consumer group so a
// change committed on one instance reaches streams held by all of them.
// Events this instance published itself arrive twice; streams skip versions
// they already sent.
type Relay struct {
	target Notifier
	log    *logger.Logger
}

func NewRelay(target Notifier, log *logger.Logger) *Relay {
	return &Relay{
		target: target,
		log:    log.Component("relay"),
	}
}

// Handle is a kafka.MessageHandler.
func (r *Relay) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.RequestEvent
	if err := msg.DecodeValue(&event); err != nil {
		return err
	}
	if event.RequestID == "" || event.Version <= 0 {
		return kafka.NewBusinessError("event without request id or version", nil)
	}

	if err := r.target.Notify(ctx, event); err != nil {
		return kafka.NewTransientError("relay failed", err)
	}
	r.log.Debug("Event relayed", "request_id", event.RequestID, "event", event.Type, "version", event.Version)
	return nil
}
