package events

import (
	"context"
	"fmt"

	"openrequests/pkg/kafka"
	"openrequests/pkg/model"
)

const (
	EventSource   = "openrequests"
	SchemaVersion = "1"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier publishes every event to the events topic keyed by request
// id, so all events of one request land on one partition in order.
type KafkaNotifier struct {
	publisher Publisher
}

func NewKafkaNotifier(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event model.RequestEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.RequestID).
		WithValue(event).
		WithEventID(event.ID).
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(EventSource).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s message: %w", event.Type, err)
	}

	if err := n.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for request %s: %w", event.Type, event.RequestID, err)
	}
	return nil
}
