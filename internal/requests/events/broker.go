package events

import (
	"context"
	"sync"

	"openrequests/pkg/logger"
	"openrequests/pkg/model"
)

// Broker is an in-process, per-request pub/sub. Delivery never blocks the
// publisher: a subscriber whose buffer is full is dropped and its channel
// closed, and it is expected to re-read the request and resubscribe.
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]map[*subscription]struct{}
	bufferSize  int
	closed      bool
	log         *logger.Logger
}

type subscription struct {
	ch     chan model.RequestEvent
	closed bool
}

func NewBroker(bufferSize int, log *logger.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Broker{
		subscribers: make(map[string]map[*subscription]struct{}),
		bufferSize:  bufferSize,
		log:         log.Component("broker"),
	}
}

// Subscribe returns a channel of events for requestID and a function that
// cancels the subscription. The channel is closed after a terminal event,
// on cancel, or when the broker shuts down.
func (b *Broker) Subscribe(requestID string) (<-chan model.RequestEvent, func()) {
	sub := &subscription{ch: make(chan model.RequestEvent, b.bufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.subscribers[requestID] == nil {
		b.subscribers[requestID] = make(map[*subscription]struct{})
	}
	b.subscribers[requestID][sub] = struct{}{}

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.remove(requestID, sub)
		})
	}
}

func (b *Broker) Notify(_ context.Context, event model.RequestEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers[event.RequestID] {
		select {
		case sub.ch <- event:
		default:
			b.log.Warn("Dropping slow subscriber", "request_id", event.RequestID, "event", event.Type)
			b.remove(event.RequestID, sub)
		}
	}

	if event.IsTerminal() {
		for sub := range b.subscribers[event.RequestID] {
			b.remove(event.RequestID, sub)
		}
	}
	return nil
}

// Subscribers reports how many streams are attached to requestID.
func (b *Broker) Subscribers(requestID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[requestID])
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, subs := range b.subscribers {
		for sub := range subs {
			b.remove(id, sub)
		}
	}
}

// remove must be called with b.mu held.
func (b *Broker) remove(requestID string, sub *subscription) {
	subs := b.subscribers[requestID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subscribers, requestID)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
