package model

import "time"

type EventType string

const (
	EventCreated   EventType = "request.created"
	EventBroadcast EventType = "request.broadcast"
	EventAccepted  EventType = "request.accepted"
	EventCancelled EventType = "request.cancelled"
	EventExpired   EventType = "request.expired"
	EventCompleted EventType = "request.completed"
)

// RequestEvent describes one state change of a request, pushed to the owning
// patient and to the providers that were shown the request.
type RequestEvent struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	RequestID  string        `json:"request_id"`
	PatientID  string        `json:"patient_id"`
	Status     RequestStatus `json:"status"`
	ClaimedBy  string        `json:"claimed_by,omitempty"`
	Slot       string        `json:"slot,omitempty"`
	Version    int64         `json:"version"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func (e RequestEvent) IsTerminal() bool {
	return e.Status.IsTerminal()
}
