package model

import (
	"slices"
	"time"
)

type RequestStatus string

const (
	StatusSent      RequestStatus = "sent"
	StatusSearching RequestStatus = "searching"
	StatusAccepted  RequestStatus = "accepted"
	StatusCancelled RequestStatus = "cancelled"
	StatusExpired   RequestStatus = "expired"
	StatusCompleted RequestStatus = "completed"
)

// Accepted still allows the completion step, which never reopens the request.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusCancelled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

func (s RequestStatus) IsActive() bool {
	return s == StatusSent || s == StatusSearching
}

// Request is an open service request broadcast by a patient to nearby providers.
// Payload fields are immutable after creation; only the lifecycle fields move,
// and only through a version-gated compare-and-swap.
type Request struct {
	ID                 string        `json:"id" bson:"_id"`
	PatientID          string        `json:"patient_id" bson:"patient_id"`
	SessionType        string        `json:"session_type" bson:"session_type"`
	PreferredTimeSlots []string      `json:"preferred_time_slots" bson:"preferred_time_slots"`
	Location           string        `json:"location" bson:"location"`
	Notes              string        `json:"notes,omitempty" bson:"notes,omitempty"`
	Status             RequestStatus `json:"status" bson:"status"`
	ClaimedBy          string        `json:"claimed_by,omitempty" bson:"claimed_by,omitempty"`
	AcceptedTimeSlot   string        `json:"accepted_time_slot,omitempty" bson:"accepted_time_slot,omitempty"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	ExpiresAt          time.Time     `json:"expires_at" bson:"expires_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Version            int64         `json:"version" bson:"version"`
}

func (r *Request) OffersSlot(slot string) bool {
	return slices.Contains(r.PreferredTimeSlots, slot)
}

// Clone returns a deep copy so callers never share slices with the store.
func (r *Request) Clone() *Request {
	c := *r
	c.PreferredTimeSlots = slices.Clone(r.PreferredTimeSlots)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Mutation is the set of lifecycle fields a single CAS write may change.
type Mutation struct {
	Status           RequestStatus
	ClaimedBy        string
	AcceptedTimeSlot string
	CompletedAt      *time.Time
}

// Apply returns the post-state of r with m applied. Version and UpdatedAt are
// owned by the store and left untouched.
func (m Mutation) Apply(r *Request) *Request {
	next := r.Clone()
	next.Status = m.Status
	if m.ClaimedBy != "" {
		next.ClaimedBy = m.ClaimedBy
		next.AcceptedTimeSlot = m.AcceptedTimeSlot
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		next.CompletedAt = &t
	}
	return next
}

type CreateRequestInput struct {
	PatientID          string   `json:"patient_id" validate:"required,min=1,max=128"`
	SessionType        string   `json:"session_type" validate:"required,min=2,max=100"`
	PreferredTimeSlots []string `json:"preferred_time_slots" validate:"required,min=1,max=24,unique,dive,required,max=64"`
	Location           string   `json:"location" validate:"required,min=2,max=200"`
	Notes              string   `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

type ClaimInput struct {
	ProviderID string `json:"provider_id" validate:"required,min=1,max=128"`
	Slot       string `json:"slot" validate:"required,max=64"`
}

type CancelInput struct {
	PatientID string `json:"patient_id" validate:"required,min=1,max=128"`
}

type CompleteInput struct {
	ProviderID string `json:"provider_id" validate:"required,min=1,max=128"`
}
