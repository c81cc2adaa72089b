package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("request not found")

	ErrInvalidID = errors.New("invalid request ID format")

	ErrDuplicateID = errors.New("request ID already exists")

	// ErrVersionConflict is transient: the stored version moved between read and write.
	ErrVersionConflict = errors.New("request version conflict")

	ErrInvalidState = errors.New("event not allowed in current request state")

	ErrSlotNotOffered = fmt.Errorf("%w: time slot not offered by request", ErrInvalidState)

	ErrAlreadyTaken = errors.New("request already claimed by another provider")

	ErrExpired = errors.New("request has expired")

	ErrNotDue = errors.New("request deadline not reached")

	ErrForbidden = errors.New("actor not allowed to perform this action")

	// ErrConflict is surfaced once the bounded CAS retries are exhausted.
	ErrConflict = errors.New("request kept changing, retries exhausted")
)
