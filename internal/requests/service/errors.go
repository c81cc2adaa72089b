package service

import (
	"errors"

	requesterrors "openrequests/internal/requests/errors"
	apperrors "openrequests/pkg/errors"
)

// toAppError maps store and lifecycle sentinels onto the API error codes.
func toAppError(err error, id string, action string) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, requesterrors.ErrNotFound):
		return apperrors.NotFoundWithID("Request", id)
	case errors.Is(err, requesterrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid request ID format")
	case errors.Is(err, requesterrors.ErrAlreadyTaken):
		return apperrors.AlreadyTaken("Request was already claimed by another provider")
	case errors.Is(err, requesterrors.ErrExpired):
		return apperrors.Expired("Request has expired")
	case errors.Is(err, requesterrors.ErrForbidden):
		return apperrors.Forbidden("Not allowed to " + action + " this request")
	case errors.Is(err, requesterrors.ErrInvalidState):
		return apperrors.InvalidState(err.Error())
	case errors.Is(err, requesterrors.ErrConflict), errors.Is(err, requesterrors.ErrVersionConflict):
		return apperrors.Conflict("Request changed concurrently, please retry")
	}
	return apperrors.Internal("Failed to "+action+" request", err)
}
