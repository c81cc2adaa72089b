package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "request not found"},
			expected: "NOT_FOUND: request not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Internal("wrapped", originalErr)

	assert.Same(t, originalErr, errors.Unwrap(appErr))
	assert.ErrorIs(t, appErr, originalErr)
}

func TestLifecycleCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"invalid state", InvalidState("already gone"), CodeInvalidState, http.StatusConflict},
		{"already taken", AlreadyTaken("someone else got it"), CodeAlreadyTaken, http.StatusConflict},
		{"expired", Expired("request expired"), CodeExpired, http.StatusGone},
		{"forbidden", Forbidden("not the owner"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("retry later"), CodeConflict, http.StatusConflict},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"unavailable", Unavailable("Mongo"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Request", "12345")

	assert.Equal(t, CodeNotFound, err.Code)
	assert.Equal(t, "Request not found", err.Message)
	assert.Equal(t, "12345", err.Details["id"])
	assert.Equal(t, "Request", err.Details["resource"])
}

func TestValidation(t *testing.T) {
	err := Validation("validation failed", map[string]any{"field": "slot"})

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, "slot", err.Details["field"])
}

func TestHasCode_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("claim failed: %w", AlreadyTaken("taken"))

	assert.True(t, HasCode(wrapped, CodeAlreadyTaken))
	assert.False(t, HasCode(wrapped, CodeExpired))
	assert.False(t, HasCode(errors.New("plain"), CodeAlreadyTaken))
}

func TestAsAppError(t *testing.T) {
	appErr := NotFoundWithID("Request", "1")
	assert.Same(t, appErr, AsAppError(appErr))
	assert.Same(t, appErr, AsAppError(fmt.Errorf("ctx: %w", appErr)))

	regularErr := errors.New("regular error")
	result := AsAppError(regularErr)
	assert.Equal(t, CodeInternal, result.Code)
	assert.Same(t, regularErr, result.Err)
}

func TestAppError_ToJSON(t *testing.T) {
	data := Expired("Request has expired").ToJSON()
	require.NotEmpty(t, data)
	assert.Contains(t, string(data), CodeExpired)
	assert.Contains(t, string(data), "Request has expired")
}
