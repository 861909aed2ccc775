package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	e := New("EXT_001", "Could not extract", http.StatusUnprocessableEntity)
	assert.Equal(t, "[EXT_001] Could not extract", e.Error())

	wrapped := Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, errors.New("conn refused"))
	assert.Contains(t, wrapped.Error(), "conn refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	e := InternalError(fmt.Errorf("query: %w", inner))
	assert.True(t, errors.Is(e, inner))
}

func TestErrStaleState(t *testing.T) {
	e := ErrStaleState("approved", "executing")
	assert.Equal(t, "PIPE_001", e.Code)
	assert.Equal(t, http.StatusConflict, e.HTTPStatus)
	assert.Contains(t, e.Message, "approved")
	assert.Contains(t, e.Message, "executing")
}

func TestErrorCodeStatusMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   string
		status int
	}{
		{ErrExtractionFailed(nil), "EXT_001", http.StatusUnprocessableEntity},
		{ErrScoringUnavailable(nil), "EXT_002", http.StatusBadGateway},
		{ErrInvalidTransition("completed", "executing"), "PIPE_002", http.StatusUnprocessableEntity},
		{ErrNotFound("refund"), "PIPE_003", http.StatusNotFound},
		{ErrUnsupportedPlatform("paypal"), "PIPE_004", http.StatusUnprocessableEntity},
		{ErrInvalidCredentials(), "AUTH_001", http.StatusUnauthorized},
		{ErrUsernameExists(), "AUTH_002", http.StatusConflict},
		{ErrInvalidToken(), "AUTH_003", http.StatusUnauthorized},
		{ErrTenantSuspended(), "AUTH_004", http.StatusForbidden},
		{ErrRateLimitExceeded(), "RATE_001", http.StatusTooManyRequests},
		{ErrDatabaseError(nil), "SYS_001", http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code)
		assert.Equal(t, c.status, c.err.HTTPStatus)
	}
}
