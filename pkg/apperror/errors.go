package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Extraction & Scoring (EXT) ----

func ErrExtractionFailed(err error) *AppError {
	return Wrap("EXT_001", "Could not extract order id and amount from message", http.StatusUnprocessableEntity, err)
}

func ErrScoringUnavailable(err error) *AppError {
	return Wrap("EXT_002", "Fraud scoring unavailable", http.StatusBadGateway, err)
}

// ---- Pipeline & Ledger (PIPE) ----

func ErrStaleState(expected, actual string) *AppError {
	return New("PIPE_001",
		fmt.Sprintf("Refund state changed concurrently (expected %s, found %s); re-fetch and retry", expected, actual),
		http.StatusConflict)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("PIPE_002", fmt.Sprintf("Illegal status transition %s -> %s", from, to), http.StatusUnprocessableEntity)
}

func ErrNotFound(entity string) *AppError {
	return New("PIPE_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrUnsupportedPlatform(platform string) *AppError {
	return New("PIPE_004", fmt.Sprintf("Tenant has no credentials for requested platform %q", platform), http.StatusUnprocessableEntity)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrTenantSuspended() *AppError {
	return New("AUTH_004", "Tenant account is suspended", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
