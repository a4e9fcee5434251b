// Package errors provides the application error type shared by services and
// handlers. Handlers render AppError code and message; the wrapped internal
// error is logged and never returned to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches another AppError by code so sentinels compare across Wrap calls.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Entity lookup errors.
var (
	ErrUserNotFound       = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrAccountNotFound    = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrConnectionNotFound = &AppError{Code: "CONNECTION_NOT_FOUND", Message: "Connection not found", StatusCode: http.StatusNotFound}
)

// Synchronization errors.
var (
	ErrQuoteFetchFailed      = &AppError{Code: "QUOTE_FETCH_FAILED", Message: "Failed to fetch quotes", StatusCode: http.StatusBadGateway}
	ErrConnectionSyncFailed  = &AppError{Code: "CONNECTION_SYNC_FAILED", Message: "Connection sync failed", StatusCode: http.StatusBadGateway}
	ErrFundPriceFetchFailed  = &AppError{Code: "FUND_PRICE_FETCH_FAILED", Message: "Failed to fetch fund prices", StatusCode: http.StatusBadGateway}
	ErrUnknownFundCode       = &AppError{Code: "UNKNOWN_FUND_CODE", Message: "Unknown retirement fund code", StatusCode: http.StatusUnprocessableEntity}
	ErrInvalidExclusionRules = &AppError{Code: "INVALID_EXCLUSION_RULES", Message: "Invalid symbol exclusion rules", StatusCode: http.StatusInternalServerError}
)
