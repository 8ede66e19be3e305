package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeCsrfOrExpired indicates the callback state did not match the stored flow,
	// or the flow outlived its TTL.
	ErrCodeCsrfOrExpired ErrorCode = "csrf_or_expired"
	// ErrCodeNoActiveFlow indicates there is no login in progress for this browser.
	ErrCodeNoActiveFlow ErrorCode = "no_active_flow"
	// ErrCodeProviderRejected indicates the identity provider returned an error payload.
	ErrCodeProviderRejected ErrorCode = "provider_rejected"
	// ErrCodeProviderUnreachable indicates the token endpoint could not be reached in time.
	ErrCodeProviderUnreachable ErrorCode = "provider_unreachable"
	// ErrCodeNotAuthenticated indicates there is no live session.
	ErrCodeNotAuthenticated ErrorCode = "not_authenticated"
	// ErrCodeNotConfigured indicates a required server-side dependency (e.g. signing secret) is missing.
	ErrCodeNotConfigured ErrorCode = "not_configured"
)

// ProviderDetail carries the provider's error payload. It never includes secrets or tokens.
type ProviderDetail struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Provider is set for ErrCodeProviderRejected.
	Provider *ProviderDetail
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// CsrfOrExpired creates a state-mismatch/expired-flow error.
func CsrfOrExpired(message string) *AppError {
	return &AppError{Code: ErrCodeCsrfOrExpired, Message: message}
}

// NoActiveFlow creates a missing-flow error.
func NoActiveFlow(message string) *AppError {
	return &AppError{Code: ErrCodeNoActiveFlow, Message: message}
}

// ProviderRejected creates an error carrying the provider's error payload.
func ProviderRejected(code, description string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeProviderRejected,
		Message:  "identity provider rejected the request",
		Cause:    cause,
		Provider: &ProviderDetail{Code: code, Description: description},
	}
}

// ProviderUnreachable wraps a transport or timeout failure talking to the provider.
func ProviderUnreachable(cause error) *AppError {
	return &AppError{Code: ErrCodeProviderUnreachable, Message: "identity provider unreachable", Cause: cause}
}

// NotAuthenticated creates a missing-session error.
func NotAuthenticated(message string) *AppError {
	return &AppError{Code: ErrCodeNotAuthenticated, Message: message}
}

// NotConfigured creates a missing-dependency error.
func NotConfigured(message string) *AppError {
	return &AppError{Code: ErrCodeNotConfigured, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }

// IsCsrfOrExpired checks if an error is a CsrfOrExpired error.
func IsCsrfOrExpired(err error) bool { return isCode(err, ErrCodeCsrfOrExpired) }

// IsNoActiveFlow checks if an error is a NoActiveFlow error.
func IsNoActiveFlow(err error) bool { return isCode(err, ErrCodeNoActiveFlow) }

// IsProviderRejected checks if an error is a ProviderRejected error.
func IsProviderRejected(err error) bool { return isCode(err, ErrCodeProviderRejected) }

// IsProviderUnreachable checks if an error is a ProviderUnreachable error.
func IsProviderUnreachable(err error) bool { return isCode(err, ErrCodeProviderUnreachable) }

// IsNotAuthenticated checks if an error is a NotAuthenticated error.
func IsNotAuthenticated(err error) bool { return isCode(err, ErrCodeNotAuthenticated) }

// IsNotConfigured checks if an error is a NotConfigured error.
func IsNotConfigured(err error) bool { return isCode(err, ErrCodeNotConfigured) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetProviderDetail returns the provider payload attached to err, if any.
func GetProviderDetail(err error) *ProviderDetail {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Provider
	}
	return nil
}
