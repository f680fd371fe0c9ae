package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Sentinel errors for the credential/session subsystem. Handlers map these to
// transport responses; services return them as typed outcomes, never as
// opaque wrapped failures.
var (
	// ErrInvalidCredential covers bad signatures, malformed tokens, wrong
	// token kinds, and tokens referencing accounts that no longer exist.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrCredentialExpired is recoverable by re-authenticating.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrReuseDetected signals that an already-rotated refresh token was
	// presented again. All sessions for the account have been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrQuotaExceeded is returned by the admission controller when the
	// tier request budget for the current window is spent.
	ErrQuotaExceeded = errors.New("request quota exceeded")

	// ErrStorageUnavailable marks transient credential-store failures.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	// RetryAfter is set on quota rejections so the handler can emit a
	// Retry-After header.
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidCredential creates a 401 error for bad or malformed credentials.
func InvalidCredential(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIAL",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredential,
	}
}

// CredentialExpired creates a 401 error for expired credentials.
func CredentialExpired(message string) *AppError {
	return &AppError{
		Code:    "CREDENTIAL_EXPIRED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrCredentialExpired,
	}
}

// ReuseDetected creates a 401 error with a distinct code so clients can
// force a full re-login across devices.
func ReuseDetected() *AppError {
	return &AppError{
		Code:    "REUSE_DETECTED",
		Message: "refresh token reuse detected; all sessions have been revoked",
		Status:  http.StatusUnauthorized,
		Err:     ErrReuseDetected,
	}
}

// QuotaExceeded creates a 429 error carrying a retry hint.
func QuotaExceeded(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       "QUOTA_EXCEEDED",
		Message:    "too many requests for the current tier",
		Status:     http.StatusTooManyRequests,
		Err:        ErrQuotaExceeded,
		RetryAfter: retryAfter,
	}
}

// StorageUnavailable creates a 503 error for transient store failures.
func StorageUnavailable(err error) *AppError {
	return &AppError{
		Code:    "STORAGE_UNAVAILABLE",
		Message: "session storage is temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %v", ErrStorageUnavailable, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrCredentialExpired), errors.Is(err, ErrReuseDetected):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
