package service

import (
	"errors"
	"time"
)

type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindAuth        ErrorKind = "unauthorized"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindRateLimited ErrorKind = "rate_limited"
	KindInternal    ErrorKind = "internal"
)

// AppError is an expected failure that the transport layer can render.
// Anything that is not an AppError is treated as internal.
type AppError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on Code so wrapped copies still compare equal to the sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) withCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func newValidationError(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

var (
	ErrInvalidCredentials = &AppError{Kind: KindAuth, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrInvalidToken       = &AppError{Kind: KindAuth, Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrForbidden          = &AppError{Kind: KindForbidden, Code: "FORBIDDEN", Message: "insufficient role"}
	ErrAccountNotFound    = &AppError{Kind: KindNotFound, Code: "ACCOUNT_NOT_FOUND", Message: "account not found"}
	ErrSessionNotFound    = &AppError{Kind: KindNotFound, Code: "SESSION_NOT_FOUND", Message: "session not found"}
	ErrConflict           = &AppError{Kind: KindConflict, Code: "CONFLICT", Message: "record conflicts with existing data"}
	ErrTooManyAttempts    = &AppError{Kind: KindRateLimited, Code: "TOO_MANY_ATTEMPTS", Message: "too many failed attempts, retry later"}

	ErrInvalidOTP      = newValidationError("INVALID_OTP", "invalid or expired OTP")
	ErrEmailTaken      = newValidationError("EMAIL_TAKEN", "email already registered")
	ErrInvalidEmail    = newValidationError("INVALID_EMAIL", "invalid email address")
	ErrInvalidRole     = newValidationError("INVALID_ROLE", "unknown role")
	ErrInvalidName     = newValidationError("INVALID_NAME", "name is required")
	ErrWeakPassword    = newValidationError("WEAK_PASSWORD", "password must be 8-72 chars and include upper, lower, number, and special character")
	ErrSamePassword    = newValidationError("SAME_PASSWORD", "new password must differ from current password")
	ErrMissingContact  = newValidationError("MISSING_CONTACT", "email or phone is required")
	ErrInvalidIdentity = newValidationError("INVALID_IDENTITY", "invalid identifier")
)

func cooldownError(retryAfter time.Duration) *AppError {
	cp := *ErrTooManyAttempts
	cp.RetryAfter = retryAfter
	return &cp
}

// KindOf reports the kind of err, KindInternal when it is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
