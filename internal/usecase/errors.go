package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation indicates malformed input; ValidationError values unwrap to it.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the email is already registered.
	ErrConflict = errors.New("email already in use")
	// ErrInvalidOrExpired indicates a wrong, expired, consumed or unknown one-time code.
	// The cases are deliberately indistinguishable.
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	// ErrTooManyRequests indicates the code issuance window is exhausted.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrTooManyAttempts indicates a code entry is locked after repeated wrong guesses.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrAccountLocked indicates the login lock of the account is in force.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials indicates an unknown identifier or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or unacceptable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountDisabled indicates the account was disabled by an administrator.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrForbidden indicates the caller lacks the role required for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrPasswordReused indicates the new password matches the current or a recent one.
	ErrPasswordReused = errors.New("new password cannot match recent passwords")
	// ErrAccountNotFound indicates an administrative target does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSuperAdminProtected indicates super admin accounts cannot be disabled or re-roled.
	ErrSuperAdminProtected = errors.New("super admin account cannot be modified")
)

// ValidationError reports the first offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Rate limit scopes carried by RateLimitExceededError.
const (
	ScopeIdentityWindow = "otp_identity"
	ScopeOriginWindow   = "otp_origin"
	ScopeCodeAttempts   = "otp_attempts"
	ScopeLoginLock      = "login_lock"
)

// RateLimitExceededError is returned when a window or lock refuses the request.
// RetryAfter is zero when the remaining time is unknown.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// Unwrap maps the scope onto the taxonomy sentinel.
func (e *RateLimitExceededError) Unwrap() error {
	switch e.Scope {
	case ScopeCodeAttempts:
		return ErrTooManyAttempts
	case ScopeLoginLock:
		return ErrAccountLocked
	default:
		return ErrTooManyRequests
	}
}

func newRateLimitError(scope string, until, now time.Time) error {
	retryAfter := time.Duration(0)
	if until.After(now) {
		retryAfter = until.Sub(now)
	}
	return &RateLimitExceededError{Scope: scope, RetryAfter: retryAfter}
}
