package usecase

import "errors"

// Validation errors (client input)
var (
	ErrValidation     = errors.New("validation failed")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Credential lifecycle errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrCodeExpired        = errors.New("code expired")
	ErrCodeMismatch       = errors.New("invalid code")
	ErrNoResetInFlight    = errors.New("no password reset in progress")
	ErrTooManyAttempts    = errors.New("too many attempts, try again later")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

// Subscription errors
var (
	ErrAlreadySubscribed = errors.New("subscription already active or pending")
	ErrMissingReference  = errors.New("missing subscription reference")
	ErrReferenceMismatch = errors.New("subscription reference does not match the current attempt")
	ErrProvider          = errors.New("payment provider error")
)
