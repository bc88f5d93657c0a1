package app

import (
	"errors"
	"fmt"
)

var (
	ErrLoanNotPending          = errors.New("loan is not pending")
	ErrLoanNotActive           = errors.New("loan is not active")
	ErrLoanOutstandingBalance  = errors.New("loan still has an outstanding balance")
	ErrNoVerificationCode      = errors.New("no verification code found")
	ErrVerificationCodeExpired = errors.New("verification code has expired")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrEmailInUse              = errors.New("email address is already in use")
	ErrUnknownEnrollmentStep   = errors.New("unknown enrollment step")
	ErrMFAAlreadyEnabled       = errors.New("mfa is already enabled")
	ErrMFANotEnabled           = errors.New("mfa is not enabled")
	ErrInvalidMFACode          = errors.New("invalid mfa code")
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrInvalidLoanStatusFilter = errors.New("invalid loan status filter")
)

// ValidationError is a client input problem. Message is safe to show to users.
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

// RateLimitError means the caller exhausted a window budget.
type RateLimitError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s; retry after %ds", e.Scope, e.RetryAfterSeconds)
}

// EnrollmentValidationError reports the first failing wizard step at submission.
type EnrollmentValidationError struct {
	Step   int
	Errors map[string]string
}

func (e *EnrollmentValidationError) Error() string {
	return fmt.Sprintf("enrollment step %d is invalid", e.Step)
}
