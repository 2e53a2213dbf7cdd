package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnauthenticated        ErrorCode = "UNAUTHENTICATED"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeConflict               ErrorCode = "CONFLICT"
	ErrCodeGatewayUnavailable     ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodePaymentNotCompleted    ErrorCode = "PAYMENT_NOT_COMPLETED"
	ErrCodeRefundFailed           ErrorCode = "REFUND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches domain errors by code and message so that sentinel values survive wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrUserNotFound           = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound           = NewError(ErrCodeNotFound, "task not found")
	ErrIntentNotFound         = NewError(ErrCodeNotFound, "payment intent not found")
	ErrIdempotencyKeyNotFound = NewError(ErrCodeNotFound, "idempotency key not found")
	ErrUnauthenticated        = NewError(ErrCodeUnauthenticated, "authentication required")
	ErrInvalidCredentials     = NewError(ErrCodeUnauthenticated, "invalid credentials")
	ErrNotOwner               = NewError(ErrCodeUnauthorized, "task belongs to another user")
	ErrInvalidPayload         = NewError(ErrCodeValidation, "invalid payload")
	ErrEmailTaken             = NewError(ErrCodeConflict, "user already exists")
	ErrDuplicateIntent        = NewError(ErrCodeConflict, "payment intent already bound to a task")
	ErrConcurrentModification = NewError(ErrCodeConcurrentModification, "task was modified concurrently")
	ErrPaymentNotCompleted    = NewError(ErrCodePaymentNotCompleted, "payment not completed")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first domain error in the chain, or INTERNAL.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeInternal
}

// ValidationError reports bad input shape or values.
func ValidationError(message string) *Error {
	return NewError(ErrCodeValidation, message)
}

// GatewayUnavailable classifies a failed or timed out call to the payment authority.
func GatewayUnavailable(op string, err error) *Error {
	return WrapError(ErrCodeGatewayUnavailable, "payment gateway unavailable during "+op, err)
}
