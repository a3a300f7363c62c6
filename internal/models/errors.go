package models

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound         = errors.New("booking not found")
	ErrCarNotFound             = errors.New("car not found")
	ErrAccountNotFound         = errors.New("account not found")
	ErrHostNotFound            = errors.New("host not found")
	ErrBankAccountNotFound     = errors.New("bank account not found")
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrSlotUnavailable         = errors.New("car is already booked for the selected time slot")
	ErrCarUnavailable          = errors.New("car is not available for booking")
	ErrInvalidStateCombination = errors.New("invalid booking status and payment status combination")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrNoPrimaryBankAccount    = errors.New("no primary bank account on file")
)

// GuardError reports a transition whose precondition did not hold.
// Nothing was changed when it is returned.
type GuardError struct {
	Operation string
	Reason    string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s not allowed: %s", e.Operation, e.Reason)
}

// NewGuardError creates a guard failure for the named operation
func NewGuardError(operation, reason string) *GuardError {
	return &GuardError{Operation: operation, Reason: reason}
}

// ValidationError reports malformed caller input
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

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IntegrityError reports a request that must not be trusted: a bad payment
// signature, an unknown order or an actor acting on someone else's booking.
type IntegrityError struct {
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

var (
	ErrSignatureMismatch = &IntegrityError{Reason: "payment signature verification failed"}
	ErrForbidden         = &IntegrityError{Reason: "actor is not permitted to act on this resource"}
	ErrUnknownOrder      = &IntegrityError{Reason: "no booking matches the payment order"}
)

// IsGuardError reports whether err is a guard failure
func IsGuardError(err error) bool {
	var g *GuardError
	return errors.As(err, &g)
}

// IsValidationError reports whether err is a validation failure
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsIntegrityError reports whether err is an integrity failure
func IsIntegrityError(err error) bool {
	var i *IntegrityError
	return errors.As(err, &i)
}
