package errors

import (
	"errors"
	"fmt"
)

// Domain errors for the loyalty ledger
var (
	ErrValidation            = errors.New("validation failed")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrBusinessNotFound      = errors.New("business not found")
	ErrBusinessAlreadyExists = errors.New("business already exists")
	ErrVersionConflict       = errors.New("ledger was modified concurrently")
	ErrInvalidPIN            = errors.New("invalid pin")
	ErrNotificationFailed    = errors.New("notification failed")
)

// ValidationError rejects a request before any ledger state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientPaymentError is returned when the cash tendered does not cover
// the amount payable.
type InsufficientPaymentError struct {
	CashGiven   float64
	CashPayable float64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: given %v, payable %v", e.CashGiven, e.CashPayable)
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrValidation }

// CustomerNotFoundError means the caller's view of the collection is stale.
type CustomerNotFoundError struct {
	Mobile string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer %s not found", e.Mobile)
}

func (e *CustomerNotFoundError) Unwrap() error { return ErrCustomerNotFound }

// NotificationFailure wraps a failed or rejected notifier call.
type NotificationFailure struct {
	Destination string
	Reason      string
	Err         error
}

func (e *NotificationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify %s: %v", e.Destination, e.Err)
	}
	return fmt.Sprintf("notify %s: %s", e.Destination, e.Reason)
}

func (e *NotificationFailure) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotificationFailed, e.Err}
	}
	return []error{ErrNotificationFailed}
}
