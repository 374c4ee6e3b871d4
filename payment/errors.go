/*
errors.go - Payment error taxonomy

Mirrors lease/errors.go: sentinels for errors.Is classification plus
structured types that Unwrap to them. GenerationFailure is the one
recoverable class - the orchestrator logs it and lets the parent lease
operation stand.
*/
package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a payment id does not resolve.
	ErrNotFound = errors.New("payment not found")

	// ErrAccessDenied is returned when the requester lacks a tenant,
	// landlord, or admin relationship to the payment.
	ErrAccessDenied = errors.New("payment access denied")

	// ErrInvalidState is returned when a transition is attempted from a
	// status that forbids it, e.g. confirming a payment still PENDING.
	ErrInvalidState = errors.New("invalid payment state")

	// ErrGenerationFailure wraps a schedule persistence error. Recoverable:
	// the lease stands and the schedule can be regenerated.
	ErrGenerationFailure = errors.New("payment generation failed")
)

// AccessDeniedError identifies who was refused access to which payment.
type AccessDeniedError struct {
	PaymentID string
	UserID    string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user %s does not have access to payment %s", e.UserID, e.PaymentID)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// InvalidStateError records the status that blocked a transition.
type InvalidStateError struct {
	PaymentID string
	Status    Status
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s payment %s in status %s", e.Operation, e.PaymentID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// GenerationError carries the lease whose schedule could not be persisted.
type GenerationError struct {
	LeaseID string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate payments for lease %s: %v", e.LeaseID, e.Err)
}

func (e *GenerationError) Unwrap() error { return ErrGenerationFailure }

// IsClientError reports whether the error is the caller's fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInvalidState)
}
