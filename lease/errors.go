/*
errors.go - Lease error taxonomy

PURPOSE:
  All lease-facing error types in one place. Sentinels support errors.Is
  classification at the API boundary; the structured types carry the
  context a client message needs and Unwrap to their sentinel.

ERROR CLASSES:
  ErrNotFound      lease absent
  ErrAccessDenied  requester is not the lease's tenant/landlord/admin
  ErrInvalidState  operation not allowed from the current status
  ErrInvalidDate   date ordering or notice-period violation
  ErrAlreadyExists duplicate lease for an application, or property already
                   under an active lease

SEE ALSO:
  - payment/errors.go: the payment-side taxonomy
  - api/handlers.go: maps these to HTTP status codes
*/
package lease

import (
	"errors"
	"fmt"
	"time"

	"github.com/lodgia/lease-engine/dates"
)

var (
	// ErrNotFound is returned when a lease id does not resolve.
	ErrNotFound = errors.New("lease not found")

	// ErrAccessDenied is returned when the requester lacks a tenant,
	// landlord, or admin relationship to the lease.
	ErrAccessDenied = errors.New("lease access denied")

	// ErrInvalidState is returned when an operation is attempted from a
	// status that forbids it.
	ErrInvalidState = errors.New("invalid lease state")

	// ErrInvalidDate is returned for date ordering or notice-period
	// violations.
	ErrInvalidDate = errors.New("invalid lease date")

	// ErrAlreadyExists is returned when a lease already exists for an
	// application, or the property already has an active lease.
	ErrAlreadyExists = errors.New("lease already exists")
)

// AccessDeniedError identifies who was refused access to which lease.
type AccessDeniedError struct {
	LeaseID string
	UserID  string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user %s does not have access to lease %s", e.UserID, e.LeaseID)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// InvalidStateError records the status that blocked an operation.
type InvalidStateError struct {
	LeaseID   string
	Status    Status
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s lease %s in status %s", e.Operation, e.LeaseID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// InvalidDateError describes a date validation failure. Either Reason is
// set, or Start/End carry the offending pair.
type InvalidDateError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidDateError) Error() string {
	if e.Reason != "" && e.Start.IsZero() {
		return e.Reason
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s (start=%s end=%s)", e.Reason, dates.Format(e.Start), dates.Format(e.End))
	}
	return fmt.Sprintf("invalid lease dates: start=%s end=%s", dates.Format(e.Start), dates.Format(e.End))
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// AlreadyExistsError pinpoints the duplicate: an application that already
// produced a lease, or a property already under an active lease.
type AlreadyExistsError struct {
	ApplicationID string
	PropertyID    string
}

func (e *AlreadyExistsError) Error() string {
	if e.ApplicationID != "" {
		return fmt.Sprintf("a lease already exists for application %s", e.ApplicationID)
	}
	return fmt.Sprintf("property %s already has an active lease", e.PropertyID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// IsClientError reports whether the error is the caller's fault, as opposed
// to a storage or infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrAlreadyExists)
}
