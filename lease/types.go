/*
Package lease defines the lease aggregate and its state machine vocabulary.

PURPOSE:
  A lease binds one tenant, one landlord, and one property for a bounded
  date range with rent/deposit terms. This package holds the model, the
  status enum, date validation, and the lifecycle predicates used by the
  orchestrator and the sweeps. It has no persistence or transport concerns.

STATE MACHINE:
  ACTIVE -> EXPIRED     (expiration sweep, end date passed)
  ACTIVE -> TERMINATED  (explicit early termination)
  ACTIVE | EXPIRED -> ACTIVE  (renewal extends the end date)

  DRAFT and RENEWED are declared for forward compatibility and never
  produced by current flows.

DESIGN PRINCIPLES:
  1. Money uses decimal.Decimal, never float64.
  2. All dates are day-granular midnight UTC (see dates package).
  3. Leases are never physically deleted; state transitions only.

SEE ALSO:
  - errors.go: lease error taxonomy
  - payment: payment schedules generated from a lease
  - lifecycle: operations that mutate leases
*/
package lease

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
)

// Status is the lifecycle state of a lease.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusExpired    Status = "EXPIRED"
	StatusTerminated Status = "TERMINATED"
	StatusRenewed    Status = "RENEWED" // reserved, unused by current flows
	StatusDraft      Status = "DRAFT"   // reserved, unused by current flows
)

// Valid reports whether s is a declared status value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusTerminated, StatusRenewed, StatusDraft:
		return true
	}
	return false
}

// DefaultNoticeDays is the early-termination notice period applied when a
// lease is created without an explicit one.
const DefaultNoticeDays = 30

// Lease is a time-bounded rental agreement.
type Lease struct {
	ID            string
	PropertyID    string
	TenantID      string
	LandlordID    string
	ApplicationID string // empty for manually created leases

	StartDate time.Time
	EndDate   time.Time

	MonthlyRent     decimal.Decimal
	SecurityDeposit decimal.Decimal

	Status            Status
	NumberOfOccupants int
	SpecialTerms      string
	AutoRenew         bool
	NoticeDays        int // minimum days between a termination request and its effective date

	TerminationDate   *time.Time // set only when Status is TERMINATED
	TerminationReason string

	SignedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateDates checks the strict start < end invariant.
func ValidateDates(start, end time.Time) error {
	if !dates.Before(start, end) {
		return &InvalidDateError{Start: start, End: end, Reason: "lease start date must be before end date"}
	}
	return nil
}

// IsActive reports whether the lease is currently in force.
func (l *Lease) IsActive() bool {
	return l.Status == StatusActive
}

// IsExpired reports whether the lease has run out, either by recorded state
// or because its end date is in the past while the sweep has not caught up.
func (l *Lease) IsExpired(today time.Time) bool {
	return l.Status == StatusExpired ||
		(l.Status == StatusActive && dates.After(today, l.EndDate))
}

// DaysRemaining returns days until the end date; negative once past it.
func (l *Lease) DaysRemaining(today time.Time) int {
	return dates.DaysBetween(today, l.EndDate)
}

// DurationInMonths returns the whole calendar months covered by the lease.
func (l *Lease) DurationInMonths() int {
	months := 0
	cursor := l.StartDate
	for !dates.After(dates.AddMonths(cursor, 1), l.EndDate) {
		cursor = dates.AddMonths(cursor, 1)
		months++
	}
	return months
}

// IsExpiringSoon reports whether the lease ends within daysAhead days.
func (l *Lease) IsExpiringSoon(today time.Time, daysAhead int) bool {
	remaining := l.DaysRemaining(today)
	return remaining > 0 && remaining <= daysAhead
}

// CanBeTerminated reports whether an early termination is allowed.
func (l *Lease) CanBeTerminated() bool {
	return l.Status == StatusActive
}

// CanBeRenewed reports whether a renewal is allowed. Expired leases may be
// renewed to let a landlord regularize a holdover tenant.
func (l *Lease) CanBeRenewed() bool {
	return l.Status == StatusActive || l.Status == StatusExpired
}

// CanBeUpdated reports whether lease terms may still be edited.
func (l *Lease) CanBeUpdated() bool {
	return l.Status == StatusActive
}
