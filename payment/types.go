/*
Package payment defines scheduled payment obligations and their state machine.

PURPOSE:
  A payment is a single monetary obligation tied to a lease: the security
  deposit or one month's rent. This package holds the model, the status and
  type enums, the lifecycle predicates, the late-fee policy, and the pure
  schedule generator. No persistence or transport concerns live here.

STATE MACHINE:
  PENDING -> PAID       (tenant settles)
  PENDING -> OVERDUE    (overdue sweep, due date passed)
  PENDING -> CANCELLED  (lease terminated before the due date)
  OVERDUE -> PAID       (tenant settles late)
  PAID    -> CONFIRMED  (landlord confirms receipt)

  PARTIALLY_PAID is declared for forward compatibility and never produced
  by current flows.

DESIGN PRINCIPLES:
  1. Money uses decimal.Decimal, never float64.
  2. Payment IDs are deterministic functions of the lease and the slot
     (deposit, or rent month), so regenerating a schedule yields the same
     rows and retries stay idempotent.
  3. Payments are never physically deleted; cancellation is a state.

SEE ALSO:
  - schedule.go: schedule generation
  - latefee.go: overdue fee arithmetic
  - lifecycle: operations that mutate payments
*/
package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPaid          Status = "PAID"
	StatusConfirmed     Status = "CONFIRMED"
	StatusOverdue       Status = "OVERDUE"
	StatusPartiallyPaid Status = "PARTIALLY_PAID" // reserved, unused by current flows
	StatusCancelled     Status = "CANCELLED"
)

// Valid reports whether s is a declared status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusConfirmed, StatusOverdue, StatusPartiallyPaid, StatusCancelled:
		return true
	}
	return false
}

// Settled reports whether the tenant has paid: PAID or CONFIRMED. Settled
// payments are history and must never revert to an owed state.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusConfirmed
}

// Type distinguishes what the payment covers.
type Type string

const (
	TypeRent            Type = "RENT"
	TypeSecurityDeposit Type = "SECURITY_DEPOSIT"
	TypeLateFee         Type = "LATE_FEE"
)

// Method is how a tenant settled a payment.
type Method string

const (
	MethodCash         Method = "CASH"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodESewa        Method = "ESEWA"
	MethodKhalti       Method = "KHALTI"
	MethodIMEPay       Method = "IME_PAY"
	MethodConnectIPS   Method = "CONNECT_IPS"
	MethodOther        Method = "OTHER"
)

// Valid reports whether m is a declared method value.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodESewa, MethodKhalti,
		MethodIMEPay, MethodConnectIPS, MethodOther:
		return true
	}
	return false
}

// Payment is a single scheduled monetary obligation on a lease.
type Payment struct {
	ID         string
	LeaseID    string
	TenantID   string
	LandlordID string
	PropertyID string

	Type   Type
	Amount decimal.Decimal

	DueDate  time.Time
	PaidDate *time.Time

	Status               Status
	Method               Method // empty until paid
	TransactionReference string

	MonthTag string // "YYYY-MM" for rent; empty for the deposit

	Notes   string
	LateFee decimal.Decimal

	ConfirmedByLandlord bool
	ConfirmationDate    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DepositID returns the deterministic id of a lease's deposit payment.
func DepositID(leaseID string) string {
	return leaseID + "-deposit"
}

// RentID returns the deterministic id of a lease's rent payment for a month.
func RentID(leaseID, monthTag string) string {
	return fmt.Sprintf("%s-rent-%s", leaseID, monthTag)
}

// IsOverdue reports whether the payment is past due, either by recorded
// state or because the due date has passed while the sweep has not caught up.
func (p *Payment) IsOverdue(today time.Time) bool {
	return p.Status == StatusOverdue ||
		(p.Status == StatusPending && dates.After(today, p.DueDate))
}

// DaysOverdue returns whole days past the due date; zero when not overdue.
func (p *Payment) DaysOverdue(today time.Time) int {
	if !dates.After(today, p.DueDate) {
		return 0
	}
	return dates.DaysBetween(p.DueDate, today)
}

// CanBePaid reports whether a tenant settlement is allowed.
func (p *Payment) CanBePaid() bool {
	return p.Status == StatusPending || p.Status == StatusOverdue
}

// CanBeConfirmed reports whether a landlord confirmation is allowed.
func (p *Payment) CanBeConfirmed() bool {
	return p.Status == StatusPaid
}

// CanBeCancelled reports whether termination cleanup may cancel this
// payment: still pending, and due strictly after the given cutoff date.
func (p *Payment) CanBeCancelled(cutoff time.Time) bool {
	return p.Status == StatusPending && dates.After(p.DueDate, cutoff)
}

// AppendNote adds a note on its own line, preserving existing notes.
func (p *Payment) AppendNote(note string) {
	if note == "" {
		return
	}
	if p.Notes == "" {
		p.Notes = note
		return
	}
	p.Notes = p.Notes + "\n" + note
}

// DisplayMonth renders a human label for the covered period, e.g.
// "February 2026", or "Security Deposit" for the deposit payment.
func (p *Payment) DisplayMonth() string {
	if p.Type == TypeSecurityDeposit {
		return "Security Deposit"
	}
	t, err := time.Parse(dates.MonthTagLayout, p.MonthTag)
	if err != nil {
		return p.MonthTag
	}
	return t.Format("January 2006")
}
