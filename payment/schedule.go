/*
schedule.go - Payment schedule generation

PURPOSE:
  Pure functions that turn a lease's dates and amounts into the ordered
  list of payment obligations. Given identical lease parameters they
  produce an identical schedule (deterministic IDs included), which is
  what makes orchestrator retries idempotent - callers must still check
  for an existing schedule before regenerating.

DUE-DATE RULE:
  The deposit is due on the lease start date. Rent is due on the 1st of
  each covered calendar month, except the first month when the lease
  starts mid-month: that first rent is due on the start date itself.

SEE ALSO:
  - lifecycle/orchestrator.go: persists the generated schedule
*/
package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
)

// GenerateInitialSchedule produces every payment a new lease owes: one
// security deposit due at start, then one rent payment per calendar month
// from start to end inclusive. now stamps audit fields only.
func GenerateInitialSchedule(l *lease.Lease, now time.Time) []Payment {
	payments := []Payment{depositPayment(l, now)}

	cursor := dates.Day(l.StartDate)
	end := dates.Day(l.EndDate)
	for !dates.After(cursor, end) {
		payments = append(payments, rentPayment(l, dueDateFor(l, cursor), cursor, now))
		cursor = dates.NextMonth(cursor)
	}
	return payments
}

// GenerateRenewalSchedule produces the incremental rent payments a renewal
// adds: one per month after oldEndDate up to the new end date inclusive.
// The walk replays the lease's monthly cadence from its start date, so the
// first new payment lands in the first month the existing schedule does not
// already cover - a mid-month old end date must not re-bill (or collide
// with) the month it falls in. No new deposit is owed.
func GenerateRenewalSchedule(l *lease.Lease, oldEndDate, now time.Time) []Payment {
	var payments []Payment

	cursor := dates.Day(l.StartDate)
	oldEnd := dates.Day(oldEndDate)
	for !dates.After(cursor, oldEnd) {
		cursor = dates.NextMonth(cursor)
	}

	end := dates.Day(l.EndDate)
	for !dates.After(cursor, end) {
		payments = append(payments, rentPayment(l, dates.StartOfMonth(cursor), cursor, now))
		cursor = dates.NextMonth(cursor)
	}
	return payments
}

// dueDateFor applies the first-month rule: rent for the month containing a
// mid-month start is due on the start date, every other month on the 1st.
func dueDateFor(l *lease.Lease, month time.Time) time.Time {
	if dates.SameMonth(month, l.StartDate) && l.StartDate.Day() != 1 {
		return dates.Day(l.StartDate)
	}
	return dates.StartOfMonth(month)
}

func depositPayment(l *lease.Lease, now time.Time) Payment {
	return Payment{
		ID:         DepositID(l.ID),
		LeaseID:    l.ID,
		TenantID:   l.TenantID,
		LandlordID: l.LandlordID,
		PropertyID: l.PropertyID,
		Type:       TypeSecurityDeposit,
		Amount:     l.SecurityDeposit,
		DueDate:    dates.Day(l.StartDate),
		Status:     StatusPending,
		LateFee:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func rentPayment(l *lease.Lease, dueDate, month, now time.Time) Payment {
	tag := dates.MonthTag(month)
	return Payment{
		ID:         RentID(l.ID, tag),
		LeaseID:    l.ID,
		TenantID:   l.TenantID,
		LandlordID: l.LandlordID,
		PropertyID: l.PropertyID,
		Type:       TypeRent,
		Amount:     l.MonthlyRent,
		DueDate:    dueDate,
		Status:     StatusPending,
		MonthTag:   tag,
		LateFee:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
