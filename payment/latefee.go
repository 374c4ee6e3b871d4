package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LATE FEE POLICY - Configurable overdue fee arithmetic
// =============================================================================

// LateFeePolicy prices overdue payments: a monthly percentage of the amount,
// pro-rated per day. The numbers are deployment configuration, not law.
type LateFeePolicy struct {
	// MonthlyRate is the fraction of the amount charged per full period
	// overdue, e.g. 0.02 for 2% per month.
	MonthlyRate decimal.Decimal

	// PeriodDays is the pro-ration divisor, conventionally 30.
	PeriodDays int
}

// DefaultLateFeePolicy is 2% per 30-day month, pro-rated daily.
func DefaultLateFeePolicy() LateFeePolicy {
	return LateFeePolicy{
		MonthlyRate: decimal.NewFromFloat(0.02),
		PeriodDays:  30,
	}
}

// Fee computes amount x (rate / periodDays) x daysOverdue, rounded to
// 2 decimal places half-up. Zero when not overdue.
func (p LateFeePolicy) Fee(amount decimal.Decimal, daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	dailyRate := p.MonthlyRate.Div(decimal.NewFromInt(int64(p.PeriodDays)))
	return amount.Mul(dailyRate).Mul(decimal.NewFromInt(int64(daysOverdue))).Round(2)
}

// FeeFor computes the fee a payment has accrued as of today.
func (p LateFeePolicy) FeeFor(pay *Payment, today time.Time) decimal.Decimal {
	return p.Fee(pay.Amount, pay.DaysOverdue(today))
}
