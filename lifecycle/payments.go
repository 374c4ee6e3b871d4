/*
Payment operations of the Orchestrator.

PURPOSE:
  Tenant-side payment recording (MarkPaid), landlord-side confirmation
  (ConfirmPayment), scoped reads with access control, aggregate statistics,
  upcoming-payment reminders, and best-effort cancellation of future rent
  when a lease ends early.

DESIGN:
  MarkPaid recomputes the late fee at payment time from the recorded due
  date, so a payment that turned overdue between sweeps is still charged
  correctly. Statistics are computed in memory over the full scoped set;
  volumes are per-user and small.
*/
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/payment"
)

// MarkPaidRequest records how a payment was made. PaidDate defaults to
// the engine clock; LateFee, when set, overrides the fee the engine would
// recompute from the due date.
type MarkPaidRequest struct {
	Method               payment.Method
	TransactionReference string
	PaidDate             *time.Time
	LateFee              *decimal.Decimal
	Notes                string
}

// ConfirmRequest is the landlord's acknowledgement. ConfirmationDate
// defaults to the engine clock.
type ConfirmRequest struct {
	ConfirmationDate *time.Time
	Notes            string
}

// PaymentPage is one page of payments plus paging metadata.
type PaymentPage struct {
	Payments   []payment.Payment
	Total      int
	Page       int
	Size       int
	TotalPages int
}

func newPaymentPage(items []payment.Payment, total int, page Page) PaymentPage {
	return PaymentPage{
		Payments:   items,
		Total:      total,
		Page:       page.Number,
		Size:       page.Size,
		TotalPages: totalPages(total, page.Size),
	}
}

// =============================================================================
// PAYMENT MUTATIONS
// =============================================================================

// MarkPaid records that the tenant has paid. Allowed from PENDING or
// OVERDUE. If the payment is past due the late fee is recomputed from the
// due date, so status flips that happened between sweeps are still billed.
func (o *Orchestrator) MarkPaid(ctx context.Context, paymentID, requesterID string, req MarkPaidRequest) (*payment.Payment, error) {
	log.Printf("[Orchestrator] Marking payment %s paid by user %s", paymentID, requesterID)

	p, err := o.loadPaymentWithAccess(ctx, paymentID, requesterID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != requesterID {
		return nil, &payment.AccessDeniedError{PaymentID: paymentID, UserID: requesterID}
	}
	if !p.CanBePaid() {
		return nil, &payment.InvalidStateError{PaymentID: paymentID, Status: p.Status, Operation: "pay"}
	}

	now := o.Now().UTC()
	paidDate := now
	if req.PaidDate != nil {
		paidDate = dates.Day(*req.PaidDate)
	}
	if days := p.DaysOverdue(paidDate); days > 0 {
		p.LateFee = o.LateFees.Fee(p.Amount, days)
		log.Printf("[Orchestrator] Payment %s is %d days overdue, late fee %s", paymentID, days, p.LateFee.StringFixed(2))
	}
	if req.LateFee != nil {
		p.LateFee = *req.LateFee
	}

	p.Status = payment.StatusPaid
	p.PaidDate = &paidDate
	p.Method = req.Method
	p.TransactionReference = req.TransactionReference
	if req.Notes != "" {
		p.AppendNote(req.Notes)
	}
	p.UpdatedAt = now

	if err := o.Payments.SavePayment(ctx, *p); err != nil {
		return nil, err
	}

	o.emit(Event{Type: EventPaymentPaid, LeaseID: p.LeaseID, PaymentID: p.ID, PropertyID: p.PropertyID, TenantID: p.TenantID, LandlordID: p.LandlordID})
	return p, nil
}

// ConfirmPayment is the landlord acknowledging receipt of a PAID payment.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, paymentID, requesterID string, req ConfirmRequest) (*payment.Payment, error) {
	log.Printf("[Orchestrator] Confirming payment %s by user %s", paymentID, requesterID)

	p, err := o.loadPaymentWithAccess(ctx, paymentID, requesterID)
	if err != nil {
		return nil, err
	}
	if p.LandlordID != requesterID {
		return nil, &payment.AccessDeniedError{PaymentID: paymentID, UserID: requesterID}
	}
	if !p.CanBeConfirmed() {
		return nil, &payment.InvalidStateError{PaymentID: paymentID, Status: p.Status, Operation: "confirm"}
	}

	now := o.Now().UTC()
	confirmed := now
	if req.ConfirmationDate != nil {
		confirmed = dates.Day(*req.ConfirmationDate)
	}
	p.Status = payment.StatusConfirmed
	p.ConfirmedByLandlord = true
	p.ConfirmationDate = &confirmed
	if req.Notes != "" {
		p.AppendNote(req.Notes)
	}
	p.UpdatedAt = now

	if err := o.Payments.SavePayment(ctx, *p); err != nil {
		return nil, err
	}

	o.emit(Event{Type: EventPaymentConfirmed, LeaseID: p.LeaseID, PaymentID: p.ID, PropertyID: p.PropertyID, TenantID: p.TenantID, LandlordID: p.LandlordID})
	return p, nil
}

// CancelFuturePayments cancels every PENDING payment of the lease due
// strictly after the cutoff. Best-effort: a payment that fails to save is
// logged and skipped, the rest still cancel.
func (o *Orchestrator) CancelFuturePayments(ctx context.Context, leaseID string, cutoff time.Time) {
	payments, err := o.Payments.ListPaymentsByLease(ctx, leaseID)
	if err != nil {
		log.Printf("[Orchestrator] Could not list payments of lease %s for cancellation: %v", leaseID, err)
		return
	}

	cutoff = dates.Day(cutoff)
	now := o.Now().UTC()
	cancelled := 0
	for i := range payments {
		p := &payments[i]
		if !p.CanBeCancelled(cutoff) {
			continue
		}
		p.Status = payment.StatusCancelled
		p.AppendNote(fmt.Sprintf("Cancelled: lease ended %s", dates.Format(cutoff)))
		p.UpdatedAt = now
		if err := o.Payments.SavePayment(ctx, *p); err != nil {
			log.Printf("[Orchestrator] Could not cancel payment %s: %v", p.ID, err)
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		log.Printf("[Orchestrator] Cancelled %d future payments for lease %s", cancelled, leaseID)
	}
}

// =============================================================================
// PAYMENT READS
// =============================================================================

// GetPayment returns a payment if the requester is its tenant, its
// landlord, or an administrator.
func (o *Orchestrator) GetPayment(ctx context.Context, paymentID, requesterID string) (*payment.Payment, error) {
	return o.loadPaymentWithAccess(ctx, paymentID, requesterID)
}

// ListPaymentsByLease lists a lease's full schedule, due date ascending.
// Access follows the lease.
func (o *Orchestrator) ListPaymentsByLease(ctx context.Context, leaseID, requesterID string) ([]payment.Payment, error) {
	if _, err := o.loadLeaseWithAccess(ctx, leaseID, requesterID); err != nil {
		return nil, err
	}
	return o.Payments.ListPaymentsByLease(ctx, leaseID)
}

// ListTenantPayments lists a tenant's payments across leases, newest due
// date first.
func (o *Orchestrator) ListTenantPayments(ctx context.Context, tenantID, requesterID string, status payment.Status, page Page) (PaymentPage, error) {
	if tenantID != requesterID && !o.isAdmin(ctx, requesterID) {
		return PaymentPage{}, fmt.Errorf("user %s cannot list payments of tenant %s: %w", requesterID, tenantID, payment.ErrAccessDenied)
	}
	page = page.Normalize()
	items, total, err := o.Payments.ListPaymentsByTenant(ctx, tenantID, status, page)
	if err != nil {
		return PaymentPage{}, err
	}
	return newPaymentPage(items, total, page), nil
}

// ListLandlordPayments lists payments owed to a landlord across leases.
func (o *Orchestrator) ListLandlordPayments(ctx context.Context, landlordID, requesterID string, status payment.Status, page Page) (PaymentPage, error) {
	if landlordID != requesterID && !o.isAdmin(ctx, requesterID) {
		return PaymentPage{}, fmt.Errorf("user %s cannot list payments of landlord %s: %w", requesterID, landlordID, payment.ErrAccessDenied)
	}
	page = page.Normalize()
	items, total, err := o.Payments.ListPaymentsByLandlord(ctx, landlordID, status, page)
	if err != nil {
		return PaymentPage{}, err
	}
	return newPaymentPage(items, total, page), nil
}

// ListUpcomingPayments returns a tenant's PENDING payments due within
// daysAhead days, for reminders.
func (o *Orchestrator) ListUpcomingPayments(ctx context.Context, tenantID, requesterID string, daysAhead int) ([]payment.Payment, error) {
	if tenantID != requesterID && !o.isAdmin(ctx, requesterID) {
		return nil, fmt.Errorf("user %s cannot list upcoming payments of tenant %s: %w", requesterID, tenantID, payment.ErrAccessDenied)
	}
	today := o.today()
	return o.Payments.UpcomingPayments(ctx, tenantID, today, dates.AddDays(today, daysAhead))
}

// =============================================================================
// STATISTICS
// =============================================================================

// Statistics aggregates a user's payments by lifecycle stage.
type Statistics struct {
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	TotalPending  decimal.Decimal `json:"totalPending"`
	TotalOverdue  decimal.Decimal `json:"totalOverdue"`
	TotalLateFees decimal.Decimal `json:"totalLateFees"`
	CountPaid     int             `json:"countPaid"`
	CountPending  int             `json:"countPending"`
	CountOverdue  int             `json:"countOverdue"`
}

// TenantStatistics totals a tenant's payments. PAID and CONFIRMED count as
// paid; late fees accumulate over every payment that carries one.
func (o *Orchestrator) TenantStatistics(ctx context.Context, tenantID, requesterID string) (Statistics, error) {
	if tenantID != requesterID && !o.isAdmin(ctx, requesterID) {
		return Statistics{}, fmt.Errorf("user %s cannot read statistics of tenant %s: %w", requesterID, tenantID, payment.ErrAccessDenied)
	}
	payments, err := o.Payments.AllPaymentsByTenant(ctx, tenantID)
	if err != nil {
		return Statistics{}, err
	}
	return aggregate(payments), nil
}

// LandlordStatistics totals payments owed to a landlord.
func (o *Orchestrator) LandlordStatistics(ctx context.Context, landlordID, requesterID string) (Statistics, error) {
	if landlordID != requesterID && !o.isAdmin(ctx, requesterID) {
		return Statistics{}, fmt.Errorf("user %s cannot read statistics of landlord %s: %w", requesterID, landlordID, payment.ErrAccessDenied)
	}
	payments, err := o.Payments.AllPaymentsByLandlord(ctx, landlordID)
	if err != nil {
		return Statistics{}, err
	}
	return aggregate(payments), nil
}

func aggregate(payments []payment.Payment) Statistics {
	s := Statistics{
		TotalPaid:     decimal.Zero,
		TotalPending:  decimal.Zero,
		TotalOverdue:  decimal.Zero,
		TotalLateFees: decimal.Zero,
	}
	for _, p := range payments {
		switch p.Status {
		case payment.StatusPaid, payment.StatusConfirmed:
			s.TotalPaid = s.TotalPaid.Add(p.Amount)
			s.CountPaid++
		case payment.StatusPending:
			s.TotalPending = s.TotalPending.Add(p.Amount)
			s.CountPending++
		case payment.StatusOverdue:
			s.TotalOverdue = s.TotalOverdue.Add(p.Amount)
			s.CountOverdue++
		}
		s.TotalLateFees = s.TotalLateFees.Add(p.LateFee)
	}
	return s
}

// loadPaymentWithAccess resolves a payment and verifies the requester is
// its tenant, its landlord, or an administrator.
func (o *Orchestrator) loadPaymentWithAccess(ctx context.Context, paymentID, requesterID string) (*payment.Payment, error) {
	p, err := o.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, payment.ErrNotFound)
	}
	if p.TenantID != requesterID && p.LandlordID != requesterID && !o.isAdmin(ctx, requesterID) {
		return nil, &payment.AccessDeniedError{PaymentID: paymentID, UserID: requesterID}
	}
	return p, nil
}
