/*
Recurring batch jobs over the stores.

PURPOSE:
  Two daily sweeps keep derived state honest without any per-entity timer:
    - SweepExpirations moves ACTIVE leases past their end date to EXPIRED
      and releases their properties.
    - SweepOverdue moves PENDING payments past their due date to OVERDUE
      and assesses the late fee.

DESIGN:
  Both sweeps select only entities still in the source state, so a rerun
  after a crash or a manual trigger finds nothing to redo. Entities are
  processed one by one; a failure is counted and logged, never aborts the
  batch. Each run is recorded in the audit store when one is configured.
*/
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/payment"
)

// Sweep kinds, used in audit records and operator endpoints.
const (
	SweepKindExpirations = "expirations"
	SweepKindOverdue     = "overdue"
)

// SweepResult summarizes one sweep execution.
type SweepResult struct {
	Kind      string `json:"kind"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// SweepExpirations transitions every ACTIVE lease whose end date has
// passed to EXPIRED and releases its property. Leases expire the day
// after their end date, not on it.
func (o *Orchestrator) SweepExpirations(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Kind: SweepKindExpirations}
	started := o.Now().UTC()

	today := o.today()
	expired, err := o.Leases.ExpiredActiveLeases(ctx, today)
	if err != nil {
		o.recordSweep(ctx, result, started, err)
		return result, fmt.Errorf("selecting expired leases: %w", err)
	}
	log.Printf("[Sweep] Expiration sweep found %d leases past end date", len(expired))

	for i := range expired {
		if err := ctx.Err(); err != nil {
			o.recordSweep(ctx, result, started, err)
			return result, err
		}
		l := expired[i]
		if err := o.expireLease(ctx, &l); err != nil {
			result.Failed++
			log.Printf("[Sweep] Could not expire lease %s: %v", l.ID, err)
			continue
		}
		result.Processed++
	}

	log.Printf("[Sweep] Expiration sweep done: %d expired, %d failed", result.Processed, result.Failed)
	o.recordSweep(ctx, result, started, nil)
	return result, nil
}

func (o *Orchestrator) expireLease(ctx context.Context, l *lease.Lease) error {
	l.Status = lease.StatusExpired
	l.UpdatedAt = o.Now().UTC()
	if err := o.Leases.SaveLease(ctx, *l); err != nil {
		return err
	}
	o.setPropertyStatus(ctx, l.PropertyID, PropertyAvailable)
	o.emit(Event{Type: EventLeaseExpired, LeaseID: l.ID, PropertyID: l.PropertyID, TenantID: l.TenantID, LandlordID: l.LandlordID})
	return nil
}

// SweepOverdue transitions every PENDING payment whose due date has passed
// to OVERDUE and assesses the late fee as of today. Payments turn overdue
// the day after their due date.
func (o *Orchestrator) SweepOverdue(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Kind: SweepKindOverdue}
	started := o.Now().UTC()

	today := o.today()
	overdue, err := o.Payments.OverduePendingPayments(ctx, today)
	if err != nil {
		o.recordSweep(ctx, result, started, err)
		return result, fmt.Errorf("selecting overdue payments: %w", err)
	}
	log.Printf("[Sweep] Overdue sweep found %d payments past due date", len(overdue))

	for i := range overdue {
		if err := ctx.Err(); err != nil {
			o.recordSweep(ctx, result, started, err)
			return result, err
		}
		p := overdue[i]
		if err := o.markOverdue(ctx, &p, today); err != nil {
			result.Failed++
			log.Printf("[Sweep] Could not mark payment %s overdue: %v", p.ID, err)
			continue
		}
		result.Processed++
	}

	log.Printf("[Sweep] Overdue sweep done: %d marked overdue, %d failed", result.Processed, result.Failed)
	o.recordSweep(ctx, result, started, nil)
	return result, nil
}

func (o *Orchestrator) markOverdue(ctx context.Context, p *payment.Payment, today time.Time) error {
	days := p.DaysOverdue(today)
	p.Status = payment.StatusOverdue
	p.LateFee = o.LateFees.Fee(p.Amount, days)
	p.UpdatedAt = o.Now().UTC()
	if err := o.Payments.SavePayment(ctx, *p); err != nil {
		return err
	}
	log.Printf("[Sweep] Payment %s overdue by %d days, late fee %s", p.ID, days, p.LateFee.StringFixed(2))
	o.emit(Event{Type: EventPaymentOverdue, LeaseID: p.LeaseID, PaymentID: p.ID, PropertyID: p.PropertyID, TenantID: p.TenantID, LandlordID: p.LandlordID})
	return nil
}

// recordSweep writes the audit record, fire-and-forget.
func (o *Orchestrator) recordSweep(ctx context.Context, result SweepResult, started time.Time, runErr error) {
	if o.Runs == nil {
		return
	}
	run := SweepRun{
		ID:          uuid.NewString(),
		Kind:        result.Kind,
		Processed:   result.Processed,
		Failed:      result.Failed,
		StartedAt:   started,
		CompletedAt: o.Now().UTC(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := o.Runs.SaveSweepRun(ctx, run); err != nil {
		log.Printf("[Sweep] Could not record %s sweep run: %v", result.Kind, err)
	}
}

// ListSweepRuns returns recent audit records of the given kind (empty for
// all kinds), newest first.
func (o *Orchestrator) ListSweepRuns(ctx context.Context, kind string, limit int) ([]SweepRun, error) {
	if o.Runs == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return o.Runs.ListSweepRuns(ctx, kind, limit)
}
