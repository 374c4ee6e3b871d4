/*
Package lifecycle coordinates the lease and payment state machines.

PURPOSE:
  The Orchestrator owns every mutating operation (create, terminate, renew,
  mark-paid, confirm) and every read operation exposed to collaborators. It
  sequences cross-entity side effects - lease creation triggers schedule
  generation, termination triggers payment cancellation, renewal triggers
  incremental generation - and isolates their failures.

FAILURE POLICY:
  Validation and state-invariant errors are raised synchronously and apply
  nothing. Downstream side effects (schedule persistence, property status,
  payment cancellation, events) are best-effort: their failure is logged and
  never reverses the committed lease/payment change. They are independently
  retriable - generation is deterministic, sweeps re-select, property status
  converges.

SEE ALSO:
  - stores.go: interfaces this package is written against
  - sweep.go: the two recurring batch jobs
  - lease, payment: the domain models and their invariants
*/
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/payment"
)

// Orchestrator wires the state machines to storage and collaborators.
type Orchestrator struct {
	Leases     LeaseStore
	Payments   PaymentStore
	Properties PropertyCatalog
	Users      Directory
	Runs       SweepRunStore // optional
	Events     EventSink     // optional
	LateFees   payment.LateFeePolicy

	// Now supplies the clock; tests pin it to a fixed day.
	Now func() time.Time
}

// New builds an orchestrator with the default late-fee policy and clock.
func New(leases LeaseStore, payments PaymentStore, properties PropertyCatalog, users Directory) *Orchestrator {
	return &Orchestrator{
		Leases:     leases,
		Payments:   payments,
		Properties: properties,
		Users:      users,
		Events:     NopSink{},
		LateFees:   payment.DefaultLateFeePolicy(),
		Now:        time.Now,
	}
}

func (o *Orchestrator) today() time.Time { return dates.Day(o.Now().UTC()) }

func (o *Orchestrator) emit(e Event) {
	if o.Events == nil {
		return
	}
	e.At = o.Now().UTC()
	o.Events.Publish(e)
}

// isAdmin reports whether the user resolves to the ADMIN role. Unknown
// users are simply not admins.
func (o *Orchestrator) isAdmin(ctx context.Context, userID string) bool {
	if o.Users == nil {
		return false
	}
	u, err := o.Users.GetUser(ctx, userID)
	return err == nil && u != nil && u.Role == RoleAdmin
}

// =============================================================================
// LEASE CREATION
// =============================================================================

// ApprovedApplication is the upstream "application approved" event payload
// that triggers lease creation.
type ApprovedApplication struct {
	ApplicationID       string
	PropertyID          string
	TenantID            string
	MoveInDate          time.Time
	LeaseDurationMonths int
	NumberOfOccupants   int
}

// CreateLeaseRequest carries the terms of a manually created lease.
type CreateLeaseRequest struct {
	PropertyID        string
	TenantID          string
	StartDate         time.Time
	EndDate           time.Time
	MonthlyRent       decimal.Decimal
	SecurityDeposit   decimal.Decimal
	NumberOfOccupants int
	SpecialTerms      string
	AutoRenew         bool
	NoticeDays        int // 0 means the default
}

// CreateFromApplication creates an ACTIVE lease from an approved rental
// application. Rent and deposit come from the property's current listing.
func (o *Orchestrator) CreateFromApplication(ctx context.Context, app ApprovedApplication) (*lease.Lease, error) {
	log.Printf("[Orchestrator] Creating lease from application %s", app.ApplicationID)

	existing, err := o.Leases.GetLeaseByApplication(ctx, app.ApplicationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &lease.AlreadyExistsError{ApplicationID: app.ApplicationID}
	}

	if err := o.ensureNoActiveLease(ctx, app.PropertyID); err != nil {
		return nil, err
	}

	prop, err := o.Properties.GetProperty(ctx, app.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, fmt.Errorf("property %s: %w", app.PropertyID, ErrPropertyNotFound)
	}

	start := dates.Day(app.MoveInDate)
	end := dates.AddMonths(start, app.LeaseDurationMonths)
	if err := lease.ValidateDates(start, end); err != nil {
		return nil, err
	}

	now := o.Now().UTC()
	l := lease.Lease{
		ID:                uuid.NewString(),
		PropertyID:        app.PropertyID,
		TenantID:          app.TenantID,
		LandlordID:        prop.LandlordID,
		ApplicationID:     app.ApplicationID,
		StartDate:         start,
		EndDate:           end,
		MonthlyRent:       prop.Price,
		SecurityDeposit:   prop.Deposit,
		Status:            lease.StatusActive,
		NumberOfOccupants: app.NumberOfOccupants,
		NoticeDays:        lease.DefaultNoticeDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := o.Leases.SaveLease(ctx, l); err != nil {
		return nil, err
	}
	log.Printf("[Orchestrator] Lease %s created for property %s", l.ID, l.PropertyID)

	o.generateSchedule(ctx, &l)
	o.emit(Event{Type: EventLeaseCreated, LeaseID: l.ID, PropertyID: l.PropertyID, TenantID: l.TenantID, LandlordID: l.LandlordID})
	return &l, nil
}

// CreateManual creates an ACTIVE lease with caller-supplied terms. The
// caller must own the property.
func (o *Orchestrator) CreateManual(ctx context.Context, req CreateLeaseRequest, landlordID string) (*lease.Lease, error) {
	log.Printf("[Orchestrator] Creating manual lease for property %s by landlord %s", req.PropertyID, landlordID)

	prop, err := o.Properties.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, fmt.Errorf("property %s: %w", req.PropertyID, ErrPropertyNotFound)
	}
	if prop.LandlordID != landlordID {
		return nil, fmt.Errorf("user %s does not own property %s: %w", landlordID, req.PropertyID, lease.ErrAccessDenied)
	}

	if err := o.ensureNoActiveLease(ctx, req.PropertyID); err != nil {
		return nil, err
	}

	if o.Users != nil {
		tenant, err := o.Users.GetUser(ctx, req.TenantID)
		if err != nil {
			return nil, err
		}
		if tenant == nil {
			return nil, fmt.Errorf("tenant %s: %w", req.TenantID, ErrUserNotFound)
		}
	}

	start := dates.Day(req.StartDate)
	end := dates.Day(req.EndDate)
	if err := lease.ValidateDates(start, end); err != nil {
		return nil, err
	}

	noticeDays := req.NoticeDays
	if noticeDays <= 0 {
		noticeDays = lease.DefaultNoticeDays
	}

	now := o.Now().UTC()
	l := lease.Lease{
		ID:                uuid.NewString(),
		PropertyID:        req.PropertyID,
		TenantID:          req.TenantID,
		LandlordID:        landlordID,
		StartDate:         start,
		EndDate:           end,
		MonthlyRent:       req.MonthlyRent,
		SecurityDeposit:   req.SecurityDeposit,
		Status:            lease.StatusActive,
		NumberOfOccupants: req.NumberOfOccupants,
		SpecialTerms:      req.SpecialTerms,
		AutoRenew:         req.AutoRenew,
		NoticeDays:        noticeDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := o.Leases.SaveLease(ctx, l); err != nil {
		return nil, err
	}

	o.setPropertyStatus(ctx, l.PropertyID, PropertyRented)
	o.generateSchedule(ctx, &l)
	o.emit(Event{Type: EventLeaseCreated, LeaseID: l.ID, PropertyID: l.PropertyID, TenantID: l.TenantID, LandlordID: l.LandlordID})
	return &l, nil
}

// ensureNoActiveLease enforces the one-active-lease-per-property invariant
// as a precondition check. store/sqlite backs it with a partial unique
// index, which closes the check-then-write race under concurrent writers.
func (o *Orchestrator) ensureNoActiveLease(ctx context.Context, propertyID string) error {
	active, err := o.Leases.ActiveLeaseForProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if active != nil {
		return &lease.AlreadyExistsError{PropertyID: propertyID}
	}
	return nil
}

// generateSchedule is best-effort: a failure here is logged and never
// fails the lease operation that triggered it.
func (o *Orchestrator) generateSchedule(ctx context.Context, l *lease.Lease) {
	count, err := o.Payments.CountPaymentsForLease(ctx, l.ID)
	if err != nil {
		log.Printf("[Orchestrator] Could not check existing schedule for lease %s: %v", l.ID, err)
		return
	}
	if count > 0 {
		log.Printf("[Orchestrator] Lease %s already has %d payments, skipping generation", l.ID, count)
		return
	}

	schedule := payment.GenerateInitialSchedule(l, o.Now().UTC())
	if err := o.Payments.SavePayments(ctx, schedule); err != nil {
		genErr := &payment.GenerationError{LeaseID: l.ID, Err: err}
		log.Printf("[Orchestrator] %v (lease stands)", genErr)
		return
	}
	log.Printf("[Orchestrator] Generated %d payments for lease %s", len(schedule), l.ID)
}

// =============================================================================
// LEASE READS
// =============================================================================

// GetLease returns a lease if the requester is its tenant, its landlord,
// or an administrator.
func (o *Orchestrator) GetLease(ctx context.Context, leaseID, requesterID string) (*lease.Lease, error) {
	return o.loadLeaseWithAccess(ctx, leaseID, requesterID)
}

// LeasePage is one page of leases plus paging metadata.
type LeasePage struct {
	Leases     []lease.Lease
	Total      int
	Page       int
	Size       int
	TotalPages int
}

func newLeasePage(items []lease.Lease, total int, page Page) LeasePage {
	return LeasePage{
		Leases:     items,
		Total:      total,
		Page:       page.Number,
		Size:       page.Size,
		TotalPages: totalPages(total, page.Size),
	}
}

func totalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// ListTenantLeases lists a tenant's leases. Only the tenant themselves or
// an administrator may ask.
func (o *Orchestrator) ListTenantLeases(ctx context.Context, tenantID, requesterID string, status lease.Status, page Page) (LeasePage, error) {
	if tenantID != requesterID && !o.isAdmin(ctx, requesterID) {
		return LeasePage{}, fmt.Errorf("user %s cannot list leases of tenant %s: %w", requesterID, tenantID, lease.ErrAccessDenied)
	}
	page = page.Normalize()
	items, total, err := o.Leases.ListLeasesByTenant(ctx, tenantID, status, page)
	if err != nil {
		return LeasePage{}, err
	}
	return newLeasePage(items, total, page), nil
}

// ListLandlordLeases lists a landlord's leases. Only the landlord
// themselves or an administrator may ask.
func (o *Orchestrator) ListLandlordLeases(ctx context.Context, landlordID, requesterID string, status lease.Status, page Page) (LeasePage, error) {
	if landlordID != requesterID && !o.isAdmin(ctx, requesterID) {
		return LeasePage{}, fmt.Errorf("user %s cannot list leases of landlord %s: %w", requesterID, landlordID, lease.ErrAccessDenied)
	}
	page = page.Normalize()
	items, total, err := o.Leases.ListLeasesByLandlord(ctx, landlordID, status, page)
	if err != nil {
		return LeasePage{}, err
	}
	return newLeasePage(items, total, page), nil
}

// ActiveLeaseForProperty returns the property's current ACTIVE lease.
func (o *Orchestrator) ActiveLeaseForProperty(ctx context.Context, propertyID string) (*lease.Lease, error) {
	l, err := o.Leases.ActiveLeaseForProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("no active lease for property %s: %w", propertyID, lease.ErrNotFound)
	}
	return l, nil
}

// ListExpiringWithin returns a landlord's ACTIVE leases ending within
// daysAhead days, for expiry warnings.
func (o *Orchestrator) ListExpiringWithin(ctx context.Context, landlordID string, daysAhead int) ([]lease.Lease, error) {
	today := o.today()
	return o.Leases.LeasesEndingBetween(ctx, landlordID, today, dates.AddDays(today, daysAhead))
}

// =============================================================================
// LEASE MUTATIONS
// =============================================================================

// UpdateLeaseRequest carries optional term changes; nil fields are left as is.
type UpdateLeaseRequest struct {
	SpecialTerms *string
	AutoRenew    *bool
	NoticeDays   *int
}

// UpdateTerms edits the mutable terms of an ACTIVE lease. Landlord only.
func (o *Orchestrator) UpdateTerms(ctx context.Context, leaseID string, req UpdateLeaseRequest, requesterID string) (*lease.Lease, error) {
	l, err := o.loadLeaseWithAccess(ctx, leaseID, requesterID)
	if err != nil {
		return nil, err
	}
	if l.LandlordID != requesterID {
		return nil, &lease.AccessDeniedError{LeaseID: leaseID, UserID: requesterID}
	}
	if !l.CanBeUpdated() {
		return nil, &lease.InvalidStateError{LeaseID: leaseID, Status: l.Status, Operation: "update"}
	}

	if req.SpecialTerms != nil {
		l.SpecialTerms = *req.SpecialTerms
	}
	if req.AutoRenew != nil {
		l.AutoRenew = *req.AutoRenew
	}
	if req.NoticeDays != nil {
		l.NoticeDays = *req.NoticeDays
	}
	l.UpdatedAt = o.Now().UTC()

	if err := o.Leases.SaveLease(ctx, *l); err != nil {
		return nil, err
	}
	return l, nil
}

// Terminate ends an ACTIVE lease early. The requester must be the lease's
// tenant or landlord; the termination date must respect the notice period.
// Cancelling future payments and releasing the property are best-effort.
func (o *Orchestrator) Terminate(ctx context.Context, leaseID, requesterID string, terminationDate time.Time, reason string) (*lease.Lease, error) {
	log.Printf("[Orchestrator] Terminating lease %s by user %s", leaseID, requesterID)

	l, err := o.loadLeaseWithAccess(ctx, leaseID, requesterID)
	if err != nil {
		return nil, err
	}
	if !l.CanBeTerminated() {
		return nil, &lease.InvalidStateError{LeaseID: leaseID, Status: l.Status, Operation: "terminate"}
	}

	termination := dates.Day(terminationDate)
	today := o.today()
	if dates.Before(termination, today) {
		return nil, &lease.InvalidDateError{Reason: "termination date cannot be in the past"}
	}
	earliest := dates.AddDays(today, l.NoticeDays)
	if dates.Before(termination, earliest) {
		return nil, &lease.InvalidDateError{Reason: fmt.Sprintf(
			"termination date must be at least %d days from today; earliest is %s", l.NoticeDays, dates.Format(earliest))}
	}

	l.Status = lease.StatusTerminated
	l.TerminationDate = &termination
	l.TerminationReason = reason
	l.UpdatedAt = o.Now().UTC()

	if err := o.Leases.SaveLease(ctx, *l); err != nil {
		return nil, err
	}

	o.setPropertyStatus(ctx, l.PropertyID, PropertyAvailable)
	o.CancelFuturePayments(ctx, leaseID, termination)
	o.emit(Event{Type: EventLeaseTerminated, LeaseID: l.ID, PropertyID: l.PropertyID, TenantID: l.TenantID, LandlordID: l.LandlordID})

	log.Printf("[Orchestrator] Lease %s terminated effective %s", leaseID, dates.Format(termination))
	return l, nil
}

// Renew extends a lease's end date and resets it to ACTIVE. Landlord only;
// allowed from ACTIVE or EXPIRED. Incremental schedule generation uses the
// previous end date as the boundary and is best-effort.
func (o *Orchestrator) Renew(ctx context.Context, leaseID, requesterID string, newEndDate time.Time) (*lease.Lease, error) {
	log.Printf("[Orchestrator] Renewing lease %s until %s", leaseID, dates.Format(newEndDate))

	l, err := o.loadLeaseWithAccess(ctx, leaseID, requesterID)
	if err != nil {
		return nil, err
	}
	if l.LandlordID != requesterID {
		return nil, &lease.AccessDeniedError{LeaseID: leaseID, UserID: requesterID}
	}
	if !l.CanBeRenewed() {
		return nil, &lease.InvalidStateError{LeaseID: leaseID, Status: l.Status, Operation: "renew"}
	}

	newEnd := dates.Day(newEndDate)
	if !dates.After(newEnd, l.EndDate) {
		return nil, &lease.InvalidDateError{Reason: "new end date must be after the current end date"}
	}

	oldEnd := l.EndDate
	l.EndDate = newEnd
	l.Status = lease.StatusActive
	l.UpdatedAt = o.Now().UTC()

	if err := o.Leases.SaveLease(ctx, *l); err != nil {
		return nil, err
	}

	o.setPropertyStatus(ctx, l.PropertyID, PropertyRented)
	o.generateRenewalSchedule(ctx, l, oldEnd)
	o.emit(Event{Type: EventLeaseRenewed, LeaseID: l.ID, PropertyID: l.PropertyID, TenantID: l.TenantID, LandlordID: l.LandlordID})
	return l, nil
}

func (o *Orchestrator) generateRenewalSchedule(ctx context.Context, l *lease.Lease, oldEnd time.Time) {
	schedule := payment.GenerateRenewalSchedule(l, oldEnd, o.Now().UTC())
	if len(schedule) == 0 {
		return
	}
	if err := o.Payments.SavePayments(ctx, schedule); err != nil {
		genErr := &payment.GenerationError{LeaseID: l.ID, Err: err}
		log.Printf("[Orchestrator] %v (renewal stands)", genErr)
		return
	}
	log.Printf("[Orchestrator] Generated %d renewal payments for lease %s", len(schedule), l.ID)
}

// setPropertyStatus signals the catalog, fire-and-forget.
func (o *Orchestrator) setPropertyStatus(ctx context.Context, propertyID string, status PropertyStatus) {
	if o.Properties == nil {
		return
	}
	if err := o.Properties.SetPropertyStatus(ctx, propertyID, status); err != nil {
		log.Printf("[Orchestrator] Could not set property %s to %s: %v", propertyID, status, err)
	}
}

// loadLeaseWithAccess resolves a lease and verifies the requester is its
// tenant, its landlord, or an administrator.
func (o *Orchestrator) loadLeaseWithAccess(ctx context.Context, leaseID, requesterID string) (*lease.Lease, error) {
	l, err := o.Leases.GetLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("lease %s: %w", leaseID, lease.ErrNotFound)
	}
	if l.TenantID != requesterID && l.LandlordID != requesterID && !o.isAdmin(ctx, requesterID) {
		return nil, &lease.AccessDeniedError{LeaseID: leaseID, UserID: requesterID}
	}
	return l, nil
}
