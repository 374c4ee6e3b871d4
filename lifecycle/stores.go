/*
stores.go - Storage and collaborator interfaces for the lifecycle engine

PURPOSE:
  The orchestrator and sweeps are written against these narrow interfaces.
  store/sqlite implements all of them for production; store/memory
  implements them for fast unit tests.

CONVENTIONS:
  - Getters return (nil, nil) when the row is absent; the orchestrator
    turns that into the domain's NotFound error.
  - Save* methods upsert a single row inside one storage transaction.
  - SavePayments persists a whole schedule atomically: all rows or none.
  - List methods with a Page return the total match count alongside the
    requested slice.
*/
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/payment"
)

// Page is a pagination request. Number is zero-based.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for this page.
func (p Page) Offset() int { return p.Number * p.Size }

// DefaultPageSize bounds list responses when the caller does not choose.
const DefaultPageSize = 20

// Normalize clamps a page request to sane bounds.
func (p Page) Normalize() Page {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Number < 0 {
		p.Number = 0
	}
	return p
}

// LeaseStore persists leases.
type LeaseStore interface {
	SaveLease(ctx context.Context, l lease.Lease) error
	GetLease(ctx context.Context, id string) (*lease.Lease, error)
	GetLeaseByApplication(ctx context.Context, applicationID string) (*lease.Lease, error)

	// ActiveLeaseForProperty returns the lease with status ACTIVE for the
	// property, or (nil, nil) when there is none.
	ActiveLeaseForProperty(ctx context.Context, propertyID string) (*lease.Lease, error)

	// ListLeasesByTenant / ListLeasesByLandlord return one page ordered by
	// creation time descending, plus the total count. An empty status
	// means no filter.
	ListLeasesByTenant(ctx context.Context, tenantID string, status lease.Status, page Page) ([]lease.Lease, int, error)
	ListLeasesByLandlord(ctx context.Context, landlordID string, status lease.Status, page Page) ([]lease.Lease, int, error)

	// ExpiredActiveLeases returns leases still ACTIVE whose end date is
	// strictly before today. This is the expiration sweep's predicate;
	// already-EXPIRED leases never match, which is what makes the sweep
	// idempotent.
	ExpiredActiveLeases(ctx context.Context, today time.Time) ([]lease.Lease, error)

	// LeasesEndingBetween returns ACTIVE leases of a landlord whose end
	// date falls in [from, to].
	LeasesEndingBetween(ctx context.Context, landlordID string, from, to time.Time) ([]lease.Lease, error)
}

// PaymentStore persists payments.
type PaymentStore interface {
	// SavePayments inserts a generated schedule atomically.
	SavePayments(ctx context.Context, payments []payment.Payment) error
	SavePayment(ctx context.Context, p payment.Payment) error
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)

	// CountPaymentsForLease lets the orchestrator detect an existing
	// schedule before regenerating one.
	CountPaymentsForLease(ctx context.Context, leaseID string) (int, error)

	ListPaymentsByLease(ctx context.Context, leaseID string) ([]payment.Payment, error)
	ListPaymentsByTenant(ctx context.Context, tenantID string, status payment.Status, page Page) ([]payment.Payment, int, error)
	ListPaymentsByLandlord(ctx context.Context, landlordID string, status payment.Status, page Page) ([]payment.Payment, int, error)

	// AllPaymentsByTenant / AllPaymentsByLandlord feed the statistics
	// aggregation; no paging.
	AllPaymentsByTenant(ctx context.Context, tenantID string) ([]payment.Payment, error)
	AllPaymentsByLandlord(ctx context.Context, landlordID string) ([]payment.Payment, error)

	// OverduePendingPayments returns payments still PENDING whose due date
	// is strictly before today. This is the overdue sweep's predicate;
	// payments already OVERDUE, paid, or cancelled never match.
	OverduePendingPayments(ctx context.Context, today time.Time) ([]payment.Payment, error)

	// UpcomingPayments returns a tenant's PENDING payments due in [from, to].
	UpcomingPayments(ctx context.Context, tenantID string, from, to time.Time) ([]payment.Payment, error)
}

// SweepRun is the audit record of one sweep execution.
type SweepRun struct {
	ID          string
	Kind        string // "expirations" or "overdue"
	Processed   int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// SweepRunStore records sweep executions for operators. Optional: a nil
// store disables auditing without disabling sweeps.
type SweepRunStore interface {
	SaveSweepRun(ctx context.Context, run SweepRun) error
	ListSweepRuns(ctx context.Context, kind string, limit int) ([]SweepRun, error)
}

// =============================================================================
// COLLABORATORS - External systems, specified only at their interfaces
// =============================================================================

var (
	// ErrPropertyNotFound is returned when a property id does not resolve.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
)

// PropertyStatus is the catalog-side availability state.
type PropertyStatus string

const (
	PropertyAvailable PropertyStatus = "AVAILABLE"
	PropertyRented    PropertyStatus = "RENTED"
)

// Property is the slice of the catalog record the engine needs.
type Property struct {
	ID         string
	LandlordID string
	Status     PropertyStatus
	Price      decimal.Decimal
	Deposit    decimal.Decimal
}

// PropertyCatalog is the property collaborator.
type PropertyCatalog interface {
	GetProperty(ctx context.Context, id string) (*Property, error)
	SetPropertyStatus(ctx context.Context, id string, status PropertyStatus) error
}

// Role is a user's system role.
type Role string

const (
	RoleTenant   Role = "TENANT"
	RoleLandlord Role = "LANDLORD"
	RoleAdmin    Role = "ADMIN"
)

// User is the slice of the identity record the engine needs.
type User struct {
	ID   string
	Role Role
}

// Directory is the identity collaborator, used for ownership/role checks.
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)
}
