/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces of the lifecycle package (LeaseStore,
  PaymentStore, SweepRunStore) plus the PropertyCatalog and Directory
  collaborators using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  leases:      One row per lease, status-driven lifecycle
  payments:    Full payment schedule, one row per installment
  properties:  Minimal property catalog (listing price, deposit, status)
  users:       Minimal user directory (role only)
  sweep_runs:  Audit trail of batch job executions

INDEXES:
  - idx_leases_one_active: partial UNIQUE on property_id WHERE status='ACTIVE'.
    This is what actually enforces one active lease per property; the
    orchestrator's precondition check only gives a friendlier error. A
    concurrent second insert loses here and surfaces as AlreadyExists.
  - idx_leases_application: partial UNIQUE for the one-lease-per-application
    invariant.
  - idx_payments_status_due: the sweep predicate (status + due_date).

DATES AND MONEY:
  Day-granular dates (start, end, due) are stored as 'YYYY-MM-DD' TEXT so
  string comparison matches date comparison. Timestamps are RFC3339 TEXT.
  Money is stored as decimal strings, never floats.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode.

SEE ALSO:
  - lifecycle/stores.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/payment"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and ":memory:" databases exist
	// per-connection. One pooled connection serves both constraints.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Leases
	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		landlord_id TEXT NOT NULL,
		application_id TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		monthly_rent TEXT NOT NULL,
		security_deposit TEXT NOT NULL,
		status TEXT NOT NULL,
		number_of_occupants INTEGER DEFAULT 1,
		special_terms TEXT,
		auto_renew BOOLEAN DEFAULT FALSE,
		notice_days INTEGER NOT NULL,
		termination_date TEXT,
		termination_reason TEXT,
		signed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one ACTIVE lease per property. The application
	-- layer checks first, but this index is the contended-path guarantee.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leases_one_active
		ON leases(property_id) WHERE status = 'ACTIVE';

	-- One lease per approved application
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leases_application
		ON leases(application_id) WHERE application_id != '';

	CREATE INDEX IF NOT EXISTS idx_leases_tenant
		ON leases(tenant_id, status);
	CREATE INDEX IF NOT EXISTS idx_leases_landlord
		ON leases(landlord_id, status);

	-- For the expiration sweep (status + end_date scan)
	CREATE INDEX IF NOT EXISTS idx_leases_status_end
		ON leases(status, end_date);

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		lease_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		landlord_id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		paid_date TEXT,
		status TEXT NOT NULL,
		method TEXT,
		transaction_reference TEXT,
		month_tag TEXT,
		notes TEXT,
		late_fee TEXT NOT NULL DEFAULT '0',
		confirmed_by_landlord BOOLEAN DEFAULT FALSE,
		confirmation_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_lease
		ON payments(lease_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_payments_tenant
		ON payments(tenant_id, status, due_date DESC);
	CREATE INDEX IF NOT EXISTS idx_payments_landlord
		ON payments(landlord_id, status, due_date DESC);

	-- For the overdue sweep (status + due_date scan)
	CREATE INDEX IF NOT EXISTS idx_payments_status_due
		ON payments(status, due_date);

	-- Properties (minimal catalog: enough to price a lease and flip status)
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		landlord_id TEXT NOT NULL,
		status TEXT NOT NULL,
		price TEXT NOT NULL,
		deposit TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_properties_landlord
		ON properties(landlord_id);

	-- Users (minimal directory: role drives access control)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Sweep Runs (audit trail of batch executions)
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_kind
		ON sweep_runs(kind, started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEASE STORE (lifecycle.LeaseStore interface)
// =============================================================================

const leaseColumns = `id, property_id, tenant_id, landlord_id, application_id,
	start_date, end_date, monthly_rent, security_deposit, status,
	number_of_occupants, special_terms, auto_renew, notice_days,
	termination_date, termination_reason, signed_at, created_at, updated_at`

// SaveLease inserts or replaces a lease. Violating the one-active-per-
// property index (or the per-application index) maps to AlreadyExists.
func (s *Store) SaveLease(ctx context.Context, l lease.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leases (` + leaseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			end_date = excluded.end_date,
			monthly_rent = excluded.monthly_rent,
			security_deposit = excluded.security_deposit,
			status = excluded.status,
			number_of_occupants = excluded.number_of_occupants,
			special_terms = excluded.special_terms,
			auto_renew = excluded.auto_renew,
			notice_days = excluded.notice_days,
			termination_date = excluded.termination_date,
			termination_reason = excluded.termination_reason,
			signed_at = excluded.signed_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.PropertyID, l.TenantID, l.LandlordID, l.ApplicationID,
		dayString(l.StartDate), dayString(l.EndDate),
		l.MonthlyRent.String(), l.SecurityDeposit.String(),
		string(l.Status), l.NumberOfOccupants, l.SpecialTerms, l.AutoRenew, l.NoticeDays,
		nullDay(l.TerminationDate), nullString(l.TerminationReason), nullTimestamp(l.SignedAt),
		l.CreatedAt.Format(time.RFC3339), l.UpdatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "application_id") {
				return &lease.AlreadyExistsError{ApplicationID: l.ApplicationID}
			}
			return &lease.AlreadyExistsError{PropertyID: l.PropertyID}
		}
		return fmt.Errorf("failed to save lease: %w", err)
	}

	return nil
}

// GetLease retrieves a lease by ID. Returns (nil, nil) when absent.
func (s *Store) GetLease(ctx context.Context, id string) (*lease.Lease, error) {
	return s.getLeaseWhere(ctx, "id = ?", id)
}

// GetLeaseByApplication retrieves the lease created from an application.
func (s *Store) GetLeaseByApplication(ctx context.Context, applicationID string) (*lease.Lease, error) {
	if applicationID == "" {
		return nil, nil
	}
	return s.getLeaseWhere(ctx, "application_id = ?", applicationID)
}

// ActiveLeaseForProperty returns the property's ACTIVE lease, if any.
func (s *Store) ActiveLeaseForProperty(ctx context.Context, propertyID string) (*lease.Lease, error) {
	return s.getLeaseWhere(ctx, "property_id = ? AND status = 'ACTIVE'", propertyID)
}

func (s *Store) getLeaseWhere(ctx context.Context, where string, args ...any) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leases, err := s.queryLeases(ctx, "SELECT "+leaseColumns+" FROM leases WHERE "+where+" LIMIT 1", args...)
	if err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return nil, nil
	}
	return &leases[0], nil
}

// ListLeasesByTenant returns one page of a tenant's leases plus the total.
func (s *Store) ListLeasesByTenant(ctx context.Context, tenantID string, status lease.Status, page lifecycle.Page) ([]lease.Lease, int, error) {
	return s.listLeases(ctx, "tenant_id", tenantID, status, page)
}

// ListLeasesByLandlord returns one page of a landlord's leases plus the total.
func (s *Store) ListLeasesByLandlord(ctx context.Context, landlordID string, status lease.Status, page lifecycle.Page) ([]lease.Lease, int, error) {
	return s.listLeases(ctx, "landlord_id", landlordID, status, page)
}

func (s *Store) listLeases(ctx context.Context, column, userID string, status lease.Status, page lifecycle.Page) ([]lease.Lease, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := column + " = ?"
	args := []any{userID}
	if status != "" {
		where += " AND status = ?"
		args = append(args, string(status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leases WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	query := "SELECT " + leaseColumns + " FROM leases WHERE " + where +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	leases, err := s.queryLeases(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return leases, total, nil
}

// ExpiredActiveLeases returns ACTIVE leases whose end date is strictly
// before today.
func (s *Store) ExpiredActiveLeases(ctx context.Context, today time.Time) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + leaseColumns + ` FROM leases
		WHERE status = 'ACTIVE' AND end_date < ?
		ORDER BY end_date ASC, id`
	return s.queryLeases(ctx, query, dayString(today))
}

// LeasesEndingBetween returns a landlord's ACTIVE leases ending in [from, to].
func (s *Store) LeasesEndingBetween(ctx context.Context, landlordID string, from, to time.Time) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + leaseColumns + ` FROM leases
		WHERE landlord_id = ? AND status = 'ACTIVE'
		  AND end_date >= ? AND end_date <= ?
		ORDER BY end_date ASC, id`
	return s.queryLeases(ctx, query, landlordID, dayString(from), dayString(to))
}

func (s *Store) queryLeases(ctx context.Context, query string, args ...any) ([]lease.Lease, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leases: %w", err)
	}
	defer rows.Close()

	var leases []lease.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		leases = append(leases, l)
	}
	return leases, rows.Err()
}

func scanLease(rows *sql.Rows) (lease.Lease, error) {
	var (
		l                            lease.Lease
		startDate, endDate           string
		monthlyRent, securityDeposit string
		status                       string
		specialTerms, terminationWhy sql.NullString
		terminationDate, signedAt    sql.NullString
		createdAt, updatedAt         string
	)

	err := rows.Scan(
		&l.ID, &l.PropertyID, &l.TenantID, &l.LandlordID, &l.ApplicationID,
		&startDate, &endDate, &monthlyRent, &securityDeposit, &status,
		&l.NumberOfOccupants, &specialTerms, &l.AutoRenew, &l.NoticeDays,
		&terminationDate, &terminationWhy, &signedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return l, fmt.Errorf("failed to scan lease: %w", err)
	}

	l.StartDate, _ = time.Parse(dates.DayLayout, startDate)
	l.EndDate, _ = time.Parse(dates.DayLayout, endDate)
	l.MonthlyRent = mustDecimal(monthlyRent)
	l.SecurityDeposit = mustDecimal(securityDeposit)
	l.Status = lease.Status(status)
	l.SpecialTerms = specialTerms.String
	l.TerminationReason = terminationWhy.String
	if terminationDate.Valid {
		t, _ := time.Parse(dates.DayLayout, terminationDate.String)
		l.TerminationDate = &t
	}
	if signedAt.Valid {
		t, _ := time.Parse(time.RFC3339, signedAt.String)
		l.SignedAt = &t
	}
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return l, nil
}

// =============================================================================
// PAYMENT STORE (lifecycle.PaymentStore interface)
// =============================================================================

const paymentColumns = `id, lease_id, tenant_id, landlord_id, property_id,
	payment_type, amount, due_date, paid_date, status, method,
	transaction_reference, month_tag, notes, late_fee,
	confirmed_by_landlord, confirmation_date, created_at, updated_at`

// SavePayments inserts a batch of payments atomically. Any failure rolls
// back the whole batch, so a schedule is never half-persisted.
func (s *Store) SavePayments(ctx context.Context, payments []payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, p := range payments {
		if err := s.savePaymentTx(ctx, sqlTx, p); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// SavePayment inserts or replaces a single payment.
func (s *Store) SavePayment(ctx context.Context, p payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.savePaymentTx(ctx, s.db, p)
}

// savePaymentTx upserts one payment row. A row that is already settled
// (PAID or CONFIRMED) only accepts updates that keep it settled, so a
// stray resave can never reset paid history to PENDING.
func (s *Store) savePaymentTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, p payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			paid_date = excluded.paid_date,
			status = excluded.status,
			method = excluded.method,
			transaction_reference = excluded.transaction_reference,
			notes = excluded.notes,
			late_fee = excluded.late_fee,
			confirmed_by_landlord = excluded.confirmed_by_landlord,
			confirmation_date = excluded.confirmation_date,
			updated_at = excluded.updated_at
		WHERE payments.status NOT IN ('PAID', 'CONFIRMED')
		   OR excluded.status IN ('PAID', 'CONFIRMED')
	`

	_, err := db.ExecContext(ctx, query,
		p.ID, p.LeaseID, p.TenantID, p.LandlordID, p.PropertyID,
		string(p.Type), p.Amount.String(), dayString(p.DueDate),
		nullTimestamp(p.PaidDate), string(p.Status), nullString(string(p.Method)),
		nullString(p.TransactionReference), nullString(p.MonthTag), nullString(p.Notes),
		p.LateFee.String(), p.ConfirmedByLandlord, nullTimestamp(p.ConfirmationDate),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID. Returns (nil, nil) when absent.
func (s *Store) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments, err := s.queryPayments(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return &payments[0], nil
}

// CountPaymentsForLease counts a lease's payments, used to make schedule
// generation idempotent.
func (s *Store) CountPaymentsForLease(ctx context.Context, leaseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE lease_id = ?", leaseID,
	).Scan(&count)
	return count, err
}

// ListPaymentsByLease returns the lease's full schedule, due date ascending.
func (s *Store) ListPaymentsByLease(ctx context.Context, leaseID string) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + paymentColumns + ` FROM payments
		WHERE lease_id = ?
		ORDER BY due_date ASC, id`
	return s.queryPayments(ctx, query, leaseID)
}

// ListPaymentsByTenant returns one page of a tenant's payments plus the total.
func (s *Store) ListPaymentsByTenant(ctx context.Context, tenantID string, status payment.Status, page lifecycle.Page) ([]payment.Payment, int, error) {
	return s.listPayments(ctx, "tenant_id", tenantID, status, page)
}

// ListPaymentsByLandlord returns one page of a landlord's payments plus the total.
func (s *Store) ListPaymentsByLandlord(ctx context.Context, landlordID string, status payment.Status, page lifecycle.Page) ([]payment.Payment, int, error) {
	return s.listPayments(ctx, "landlord_id", landlordID, status, page)
}

func (s *Store) listPayments(ctx context.Context, column, userID string, status payment.Status, page lifecycle.Page) ([]payment.Payment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := column + " = ?"
	args := []any{userID}
	if status != "" {
		where += " AND status = ?"
		args = append(args, string(status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	query := "SELECT " + paymentColumns + " FROM payments WHERE " + where +
		" ORDER BY due_date DESC, id LIMIT ? OFFSET ?"
	payments, err := s.queryPayments(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// AllPaymentsByTenant returns every payment of a tenant, unpaged.
func (s *Store) AllPaymentsByTenant(ctx context.Context, tenantID string) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + paymentColumns + " FROM payments WHERE tenant_id = ? ORDER BY due_date ASC, id"
	return s.queryPayments(ctx, query, tenantID)
}

// AllPaymentsByLandlord returns every payment owed to a landlord, unpaged.
func (s *Store) AllPaymentsByLandlord(ctx context.Context, landlordID string) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + paymentColumns + " FROM payments WHERE landlord_id = ? ORDER BY due_date ASC, id"
	return s.queryPayments(ctx, query, landlordID)
}

// OverduePendingPayments returns PENDING payments due strictly before today.
func (s *Store) OverduePendingPayments(ctx context.Context, today time.Time) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + paymentColumns + ` FROM payments
		WHERE status = 'PENDING' AND due_date < ?
		ORDER BY due_date ASC, id`
	return s.queryPayments(ctx, query, dayString(today))
}

// UpcomingPayments returns a tenant's PENDING payments due in [from, to].
func (s *Store) UpcomingPayments(ctx context.Context, tenantID string, from, to time.Time) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + paymentColumns + ` FROM payments
		WHERE tenant_id = ? AND status = 'PENDING'
		  AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC, id`
	return s.queryPayments(ctx, query, tenantID, dayString(from), dayString(to))
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]payment.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(rows *sql.Rows) (payment.Payment, error) {
	var (
		p                          payment.Payment
		paymentType, amount        string
		dueDate, status            string
		lateFee                    string
		paidDate, confirmationDate sql.NullString
		method, transactionRef     sql.NullString
		monthTag, notes            sql.NullString
		createdAt, updatedAt       string
	)

	err := rows.Scan(
		&p.ID, &p.LeaseID, &p.TenantID, &p.LandlordID, &p.PropertyID,
		&paymentType, &amount, &dueDate, &paidDate, &status, &method,
		&transactionRef, &monthTag, &notes, &lateFee,
		&p.ConfirmedByLandlord, &confirmationDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Type = payment.Type(paymentType)
	p.Amount = mustDecimal(amount)
	p.DueDate, _ = time.Parse(dates.DayLayout, dueDate)
	p.Status = payment.Status(status)
	p.Method = payment.Method(method.String)
	p.TransactionReference = transactionRef.String
	p.MonthTag = monthTag.String
	p.Notes = notes.String
	p.LateFee = mustDecimal(lateFee)
	if paidDate.Valid {
		t, _ := time.Parse(time.RFC3339, paidDate.String)
		p.PaidDate = &t
	}
	if confirmationDate.Valid {
		t, _ := time.Parse(time.RFC3339, confirmationDate.String)
		p.ConfirmationDate = &t
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return p, nil
}

// =============================================================================
// SWEEP RUN STORE (lifecycle.SweepRunStore interface)
// =============================================================================

// SaveSweepRun records one sweep execution.
func (s *Store) SaveSweepRun(ctx context.Context, run lifecycle.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, kind, processed, failed, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Kind, run.Processed, run.Failed, nullString(run.Error),
		run.StartedAt.Format(time.RFC3339), run.CompletedAt.Format(time.RFC3339),
	)
	return err
}

// ListSweepRuns returns recent runs of a kind (empty for all), newest first.
func (s *Store) ListSweepRuns(ctx context.Context, kind string, limit int) ([]lifecycle.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := "1=1"
	args := []any{}
	if kind != "" {
		where = "kind = ?"
		args = append(args, kind)
	}

	query := `
		SELECT id, kind, processed, failed, error, started_at, completed_at
		FROM sweep_runs
		WHERE ` + where + `
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []lifecycle.SweepRun
	for rows.Next() {
		var run lifecycle.SweepRun
		var errMsg sql.NullString
		var startedAt, completedAt string
		if err := rows.Scan(&run.ID, &run.Kind, &run.Processed, &run.Failed, &errMsg, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		run.Error = errMsg.String
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.CompletedAt, _ = time.Parse(time.RFC3339, completedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// PROPERTY CATALOG (lifecycle.PropertyCatalog interface)
// =============================================================================

// SaveProperty inserts or replaces a property listing.
func (s *Store) SaveProperty(ctx context.Context, p lifecycle.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO properties (id, landlord_id, status, price, deposit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			landlord_id = excluded.landlord_id,
			status = excluded.status,
			price = excluded.price,
			deposit = excluded.deposit
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.LandlordID, string(p.Status), p.Price.String(), p.Deposit.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetProperty retrieves a property by ID. Returns (nil, nil) when absent.
func (s *Store) GetProperty(ctx context.Context, id string) (*lifecycle.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p lifecycle.Property
	var status, price, deposit string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, landlord_id, status, price, deposit FROM properties WHERE id = ?",
		id,
	).Scan(&p.ID, &p.LandlordID, &status, &price, &deposit)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Status = lifecycle.PropertyStatus(status)
	p.Price = mustDecimal(price)
	p.Deposit = mustDecimal(deposit)
	return &p, nil
}

// SetPropertyStatus flips a property's availability.
func (s *Store) SetPropertyStatus(ctx context.Context, id string, status lifecycle.PropertyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE properties SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("property %s: %w", id, lifecycle.ErrPropertyNotFound)
	}
	return nil
}

// =============================================================================
// USER DIRECTORY (lifecycle.Directory interface)
// =============================================================================

// SaveUser inserts or replaces a user record.
func (s *Store) SaveUser(ctx context.Context, u lifecycle.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, role, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET role = excluded.role
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, string(u.Role), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*lifecycle.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u lifecycle.User
	var role string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, role FROM users WHERE id = ?", id,
	).Scan(&u.ID, &role)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Role = lifecycle.Role(role)
	return &u, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "leases", "properties", "users", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func dayString(t time.Time) string {
	return t.Format(dates.DayLayout)
}

func nullDay(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dates.DayLayout), Valid: true}
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
