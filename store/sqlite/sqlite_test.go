package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/payment"
	"github.com/lodgia/lease-engine/store/sqlite"
)

// =============================================================================
// FIXTURES
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var auditTime = time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC)

func testLease(id, propertyID string, status lease.Status) lease.Lease {
	return lease.Lease{
		ID:              id,
		PropertyID:      propertyID,
		TenantID:        "tenant-1",
		LandlordID:      "landlord-1",
		StartDate:       dates.Date(2026, time.January, 1),
		EndDate:         dates.Date(2026, time.December, 31),
		MonthlyRent:     decimal.NewFromInt(25000),
		SecurityDeposit: decimal.NewFromInt(50000),
		Status:          status,
		NoticeDays:      lease.DefaultNoticeDays,
		CreatedAt:       auditTime,
		UpdatedAt:       auditTime,
	}
}

func testPayment(id string, dueDate time.Time, status payment.Status) payment.Payment {
	return payment.Payment{
		ID:         id,
		LeaseID:    "lease-1",
		TenantID:   "tenant-1",
		LandlordID: "landlord-1",
		PropertyID: "prop-1",
		Type:       payment.TypeRent,
		Amount:     decimal.NewFromInt(25000),
		DueDate:    dueDate,
		Status:     status,
		LateFee:    decimal.Zero,
		CreatedAt:  auditTime,
		UpdatedAt:  auditTime,
	}
}

// =============================================================================
// LEASES
// =============================================================================

func TestLeaseRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	termination := dates.Date(2026, time.June, 30)
	signed := time.Date(2025, time.December, 20, 9, 30, 0, 0, time.UTC)

	in := testLease("lease-1", "prop-1", lease.StatusTerminated)
	in.ApplicationID = "app-1"
	in.NumberOfOccupants = 3
	in.SpecialTerms = "no pets"
	in.AutoRenew = true
	in.TerminationDate = &termination
	in.TerminationReason = "tenant relocated"
	in.SignedAt = &signed
	require.NoError(t, store.SaveLease(ctx, in))

	got, err := store.GetLease(ctx, "lease-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.ApplicationID, got.ApplicationID)
	assert.True(t, got.StartDate.Equal(in.StartDate))
	assert.True(t, got.EndDate.Equal(in.EndDate))
	assert.True(t, got.MonthlyRent.Equal(in.MonthlyRent))
	assert.True(t, got.SecurityDeposit.Equal(in.SecurityDeposit))
	assert.Equal(t, lease.StatusTerminated, got.Status)
	assert.Equal(t, 3, got.NumberOfOccupants)
	assert.Equal(t, "no pets", got.SpecialTerms)
	assert.True(t, got.AutoRenew)
	assert.Equal(t, lease.DefaultNoticeDays, got.NoticeDays)
	require.NotNil(t, got.TerminationDate)
	assert.True(t, got.TerminationDate.Equal(termination))
	assert.Equal(t, "tenant relocated", got.TerminationReason)
	require.NotNil(t, got.SignedAt)
	assert.True(t, got.SignedAt.Equal(signed))
	assert.True(t, got.CreatedAt.Equal(auditTime))
}

func TestGetLease_AbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetLease(context.Background(), "no-such-lease")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveLease_OneActivePerProperty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLease(ctx, testLease("lease-1", "prop-1", lease.StatusActive)))

	// A second ACTIVE lease on the same property violates the partial
	// unique index.
	err := store.SaveLease(ctx, testLease("lease-2", "prop-1", lease.StatusActive))
	require.Error(t, err)
	assert.ErrorIs(t, err, lease.ErrAlreadyExists)
	var exists *lease.AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "prop-1", exists.PropertyID)

	// A non-active lease on the same property is fine.
	require.NoError(t, store.SaveLease(ctx, testLease("lease-3", "prop-1", lease.StatusTerminated)))

	// Once the active lease ends, the slot frees up.
	ended := testLease("lease-1", "prop-1", lease.StatusExpired)
	require.NoError(t, store.SaveLease(ctx, ended))
	require.NoError(t, store.SaveLease(ctx, testLease("lease-4", "prop-1", lease.StatusActive)))
}

func TestSaveLease_OneLeasePerApplication(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testLease("lease-1", "prop-1", lease.StatusTerminated)
	first.ApplicationID = "app-1"
	require.NoError(t, store.SaveLease(ctx, first))

	dup := testLease("lease-2", "prop-2", lease.StatusTerminated)
	dup.ApplicationID = "app-1"
	err := store.SaveLease(ctx, dup)
	require.Error(t, err)
	var exists *lease.AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "app-1", exists.ApplicationID)

	// Manually created leases have no application and never collide.
	require.NoError(t, store.SaveLease(ctx, testLease("lease-3", "prop-3", lease.StatusTerminated)))
	require.NoError(t, store.SaveLease(ctx, testLease("lease-4", "prop-4", lease.StatusTerminated)))

	got, err := store.GetLeaseByApplication(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "lease-1", got.ID)
}

func TestListLeasesByTenant_Pagination(t *testing.T) {
	// GIVEN five leases created at different times, one of them expired
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l := testLease(fmt.Sprintf("lease-%d", i), fmt.Sprintf("prop-%d", i), lease.StatusActive)
		if i == 0 {
			l.Status = lease.StatusExpired
		}
		l.CreatedAt = auditTime.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.SaveLease(ctx, l))
	}

	// WHEN listing page by page
	pageOne, total, err := store.ListLeasesByTenant(ctx, "tenant-1", "", lifecycle.Page{Number: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, pageOne, 2)

	// THEN newest first
	assert.Equal(t, "lease-4", pageOne[0].ID)
	assert.Equal(t, "lease-3", pageOne[1].ID)

	lastPage, _, err := store.ListLeasesByTenant(ctx, "tenant-1", "", lifecycle.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, lastPage, 1)
	assert.Equal(t, "lease-0", lastPage[0].ID)

	// AND a status filter narrows both items and total
	active, activeTotal, err := store.ListLeasesByTenant(ctx, "tenant-1", lease.StatusActive, lifecycle.Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, activeTotal)
	assert.Len(t, active, 4)
}

func TestExpiredActiveLeases_Boundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	today := dates.Date(2026, time.July, 1)

	past := testLease("lease-past", "prop-1", lease.StatusActive)
	past.EndDate = dates.Date(2026, time.June, 30)
	require.NoError(t, store.SaveLease(ctx, past))

	onEnd := testLease("lease-today", "prop-2", lease.StatusActive)
	onEnd.EndDate = today
	require.NoError(t, store.SaveLease(ctx, onEnd))

	alreadyExpired := testLease("lease-done", "prop-3", lease.StatusExpired)
	alreadyExpired.EndDate = dates.Date(2026, time.May, 31)
	require.NoError(t, store.SaveLease(ctx, alreadyExpired))

	got, err := store.ExpiredActiveLeases(ctx, today)
	require.NoError(t, err)
	require.Len(t, got, 1, "only the ACTIVE lease strictly past its end date")
	assert.Equal(t, "lease-past", got[0].ID)
}

func TestLeasesEndingBetween_Boundaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	from := dates.Date(2026, time.July, 1)
	to := dates.Date(2026, time.July, 31)

	ends := func(id, prop string, end time.Time) lease.Lease {
		l := testLease(id, prop, lease.StatusActive)
		l.EndDate = end
		return l
	}
	require.NoError(t, store.SaveLease(ctx, ends("on-from", "prop-1", from)))
	require.NoError(t, store.SaveLease(ctx, ends("on-to", "prop-2", to)))
	require.NoError(t, store.SaveLease(ctx, ends("before", "prop-3", dates.Date(2026, time.June, 30))))
	require.NoError(t, store.SaveLease(ctx, ends("after", "prop-4", dates.Date(2026, time.August, 1))))

	other := ends("other-landlord", "prop-5", dates.Date(2026, time.July, 15))
	other.LandlordID = "landlord-2"
	require.NoError(t, store.SaveLease(ctx, other))

	got, err := store.LeasesEndingBetween(ctx, "landlord-1", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "on-from", got[0].ID)
	assert.Equal(t, "on-to", got[1].ID)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestPaymentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paidAt := time.Date(2026, time.February, 3, 14, 0, 0, 0, time.UTC)
	confirmedAt := time.Date(2026, time.February, 4, 9, 0, 0, 0, time.UTC)

	in := testPayment("lease-1-rent-2026-02", dates.Date(2026, time.February, 1), payment.StatusConfirmed)
	in.MonthTag = "2026-02"
	in.PaidDate = &paidAt
	in.Method = payment.MethodKhalti
	in.TransactionReference = "TXN-42"
	in.Notes = "paid late"
	in.LateFee = decimal.RequireFromString("33.33")
	in.ConfirmedByLandlord = true
	in.ConfirmationDate = &confirmedAt
	require.NoError(t, store.SavePayment(ctx, in))

	got, err := store.GetPayment(ctx, "lease-1-rent-2026-02")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, payment.TypeRent, got.Type)
	assert.True(t, got.Amount.Equal(in.Amount))
	assert.True(t, got.DueDate.Equal(in.DueDate))
	require.NotNil(t, got.PaidDate)
	assert.True(t, got.PaidDate.Equal(paidAt))
	assert.Equal(t, payment.StatusConfirmed, got.Status)
	assert.Equal(t, payment.MethodKhalti, got.Method)
	assert.Equal(t, "TXN-42", got.TransactionReference)
	assert.Equal(t, "2026-02", got.MonthTag)
	assert.Equal(t, "paid late", got.Notes)
	assert.True(t, got.LateFee.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, got.ConfirmedByLandlord)
	require.NotNil(t, got.ConfirmationDate)
	assert.True(t, got.ConfirmationDate.Equal(confirmedAt))
}

func TestSavePayments_BatchAndOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := []payment.Payment{
		testPayment("lease-1-rent-2026-03", dates.Date(2026, time.March, 1), payment.StatusPending),
		testPayment("lease-1-deposit", dates.Date(2026, time.January, 1), payment.StatusPending),
		testPayment("lease-1-rent-2026-02", dates.Date(2026, time.February, 1), payment.StatusPending),
	}
	require.NoError(t, store.SavePayments(ctx, batch))

	count, err := store.CountPaymentsForLease(ctx, "lease-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// The schedule comes back due date ascending regardless of insert order.
	schedule, err := store.ListPaymentsByLease(ctx, "lease-1")
	require.NoError(t, err)
	require.Len(t, schedule, 3)
	assert.Equal(t, "lease-1-deposit", schedule[0].ID)
	assert.Equal(t, "lease-1-rent-2026-02", schedule[1].ID)
	assert.Equal(t, "lease-1-rent-2026-03", schedule[2].ID)
}

func TestSavePayment_ResaveKeepsImmutableColumns(t *testing.T) {
	// GIVEN a persisted pending payment
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayment(ctx, testPayment("pay-1", dates.Date(2026, time.February, 1), payment.StatusPending)))

	// WHEN it is saved again as paid, with a tampered amount and due date
	paidAt := time.Date(2026, time.February, 2, 8, 0, 0, 0, time.UTC)
	resave := testPayment("pay-1", dates.Date(2026, time.March, 15), payment.StatusPaid)
	resave.Amount = decimal.NewFromInt(1)
	resave.PaidDate = &paidAt
	resave.Method = payment.MethodCash
	require.NoError(t, store.SavePayment(ctx, resave))

	// THEN settlement fields update but the obligation itself does not
	got, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, got.Status)
	assert.Equal(t, payment.MethodCash, got.Method)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(25000)))
	assert.True(t, got.DueDate.Equal(dates.Date(2026, time.February, 1)))
}

func TestSavePayments_NeverRevertsSettledRows(t *testing.T) {
	// GIVEN a paid payment with its full settlement record
	store := newTestStore(t)
	ctx := context.Background()
	paidAt := time.Date(2026, time.February, 2, 8, 0, 0, 0, time.UTC)
	settled := testPayment("pay-1", dates.Date(2026, time.February, 1), payment.StatusPaid)
	settled.PaidDate = &paidAt
	settled.Method = payment.MethodESewa
	settled.TransactionReference = "TXN-42"
	require.NoError(t, store.SavePayment(ctx, settled))

	// WHEN a batch upsert carries the same id back as pending (e.g. a
	// schedule regeneration gone wrong)
	require.NoError(t, store.SavePayments(ctx, []payment.Payment{
		testPayment("pay-1", dates.Date(2026, time.February, 1), payment.StatusPending),
		testPayment("pay-2", dates.Date(2026, time.March, 1), payment.StatusPending),
	}))

	// THEN the settled row keeps its history, the new row still lands
	got, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, got.Status)
	assert.Equal(t, payment.MethodESewa, got.Method)
	assert.Equal(t, "TXN-42", got.TransactionReference)
	require.NotNil(t, got.PaidDate)
	assert.True(t, got.PaidDate.Equal(paidAt))

	fresh, err := store.GetPayment(ctx, "pay-2")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, fresh.Status)

	// AND a settled-to-settled update still applies (confirmation)
	settled.Status = payment.StatusConfirmed
	settled.ConfirmedByLandlord = true
	require.NoError(t, store.SavePayment(ctx, settled))
	got, err = store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusConfirmed, got.Status)
}

func TestOverduePendingPayments_Boundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	today := dates.Date(2026, time.February, 2)

	require.NoError(t, store.SavePayment(ctx, testPayment("due-yesterday", dates.Date(2026, time.February, 1), payment.StatusPending)))
	require.NoError(t, store.SavePayment(ctx, testPayment("due-today", today, payment.StatusPending)))
	require.NoError(t, store.SavePayment(ctx, testPayment("already-paid", dates.Date(2026, time.January, 1), payment.StatusPaid)))

	got, err := store.OverduePendingPayments(ctx, today)
	require.NoError(t, err)
	require.Len(t, got, 1, "due today is not overdue yet")
	assert.Equal(t, "due-yesterday", got[0].ID)
}

func TestUpcomingPayments_Window(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	from := dates.Date(2026, time.February, 1)
	to := dates.Date(2026, time.February, 8)

	require.NoError(t, store.SavePayment(ctx, testPayment("at-from", from, payment.StatusPending)))
	require.NoError(t, store.SavePayment(ctx, testPayment("at-to", to, payment.StatusPending)))
	require.NoError(t, store.SavePayment(ctx, testPayment("past-window", dates.Date(2026, time.February, 9), payment.StatusPending)))
	require.NoError(t, store.SavePayment(ctx, testPayment("cancelled", dates.Date(2026, time.February, 5), payment.StatusCancelled)))

	got, err := store.UpcomingPayments(ctx, "tenant-1", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "at-from", got[0].ID)
	assert.Equal(t, "at-to", got[1].ID)
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

func TestSweepRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, kind := range []string{"expirations", "overdue", "expirations"} {
		require.NoError(t, store.SaveSweepRun(ctx, lifecycle.SweepRun{
			ID:          fmt.Sprintf("run-%d", i),
			Kind:        kind,
			Processed:   i,
			StartedAt:   auditTime.Add(time.Duration(i) * time.Minute),
			CompletedAt: auditTime.Add(time.Duration(i)*time.Minute + 5*time.Second),
		}))
	}

	expirations, err := store.ListSweepRuns(ctx, "expirations", 10)
	require.NoError(t, err)
	require.Len(t, expirations, 2)
	assert.Equal(t, "run-2", expirations[0].ID, "newest first")

	all, err := store.ListSweepRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2, "limit applies")
	assert.Equal(t, "run-2", all[0].ID)
	assert.Equal(t, "run-1", all[1].ID)
}

// =============================================================================
// PROPERTIES AND USERS
// =============================================================================

func TestPropertyCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProperty(ctx, lifecycle.Property{
		ID:         "prop-1",
		LandlordID: "landlord-1",
		Status:     lifecycle.PropertyAvailable,
		Price:      decimal.NewFromInt(25000),
		Deposit:    decimal.NewFromInt(50000),
	}))

	got, err := store.GetProperty(ctx, "prop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lifecycle.PropertyAvailable, got.Status)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(25000)))

	require.NoError(t, store.SetPropertyStatus(ctx, "prop-1", lifecycle.PropertyRented))
	got, err = store.GetProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PropertyRented, got.Status)

	err = store.SetPropertyStatus(ctx, "no-such-prop", lifecycle.PropertyAvailable)
	assert.True(t, errors.Is(err, lifecycle.ErrPropertyNotFound))

	absent, err := store.GetProperty(ctx, "no-such-prop")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestUserDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, lifecycle.User{ID: "user-1", Role: lifecycle.RoleTenant}))

	got, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lifecycle.RoleTenant, got.Role)

	// Role changes overwrite in place.
	require.NoError(t, store.SaveUser(ctx, lifecycle.User{ID: "user-1", Role: lifecycle.RoleAdmin}))
	got, err = store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RoleAdmin, got.Role)

	absent, err := store.GetUser(ctx, "no-such-user")
	require.NoError(t, err)
	assert.Nil(t, absent)
}
