/*
handlers_test.go - HTTP-level tests for the REST API

Tests drive the real router with httptest against the in-memory store, so
routing, identity extraction, status mapping, and DTO shaping are all
covered together.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/store/memory"
)

// =============================================================================
// FIXTURES
// =============================================================================

const (
	testLandlord = "landlord-1"
	testTenant   = "tenant-1"
	testAdmin    = "admin-1"
	testProperty = "prop-1"
)

func newTestServer(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()

	engine := lifecycle.New(store, store, store, store)
	engine.Runs = store
	engine.Now = func() time.Time {
		return time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC)
	}

	store.PutUser(lifecycle.User{ID: testLandlord, Role: lifecycle.RoleLandlord})
	store.PutUser(lifecycle.User{ID: testTenant, Role: lifecycle.RoleTenant})
	store.PutUser(lifecycle.User{ID: testAdmin, Role: lifecycle.RoleAdmin})
	store.PutProperty(lifecycle.Property{
		ID:         testProperty,
		LandlordID: testLandlord,
		Status:     lifecycle.PropertyAvailable,
		Price:      decimal.NewFromInt(25000),
		Deposit:    decimal.NewFromInt(50000),
	})

	return NewRouter(NewHandler(engine)), store
}

func doRequest(t *testing.T, handler http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

func createLeaseBody() map[string]any {
	return map[string]any{
		"property_id":      testProperty,
		"tenant_id":        testTenant,
		"start_date":       "2026-01-01",
		"end_date":         "2026-12-31",
		"monthly_rent":     "25000",
		"security_deposit": "50000",
	}
}

// =============================================================================
// IDENTITY AND ERROR MAPPING
// =============================================================================

func TestMissingIdentityHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/leases/lease-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetLease_StatusMapping(t *testing.T) {
	// GIVEN a lease owned by tenant-1 and landlord-1
	srv, _ := newTestServer(t)
	created := decodeBody[LeaseDTO](t,
		doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody()))

	// Unknown id maps to 404.
	rec := doRequest(t, srv, http.MethodGet, "/api/leases/no-such-lease", testAdmin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A third party maps to 403.
	rec = doRequest(t, srv, http.MethodGet, "/api/leases/"+created.ID, "someone-else", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Parties see the lease.
	rec = doRequest(t, srv, http.MethodGet, "/api/leases/"+created.ID, testTenant, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// LEASE LIFECYCLE OVER HTTP
// =============================================================================

func TestCreateLease(t *testing.T) {
	// GIVEN an available property
	srv, _ := newTestServer(t)

	// WHEN the landlord posts a new lease
	rec := doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody())

	// THEN it is created with computed fields filled in
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	dto := decodeBody[LeaseDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "ACTIVE", dto.Status)
	assert.Equal(t, 12, dto.DurationMonths)
	assert.Equal(t, 30, dto.NoticeDays)

	// AND the full schedule is queryable
	payments := doRequest(t, srv, http.MethodGet, "/api/leases/"+dto.ID+"/payments", testTenant, nil)
	require.Equal(t, http.StatusOK, payments.Code)
	schedule := decodeBody[[]PaymentDTO](t, payments)
	assert.Len(t, schedule, 13)

	// AND a duplicate active lease on the property conflicts
	rec = doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateLease_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	bad := createLeaseBody()
	bad["monthly_rent"] = "lots"
	rec := doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	backwards := createLeaseBody()
	backwards["start_date"] = "2026-12-31"
	backwards["end_date"] = "2026-01-01"
	rec = doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, backwards)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLeaseFromApplication(t *testing.T) {
	srv, _ := newTestServer(t)

	body := map[string]any{
		"application_id":        "app-1",
		"property_id":           testProperty,
		"tenant_id":             testTenant,
		"move_in_date":          "2026-02-01",
		"lease_duration_months": 12,
		"number_of_occupants":   2,
	}
	rec := doRequest(t, srv, http.MethodPost, "/api/leases/from-application", testAdmin, body)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	dto := decodeBody[LeaseDTO](t, rec)
	assert.Equal(t, "25000.00", dto.MonthlyRent, "terms come from the listing")
	assert.Equal(t, "2027-02-01", dto.EndDate)

	// Replaying the approval conflicts instead of duplicating.
	rec = doRequest(t, srv, http.MethodPost, "/api/leases/from-application", testAdmin, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTerminateLease(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeBody[LeaseDTO](t,
		doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody()))

	// Inside the notice period maps to 400.
	rec := doRequest(t, srv, http.MethodPost, "/api/leases/"+created.ID+"/terminate", testTenant,
		map[string]any{"termination_date": "2026-01-15", "reason": "relocating"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A date past the notice period succeeds.
	rec = doRequest(t, srv, http.MethodPost, "/api/leases/"+created.ID+"/terminate", testTenant,
		map[string]any{"termination_date": "2026-02-05", "reason": "relocating"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	dto := decodeBody[LeaseDTO](t, rec)
	assert.Equal(t, "TERMINATED", dto.Status)
	assert.Equal(t, "2026-02-05", dto.TerminationDate)

	// Terminating again conflicts.
	rec = doRequest(t, srv, http.MethodPost, "/api/leases/"+created.ID+"/terminate", testTenant,
		map[string]any{"termination_date": "2026-03-05", "reason": "relocating"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRenewLease(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeBody[LeaseDTO](t,
		doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody()))

	// Only the landlord may renew.
	rec := doRequest(t, srv, http.MethodPost, "/api/leases/"+created.ID+"/renew", testTenant,
		map[string]any{"new_end_date": "2027-06-30"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/leases/"+created.ID+"/renew", testLandlord,
		map[string]any{"new_end_date": "2027-06-30"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	dto := decodeBody[LeaseDTO](t, rec)
	assert.Equal(t, "2027-06-30", dto.EndDate)
	assert.Equal(t, "ACTIVE", dto.Status)
}

func TestUpdateLease(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeBody[LeaseDTO](t,
		doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody()))

	rec := doRequest(t, srv, http.MethodPut, "/api/leases/"+created.ID, testLandlord,
		map[string]any{"special_terms": "no pets", "auto_renew": true})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	dto := decodeBody[LeaseDTO](t, rec)
	assert.Equal(t, "no pets", dto.SpecialTerms)
	assert.True(t, dto.AutoRenew)
}

func TestListTenantLeases_Paged(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody())

	rec := doRequest(t, srv, http.MethodGet, "/api/leases/tenant/"+testTenant+"?page=0&size=5", testTenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[LeasePageDTO](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Size)
	require.Len(t, page.Leases, 1)
}

// =============================================================================
// PAYMENT LIFECYCLE OVER HTTP
// =============================================================================

func TestPaymentFlow(t *testing.T) {
	// GIVEN a lease and its deposit payment
	srv, _ := newTestServer(t)
	created := decodeBody[LeaseDTO](t,
		doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody()))
	depositID := created.ID + "-deposit"

	// Confirming before payment conflicts.
	rec := doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/confirm", testLandlord, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// An unknown payment method is rejected.
	rec = doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/pay", testTenant,
		map[string]any{"method": "IOU"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// WHEN the tenant pays
	rec = doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/pay", testTenant,
		map[string]any{"method": "ESEWA", "transaction_reference": "TXN-1"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	paid := decodeBody[PaymentDTO](t, rec)
	assert.Equal(t, "PAID", paid.Status)
	assert.Equal(t, "ESEWA", paid.Method)

	// AND the landlord confirms
	rec = doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/confirm", testLandlord, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decodeBody[PaymentDTO](t, rec)
	assert.Equal(t, "CONFIRMED", confirmed.Status)
	assert.True(t, confirmed.ConfirmedByLandlord)

	// THEN the totals reflect the settled deposit
	rec = doRequest(t, srv, http.MethodGet, "/api/payments/tenant/"+testTenant+"/statistics", testTenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[StatisticsDTO](t, rec)
	assert.Equal(t, "50000.00", stats.TotalPaid)
	assert.Equal(t, 1, stats.CountPaid)
}

func TestPaymentFlow_BackdatedSettlement(t *testing.T) {
	// GIVEN the deposit of a fresh lease
	srv, _ := newTestServer(t)
	created := decodeBody[LeaseDTO](t,
		doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody()))
	depositID := created.ID + "-deposit"

	// A malformed paid date is rejected before anything changes.
	rec := doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/pay", testTenant,
		map[string]any{"method": "CASH", "paid_date": "05/01/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// WHEN the tenant records a cash payment made days earlier, with the
	// late fee the landlord agreed on
	rec = doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/pay", testTenant,
		map[string]any{"method": "CASH", "paid_date": "2025-12-28", "late_fee": "12.50"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	paid := decodeBody[PaymentDTO](t, rec)
	assert.Equal(t, "PAID", paid.Status)
	assert.Equal(t, "2025-12-28T00:00:00Z", paid.PaidDate)
	assert.Equal(t, "12.50", paid.LateFee)

	// AND the landlord confirms with a date and note of their own
	rec = doRequest(t, srv, http.MethodPost, "/api/payments/"+depositID+"/confirm", testLandlord,
		map[string]any{"confirmation_date": "2025-12-29", "notes": "counted and banked"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	confirmed := decodeBody[PaymentDTO](t, rec)
	assert.Equal(t, "CONFIRMED", confirmed.Status)
	assert.Equal(t, "2025-12-29T00:00:00Z", confirmed.ConfirmationDate)
	assert.Contains(t, confirmed.Notes, "counted and banked")
}

func TestListUpcomingPayments_DefaultWindow(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/leases", testLandlord, createLeaseBody())

	// Deposit and January rent are due today; the next rent is a month out.
	rec := doRequest(t, srv, http.MethodGet, "/api/payments/tenant/"+testTenant+"/upcoming", testTenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	upcoming := decodeBody[[]PaymentDTO](t, rec)
	assert.Len(t, upcoming, 2)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestSweepEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/sweeps/expirations", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[lifecycle.SweepResult](t, rec)
	assert.Equal(t, lifecycle.SweepKindExpirations, result.Kind)
	assert.Equal(t, 0, result.Processed)

	rec = doRequest(t, srv, http.MethodPost, "/api/admin/sweeps/overdue", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	runs := doRequest(t, srv, http.MethodGet, "/api/admin/sweeps/runs", testAdmin, nil)
	require.Equal(t, http.StatusOK, runs.Code)
	audit := decodeBody[[]SweepRunDTO](t, runs)
	assert.Len(t, audit, 2)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
