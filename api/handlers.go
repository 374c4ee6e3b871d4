/*
handlers.go - HTTP API handlers for the lease and payment engine

PURPOSE:
  Exposes the lifecycle orchestrator via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Leases:
    POST   /api/leases                             Create lease (landlord)
    POST   /api/leases/from-application            Create from approved application
    GET    /api/leases/{id}                        Get lease details
    PUT    /api/leases/{id}                        Update mutable terms
    POST   /api/leases/{id}/terminate              Terminate early
    POST   /api/leases/{id}/renew                  Renew / extend
    GET    /api/leases/{id}/payments               Full payment schedule
    GET    /api/leases/tenant/{userID}             Tenant's leases (paged)
    GET    /api/leases/landlord/{userID}           Landlord's leases (paged)
    GET    /api/leases/landlord/{userID}/expiring  Leases ending soon
    GET    /api/leases/property/{propertyID}/active Current active lease

  Payments:
    GET    /api/payments/{id}                      Get payment details
    POST   /api/payments/{id}/pay                  Mark paid (tenant)
    POST   /api/payments/{id}/confirm              Confirm receipt (landlord)
    GET    /api/payments/tenant/{userID}           Tenant's payments (paged)
    GET    /api/payments/landlord/{userID}         Landlord's payments (paged)
    GET    /api/payments/tenant/{userID}/statistics
    GET    /api/payments/landlord/{userID}/statistics
    GET    /api/payments/tenant/{userID}/upcoming  Reminders

  Admin:
    POST   /api/admin/sweeps/expirations           Trigger expiration sweep
    POST   /api/admin/sweeps/overdue               Trigger overdue sweep
    GET    /api/admin/sweeps/runs                  Sweep audit trail

IDENTITY:
  The requester is taken from the X-User-ID header. Authentication itself
  is expected at the gateway; this service only does authorization.

ERROR HANDLING:
  Domain errors map to HTTP status by sentinel:
  - 400: Invalid dates, malformed input
  - 403: Access denied
  - 404: Lease/payment/property/user not found
  - 409: Conflict (duplicate lease, invalid state transition)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - lifecycle: The orchestrator all handlers delegate to
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/payment"
)

// userIDHeader carries the authenticated caller's identity, set by the
// gateway in front of this service.
const userIDHeader = "X-User-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *lifecycle.Orchestrator
}

// NewHandler creates a new handler around the orchestrator.
func NewHandler(engine *lifecycle.Orchestrator) *Handler {
	return &Handler{Engine: engine}
}

func (h *Handler) today() time.Time {
	return dates.Day(h.Engine.Now().UTC())
}

// =============================================================================
// LEASE HANDLERS
// =============================================================================

// CreateLease creates a lease with caller-supplied terms.
func (h *Handler) CreateLease(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := dates.Parse(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := dates.Parse(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	rent, err := decimal.NewFromString(req.MonthlyRent)
	if err != nil || rent.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid monthly_rent", err)
		return
	}
	deposit, err := decimal.NewFromString(req.SecurityDeposit)
	if err != nil || deposit.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid security_deposit", err)
		return
	}

	l, err := h.Engine.CreateManual(r.Context(), lifecycle.CreateLeaseRequest{
		PropertyID:        req.PropertyID,
		TenantID:          req.TenantID,
		StartDate:         start,
		EndDate:           end,
		MonthlyRent:       rent,
		SecurityDeposit:   deposit,
		NumberOfOccupants: req.NumberOfOccupants,
		SpecialTerms:      req.SpecialTerms,
		AutoRenew:         req.AutoRenew,
		NoticeDays:        req.NoticeDays,
	}, requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaseDTO(l, h.today()))
}

// CreateLeaseFromApplication creates a lease from an approved application.
func (h *Handler) CreateLeaseFromApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateFromApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	moveIn, err := dates.Parse(req.MoveInDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid move_in_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.LeaseDurationMonths <= 0 {
		writeError(w, http.StatusBadRequest, "lease_duration_months must be positive", nil)
		return
	}

	l, err := h.Engine.CreateFromApplication(r.Context(), lifecycle.ApprovedApplication{
		ApplicationID:       req.ApplicationID,
		PropertyID:          req.PropertyID,
		TenantID:            req.TenantID,
		MoveInDate:          moveIn,
		LeaseDurationMonths: req.LeaseDurationMonths,
		NumberOfOccupants:   req.NumberOfOccupants,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaseDTO(l, h.today()))
}

// GetLease returns a single lease.
func (h *Handler) GetLease(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	l, err := h.Engine.GetLease(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaseDTO(l, h.today()))
}

// UpdateLease edits the mutable terms of a lease.
func (h *Handler) UpdateLease(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	l, err := h.Engine.UpdateTerms(r.Context(), chi.URLParam(r, "id"), lifecycle.UpdateLeaseRequest{
		SpecialTerms: req.SpecialTerms,
		AutoRenew:    req.AutoRenew,
		NoticeDays:   req.NoticeDays,
	}, requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaseDTO(l, h.today()))
}

// TerminateLease ends a lease early.
func (h *Handler) TerminateLease(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req TerminateLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	termination, err := dates.Parse(req.TerminationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid termination_date format (use YYYY-MM-DD)", err)
		return
	}

	l, err := h.Engine.Terminate(r.Context(), chi.URLParam(r, "id"), requester, termination, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaseDTO(l, h.today()))
}

// RenewLease extends a lease's end date.
func (h *Handler) RenewLease(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RenewLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	newEnd, err := dates.Parse(req.NewEndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_end_date format (use YYYY-MM-DD)", err)
		return
	}

	l, err := h.Engine.Renew(r.Context(), chi.URLParam(r, "id"), requester, newEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaseDTO(l, h.today()))
}

// ListTenantLeases lists a tenant's leases, paged.
func (h *Handler) ListTenantLeases(w http.ResponseWriter, r *http.Request) {
	h.listLeases(w, r, h.Engine.ListTenantLeases)
}

// ListLandlordLeases lists a landlord's leases, paged.
func (h *Handler) ListLandlordLeases(w http.ResponseWriter, r *http.Request) {
	h.listLeases(w, r, h.Engine.ListLandlordLeases)
}

func (h *Handler) listLeases(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID, requesterID string, status lease.Status, page lifecycle.Page) (lifecycle.LeasePage, error)) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	status := lease.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status filter", nil)
		return
	}

	result, err := list(r.Context(), chi.URLParam(r, "userID"), requester, status, parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	today := h.today()
	dtos := make([]LeaseDTO, len(result.Leases))
	for i := range result.Leases {
		dtos[i] = toLeaseDTO(&result.Leases[i], today)
	}
	writeJSON(w, http.StatusOK, LeasePageDTO{
		Leases:     dtos,
		Total:      result.Total,
		Page:       result.Page,
		Size:       result.Size,
		TotalPages: result.TotalPages,
	})
}

// ListExpiringLeases lists a landlord's leases ending within ?days (default 30).
func (h *Handler) ListExpiringLeases(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	landlordID := chi.URLParam(r, "userID")
	if landlordID != requester {
		writeError(w, http.StatusForbidden, "Access denied", nil)
		return
	}

	days := queryInt(r, "days", 30)
	leases, err := h.Engine.ListExpiringWithin(r.Context(), landlordID, days)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	today := h.today()
	dtos := make([]LeaseDTO, len(leases))
	for i := range leases {
		dtos[i] = toLeaseDTO(&leases[i], today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActiveLeaseForProperty returns a property's current active lease.
func (h *Handler) GetActiveLeaseForProperty(w http.ResponseWriter, r *http.Request) {
	l, err := h.Engine.ActiveLeaseForProperty(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaseDTO(l, h.today()))
}

// ListLeasePayments returns a lease's full payment schedule.
func (h *Handler) ListLeasePayments(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	payments, err := h.Engine.ListPaymentsByLease(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toPaymentDTOs(payments))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	p, err := h.Engine.GetPayment(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTO(p, h.today()))
}

// MarkPaid records a tenant payment.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	method := payment.Method(req.Method)
	if method == "" {
		method = payment.MethodOther
	}
	if !method.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid payment method", nil)
		return
	}

	mark := lifecycle.MarkPaidRequest{
		Method:               method,
		TransactionReference: req.TransactionReference,
		Notes:                req.Notes,
	}
	if req.PaidDate != "" {
		d, err := dates.Parse(req.PaidDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid date", err)
			return
		}
		mark.PaidDate = &d
	}
	if req.LateFee != "" {
		fee, err := decimal.NewFromString(req.LateFee)
		if err != nil || fee.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid late fee", err)
			return
		}
		mark.LateFee = &fee
	}

	p, err := h.Engine.MarkPaid(r.Context(), chi.URLParam(r, "id"), requester, mark)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTO(p, h.today()))
}

// ConfirmPayment is the landlord acknowledging receipt. The body is
// optional; an empty one confirms at the server clock with no notes.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	confirm := lifecycle.ConfirmRequest{Notes: req.Notes}
	if req.ConfirmationDate != "" {
		d, err := dates.Parse(req.ConfirmationDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid confirmation date", err)
			return
		}
		confirm.ConfirmationDate = &d
	}

	p, err := h.Engine.ConfirmPayment(r.Context(), chi.URLParam(r, "id"), requester, confirm)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTO(p, h.today()))
}

// ListTenantPayments lists a tenant's payments, paged.
func (h *Handler) ListTenantPayments(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, h.Engine.ListTenantPayments)
}

// ListLandlordPayments lists a landlord's payments, paged.
func (h *Handler) ListLandlordPayments(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, h.Engine.ListLandlordPayments)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID, requesterID string, status payment.Status, page lifecycle.Page) (lifecycle.PaymentPage, error)) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	status := payment.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status filter", nil)
		return
	}

	result, err := list(r.Context(), chi.URLParam(r, "userID"), requester, status, parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentPageDTO{
		Payments:   h.toPaymentDTOs(result.Payments),
		Total:      result.Total,
		Page:       result.Page,
		Size:       result.Size,
		TotalPages: result.TotalPages,
	})
}

// GetTenantStatistics totals a tenant's payments.
func (h *Handler) GetTenantStatistics(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.Engine.TenantStatistics(r.Context(), chi.URLParam(r, "userID"), requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStatisticsDTO(stats))
}

// GetLandlordStatistics totals payments owed to a landlord.
func (h *Handler) GetLandlordStatistics(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.Engine.LandlordStatistics(r.Context(), chi.URLParam(r, "userID"), requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStatisticsDTO(stats))
}

// ListUpcomingPayments returns a tenant's payments due within ?days (default 30).
func (h *Handler) ListUpcomingPayments(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireUser(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", 30)
	payments, err := h.Engine.ListUpcomingPayments(r.Context(), chi.URLParam(r, "userID"), requester, days)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toPaymentDTOs(payments))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerExpirationSweep runs the lease expiration sweep immediately.
func (h *Handler) TriggerExpirationSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.SweepExpirations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Expiration sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TriggerOverdueSweep runs the overdue payment sweep immediately.
func (h *Handler) TriggerOverdueSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.SweepOverdue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Overdue sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListSweepRuns returns the sweep audit trail (?kind=, ?limit=).
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Engine.ListSweepRuns(r.Context(), r.URL.Query().Get("kind"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sweep runs", err)
		return
	}

	dtos := make([]SweepRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSweepRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toPaymentDTOs(payments []payment.Payment) []PaymentDTO {
	today := h.today()
	dtos := make([]PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = toPaymentDTO(&payments[i], today)
	}
	return dtos
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing "+userIDHeader+" header", nil)
		return "", false
	}
	return userID, true
}

func parsePage(r *http.Request) lifecycle.Page {
	return lifecycle.Page{
		Number: queryInt(r, "page", 0),
		Size:   queryInt(r, "size", lifecycle.DefaultPageSize),
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lease.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "Invalid date", err)
	case errors.Is(err, lease.ErrAccessDenied), errors.Is(err, payment.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied", err)
	case errors.Is(err, lease.ErrNotFound), errors.Is(err, payment.ErrNotFound),
		errors.Is(err, lifecycle.ErrPropertyNotFound), errors.Is(err, lifecycle.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, lease.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Lease already exists", err)
	case errors.Is(err, lease.ErrInvalidState), errors.Is(err, payment.ErrInvalidState):
		writeError(w, http.StatusConflict, "Invalid state for this operation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
