/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DATES AND MONEY:
  Day-granular dates travel as "YYYY-MM-DD" strings. Money travels as
  decimal strings ("12500.00"), never JSON numbers.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - lifecycle: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/payment"
)

// =============================================================================
// LEASE TYPES
// =============================================================================

// LeaseDTO represents a lease in API responses.
type LeaseDTO struct {
	ID                string `json:"id"`
	PropertyID        string `json:"property_id"`
	TenantID          string `json:"tenant_id"`
	LandlordID        string `json:"landlord_id"`
	ApplicationID     string `json:"application_id,omitempty"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	MonthlyRent       string `json:"monthly_rent"`
	SecurityDeposit   string `json:"security_deposit"`
	Status            string `json:"status"`
	NumberOfOccupants int    `json:"number_of_occupants"`
	SpecialTerms      string `json:"special_terms,omitempty"`
	AutoRenew         bool   `json:"auto_renew"`
	NoticeDays        int    `json:"notice_days"`
	TerminationDate   string `json:"termination_date,omitempty"`
	TerminationReason string `json:"termination_reason,omitempty"`
	DurationMonths    int    `json:"duration_months"`
	DaysRemaining     int    `json:"days_remaining"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

func toLeaseDTO(l *lease.Lease, today time.Time) LeaseDTO {
	dto := LeaseDTO{
		ID:                l.ID,
		PropertyID:        l.PropertyID,
		TenantID:          l.TenantID,
		LandlordID:        l.LandlordID,
		ApplicationID:     l.ApplicationID,
		StartDate:         dates.Format(l.StartDate),
		EndDate:           dates.Format(l.EndDate),
		MonthlyRent:       l.MonthlyRent.StringFixed(2),
		SecurityDeposit:   l.SecurityDeposit.StringFixed(2),
		Status:            string(l.Status),
		NumberOfOccupants: l.NumberOfOccupants,
		SpecialTerms:      l.SpecialTerms,
		AutoRenew:         l.AutoRenew,
		NoticeDays:        l.NoticeDays,
		TerminationReason: l.TerminationReason,
		DurationMonths:    l.DurationInMonths(),
		DaysRemaining:     l.DaysRemaining(today),
		CreatedAt:         l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         l.UpdatedAt.Format(time.RFC3339),
	}
	if l.TerminationDate != nil {
		dto.TerminationDate = dates.Format(*l.TerminationDate)
	}
	return dto
}

// CreateLeaseRequest is the request to create a lease manually.
type CreateLeaseRequest struct {
	PropertyID        string `json:"property_id"`
	TenantID          string `json:"tenant_id"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	MonthlyRent       string `json:"monthly_rent"`
	SecurityDeposit   string `json:"security_deposit"`
	NumberOfOccupants int    `json:"number_of_occupants"`
	SpecialTerms      string `json:"special_terms"`
	AutoRenew         bool   `json:"auto_renew"`
	NoticeDays        int    `json:"notice_days"`
}

// CreateFromApplicationRequest is the request to create a lease from an
// approved rental application.
type CreateFromApplicationRequest struct {
	ApplicationID       string `json:"application_id"`
	PropertyID          string `json:"property_id"`
	TenantID            string `json:"tenant_id"`
	MoveInDate          string `json:"move_in_date"`
	LeaseDurationMonths int    `json:"lease_duration_months"`
	NumberOfOccupants   int    `json:"number_of_occupants"`
}

// UpdateLeaseRequest carries optional term changes; omitted fields are
// left untouched.
type UpdateLeaseRequest struct {
	SpecialTerms *string `json:"special_terms,omitempty"`
	AutoRenew    *bool   `json:"auto_renew,omitempty"`
	NoticeDays   *int    `json:"notice_days,omitempty"`
}

// TerminateLeaseRequest ends a lease early.
type TerminateLeaseRequest struct {
	TerminationDate string `json:"termination_date"`
	Reason          string `json:"reason"`
}

// RenewLeaseRequest extends a lease.
type RenewLeaseRequest struct {
	NewEndDate string `json:"new_end_date"`
}

// LeasePageDTO is one page of leases.
type LeasePageDTO struct {
	Leases     []LeaseDTO `json:"leases"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Size       int        `json:"size"`
	TotalPages int        `json:"total_pages"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID                   string `json:"id"`
	LeaseID              string `json:"lease_id"`
	TenantID             string `json:"tenant_id"`
	LandlordID           string `json:"landlord_id"`
	PropertyID           string `json:"property_id"`
	Type                 string `json:"type"`
	Amount               string `json:"amount"`
	DueDate              string `json:"due_date"`
	PaidDate             string `json:"paid_date,omitempty"`
	Status               string `json:"status"`
	Method               string `json:"method,omitempty"`
	TransactionReference string `json:"transaction_reference,omitempty"`
	MonthTag             string `json:"month_tag,omitempty"`
	DisplayMonth         string `json:"display_month"`
	Notes                string `json:"notes,omitempty"`
	LateFee              string `json:"late_fee"`
	DaysOverdue          int    `json:"days_overdue"`
	ConfirmedByLandlord  bool   `json:"confirmed_by_landlord"`
	ConfirmationDate     string `json:"confirmation_date,omitempty"`
	CreatedAt            string `json:"created_at,omitempty"`
	UpdatedAt            string `json:"updated_at,omitempty"`
}

func toPaymentDTO(p *payment.Payment, today time.Time) PaymentDTO {
	dto := PaymentDTO{
		ID:                   p.ID,
		LeaseID:              p.LeaseID,
		TenantID:             p.TenantID,
		LandlordID:           p.LandlordID,
		PropertyID:           p.PropertyID,
		Type:                 string(p.Type),
		Amount:               p.Amount.StringFixed(2),
		DueDate:              dates.Format(p.DueDate),
		Status:               string(p.Status),
		Method:               string(p.Method),
		TransactionReference: p.TransactionReference,
		MonthTag:             p.MonthTag,
		DisplayMonth:         p.DisplayMonth(),
		Notes:                p.Notes,
		LateFee:              p.LateFee.StringFixed(2),
		DaysOverdue:          p.DaysOverdue(today),
		ConfirmedByLandlord:  p.ConfirmedByLandlord,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            p.UpdatedAt.Format(time.RFC3339),
	}
	if p.PaidDate != nil {
		dto.PaidDate = p.PaidDate.Format(time.RFC3339)
	}
	if p.ConfirmationDate != nil {
		dto.ConfirmationDate = p.ConfirmationDate.Format(time.RFC3339)
	}
	return dto
}

// MarkPaidRequest records a tenant payment. PaidDate (YYYY-MM-DD) and
// LateFee are optional; omitted they fall back to the server clock and the
// recomputed overdue fee.
type MarkPaidRequest struct {
	Method               string `json:"method"`
	TransactionReference string `json:"transaction_reference"`
	PaidDate             string `json:"paid_date"`
	LateFee              string `json:"late_fee"`
	Notes                string `json:"notes"`
}

// ConfirmRequest is the landlord's acknowledgement of a paid payment.
// ConfirmationDate (YYYY-MM-DD) is optional and defaults to the server
// clock; the body itself may be omitted entirely.
type ConfirmRequest struct {
	ConfirmationDate string `json:"confirmation_date"`
	Notes            string `json:"notes"`
}

// PaymentPageDTO is one page of payments.
type PaymentPageDTO struct {
	Payments   []PaymentDTO `json:"payments"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalPages int          `json:"total_pages"`
}

// StatisticsDTO aggregates a user's payments by lifecycle stage.
type StatisticsDTO struct {
	TotalPaid     string `json:"total_paid"`
	TotalPending  string `json:"total_pending"`
	TotalOverdue  string `json:"total_overdue"`
	TotalLateFees string `json:"total_late_fees"`
	CountPaid     int    `json:"count_paid"`
	CountPending  int    `json:"count_pending"`
	CountOverdue  int    `json:"count_overdue"`
}

func toStatisticsDTO(s lifecycle.Statistics) StatisticsDTO {
	return StatisticsDTO{
		TotalPaid:     s.TotalPaid.StringFixed(2),
		TotalPending:  s.TotalPending.StringFixed(2),
		TotalOverdue:  s.TotalOverdue.StringFixed(2),
		TotalLateFees: s.TotalLateFees.StringFixed(2),
		CountPaid:     s.CountPaid,
		CountPending:  s.CountPending,
		CountOverdue:  s.CountOverdue,
	}
}

// =============================================================================
// SWEEP TYPES
// =============================================================================

// SweepRunDTO is one audit record of a sweep execution.
type SweepRunDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
}

func toSweepRunDTO(run lifecycle.SweepRun) SweepRunDTO {
	return SweepRunDTO{
		ID:          run.ID,
		Kind:        run.Kind,
		Processed:   run.Processed,
		Failed:      run.Failed,
		Error:       run.Error,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		CompletedAt: run.CompletedAt.Format(time.RFC3339),
	}
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
