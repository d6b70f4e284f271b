package dto

import (
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// RunMatchingRequest triggers a reconciliation run, optionally scoped to
// payments from a single import batch
type RunMatchingRequest struct {
	BatchID *string `json:"batch_id" binding:"omitempty,uuid"`
}

// ManualMatchLineRequest is one payment-to-invoice application in a manual match
type ManualMatchLineRequest struct {
	InvoiceID     string          `json:"invoice_id" binding:"required,uuid"`
	AmountApplied decimal.Decimal `json:"amount_applied" binding:"required,positive_decimal"`
}

// ManualMatchRequest applies a payment across one or more invoices
type ManualMatchRequest struct {
	PaymentID string                   `json:"payment_id" binding:"required,uuid"`
	Lines     []ManualMatchLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// UnmatchRequest reverses a single allocation
type UnmatchRequest struct {
	AllocationID string `json:"allocation_id" binding:"required,uuid"`
}

// RematchRequest moves an allocation to a different invoice
type RematchRequest struct {
	OldAllocationID string          `json:"old_allocation_id" binding:"required,uuid"`
	NewInvoiceID    string          `json:"new_invoice_id" binding:"required,uuid"`
	AmountApplied   decimal.Decimal `json:"amount_applied" binding:"required,positive_decimal"`
}

// AllocationResponse represents one allocation in API responses
type AllocationResponse struct {
	ID              string    `json:"id"`
	PaymentID       string    `json:"payment_id"`
	InvoiceID       string    `json:"invoice_id"`
	AmountApplied   string    `json:"amount_applied"`
	MatchConfidence float64   `json:"match_confidence"`
	MatchMethod     string    `json:"match_method"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewAllocationResponse converts a domain allocation to its API representation
func NewAllocationResponse(a *ledger.Allocation) AllocationResponse {
	return AllocationResponse{
		ID:              a.ID.String(),
		PaymentID:       a.PaymentID.String(),
		InvoiceID:       a.InvoiceID.String(),
		AmountApplied:   a.AmountApplied.StringFixed(2),
		MatchConfidence: a.MatchConfidence,
		MatchMethod:     a.MatchMethod.String(),
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
	}
}

// NewAllocationResponseList converts a slice of domain allocations
func NewAllocationResponseList(allocations []ledger.Allocation) []AllocationResponse {
	responses := make([]AllocationResponse, 0, len(allocations))
	for i := range allocations {
		responses = append(responses, NewAllocationResponse(&allocations[i]))
	}
	return responses
}

// ScoreRequest triggers risk scoring for one account or the whole tenant
type ScoreRequest struct {
	AccountID *string `json:"account_id" binding:"omitempty,uuid"`
	All       bool    `json:"all"`
}
