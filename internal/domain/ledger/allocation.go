package ledger

import (
	"time"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchMethod identifies how an allocation was produced
type MatchMethod string

const (
	MatchMethodExact         MatchMethod = "exact"          // Invoice-number hint plus amount within tolerance
	MatchMethodHeuristic     MatchMethod = "heuristic"      // Single candidate within amount tolerance
	MatchMethodAISuggested   MatchMethod = "ai_suggested"   // Proposed by the matching oracle
	MatchMethodManual        MatchMethod = "manual"         // Operator-selected
	MatchMethodManualRematch MatchMethod = "manual_rematch" // Operator moved an allocation to another invoice
	MatchMethodUnmatched     MatchMethod = "unmatched"      // No tier produced a match
)

// IsValid checks if the method is a valid MatchMethod for a stored allocation
func (m MatchMethod) IsValid() bool {
	switch m {
	case MatchMethodExact, MatchMethodHeuristic, MatchMethodAISuggested,
		MatchMethodManual, MatchMethodManualRematch:
		return true
	}
	return false
}

// String returns the string representation of MatchMethod
func (m MatchMethod) String() string {
	return string(m)
}

// AllocationStatus represents the confirmation state of an allocation
type AllocationStatus string

const (
	AllocationStatusPending   AllocationStatus = "pending"   // Awaiting human confirmation
	AllocationStatusConfirmed AllocationStatus = "confirmed" // Applied to the invoice balance
)

// IsValid checks if the status is a valid AllocationStatus
func (s AllocationStatus) IsValid() bool {
	return s == AllocationStatusPending || s == AllocationStatusConfirmed
}

// Allocation links part or all of one payment to one invoice.
// Only confirmed allocations count against the invoice's outstanding amount.
type Allocation struct {
	shared.TenantAggregateRoot
	PaymentID       uuid.UUID        `json:"payment_id"`
	InvoiceID       uuid.UUID        `json:"invoice_id"`
	AmountApplied   decimal.Decimal  `json:"amount_applied"`
	MatchConfidence float64          `json:"match_confidence"`
	MatchMethod     MatchMethod      `json:"match_method"`
	Status          AllocationStatus `json:"status"`
}

// NewAllocation creates a new allocation
func NewAllocation(
	tenantID uuid.UUID,
	paymentID uuid.UUID,
	invoiceID uuid.UUID,
	amountApplied valueobject.Money,
	matchConfidence float64,
	matchMethod MatchMethod,
	status AllocationStatus,
) (*Allocation, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if amountApplied.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Applied amount must be positive")
	}
	if matchConfidence < 0 || matchConfidence > 1 {
		return nil, shared.NewDomainError("INVALID_CONFIDENCE", "Match confidence must be between 0 and 1")
	}
	if !matchMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Match method is not valid")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Allocation status is not valid")
	}

	return &Allocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentID:           paymentID,
		InvoiceID:           invoiceID,
		AmountApplied:       amountApplied.Amount(),
		MatchConfidence:     matchConfidence,
		MatchMethod:         matchMethod,
		Status:              status,
	}, nil
}

// Confirm transitions a pending allocation to confirmed
func (a *Allocation) Confirm() error {
	if a.Status == AllocationStatusConfirmed {
		return shared.NewDomainError("INVALID_STATE", "Allocation is already confirmed")
	}

	a.Status = AllocationStatusConfirmed
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return nil
}

// IsConfirmed returns true if the allocation has been applied
func (a *Allocation) IsConfirmed() bool {
	return a.Status == AllocationStatusConfirmed
}

// GetAmountAppliedMoney returns the applied amount as Money
func (a *Allocation) GetAmountAppliedMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(a.AmountApplied)
}
