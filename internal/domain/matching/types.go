package matching

import (
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Matching tolerances and confidence levels
var (
	// ExactTolerance is the currency-unit tolerance for an exact match
	ExactTolerance = decimal.NewFromFloat(0.01)
	// HeuristicTolerance is the amount tolerance for a heuristic match
	HeuristicTolerance = decimal.NewFromFloat(1.0)
)

const (
	// ConfidenceExact is the confidence assigned to exact matches
	ConfidenceExact = 1.0
	// ConfidenceHeuristic is the confidence assigned to heuristic matches
	ConfidenceHeuristic = 0.9
	// AutoConfirmThreshold is the minimum confidence for auto-confirming
	// oracle-suggested allocations
	AutoConfirmThreshold = 0.9
	// SuggestThreshold is the minimum confidence for recording an oracle
	// suggestion as worth surfacing; below it the payment needs review
	SuggestThreshold = 0.6
)

// CandidateInvoice is the slice of invoice state the matching tiers operate on
type CandidateInvoice struct {
	InvoiceID         uuid.UUID
	InvoiceNumber     string
	OutstandingAmount decimal.Decimal
	DueDate           time.Time
}

// NewCandidate builds a matching candidate from an invoice
func NewCandidate(inv *ledger.Invoice) CandidateInvoice {
	return CandidateInvoice{
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		OutstandingAmount: inv.AmountOutstanding,
		DueDate:           inv.DueDate,
	}
}

// ProposedAllocation is one payment-to-invoice application proposed by a tier
type ProposedAllocation struct {
	InvoiceID     uuid.UUID
	InvoiceNumber string
	AmountApplied decimal.Decimal
}

// MatchResult is the outcome of running the tiered matcher for one payment
type MatchResult struct {
	Method      ledger.MatchMethod
	Confidence  float64
	Allocations []ProposedAllocation
}

// IsMatched returns true if any tier produced allocations
func (r *MatchResult) IsMatched() bool {
	return r.Method != ledger.MatchMethodUnmatched && len(r.Allocations) > 0
}

// PaymentStatus maps the result to the payment's reconciliation status.
// Deterministic tiers resolve the payment outright; oracle results are
// confidence-tiered.
func (r *MatchResult) PaymentStatus() ledger.ReconciliationStatus {
	switch r.Method {
	case ledger.MatchMethodExact, ledger.MatchMethodHeuristic:
		return ledger.ReconciliationStatusAutoMatched
	case ledger.MatchMethodAISuggested:
		switch {
		case r.Confidence >= AutoConfirmThreshold:
			return ledger.ReconciliationStatusAutoMatched
		case r.Confidence >= SuggestThreshold:
			return ledger.ReconciliationStatusAISuggested
		default:
			return ledger.ReconciliationStatusNeedsReview
		}
	default:
		return ledger.ReconciliationStatusUnapplied
	}
}

// AllocationStatus maps the result to the status its allocations are
// recorded with. Oracle suggestions below the auto-confirm threshold stay
// pending until a human confirms them.
func (r *MatchResult) AllocationStatus() ledger.AllocationStatus {
	if r.Method == ledger.MatchMethodAISuggested && r.Confidence < AutoConfirmThreshold {
		return ledger.AllocationStatusPending
	}
	return ledger.AllocationStatusConfirmed
}
