package matching

import (
	"context"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MatchStrategy is one tier of the matching pipeline. A nil result means the
// tier could not decide and the next tier should be tried.
type MatchStrategy interface {
	// Method returns the match method this strategy produces
	Method() ledger.MatchMethod
	// Evaluate examines the payment against the candidates and returns a
	// result, or nil to fall through to the next tier
	Evaluate(ctx context.Context, payment *ledger.Payment, candidates []CandidateInvoice) (*MatchResult, error)
}

// ExactMatchStrategy matches on the payment's invoice-number hint when the
// hinted invoice's outstanding amount equals the payment amount within the
// exact tolerance.
type ExactMatchStrategy struct{}

// NewExactMatchStrategy creates a new exact match strategy
func NewExactMatchStrategy() *ExactMatchStrategy {
	return &ExactMatchStrategy{}
}

// Method returns the match method this strategy produces
func (s *ExactMatchStrategy) Method() ledger.MatchMethod {
	return ledger.MatchMethodExact
}

// Evaluate implements MatchStrategy
func (s *ExactMatchStrategy) Evaluate(_ context.Context, payment *ledger.Payment, candidates []CandidateInvoice) (*MatchResult, error) {
	if payment.InvoiceNumberHint == "" {
		return nil, nil
	}

	var hinted *CandidateInvoice
	for i := range candidates {
		if candidates[i].InvoiceNumber != payment.InvoiceNumberHint {
			continue
		}
		if hinted != nil {
			// Duplicate invoice numbers make the hint ambiguous
			return nil, nil
		}
		hinted = &candidates[i]
	}
	if hinted == nil {
		return nil, nil
	}

	diff := hinted.OutstandingAmount.Sub(payment.Amount).Abs()
	if diff.GreaterThanOrEqual(ExactTolerance) {
		return nil, nil
	}

	return &MatchResult{
		Method:     ledger.MatchMethodExact,
		Confidence: ConfidenceExact,
		Allocations: []ProposedAllocation{{
			InvoiceID:     hinted.InvoiceID,
			InvoiceNumber: hinted.InvoiceNumber,
			AmountApplied: decimal.Min(payment.Amount, hinted.OutstandingAmount),
		}},
	}, nil
}

// HeuristicMatchStrategy matches when exactly one candidate's outstanding
// amount lies within the heuristic tolerance of the payment amount. Zero or
// several qualifying candidates are ambiguous and fall through.
type HeuristicMatchStrategy struct{}

// NewHeuristicMatchStrategy creates a new heuristic match strategy
func NewHeuristicMatchStrategy() *HeuristicMatchStrategy {
	return &HeuristicMatchStrategy{}
}

// Method returns the match method this strategy produces
func (s *HeuristicMatchStrategy) Method() ledger.MatchMethod {
	return ledger.MatchMethodHeuristic
}

// Evaluate implements MatchStrategy
func (s *HeuristicMatchStrategy) Evaluate(_ context.Context, payment *ledger.Payment, candidates []CandidateInvoice) (*MatchResult, error) {
	var qualified *CandidateInvoice
	for i := range candidates {
		diff := candidates[i].OutstandingAmount.Sub(payment.Amount).Abs()
		if diff.GreaterThan(HeuristicTolerance) {
			continue
		}
		if qualified != nil {
			return nil, nil
		}
		qualified = &candidates[i]
	}
	if qualified == nil {
		return nil, nil
	}

	// An overpayment within tolerance settles the invoice in full; the
	// applied amount never exceeds the outstanding amount.
	return &MatchResult{
		Method:     ledger.MatchMethodHeuristic,
		Confidence: ConfidenceHeuristic,
		Allocations: []ProposedAllocation{{
			InvoiceID:     qualified.InvoiceID,
			InvoiceNumber: qualified.InvoiceNumber,
			AmountApplied: decimal.Min(payment.Amount, qualified.OutstandingAmount),
		}},
	}, nil
}

// OracleMatchStrategy consults the external matching oracle. Any oracle
// failure (network, timeout, unparseable response) is logged and treated as
// "no match"; it never propagates to the caller.
type OracleMatchStrategy struct {
	oracle MatchOracle
	logger *zap.Logger
}

// NewOracleMatchStrategy creates a new oracle-backed match strategy
func NewOracleMatchStrategy(oracle MatchOracle, logger *zap.Logger) *OracleMatchStrategy {
	return &OracleMatchStrategy{
		oracle: oracle,
		logger: logger,
	}
}

// Method returns the match method this strategy produces
func (s *OracleMatchStrategy) Method() ledger.MatchMethod {
	return ledger.MatchMethodAISuggested
}

// Evaluate implements MatchStrategy
func (s *OracleMatchStrategy) Evaluate(ctx context.Context, payment *ledger.Payment, candidates []CandidateInvoice) (*MatchResult, error) {
	if s.oracle == nil || len(candidates) == 0 {
		return nil, nil
	}

	suggestion, err := s.oracle.SuggestMatch(ctx, MatchContext{
		PaymentAmount:     payment.Amount,
		PaymentDate:       payment.PaymentDate,
		Reference:         payment.Reference,
		InvoiceNumberHint: payment.InvoiceNumberHint,
		Notes:             payment.Notes,
		Candidates:        candidates,
	})
	if err != nil {
		s.logger.Warn("match oracle unavailable, treating as no match",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return nil, nil
	}
	if suggestion == nil || len(suggestion.Matches) == 0 {
		return nil, nil
	}

	byNumber := make(map[string]*CandidateInvoice, len(candidates))
	for i := range candidates {
		byNumber[candidates[i].InvoiceNumber] = &candidates[i]
	}

	// The oracle is untrusted: clamp each match to the invoice's outstanding
	// amount, and cap the running total at the payment amount so a confident
	// but wrong response can never book more money than arrived.
	remaining := payment.Amount
	allocations := make([]ProposedAllocation, 0, len(suggestion.Matches))
	for _, m := range suggestion.Matches {
		candidate, ok := byNumber[m.InvoiceNumber]
		if !ok {
			s.logger.Warn("oracle referenced unknown invoice number, discarding match",
				zap.String("payment_id", payment.ID.String()),
				zap.String("invoice_number", m.InvoiceNumber))
			continue
		}
		amount := decimal.Min(m.AmountApplied, candidate.OutstandingAmount, remaining)
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		allocations = append(allocations, ProposedAllocation{
			InvoiceID:     candidate.InvoiceID,
			InvoiceNumber: candidate.InvoiceNumber,
			AmountApplied: amount,
		})
		remaining = remaining.Sub(amount)
	}
	if len(allocations) == 0 {
		return nil, nil
	}

	confidence := suggestion.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &MatchResult{
		Method:      ledger.MatchMethodAISuggested,
		Confidence:  confidence,
		Allocations: allocations,
	}, nil
}
