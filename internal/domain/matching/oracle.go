package matching

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MatchContext is the structured payment and candidate context sent to the
// oracle when the deterministic tiers fail.
type MatchContext struct {
	PaymentAmount     decimal.Decimal
	PaymentDate       time.Time
	Reference         string
	InvoiceNumberHint string
	Notes             string
	Candidates        []CandidateInvoice
}

// OracleMatch is one invoice application proposed by the oracle, keyed by
// invoice number since the oracle never sees internal IDs.
type OracleMatch struct {
	InvoiceNumber string          `json:"invoice_number"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
}

// Suggestion is the oracle's self-reported best-effort match
type Suggestion struct {
	Confidence float64       `json:"confidence"`
	Matches    []OracleMatch `json:"matches"`
}

// MatchOracle is the narrow interface to the external text-generation
// service used as the matching fallback. Implementations may fail, time out,
// or return garbage; callers treat every error as "no match".
type MatchOracle interface {
	SuggestMatch(ctx context.Context, mc MatchContext) (*Suggestion, error)
}
