package matching

import (
	"context"

	"github.com/arflow/backend/internal/domain/ledger"
	"go.uber.org/zap"
)

// Engine runs the ordered matching tiers for one payment. The first tier
// that produces a result wins; if every tier falls through (or there are no
// candidates at all) the result is unmatched.
type Engine struct {
	strategies []MatchStrategy
}

// NewEngine creates an engine with the given tier order
func NewEngine(strategies ...MatchStrategy) *Engine {
	return &Engine{strategies: strategies}
}

// NewDefaultEngine creates the standard exact, heuristic, oracle pipeline.
// A nil oracle disables the third tier.
func NewDefaultEngine(oracle MatchOracle, logger *zap.Logger) *Engine {
	return NewEngine(
		NewExactMatchStrategy(),
		NewHeuristicMatchStrategy(),
		NewOracleMatchStrategy(oracle, logger),
	)
}

// Match evaluates the tiers in order and returns the first result
func (e *Engine) Match(ctx context.Context, payment *ledger.Payment, candidates []CandidateInvoice) (*MatchResult, error) {
	unmatched := &MatchResult{Method: ledger.MatchMethodUnmatched}

	if len(candidates) == 0 {
		return unmatched, nil
	}

	for _, strategy := range e.strategies {
		result, err := strategy.Evaluate(ctx, payment, candidates)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}

	return unmatched, nil
}
