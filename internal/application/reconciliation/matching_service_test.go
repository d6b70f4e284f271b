package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/matching"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOracle struct {
	suggestion *matching.Suggestion
	err        error
	calls      int
}

func (o *stubOracle) SuggestMatch(_ context.Context, _ matching.MatchContext) (*matching.Suggestion, error) {
	o.calls++
	return o.suggestion, o.err
}

func seedInvoice(t *testing.T, f *fixture, tenantID, accountID uuid.UUID, number string, amount float64, due time.Time) *ledger.Invoice {
	t.Helper()
	inv, err := ledger.NewInvoice(tenantID, accountID, number,
		valueobject.NewMoneyUSDFromFloat(amount), due.AddDate(0, 0, -30), due)
	require.NoError(t, err)
	require.NoError(t, f.invoices.Save(context.Background(), inv))
	return inv
}

func seedPayment(t *testing.T, f *fixture, tenantID, accountID uuid.UUID, amount float64, hint string) *ledger.Payment {
	t.Helper()
	p, err := ledger.NewPayment(tenantID, accountID,
		valueobject.NewMoneyUSDFromFloat(amount), time.Now(), "WIRE-001", hint, "", nil)
	require.NoError(t, err)
	require.NoError(t, f.payments.Save(context.Background(), p))
	return p
}

func newMatchingService(f *fixture, oracle matching.MatchOracle) *MatchingService {
	return NewMatchingService(f.scope, matching.NewDefaultEngine(oracle, zap.NewNop()), zap.NewNop())
}

func TestMatchingService_ExactMatchSettlesInvoice(t *testing.T) {
	f := newFixture()
	tenantID, accountID := uuid.New(), uuid.New()
	oracle := &stubOracle{}
	svc := newMatchingService(f, oracle)

	inv := seedInvoice(t, f, tenantID, accountID, "INV-1001", 500.00, time.Now().AddDate(0, 0, 10))
	payment := seedPayment(t, f, tenantID, accountID, 500.00, "INV-1001")

	outcome, err := svc.MatchPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.MatchMethodExact, outcome.Method)
	assert.Equal(t, ledger.ReconciliationStatusAutoMatched, outcome.Status)
	assert.Equal(t, 1.0, outcome.Confidence)
	assert.Equal(t, 0, oracle.calls)

	saved, err := f.invoices.FindByIDForTenant(context.Background(), tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, saved.Status)
	assert.True(t, saved.AmountOutstanding.IsZero())

	savedPayment, err := f.payments.FindByIDForTenant(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReconciliationStatusAutoMatched, savedPayment.ReconciliationStatus)

	allocs, err := f.allocations.FindByPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].IsConfirmed())
	assert.Equal(t, ledger.MatchMethodExact, allocs[0].MatchMethod)
}

func TestMatchingService_OverpaymentWithinToleranceSettlesInvoice(t *testing.T) {
	f := newFixture()
	tenantID, accountID := uuid.New(), uuid.New()
	oracle := &stubOracle{}
	svc := newMatchingService(f, oracle)

	// A customer pays 500.00 against 499.50 outstanding, hintless. The
	// heuristic tier settles the invoice in full and leaves the half dollar
	// unallocated on the payment.
	inv := seedInvoice(t, f, tenantID, accountID, "INV-1501", 499.50, time.Now().AddDate(0, 0, 10))
	payment := seedPayment(t, f, tenantID, accountID, 500.00, "")

	outcome, err := svc.MatchPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.MatchMethodHeuristic, outcome.Method)
	assert.Equal(t, ledger.ReconciliationStatusAutoMatched, outcome.Status)
	assert.Equal(t, 0, oracle.calls)

	saved, err := f.invoices.FindByIDForTenant(context.Background(), tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, saved.Status)
	assert.True(t, saved.AmountOutstanding.IsZero())

	allocs, err := f.allocations.FindByPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].AmountApplied.Equal(decimal.NewFromFloat(499.50)))
}

func TestMatchingService_AmbiguousWithOracleDownLeavesUnapplied(t *testing.T) {
	f := newFixture()
	tenantID, accountID := uuid.New(), uuid.New()
	oracle := &stubOracle{err: errors.New("oracle unavailable")}
	svc := newMatchingService(f, oracle)

	// Two candidates near the payment amount and no usable hint
	seedInvoice(t, f, tenantID, accountID, "INV-2001", 250.00, time.Now().AddDate(0, 0, 5))
	seedInvoice(t, f, tenantID, accountID, "INV-2002", 250.50, time.Now().AddDate(0, 0, 15))
	payment := seedPayment(t, f, tenantID, accountID, 250.25, "")

	outcome, err := svc.MatchPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.ReconciliationStatusUnapplied, outcome.Status)
	assert.Equal(t, 0, outcome.AllocationCount)
	assert.Equal(t, 1, oracle.calls)

	allocs, err := f.allocations.FindByPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	assert.Empty(t, allocs)
}

func TestMatchingService_MediumConfidenceSuggestionStaysPending(t *testing.T) {
	f := newFixture()
	tenantID, accountID := uuid.New(), uuid.New()
	svc := newMatchingService(f, &stubOracle{suggestion: &matching.Suggestion{
		Confidence: 0.75,
		Matches: []matching.OracleMatch{
			{InvoiceNumber: "INV-3001", AmountApplied: decimal.NewFromFloat(180.00)},
		},
	}})

	inv := seedInvoice(t, f, tenantID, accountID, "INV-3001", 200.00, time.Now().AddDate(0, 0, 5))
	seedInvoice(t, f, tenantID, accountID, "INV-3002", 150.00, time.Now().AddDate(0, 0, 15))
	payment := seedPayment(t, f, tenantID, accountID, 180.00, "")

	outcome, err := svc.MatchPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.ReconciliationStatusAISuggested, outcome.Status)

	// The suggestion is recorded but the invoice balance is untouched
	saved, err := f.invoices.FindByIDForTenant(context.Background(), tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "200", saved.AmountOutstanding.String())

	allocs, err := f.allocations.FindByPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.False(t, allocs[0].IsConfirmed())
	assert.Equal(t, ledger.MatchMethodAISuggested, allocs[0].MatchMethod)
}

func TestMatchingService_RerunReplacesPendingSuggestion(t *testing.T) {
	f := newFixture()
	tenantID, accountID := uuid.New(), uuid.New()

	inv := seedInvoice(t, f, tenantID, accountID, "INV-4001", 300.00, time.Now().AddDate(0, 0, 5))
	seedInvoice(t, f, tenantID, accountID, "INV-4002", 900.00, time.Now().AddDate(0, 0, 20))
	payment := seedPayment(t, f, tenantID, accountID, 300.00, "")

	// Second near-amount invoice keeps the heuristic tier ambiguous so the
	// oracle path is exercised
	seedInvoice(t, f, tenantID, accountID, "INV-4003", 300.50, time.Now().AddDate(0, 0, 25))

	lowConf := newMatchingService(f, &stubOracle{suggestion: &matching.Suggestion{
		Confidence: 0.4,
		Matches: []matching.OracleMatch{
			{InvoiceNumber: "INV-4002", AmountApplied: decimal.NewFromFloat(300.00)},
		},
	}})

	outcome, err := lowConf.MatchPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.ReconciliationStatusNeedsReview, outcome.Status)

	allocs, err := f.allocations.FindByPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)

	// A later run with a confident oracle supersedes the stale suggestion
	highConf := newMatchingService(f, &stubOracle{suggestion: &matching.Suggestion{
		Confidence: 0.95,
		Matches: []matching.OracleMatch{
			{InvoiceNumber: "INV-4001", AmountApplied: decimal.NewFromFloat(300.00)},
		},
	}})

	outcome, err = highConf.MatchPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReconciliationStatusAutoMatched, outcome.Status)

	allocs, err = f.allocations.FindByPayment(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].IsConfirmed())
	assert.Equal(t, inv.ID, allocs[0].InvoiceID)
}

func TestMatchingService_AlreadyReconciledRejected(t *testing.T) {
	f := newFixture()
	tenantID, accountID := uuid.New(), uuid.New()
	svc := newMatchingService(f, &stubOracle{})

	payment := seedPayment(t, f, tenantID, accountID, 100.00, "")
	require.NoError(t, payment.MarkReconciled(ledger.ReconciliationStatusManuallyMatched))
	require.NoError(t, f.payments.Save(context.Background(), payment))

	_, err := svc.MatchPayment(context.Background(), tenantID, payment.ID)
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
}

func TestMatchingService_PaymentNotFound(t *testing.T) {
	f := newFixture()
	svc := newMatchingService(f, &stubOracle{})

	_, err := svc.MatchPayment(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
