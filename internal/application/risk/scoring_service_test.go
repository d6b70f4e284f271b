package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	domainrisk "github.com/arflow/backend/internal/domain/risk"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoiceRepo struct {
	byAccount  map[uuid.UUID][]ledger.Invoice
	accountErr map[uuid.UUID]error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		byAccount:  make(map[uuid.UUID][]ledger.Invoice),
		accountErr: make(map[uuid.UUID]error),
	}
}

func (r *fakeInvoiceRepo) FindByIDForTenant(context.Context, uuid.UUID, uuid.UUID) (*ledger.Invoice, error) {
	return nil, nil
}

func (r *fakeInvoiceRepo) FindByNumberForTenant(context.Context, uuid.UUID, string) (*ledger.Invoice, error) {
	return nil, nil
}

func (r *fakeInvoiceRepo) FindByAccount(_ context.Context, _, accountID uuid.UUID) ([]ledger.Invoice, error) {
	if err := r.accountErr[accountID]; err != nil {
		return nil, err
	}
	return r.byAccount[accountID], nil
}

func (r *fakeInvoiceRepo) FindMatchable(context.Context, uuid.UUID, uuid.UUID) ([]ledger.Invoice, error) {
	return nil, nil
}

func (r *fakeInvoiceRepo) FindAccountIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(r.byAccount))
	for id := range r.byAccount {
		ids = append(ids, id)
	}
	for id := range r.accountErr {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeInvoiceRepo) Save(context.Context, *ledger.Invoice) error         { return nil }
func (r *fakeInvoiceRepo) SaveWithLock(context.Context, *ledger.Invoice) error { return nil }

type fakeAggregateRepo struct {
	saved map[uuid.UUID]*ledger.AccountAggregate
}

func newFakeAggregateRepo() *fakeAggregateRepo {
	return &fakeAggregateRepo{saved: make(map[uuid.UUID]*ledger.AccountAggregate)}
}

func (r *fakeAggregateRepo) FindByAccount(_ context.Context, _, accountID uuid.UUID) (*ledger.AccountAggregate, error) {
	return r.saved[accountID], nil
}

func (r *fakeAggregateRepo) Save(_ context.Context, aggregate *ledger.AccountAggregate) error {
	r.saved[aggregate.AccountID] = aggregate
	return nil
}

var (
	_ ledger.InvoiceRepository          = (*fakeInvoiceRepo)(nil)
	_ ledger.AccountAggregateRepository = (*fakeAggregateRepo)(nil)
)

func overdueInvoice(t *testing.T, tenantID, accountID uuid.UUID, amount float64, daysPastDue int) ledger.Invoice {
	t.Helper()
	inv, err := ledger.NewInvoice(tenantID, accountID, "INV-"+uuid.NewString()[:8],
		valueobject.NewMoneyUSDFromFloat(amount),
		time.Now().AddDate(0, 0, -daysPastDue-30), time.Now().AddDate(0, 0, -daysPastDue))
	require.NoError(t, err)
	return *inv
}

func TestScoringService_ScoreAccountPersistsAssessment(t *testing.T) {
	tenantID, accountID := uuid.New(), uuid.New()
	invoices := newFakeInvoiceRepo()
	aggregates := newFakeAggregateRepo()
	svc := NewScoringService(invoices, aggregates, zap.NewNop())

	invoices.byAccount[accountID] = []ledger.Invoice{
		overdueInvoice(t, tenantID, accountID, 1000.00, 120),
	}

	assessment, err := svc.ScoreAccount(context.Background(), tenantID, accountID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, assessment.Score, 40)
	assert.NotEqual(t, domainrisk.TierLow, assessment.Tier)

	agg := aggregates.saved[accountID]
	require.NotNil(t, agg)
	assert.Equal(t, assessment.Score, agg.PaymentScore)
	assert.Equal(t, assessment.Tier.String(), agg.PaymentRiskTier)
	assert.True(t, agg.TotalOpenBalance.Equal(decimal.NewFromFloat(1000.00)))
	require.NotNil(t, agg.ScoredAt)
}

func TestScoringService_ScoreAccountNoHistory(t *testing.T) {
	tenantID, accountID := uuid.New(), uuid.New()
	aggregates := newFakeAggregateRepo()
	svc := NewScoringService(newFakeInvoiceRepo(), aggregates, zap.NewNop())

	assessment, err := svc.ScoreAccount(context.Background(), tenantID, accountID)
	require.NoError(t, err)

	assert.Equal(t, 50, assessment.Score)
	assert.Equal(t, domainrisk.TierMedium, assessment.Tier)
	require.NotNil(t, aggregates.saved[accountID])
}

func TestScoringService_ScoreAccountRejectsNilAccount(t *testing.T) {
	svc := NewScoringService(newFakeInvoiceRepo(), newFakeAggregateRepo(), zap.NewNop())

	_, err := svc.ScoreAccount(context.Background(), uuid.New(), uuid.Nil)
	assert.Error(t, err)
}

func TestScoringService_ScoreAllIsolatesFailures(t *testing.T) {
	tenantID := uuid.New()
	healthy, broken := uuid.New(), uuid.New()

	invoices := newFakeInvoiceRepo()
	invoices.byAccount[healthy] = []ledger.Invoice{
		overdueInvoice(t, tenantID, healthy, 500.00, 0),
	}
	invoices.accountErr[broken] = errors.New("storage hiccup")

	aggregates := newFakeAggregateRepo()
	svc := NewScoringService(invoices, aggregates, zap.NewNop())

	summary, err := svc.ScoreAll(context.Background(), tenantID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.Failed)
	assert.NotNil(t, aggregates.saved[healthy])
	assert.Nil(t, aggregates.saved[broken])
}
