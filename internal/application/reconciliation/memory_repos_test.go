package reconciliation

import (
	"context"
	"sort"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory repository implementations backing the service tests.

type memInvoiceRepo struct {
	items map[uuid.UUID]ledger.Invoice
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{items: make(map[uuid.UUID]ledger.Invoice)}
}

func (r *memInvoiceRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Invoice, error) {
	inv, ok := r.items[id]
	if !ok || inv.TenantID != tenantID {
		return nil, nil
	}
	copied := inv
	return &copied, nil
}

func (r *memInvoiceRepo) FindByNumberForTenant(_ context.Context, tenantID uuid.UUID, invoiceNumber string) (*ledger.Invoice, error) {
	for _, inv := range r.items {
		if inv.TenantID == tenantID && inv.InvoiceNumber == invoiceNumber {
			copied := inv
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memInvoiceRepo) FindByAccount(_ context.Context, tenantID, accountID uuid.UUID) ([]ledger.Invoice, error) {
	var out []ledger.Invoice
	for _, inv := range r.items {
		if inv.TenantID == tenantID && inv.AccountID == accountID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r *memInvoiceRepo) FindMatchable(ctx context.Context, tenantID, accountID uuid.UUID) ([]ledger.Invoice, error) {
	all, err := r.FindByAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	var out []ledger.Invoice
	for i := range all {
		if all[i].IsMatchable() {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) FindAccountIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, inv := range r.items {
		if inv.TenantID != tenantID {
			continue
		}
		if _, ok := seen[inv.AccountID]; !ok {
			seen[inv.AccountID] = struct{}{}
			out = append(out, inv.AccountID)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) Save(_ context.Context, invoice *ledger.Invoice) error {
	r.items[invoice.ID] = *invoice
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(ctx context.Context, invoice *ledger.Invoice) error {
	return r.Save(ctx, invoice)
}

type memPaymentRepo struct {
	items map[uuid.UUID]ledger.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{items: make(map[uuid.UUID]ledger.Payment)}
}

func (r *memPaymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	p, ok := r.items[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	copied := p
	return &copied, nil
}

func (r *memPaymentRepo) FindUnresolved(_ context.Context, tenantID uuid.UUID, batchID *uuid.UUID) ([]ledger.Payment, error) {
	var out []ledger.Payment
	for _, p := range r.items {
		if p.TenantID != tenantID || p.ReconciliationStatus.IsResolved() {
			continue
		}
		if p.ReconciliationStatus == ledger.ReconciliationStatusUnmatched {
			continue
		}
		if batchID != nil && (p.BatchID == nil || *p.BatchID != *batchID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

func (r *memPaymentRepo) Save(_ context.Context, payment *ledger.Payment) error {
	r.items[payment.ID] = *payment
	return nil
}

func (r *memPaymentRepo) SaveWithLock(ctx context.Context, payment *ledger.Payment) error {
	return r.Save(ctx, payment)
}

type memAllocationRepo struct {
	items map[uuid.UUID]ledger.Allocation
}

func newMemAllocationRepo() *memAllocationRepo {
	return &memAllocationRepo{items: make(map[uuid.UUID]ledger.Allocation)}
}

func (r *memAllocationRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Allocation, error) {
	a, ok := r.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, nil
	}
	copied := a
	return &copied, nil
}

func (r *memAllocationRepo) FindByPayment(_ context.Context, tenantID, paymentID uuid.UUID) ([]ledger.Allocation, error) {
	var out []ledger.Allocation
	for _, a := range r.items {
		if a.TenantID == tenantID && a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocationRepo) FindByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]ledger.Allocation, error) {
	var out []ledger.Allocation
	for _, a := range r.items {
		if a.TenantID == tenantID && a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocationRepo) SumConfirmedByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, a := range r.items {
		if a.TenantID == tenantID && a.InvoiceID == invoiceID && a.IsConfirmed() {
			sum = sum.Add(a.AmountApplied)
		}
	}
	return sum, nil
}

func (r *memAllocationRepo) Save(_ context.Context, allocation *ledger.Allocation) error {
	r.items[allocation.ID] = *allocation
	return nil
}

func (r *memAllocationRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	if a, ok := r.items[id]; ok && a.TenantID == tenantID {
		delete(r.items, id)
	}
	return nil
}

type memAggregateRepo struct {
	items map[uuid.UUID]ledger.AccountAggregate
}

func newMemAggregateRepo() *memAggregateRepo {
	return &memAggregateRepo{items: make(map[uuid.UUID]ledger.AccountAggregate)}
}

func (r *memAggregateRepo) FindByAccount(_ context.Context, tenantID, accountID uuid.UUID) (*ledger.AccountAggregate, error) {
	for _, a := range r.items {
		if a.TenantID == tenantID && a.AccountID == accountID {
			copied := a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memAggregateRepo) Save(_ context.Context, aggregate *ledger.AccountAggregate) error {
	r.items[aggregate.ID] = *aggregate
	return nil
}

// fixture bundles the in-memory repositories behind a no-op transaction scope
type fixture struct {
	invoices    *memInvoiceRepo
	payments    *memPaymentRepo
	allocations *memAllocationRepo
	aggregates  *memAggregateRepo
	scope       *NoOpTransactionScope
}

func newFixture() *fixture {
	f := &fixture{
		invoices:    newMemInvoiceRepo(),
		payments:    newMemPaymentRepo(),
		allocations: newMemAllocationRepo(),
		aggregates:  newMemAggregateRepo(),
	}
	f.scope = NewNoOpTransactionScope(f.invoices, f.payments, f.allocations, f.aggregates)
	return f
}

var (
	_ ledger.InvoiceRepository          = (*memInvoiceRepo)(nil)
	_ ledger.PaymentRepository          = (*memPaymentRepo)(nil)
	_ ledger.AllocationRepository       = (*memAllocationRepo)(nil)
	_ ledger.AccountAggregateRepository = (*memAggregateRepo)(nil)
)
