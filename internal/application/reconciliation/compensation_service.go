package reconciliation

import (
	"context"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CompensationService reverses previously applied allocations. A reversal
// restores the settled invoice balance, removes the allocation row and flags
// the payment unmatched, all inside one transaction so the ledger never
// observes a half-reversed allocation.
type CompensationService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewCompensationService creates a new compensation service
func NewCompensationService(scope TransactionScope, logger *zap.Logger) *CompensationService {
	return &CompensationService{
		scope:  scope,
		logger: logger,
	}
}

// Unmatch reverses a single allocation. A confirmed allocation is restored to
// its invoice before removal; a pending one is simply discarded. The payment
// ends up unmatched and the account aggregate is refreshed.
func (s *CompensationService) Unmatch(ctx context.Context, tenantID, allocationID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "compensation", "unmatch",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAllocationID, allocationID.String()),
	)
	defer span.End()

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		allocation, err := repos.AllocationRepo().FindByIDForTenant(ctx, tenantID, allocationID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return shared.ErrNotFound
		}

		payment, err := repos.PaymentRepo().FindByIDForTenant(ctx, tenantID, allocation.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return shared.ErrNotFound
		}

		if err := s.reverseAllocation(ctx, repos, tenantID, allocation); err != nil {
			return err
		}

		payment.MarkUnmatched()
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}

		return refreshAccountAggregate(ctx, repos, tenantID, payment.AccountID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("Allocation unmatched",
		zap.String("tenant_id", tenantID.String()),
		zap.String("allocation_id", allocationID.String()),
	)

	return nil
}

// Rematch atomically replaces an allocation with a fresh one on a different
// invoice: the old allocation is reversed and the given amount is applied to
// the new invoice as a confirmed manual_rematch allocation. The new invoice
// must belong to the payment's account and have enough outstanding balance to
// absorb the amount.
func (s *CompensationService) Rematch(ctx context.Context, tenantID, oldAllocationID, newInvoiceID uuid.UUID, amountApplied decimal.Decimal) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "compensation", "rematch",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAllocationID, oldAllocationID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, newInvoiceID.String()),
	)
	defer span.End()

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if !amountApplied.IsPositive() {
			return shared.NewDomainError("INVALID_AMOUNT", "Rematch amount must be positive")
		}

		allocation, err := repos.AllocationRepo().FindByIDForTenant(ctx, tenantID, oldAllocationID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return shared.ErrNotFound
		}

		payment, err := repos.PaymentRepo().FindByIDForTenant(ctx, tenantID, allocation.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return shared.ErrNotFound
		}

		newInvoice, err := repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, newInvoiceID)
		if err != nil {
			return err
		}
		if newInvoice == nil {
			return shared.ErrNotFound
		}
		if newInvoice.AccountID != payment.AccountID {
			return shared.NewDomainError("INVALID_INPUT", "Invoice belongs to a different account than the payment")
		}

		if err := s.reverseAllocation(ctx, repos, tenantID, allocation); err != nil {
			return err
		}

		// Reload after the reversal; it may have restored this same invoice
		newInvoice, err = repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, newInvoiceID)
		if err != nil {
			return err
		}
		if newInvoice == nil {
			return shared.ErrNotFound
		}

		amount, err := valueobject.NewMoney(amountApplied, valueobject.Currency(payment.Currency))
		if err != nil {
			return err
		}

		replacement, err := ledger.NewAllocation(tenantID, payment.ID, newInvoice.ID,
			amount, 1.0, ledger.MatchMethodManualRematch, ledger.AllocationStatusConfirmed)
		if err != nil {
			return err
		}
		if err := repos.AllocationRepo().Save(ctx, replacement); err != nil {
			return err
		}

		if err := newInvoice.ApplySettlement(amount); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, newInvoice); err != nil {
			return err
		}

		if err := payment.MarkReconciled(ledger.ReconciliationStatusManuallyMatched); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}

		return refreshAccountAggregate(ctx, repos, tenantID, payment.AccountID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("Allocation rematched",
		zap.String("tenant_id", tenantID.String()),
		zap.String("allocation_id", oldAllocationID.String()),
		zap.String("invoice_id", newInvoiceID.String()),
	)

	return nil
}

// reverseAllocation restores a confirmed allocation to its invoice and
// removes the allocation row.
func (s *CompensationService) reverseAllocation(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, allocation *ledger.Allocation) error {
	if allocation.IsConfirmed() {
		invoice, err := repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, allocation.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return shared.ErrNotFound
		}
		if err := invoice.RestoreSettlement(allocation.GetAmountAppliedMoney()); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, invoice); err != nil {
			return err
		}
	}

	return repos.AllocationRepo().Delete(ctx, tenantID, allocation.ID)
}
