package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ManualMatchLine is one operator-selected payment-to-invoice application
type ManualMatchLine struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// AllocationService handles operator-driven allocation of payments to
// invoices and recomputation of the per-account aggregate.
type AllocationService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewAllocationService creates a new allocation service
func NewAllocationService(scope TransactionScope, logger *zap.Logger) *AllocationService {
	return &AllocationService{
		scope:  scope,
		logger: logger,
	}
}

// ManualMatch applies an operator's allocation of a payment across one or
// more invoices. Every line is validated before anything is written: each
// amount must be positive and within the invoice's outstanding balance, and
// the lines together must not exceed the payment amount. On success all
// allocations are recorded confirmed, the invoice balances are settled, the
// payment becomes manually_matched and the account aggregate is refreshed.
func (s *AllocationService) ManualMatch(ctx context.Context, tenantID, paymentID uuid.UUID, lines []ManualMatchLine) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "manual_match",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()),
	)
	defer span.End()

	if len(lines) == 0 {
		err := shared.NewDomainError("INVALID_INPUT", "At least one allocation line is required")
		telemetry.RecordError(span, err)
		return err
	}

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForTenant(ctx, tenantID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return shared.ErrNotFound
		}
		if payment.ReconciliationStatus.IsResolved() {
			return shared.NewDomainError("INVALID_STATE", "Payment is already reconciled")
		}

		// Validate every line against current state before mutating anything
		total := decimal.Zero
		invoices := make([]*ledger.Invoice, 0, len(lines))
		for _, line := range lines {
			if line.Amount.LessThanOrEqual(decimal.Zero) {
				return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
			}

			invoice, err := repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, line.InvoiceID)
			if err != nil {
				return err
			}
			if invoice == nil {
				return shared.ErrNotFound
			}
			if invoice.AccountID != payment.AccountID {
				return shared.NewDomainError("INVALID_INPUT", "Invoice belongs to a different account than the payment")
			}
			if line.Amount.GreaterThan(invoice.AmountOutstanding) {
				return shared.NewDomainError("EXCEEDS_OUTSTANDING",
					fmt.Sprintf("Allocation of %s exceeds outstanding %s on invoice %s",
						line.Amount.StringFixed(2), invoice.AmountOutstanding.StringFixed(2), invoice.InvoiceNumber))
			}

			total = total.Add(line.Amount)
			invoices = append(invoices, invoice)
		}
		if total.GreaterThan(payment.Amount) {
			return shared.NewDomainError("EXCEEDS_PAYMENT",
				fmt.Sprintf("Allocated total %s exceeds payment amount %s",
					total.StringFixed(2), payment.Amount.StringFixed(2)))
		}

		// Pending suggestions from an earlier run are superseded
		if err := s.discardPendingAllocations(ctx, repos, tenantID, paymentID); err != nil {
			return err
		}

		for i, line := range lines {
			amount, err := valueobject.NewMoney(line.Amount, valueobject.Currency(payment.Currency))
			if err != nil {
				return err
			}

			allocation, err := ledger.NewAllocation(tenantID, payment.ID, line.InvoiceID,
				amount, 1.0, ledger.MatchMethodManual, ledger.AllocationStatusConfirmed)
			if err != nil {
				return err
			}
			if err := repos.AllocationRepo().Save(ctx, allocation); err != nil {
				return err
			}

			if err := invoices[i].ApplySettlement(amount); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, invoices[i]); err != nil {
				return err
			}
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

	s.logger.Info("Payment manually matched",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.Int("lines", len(lines)),
	)

	return nil
}

// RecomputeAccountAggregate rebuilds the balance-derived fields of the
// account aggregate from the account's invoices.
func (s *AllocationService) RecomputeAccountAggregate(ctx context.Context, tenantID, accountID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "recompute_account_aggregate",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, accountID.String()),
	)
	defer span.End()

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return refreshAccountAggregate(ctx, repos, tenantID, accountID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

func (s *AllocationService) discardPendingAllocations(ctx context.Context, repos TransactionalRepositories, tenantID, paymentID uuid.UUID) error {
	allocations, err := repos.AllocationRepo().FindByPayment(ctx, tenantID, paymentID)
	if err != nil {
		return err
	}
	for i := range allocations {
		if allocations[i].IsConfirmed() {
			return shared.NewDomainError("INVALID_STATE", "Payment has confirmed allocations; unmatch it first")
		}
		if err := repos.AllocationRepo().Delete(ctx, tenantID, allocations[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// refreshAccountAggregate recomputes the account aggregate's balance fields
// from the full invoice set, creating the aggregate row on first touch.
func refreshAccountAggregate(ctx context.Context, repos TransactionalRepositories, tenantID, accountID uuid.UUID) error {
	invoices, err := repos.InvoiceRepo().FindByAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}

	aggregate, err := repos.AggregateRepo().FindByAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	if aggregate == nil {
		aggregate, err = ledger.NewAccountAggregate(tenantID, accountID)
		if err != nil {
			return err
		}
	}

	aggregate.RefreshBalances(invoices, time.Now())
	return repos.AggregateRepo().Save(ctx, aggregate)
}
