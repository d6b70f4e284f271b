package reconciliation

import (
	"context"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/matching"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchOutcome summarizes what the tiered matcher did with one payment.
type MatchOutcome struct {
	PaymentID       uuid.UUID                   `json:"payment_id"`
	AccountID       uuid.UUID                   `json:"account_id"`
	Method          ledger.MatchMethod          `json:"method"`
	Confidence      float64                     `json:"confidence"`
	Status          ledger.ReconciliationStatus `json:"status"`
	AllocationCount int                         `json:"allocation_count"`
}

// MatchingService runs the tiered matcher for individual payments and
// persists the outcome. All mutations for one payment happen inside a single
// transaction: the allocations, the invoice balance updates, and the
// payment's reconciliation status commit or roll back together.
type MatchingService struct {
	scope  TransactionScope
	engine *matching.Engine
	logger *zap.Logger
}

// NewMatchingService creates a new matching service
func NewMatchingService(scope TransactionScope, engine *matching.Engine, logger *zap.Logger) *MatchingService {
	return &MatchingService{
		scope:  scope,
		engine: engine,
		logger: logger,
	}
}

// MatchPayment runs the matching tiers for a single payment.
// Payments that are already resolved (auto_matched, ai_suggested or
// manually_matched) are rejected; pending, unapplied, needs_review and
// unmatched payments are eligible. Pending allocations left over from an
// earlier low-confidence suggestion are discarded before re-matching.
func (s *MatchingService) MatchPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*MatchOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "matching", "match_payment",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()),
	)
	defer span.End()

	var outcome *MatchOutcome

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

		if err := s.discardPendingAllocations(ctx, repos, tenantID, paymentID); err != nil {
			return err
		}

		invoices, err := repos.InvoiceRepo().FindMatchable(ctx, tenantID, payment.AccountID)
		if err != nil {
			return err
		}
		candidates := make([]matching.CandidateInvoice, 0, len(invoices))
		for i := range invoices {
			candidates = append(candidates, matching.NewCandidate(&invoices[i]))
		}

		result, err := s.engine.Match(ctx, payment, candidates)
		if err != nil {
			return err
		}

		status := result.PaymentStatus()
		allocStatus := result.AllocationStatus()

		for _, proposed := range result.Allocations {
			amount, err := valueobject.NewMoney(proposed.AmountApplied, valueobject.Currency(payment.Currency))
			if err != nil {
				return err
			}

			allocation, err := ledger.NewAllocation(tenantID, payment.ID, proposed.InvoiceID,
				amount, result.Confidence, result.Method, allocStatus)
			if err != nil {
				return err
			}
			if err := repos.AllocationRepo().Save(ctx, allocation); err != nil {
				return err
			}

			if allocStatus == ledger.AllocationStatusConfirmed {
				invoice, err := repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, proposed.InvoiceID)
				if err != nil {
					return err
				}
				if invoice == nil {
					return shared.ErrNotFound
				}
				if err := invoice.ApplySettlement(amount); err != nil {
					return err
				}
				if err := repos.InvoiceRepo().SaveWithLock(ctx, invoice); err != nil {
					return err
				}
			}
		}

		if err := payment.MarkReconciled(status); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}

		outcome = &MatchOutcome{
			PaymentID:       payment.ID,
			AccountID:       payment.AccountID,
			Method:          result.Method,
			Confidence:      result.Confidence,
			Status:          status,
			AllocationCount: len(result.Allocations),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrMatchMethod, outcome.Method.String(),
		telemetry.SpanAttrConfidence, outcome.Confidence,
	)

	s.logger.Info("Payment matched",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("method", outcome.Method.String()),
		zap.String("status", outcome.Status.String()),
		zap.Float64("confidence", outcome.Confidence),
		zap.Int("allocations", outcome.AllocationCount),
	)

	return outcome, nil
}

// discardPendingAllocations removes unconfirmed allocations left on the
// payment by a previous run. Confirmed allocations are never touched here;
// reversing those is the compensation service's job.
func (s *MatchingService) discardPendingAllocations(ctx context.Context, repos TransactionalRepositories, tenantID, paymentID uuid.UUID) error {
	allocations, err := repos.AllocationRepo().FindByPayment(ctx, tenantID, paymentID)
	if err != nil {
		return err
	}
	for i := range allocations {
		if allocations[i].IsConfirmed() {
			return shared.NewDomainError("INVALID_STATE", "Payment has confirmed allocations; unmatch it before re-running")
		}
		if err := repos.AllocationRepo().Delete(ctx, tenantID, allocations[i].ID); err != nil {
			return err
		}
	}
	return nil
}
