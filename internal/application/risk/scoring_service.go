// Package risk implements the account scoring use cases.
package risk

import (
	"context"
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/risk"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScoreRunSummary reports what a tenant-wide scoring pass did
type ScoreRunSummary struct {
	Scored      int       `json:"scored"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ScoringService computes and persists payment-risk scores. Scoring reads
// the full invoice history of an account, so it works off the repositories
// directly; each account's aggregate row is written independently.
type ScoringService struct {
	invoiceRepo   ledger.InvoiceRepository
	aggregateRepo ledger.AccountAggregateRepository
	logger        *zap.Logger
}

// NewScoringService creates a new scoring service
func NewScoringService(
	invoiceRepo ledger.InvoiceRepository,
	aggregateRepo ledger.AccountAggregateRepository,
	logger *zap.Logger,
) *ScoringService {
	return &ScoringService{
		invoiceRepo:   invoiceRepo,
		aggregateRepo: aggregateRepo,
		logger:        logger,
	}
}

// ScoreAccount recomputes the risk assessment for one account and stores it
// on the account aggregate. Accounts without any invoices still get a score
// (the no-history default).
func (s *ScoringService) ScoreAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*risk.Assessment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "risk", "score_account",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, accountID.String()),
	)
	defer span.End()

	if accountID == uuid.Nil {
		err := shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}

	invoices, err := s.invoiceRepo.FindByAccount(ctx, tenantID, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	asOf := time.Now()
	assessment := risk.Score(invoices, asOf)

	aggregate, err := s.aggregateRepo.FindByAccount(ctx, tenantID, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if aggregate == nil {
		aggregate, err = ledger.NewAccountAggregate(tenantID, accountID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	aggregate.RefreshBalances(invoices, asOf)
	aggregate.RecordScore(assessment.Score, assessment.Tier.String(),
		assessment.AvgDaysToPay, assessment.MaxDaysPastDue, assessment.AgingMix,
		assessment.DisputedCount, assessment.InPlanCount, assessment.WrittenOffCount)

	if err := s.aggregateRepo.Save(ctx, aggregate); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, "score", assessment.Score, "tier", assessment.Tier.String())

	s.logger.Info("Account scored",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID.String()),
		zap.Int("score", assessment.Score),
		zap.String("tier", assessment.Tier.String()),
	)

	return &assessment, nil
}

// ScoreAll rescores every account holding invoices for the tenant. Accounts
// are scored sequentially and independently; a failure on one account is
// logged and counted without aborting the pass.
func (s *ScoringService) ScoreAll(ctx context.Context, tenantID uuid.UUID) (*ScoreRunSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "risk", "score_all",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer span.End()

	summary := &ScoreRunSummary{StartedAt: time.Now()}

	accountIDs, err := s.invoiceRepo.FindAccountIDs(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for _, accountID := range accountIDs {
		if _, err := s.ScoreAccount(ctx, tenantID, accountID); err != nil {
			summary.Failed++
			s.logger.Warn("Account scoring failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("account_id", accountID.String()),
				zap.Error(err),
			)
			continue
		}
		summary.Scored++
	}

	summary.CompletedAt = time.Now()

	telemetry.AddEvent(span, "scoring_completed",
		"scored", summary.Scored,
		"failed", summary.Failed,
	)
	s.logger.Info("Scoring pass completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("scored", summary.Scored),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}
