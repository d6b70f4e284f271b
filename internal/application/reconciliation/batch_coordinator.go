package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// runLockTTL bounds how long a crashed run can keep the tenant locked
const runLockTTL = 10 * time.Minute

// PaymentMatcher matches a single payment. Implemented by MatchingService.
type PaymentMatcher interface {
	MatchPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*MatchOutcome, error)
}

// AggregateRecomputer rebuilds the account aggregate for one account.
// Implemented by AllocationService.
type AggregateRecomputer interface {
	RecomputeAccountAggregate(ctx context.Context, tenantID, accountID uuid.UUID) error
}

// RunSummary reports what one reconciliation run did
type RunSummary struct {
	RunID            uuid.UUID `json:"run_id"`
	Processed        int       `json:"processed"`
	ExactMatches     int       `json:"exact_matches"`
	HeuristicMatches int       `json:"heuristic_matches"`
	AISuggested      int       `json:"ai_suggested"`
	NeedsReview      int       `json:"needs_review"`
	Unapplied        int       `json:"unapplied"`
	Failed           int       `json:"failed"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// BatchCoordinator drives a reconciliation run over every unresolved payment
// of a tenant. Payments are processed sequentially in payment-date order and
// each payment commits independently, so one bad payment never poisons the
// rest of the run. A distributed lock keeps runs for the same tenant from
// overlapping.
type BatchCoordinator struct {
	matcher     PaymentMatcher
	recomputer  AggregateRecomputer
	paymentRepo ledger.PaymentRepository
	runLock     shared.RunLock
	lockTTL     time.Duration
	logger      *zap.Logger
}

// NewBatchCoordinator creates a new batch coordinator
func NewBatchCoordinator(
	matcher PaymentMatcher,
	recomputer AggregateRecomputer,
	paymentRepo ledger.PaymentRepository,
	runLock shared.RunLock,
	logger *zap.Logger,
) *BatchCoordinator {
	return &BatchCoordinator{
		matcher:     matcher,
		recomputer:  recomputer,
		paymentRepo: paymentRepo,
		runLock:     runLock,
		lockTTL:     runLockTTL,
		logger:      logger,
	}
}

// WithRunLockTTL overrides the default lock TTL. Zero or negative values are ignored.
func (c *BatchCoordinator) WithRunLockTTL(ttl time.Duration) *BatchCoordinator {
	if ttl > 0 {
		c.lockTTL = ttl
	}
	return c
}

// RunMatching executes one reconciliation run for a tenant, optionally
// limited to payments from a single import batch. Returns ErrRunInProgress
// if another run already holds the tenant's lock.
func (c *BatchCoordinator) RunMatching(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) (*RunSummary, error) {
	runID := uuid.New()

	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "run_matching",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrBatchID, batchIDString(batchID)),
	)
	defer span.End()

	lockKey := fmt.Sprintf("reconciliation:run:%s", tenantID)
	acquired, err := c.runLock.Acquire(ctx, lockKey, c.lockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !acquired {
		telemetry.RecordError(span, shared.ErrRunInProgress)
		return nil, shared.ErrRunInProgress
	}
	defer func() {
		if releaseErr := c.runLock.Release(context.WithoutCancel(ctx), lockKey); releaseErr != nil {
			c.logger.Warn("Failed to release run lock",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(releaseErr),
			)
		}
	}()

	summary := &RunSummary{
		RunID:     runID,
		StartedAt: time.Now(),
	}

	payments, err := c.paymentRepo.FindUnresolved(ctx, tenantID, batchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	touched := make(map[uuid.UUID]struct{})

	for i := range payments {
		payment := &payments[i]

		outcome, err := c.matchOne(ctx, tenantID, payment.ID)
		if err != nil {
			summary.Failed++
			c.logger.Warn("Payment matching failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("payment_id", payment.ID.String()),
				zap.String("run_id", runID.String()),
				zap.Error(err),
			)
			continue
		}

		summary.Processed++
		c.tally(summary, outcome)
		if outcome.AllocationCount > 0 {
			touched[outcome.AccountID] = struct{}{}
		}
	}

	for accountID := range touched {
		if err := c.recomputer.RecomputeAccountAggregate(ctx, tenantID, accountID); err != nil {
			c.logger.Warn("Account aggregate recomputation failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("account_id", accountID.String()),
				zap.String("run_id", runID.String()),
				zap.Error(err),
			)
		}
	}

	summary.CompletedAt = time.Now()

	telemetry.AddEvent(span, "run_completed",
		"processed", summary.Processed,
		"failed", summary.Failed,
	)
	c.logger.Info("Reconciliation run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("run_id", runID.String()),
		zap.Int("processed", summary.Processed),
		zap.Int("exact", summary.ExactMatches),
		zap.Int("heuristic", summary.HeuristicMatches),
		zap.Int("ai_suggested", summary.AISuggested),
		zap.Int("needs_review", summary.NeedsReview),
		zap.Int("unapplied", summary.Unapplied),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}

// matchOne isolates a single payment's matching attempt, converting panics
// into errors so the run survives a misbehaving tier.
func (c *BatchCoordinator) matchOne(ctx context.Context, tenantID, paymentID uuid.UUID) (outcome *MatchOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("matching panicked: %v", r)
		}
	}()
	return c.matcher.MatchPayment(ctx, tenantID, paymentID)
}

func (c *BatchCoordinator) tally(summary *RunSummary, outcome *MatchOutcome) {
	switch outcome.Method {
	case ledger.MatchMethodExact:
		summary.ExactMatches++
		return
	case ledger.MatchMethodHeuristic:
		summary.HeuristicMatches++
		return
	}

	switch outcome.Status {
	case ledger.ReconciliationStatusAutoMatched, ledger.ReconciliationStatusAISuggested:
		summary.AISuggested++
	case ledger.ReconciliationStatusNeedsReview:
		summary.NeedsReview++
	default:
		summary.Unapplied++
	}
}

func batchIDString(batchID *uuid.UUID) string {
	if batchID == nil {
		return ""
	}
	return batchID.String()
}
