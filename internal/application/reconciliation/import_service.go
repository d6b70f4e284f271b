package reconciliation

import (
	"context"
	"io"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/arflow/backend/internal/infrastructure/paymentfile"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportSummary reports the outcome of one payment file upload. A file with
// any rejected row imports nothing, so BatchID is only set when Imported > 0.
type ImportSummary struct {
	BatchID         *uuid.UUID             `json:"batch_id,omitempty"`
	TotalRows       int                    `json:"total_rows"`
	Imported        int                    `json:"imported"`
	Errors          []paymentfile.RowError `json:"errors,omitempty"`
	TotalErrors     int                    `json:"total_errors,omitempty"`
	ErrorsTruncated bool                   `json:"errors_truncated,omitempty"`
}

// PaymentImportService ingests bank payment files into the ledger. Every
// imported payment starts pending and is tagged with a fresh batch ID so a
// reconciliation run can be scoped to just this upload.
type PaymentImportService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewPaymentImportService creates a new payment import service
func NewPaymentImportService(scope TransactionScope, logger *zap.Logger) *PaymentImportService {
	return &PaymentImportService{
		scope:  scope,
		logger: logger,
	}
}

// ImportPayments parses and validates a payment file, then inserts every row
// as a pending payment in one transaction. The file is all-or-nothing: when
// any row fails validation nothing is written and the summary carries the
// row errors. File-level problems (bad encoding, missing columns) are
// returned as an error instead.
func (s *PaymentImportService) ImportPayments(ctx context.Context, tenantID uuid.UUID, file io.Reader) (*ImportSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "import_payments",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer span.End()

	result, err := paymentfile.ParsePaymentFile(file)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summary := &ImportSummary{
		TotalRows:       result.TotalRows,
		Errors:          result.Errors,
		TotalErrors:     result.TotalErrors,
		ErrorsTruncated: result.Truncated,
	}
	if !result.Valid() {
		s.logger.Info("Payment file rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("total_rows", result.TotalRows),
			zap.Int("errors", result.TotalErrors),
		)
		return summary, nil
	}

	batchID := uuid.New()
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, row := range result.Rows {
			amount, err := valueobject.NewMoney(row.Amount, valueobject.Currency(row.Currency))
			if err != nil {
				return err
			}

			payment, err := ledger.NewPayment(tenantID, row.AccountID, amount,
				row.PaymentDate, row.Reference, row.InvoiceNumberHint, row.Notes, &batchID)
			if err != nil {
				return err
			}

			if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summary.BatchID = &batchID
	summary.Imported = len(result.Rows)

	s.logger.Info("Payment file imported",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", batchID.String()),
		zap.Int("imported", summary.Imported),
	)

	return summary, nil
}
