package ledger

import (
	"fmt"
	"time"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationStatus represents where a payment sits in the matching lifecycle
type ReconciliationStatus string

const (
	ReconciliationStatusPending         ReconciliationStatus = "pending"          // Newly ingested, not yet examined
	ReconciliationStatusUnapplied       ReconciliationStatus = "unapplied"        // Examined, no match found
	ReconciliationStatusAutoMatched     ReconciliationStatus = "auto_matched"     // Matched with high confidence, allocations confirmed
	ReconciliationStatusAISuggested     ReconciliationStatus = "ai_suggested"     // AI proposed a match awaiting confirmation
	ReconciliationStatusNeedsReview     ReconciliationStatus = "needs_review"     // Low-confidence suggestion, human must decide
	ReconciliationStatusManuallyMatched ReconciliationStatus = "manually_matched" // Operator resolved the payment
	ReconciliationStatusUnmatched       ReconciliationStatus = "unmatched"        // A previous match was reversed
)

// IsValid checks if the status is a valid ReconciliationStatus
func (s ReconciliationStatus) IsValid() bool {
	switch s {
	case ReconciliationStatusPending, ReconciliationStatusUnapplied,
		ReconciliationStatusAutoMatched, ReconciliationStatusAISuggested,
		ReconciliationStatusNeedsReview, ReconciliationStatusManuallyMatched,
		ReconciliationStatusUnmatched:
		return true
	}
	return false
}

// String returns the string representation of ReconciliationStatus
func (s ReconciliationStatus) String() string {
	return string(s)
}

// IsResolved returns true if the payment no longer needs automated matching.
// Unapplied and needs_review payments are picked up again on the next run.
func (s ReconciliationStatus) IsResolved() bool {
	return s == ReconciliationStatusAutoMatched ||
		s == ReconciliationStatusAISuggested ||
		s == ReconciliationStatusManuallyMatched
}

// Payment represents an incoming payment record awaiting reconciliation.
// Payments are created by the ingestion pipeline; only the allocation and
// compensation flows mutate the reconciliation status afterward.
type Payment struct {
	shared.TenantAggregateRoot
	AccountID            uuid.UUID            `json:"account_id"`
	Amount               decimal.Decimal      `json:"amount"`
	Currency             string               `json:"currency"`
	PaymentDate          time.Time            `json:"payment_date"`
	Reference            string               `json:"reference"`
	InvoiceNumberHint    string               `json:"invoice_number_hint"`
	Notes                string               `json:"notes"`
	BatchID              *uuid.UUID           `json:"batch_id"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status"`
}

// NewPayment creates a new pending payment
func NewPayment(
	tenantID uuid.UUID,
	accountID uuid.UUID,
	amount valueobject.Money,
	paymentDate time.Time,
	reference string,
	invoiceNumberHint string,
	notes string,
	batchID *uuid.UUID,
) (*Payment, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	return &Payment{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		AccountID:            accountID,
		Amount:               amount.Amount(),
		Currency:             string(amount.Currency()),
		PaymentDate:          paymentDate,
		Reference:            reference,
		InvoiceNumberHint:    invoiceNumberHint,
		Notes:                notes,
		BatchID:              batchID,
		ReconciliationStatus: ReconciliationStatusPending,
	}, nil
}

// MarkReconciled transitions the payment to the given reconciliation status
func (p *Payment) MarkReconciled(status ReconciliationStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown reconciliation status %q", status))
	}

	p.ReconciliationStatus = status
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	if status.IsResolved() {
		p.AddDomainEvent(NewPaymentReconciledEvent(p))
	}

	return nil
}

// MarkUnmatched flags the payment as unmatched after a compensation
func (p *Payment) MarkUnmatched() {
	p.ReconciliationStatus = ReconciliationStatusUnmatched
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// GetAmountMoney returns the payment amount as Money
func (p *Payment) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, valueobject.Currency(p.Currency))
	return m
}
