package ledger

import (
	"fmt"
	"time"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen          InvoiceStatus = "open"            // Unpaid, outstanding balance > 0
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"  // 0 < outstanding < amount
	InvoiceStatusPaid          InvoiceStatus = "paid"            // Fully settled, outstanding = 0
	InvoiceStatusDisputed      InvoiceStatus = "disputed"        // Customer disputes the charge
	InvoiceStatusInPaymentPlan InvoiceStatus = "in_payment_plan" // On an agreed installment schedule
	InvoiceStatusCanceled      InvoiceStatus = "canceled"        // Written off; terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusPaid,
		InvoiceStatusDisputed, InvoiceStatusInPaymentPlan, InvoiceStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCanceled
}

// CountsTowardOpenBalance returns true if the invoice's outstanding amount
// contributes to the account's open balance
func (s InvoiceStatus) CountsTowardOpenBalance() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusInPaymentPlan
}

// CanSettle returns true if allocations can be applied in this status
func (s InvoiceStatus) CanSettle() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusInPaymentPlan
}

// Invoice represents an invoice aggregate root.
// Amount is immutable after creation; AmountOutstanding only moves through
// ApplySettlement and RestoreSettlement so it always equals the original
// amount minus the sum of confirmed allocations.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber     string          `json:"invoice_number"`
	AccountID         uuid.UUID       `json:"account_id"`
	Amount            decimal.Decimal `json:"amount"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
	Currency          string          `json:"currency"`
	IssueDate         time.Time       `json:"issue_date"`
	DueDate           time.Time       `json:"due_date"`
	PaidDate          *time.Time      `json:"paid_date"`
	Status            InvoiceStatus   `json:"status"`
	WriteOffReason    string          `json:"write_off_reason"`
	WrittenOffAt      *time.Time      `json:"written_off_at"`
}

// NewInvoice creates a new open invoice
func NewInvoice(
	tenantID uuid.UUID,
	accountID uuid.UUID,
	invoiceNumber string,
	amount valueobject.Money,
	issueDate time.Time,
	dueDate time.Time,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice amount must be positive")
	}
	if dueDate.Before(issueDate) {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot precede issue date")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		AccountID:           accountID,
		Amount:              amount.Amount(),
		AmountOutstanding:   amount.Amount(),
		Currency:            string(amount.Currency()),
		IssueDate:           issueDate,
		DueDate:             dueDate,
		Status:              InvoiceStatusOpen,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// ApplySettlement decrements the outstanding amount by the given settlement
// and transitions the status to PartiallyPaid or Paid.
// Returns error if the settlement exceeds the outstanding amount or the
// invoice cannot receive settlements in its current status.
func (inv *Invoice) ApplySettlement(amount valueobject.Money) error {
	if !inv.Status.CanSettle() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot settle invoice in %s status", inv.Status))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Settlement amount must be positive")
	}
	if amount.Amount().GreaterThan(inv.AmountOutstanding) {
		return shared.NewDomainError("EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Settlement amount %.2f exceeds outstanding amount %.2f",
				amount.Amount().InexactFloat64(), inv.AmountOutstanding.InexactFloat64()))
	}

	inv.AmountOutstanding = inv.AmountOutstanding.Sub(amount.Amount())

	if inv.AmountOutstanding.IsZero() {
		now := time.Now()
		inv.Status = InvoiceStatusPaid
		inv.PaidDate = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	} else {
		inv.Status = InvoiceStatusPartiallyPaid
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// RestoreSettlement reverses a previously applied settlement. The outstanding
// amount is increased and the invoice reopens; a restored invoice never keeps
// its paid date.
func (inv *Invoice) RestoreSettlement(amount valueobject.Money) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot restore settlement on invoice in %s status", inv.Status))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Restore amount must be positive")
	}
	restored := inv.AmountOutstanding.Add(amount.Amount())
	if restored.GreaterThan(inv.Amount) {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Restoring %.2f would exceed the original invoice amount %.2f",
				amount.Amount().InexactFloat64(), inv.Amount.InexactFloat64()))
	}

	inv.AmountOutstanding = restored
	inv.Status = InvoiceStatusOpen
	inv.PaidDate = nil
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceReopenedEvent(inv))

	return nil
}

// Dispute marks the invoice as disputed
func (inv *Invoice) Dispute() error {
	if inv.Status.IsTerminal() || inv.Status == InvoiceStatusPaid {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot dispute invoice in %s status", inv.Status))
	}
	inv.Status = InvoiceStatusDisputed
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// EnterPaymentPlan places the invoice on an installment schedule
func (inv *Invoice) EnterPaymentPlan() error {
	if inv.Status != InvoiceStatusOpen && inv.Status != InvoiceStatusPartiallyPaid {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot enter payment plan from %s status", inv.Status))
	}
	inv.Status = InvoiceStatusInPaymentPlan
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// WriteOff cancels the invoice. The outstanding amount drops out of the open
// balance but the invoice is retained for risk history.
func (inv *Invoice) WriteOff(reason string) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already written off")
	}
	if inv.Status == InvoiceStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Cannot write off a paid invoice")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Write-off reason is required")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCanceled
	inv.WriteOffReason = reason
	inv.WrittenOffAt = &now
	inv.AmountOutstanding = decimal.Zero
	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// IsMatchable returns true if the invoice can be offered as a matching
// candidate: it still carries an outstanding balance and is either open or
// on a payment plan.
func (inv *Invoice) IsMatchable() bool {
	return (inv.Status == InvoiceStatusOpen || inv.Status == InvoiceStatusInPaymentPlan) &&
		inv.AmountOutstanding.GreaterThan(decimal.Zero)
}

// DaysPastDue returns the number of days past due as of the given date
// (0 if not yet due)
func (inv *Invoice) DaysPastDue(asOf time.Time) int {
	if !asOf.After(inv.DueDate) {
		return 0
	}
	return int(asOf.Sub(inv.DueDate).Hours() / 24)
}

// DaysToPay returns the number of days between issue and payment.
// The second return value is false if the invoice has not been paid.
func (inv *Invoice) DaysToPay() (int, bool) {
	if inv.PaidDate == nil {
		return 0, false
	}
	return int(inv.PaidDate.Sub(inv.IssueDate).Hours() / 24), true
}

// GetAmountMoney returns the original amount as Money
func (inv *Invoice) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.Amount, valueobject.Currency(inv.Currency))
	return m
}

// GetOutstandingMoney returns the outstanding amount as Money
func (inv *Invoice) GetOutstandingMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.AmountOutstanding, valueobject.Currency(inv.Currency))
	return m
}
