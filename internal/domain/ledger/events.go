package ledger

import (
	"time"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		AccountID:       inv.AccountID,
		Amount:          inv.Amount,
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is raised when an invoice is fully settled
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return "InvoicePaid"
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidDate != nil {
		paidAt = *inv.PaidDate
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaid", "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		AccountID:       inv.AccountID,
		Amount:          inv.Amount,
		PaidAt:          paidAt,
	}
}

// InvoiceReopenedEvent is raised when a settlement is reversed and the
// invoice returns to open status
type InvoiceReopenedEvent struct {
	shared.BaseDomainEvent
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	AccountID         uuid.UUID       `json:"account_id"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
}

// EventType returns the event type name
func (e *InvoiceReopenedEvent) EventType() string {
	return "InvoiceReopened"
}

// NewInvoiceReopenedEvent creates a new InvoiceReopenedEvent
func NewInvoiceReopenedEvent(inv *Invoice) *InvoiceReopenedEvent {
	return &InvoiceReopenedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("InvoiceReopened", "Invoice", inv.ID, inv.TenantID),
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		AccountID:         inv.AccountID,
		AmountOutstanding: inv.AmountOutstanding,
	}
}

// PaymentReconciledEvent is raised when a payment reaches a resolved
// reconciliation status
type PaymentReconciledEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID            `json:"payment_id"`
	AccountID uuid.UUID            `json:"account_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Status    ReconciliationStatus `json:"status"`
}

// EventType returns the event type name
func (e *PaymentReconciledEvent) EventType() string {
	return "PaymentReconciled"
}

// NewPaymentReconciledEvent creates a new PaymentReconciledEvent
func NewPaymentReconciledEvent(p *Payment) *PaymentReconciledEvent {
	return &PaymentReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentReconciled", "Payment", p.ID, p.TenantID),
		PaymentID:       p.ID,
		AccountID:       p.AccountID,
		Amount:          p.Amount,
		Status:          p.ReconciliationStatus,
	}
}
