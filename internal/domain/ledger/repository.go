package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	AccountID *uuid.UUID
	Status    *InvoiceStatus
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumberForTenant finds an invoice by invoice number for a tenant
	FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindByAccount finds all invoices for an account, oldest due date first
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]Invoice, error)

	// FindMatchable finds invoices that can receive allocations for an
	// account: open or in a payment plan, with a positive outstanding amount,
	// ordered by due date ascending
	FindMatchable(ctx context.Context, tenantID, accountID uuid.UUID) ([]Invoice, error)

	// FindAccountIDs returns the distinct account IDs holding invoices for a tenant
	FindAccountIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByIDForTenant finds a payment by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindUnresolved finds payments still awaiting reconciliation
	// (pending, unapplied, needs_review), optionally scoped to one import
	// batch, ordered by payment date ascending
	FindUnresolved(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) ([]Payment, error)

	// Save creates or updates a payment
	Save(ctx context.Context, payment *Payment) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// AllocationRepository defines the interface for allocation persistence
type AllocationRepository interface {
	// FindByIDForTenant finds an allocation by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Allocation, error)

	// FindByPayment finds all allocations recorded for a payment
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]Allocation, error)

	// FindByInvoice finds all allocations recorded against an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Allocation, error)

	// SumConfirmedByInvoice returns the total confirmed amount applied to an invoice
	SumConfirmedByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error)

	// Save creates or updates an allocation
	Save(ctx context.Context, allocation *Allocation) error

	// Delete removes an allocation
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// AccountAggregateRepository defines the interface for account aggregate persistence
type AccountAggregateRepository interface {
	// FindByAccount finds the aggregate for an account, or nil if none exists yet
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountAggregate, error)

	// Save creates or updates the aggregate for an account
	Save(ctx context.Context, aggregate *AccountAggregate) error
}
