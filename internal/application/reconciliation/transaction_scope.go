package reconciliation

import (
	"context"

	"github.com/arflow/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically. Compensation (unmatch/rematch) relies on this: a
// half-applied reversal would break the outstanding-amount invariant.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories
// within a transaction. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() ledger.InvoiceRepository
	// PaymentRepo returns the payment repository scoped to the current transaction
	PaymentRepo() ledger.PaymentRepository
	// AllocationRepo returns the allocation repository scoped to the current transaction
	AllocationRepo() ledger.AllocationRepository
	// AggregateRepo returns the account aggregate repository scoped to the current transaction
	AggregateRepo() ledger.AccountAggregateRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	invoiceRepo    ledger.InvoiceRepository
	paymentRepo    ledger.PaymentRepository
	allocationRepo ledger.AllocationRepository
	aggregateRepo  ledger.AccountAggregateRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoiceRepo ledger.InvoiceRepository,
	paymentRepo ledger.PaymentRepository,
	allocationRepo ledger.AllocationRepository,
	aggregateRepo ledger.AccountAggregateRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo:    invoiceRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
		aggregateRepo:  aggregateRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() ledger.InvoiceRepository {
	return s.invoiceRepo
}

// PaymentRepo returns the payment repository.
func (s *NoOpTransactionScope) PaymentRepo() ledger.PaymentRepository {
	return s.paymentRepo
}

// AllocationRepo returns the allocation repository.
func (s *NoOpTransactionScope) AllocationRepo() ledger.AllocationRepository {
	return s.allocationRepo
}

// AggregateRepo returns the account aggregate repository.
func (s *NoOpTransactionScope) AggregateRepo() ledger.AccountAggregateRepository {
	return s.aggregateRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
