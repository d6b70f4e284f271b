package models

import (
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber     string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	AccountID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	AmountOutstanding decimal.Decimal      `gorm:"type:decimal(18,4);not null;index"`
	Currency          string               `gorm:"type:varchar(3);not null"`
	IssueDate         time.Time            `gorm:"not null"`
	DueDate           time.Time            `gorm:"not null;index"`
	PaidDate          *time.Time           ``
	Status            ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	WriteOffReason    string               `gorm:"type:varchar(500)"`
	WrittenOffAt      *time.Time           ``
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	inv := &ledger.Invoice{
		InvoiceNumber:     m.InvoiceNumber,
		AccountID:         m.AccountID,
		Amount:            m.Amount,
		AmountOutstanding: m.AmountOutstanding,
		Currency:          m.Currency,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		PaidDate:          m.PaidDate,
		Status:            m.Status,
		WriteOffReason:    m.WriteOffReason,
		WrittenOffAt:      m.WrittenOffAt,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *ledger.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.AccountID = inv.AccountID
	m.Amount = inv.Amount
	m.AmountOutstanding = inv.AmountOutstanding
	m.Currency = inv.Currency
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.PaidDate = inv.PaidDate
	m.Status = inv.Status
	m.WriteOffReason = inv.WriteOffReason
	m.WrittenOffAt = inv.WrittenOffAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	TenantAggregateModel
	AccountID            uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Amount               decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Currency             string                      `gorm:"type:varchar(3);not null"`
	PaymentDate          time.Time                   `gorm:"not null;index"`
	Reference            string                      `gorm:"type:varchar(100)"`
	InvoiceNumberHint    string                      `gorm:"type:varchar(50)"`
	Notes                string                      `gorm:"type:text"`
	BatchID              *uuid.UUID                  `gorm:"type:uuid;index"`
	ReconciliationStatus ledger.ReconciliationStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *ledger.Payment {
	p := &ledger.Payment{
		AccountID:            m.AccountID,
		Amount:               m.Amount,
		Currency:             m.Currency,
		PaymentDate:          m.PaymentDate,
		Reference:            m.Reference,
		InvoiceNumberHint:    m.InvoiceNumberHint,
		Notes:                m.Notes,
		BatchID:              m.BatchID,
		ReconciliationStatus: m.ReconciliationStatus,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *ledger.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.AccountID = p.AccountID
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.PaymentDate = p.PaymentDate
	m.Reference = p.Reference
	m.InvoiceNumberHint = p.InvoiceNumberHint
	m.Notes = p.Notes
	m.BatchID = p.BatchID
	m.ReconciliationStatus = p.ReconciliationStatus
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is the persistence model for the Allocation aggregate root.
type AllocationModel struct {
	TenantAggregateModel
	PaymentID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	AmountApplied   decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	MatchConfidence float64                 `gorm:"type:decimal(5,4);not null"`
	MatchMethod     ledger.MatchMethod      `gorm:"type:varchar(20);not null;index"`
	Status          ledger.AllocationStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation entity.
func (m *AllocationModel) ToDomain() *ledger.Allocation {
	a := &ledger.Allocation{
		PaymentID:       m.PaymentID,
		InvoiceID:       m.InvoiceID,
		AmountApplied:   m.AmountApplied,
		MatchConfidence: m.MatchConfidence,
		MatchMethod:     m.MatchMethod,
		Status:          m.Status,
	}
	m.PopulateTenantAggregateRoot(&a.TenantAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain Allocation entity.
func (m *AllocationModel) FromDomain(a *ledger.Allocation) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.AmountApplied = a.AmountApplied
	m.MatchConfidence = a.MatchConfidence
	m.MatchMethod = a.MatchMethod
	m.Status = a.Status
}

// AllocationModelFromDomain creates a new persistence model from a domain Allocation.
func AllocationModelFromDomain(a *ledger.Allocation) *AllocationModel {
	m := &AllocationModel{}
	m.FromDomain(a)
	return m
}

// AccountAggregateModel is the persistence model for the AccountAggregate
// read model. One row per account per tenant.
type AccountAggregateModel struct {
	TenantAggregateModel
	AccountID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_aggregate_tenant_account,priority:2"`
	TotalOpenBalance decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentScore     int             `gorm:"not null;default:0"`
	PaymentRiskTier  string          `gorm:"type:varchar(20)"`
	AvgDaysToPay     float64         `gorm:"type:decimal(8,2);not null;default:0"`
	MaxDaysPastDue   int             `gorm:"not null;default:0"`
	AgingMix         ledger.AgingMix `gorm:"type:jsonb;default:'{}'"`
	DisputedCount    int             `gorm:"not null;default:0"`
	InPlanCount      int             `gorm:"not null;default:0"`
	WrittenOffCount  int             `gorm:"not null;default:0"`
	ScoredAt         *time.Time      ``
}

// TableName returns the table name for GORM
func (AccountAggregateModel) TableName() string {
	return "account_aggregates"
}

// ToDomain converts the persistence model to a domain AccountAggregate entity.
func (m *AccountAggregateModel) ToDomain() *ledger.AccountAggregate {
	a := &ledger.AccountAggregate{
		AccountID:        m.AccountID,
		TotalOpenBalance: m.TotalOpenBalance,
		PaymentScore:     m.PaymentScore,
		PaymentRiskTier:  m.PaymentRiskTier,
		AvgDaysToPay:     m.AvgDaysToPay,
		MaxDaysPastDue:   m.MaxDaysPastDue,
		AgingMix:         m.AgingMix,
		DisputedCount:    m.DisputedCount,
		InPlanCount:      m.InPlanCount,
		WrittenOffCount:  m.WrittenOffCount,
		ScoredAt:         m.ScoredAt,
	}
	m.PopulateTenantAggregateRoot(&a.TenantAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain AccountAggregate entity.
func (m *AccountAggregateModel) FromDomain(a *ledger.AccountAggregate) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.AccountID = a.AccountID
	m.TotalOpenBalance = a.TotalOpenBalance
	m.PaymentScore = a.PaymentScore
	m.PaymentRiskTier = a.PaymentRiskTier
	m.AvgDaysToPay = a.AvgDaysToPay
	m.MaxDaysPastDue = a.MaxDaysPastDue
	m.AgingMix = a.AgingMix
	m.DisputedCount = a.DisputedCount
	m.InPlanCount = a.InPlanCount
	m.WrittenOffCount = a.WrittenOffCount
	m.ScoredAt = a.ScoredAt
}

// AccountAggregateModelFromDomain creates a new persistence model from a domain AccountAggregate.
func AccountAggregateModelFromDomain(a *ledger.AccountAggregate) *AccountAggregateModel {
	m := &AccountAggregateModel{}
	m.FromDomain(a)
	return m
}
