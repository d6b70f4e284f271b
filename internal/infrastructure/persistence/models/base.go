package models

import (
	"time"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantAggregateModel carries the columns every tenant-scoped aggregate
// table shares: identity, tenant, optimistic-lock version and timestamps.
// Ledger models embed it.
type TenantAggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainTenantAggregateRoot copies the shared aggregate fields from the
// domain representation.
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.ID = t.ID
	m.TenantID = t.TenantID
	m.Version = t.Version
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// PopulateTenantAggregateRoot copies the shared aggregate fields onto a
// domain aggregate root.
func (m *TenantAggregateModel) PopulateTenantAggregateRoot(t *shared.TenantAggregateRoot) {
	t.ID = m.ID
	t.TenantID = m.TenantID
	t.Version = m.Version
	t.CreatedAt = m.CreatedAt
	t.UpdatedAt = m.UpdatedAt
}
