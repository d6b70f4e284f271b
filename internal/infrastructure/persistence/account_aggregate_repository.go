package persistence

import (
	"context"
	"errors"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountAggregateRepository implements AccountAggregateRepository using GORM
type GormAccountAggregateRepository struct {
	db *gorm.DB
}

// NewGormAccountAggregateRepository creates a new GormAccountAggregateRepository
func NewGormAccountAggregateRepository(db *gorm.DB) *GormAccountAggregateRepository {
	return &GormAccountAggregateRepository{db: db}
}

// FindByAccount finds the aggregate for an account. Returns nil without an
// error when no aggregate row exists yet; callers create one on first touch.
func (r *GormAccountAggregateRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*ledger.AccountAggregate, error) {
	var model models.AccountAggregateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates the aggregate for an account
func (r *GormAccountAggregateRepository) Save(ctx context.Context, aggregate *ledger.AccountAggregate) error {
	model := models.AccountAggregateModelFromDomain(aggregate)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormAccountAggregateRepository implements AccountAggregateRepository
var _ ledger.AccountAggregateRepository = (*GormAccountAggregateRepository)(nil)
