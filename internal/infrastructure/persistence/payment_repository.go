package persistence

import (
	"context"
	"errors"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormPaymentRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByIDForTenant finds a payment by ID for a specific tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnresolved finds payments still awaiting reconciliation, oldest first
func (r *GormPaymentRepository) FindUnresolved(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) ([]ledger.Payment, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reconciliation_status IN ?", tenantID,
			[]ledger.ReconciliationStatus{
				ledger.ReconciliationStatusPending,
				ledger.ReconciliationStatusUnapplied,
				ledger.ReconciliationStatusNeedsReview,
			})
	if batchID != nil {
		query = query.Where("batch_id = ?", *batchID)
	}

	var paymentModels []models.PaymentModel
	if err := query.Order("payment_date ASC").Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]ledger.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *ledger.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	return r.drainEvents(ctx, &payment.TenantAggregateRoot.BaseAggregateRoot)
}

// SaveWithLock saves with optimistic locking
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *ledger.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return r.drainEvents(ctx, &payment.TenantAggregateRoot.BaseAggregateRoot)
}

// drainEvents writes pending domain events to the outbox using the
// repository's current database handle.
func (r *GormPaymentRepository) drainEvents(ctx context.Context, root *shared.BaseAggregateRoot) error {
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	root.ClearDomainEvents()
	if r.outboxSaver == nil {
		return nil
	}
	return r.outboxSaver.SaveEvents(ctx, r.db.WithContext(ctx), events...)
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
