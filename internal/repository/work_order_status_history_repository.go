package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"gorm.io/gorm"
)

type WorkOrderStatusHistoryRepository struct {
	db *gorm.DB
}

func NewWorkOrderStatusHistoryRepository(db *gorm.DB) *WorkOrderStatusHistoryRepository {
	return &WorkOrderStatusHistoryRepository{db: db}
}

// RecordTransitionTx writes a status change inside the caller's transaction
func (r *WorkOrderStatusHistoryRepository) RecordTransitionTx(tx *gorm.DB, workOrderID uuid.UUID, from *domain.WorkOrderStatus, to domain.WorkOrderStatus, changedBy, reason string, triggeredBy *uuid.UUID) error {
	return tx.Create(&domain.WorkOrderStatusHistory{
		WorkOrderID:   workOrderID,
		FromStatus:    from,
		ToStatus:      to,
		ChangedBy:     changedBy,
		Reason:        reason,
		ChangedAt:     time.Now().UTC(),
		TriggeredByID: triggeredBy,
	}).Error
}

// GetByWorkOrderID returns all status history for a work order, oldest first
func (r *WorkOrderStatusHistoryRepository) GetByWorkOrderID(ctx context.Context, workOrderID uuid.UUID) ([]domain.WorkOrderStatusHistory, error) {
	var history []domain.WorkOrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("changed_at ASC").
		Find(&history).Error
	return history, err
}

// CountTransitionsToStatus returns how many transitions into each status happened in [from, to)
func (r *WorkOrderStatusHistoryRepository) CountTransitionsToStatus(ctx context.Context, from, to time.Time) (map[domain.WorkOrderStatus]int64, error) {
	type result struct {
		ToStatus domain.WorkOrderStatus
		Count    int64
	}
	var results []result

	err := r.db.WithContext(ctx).Model(&domain.WorkOrderStatusHistory{}).
		Select("to_status, COUNT(*) as count").
		Where("changed_at >= ? AND changed_at < ?", from, to).
		Group("to_status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.WorkOrderStatus]int64, len(results))
	for _, r := range results {
		counts[r.ToStatus] = r.Count
	}
	return counts, nil
}
