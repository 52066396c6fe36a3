package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkOrderFilters defines filter options for work order listing
type WorkOrderFilters struct {
	OrderSheetID *uuid.UUID
	MachineID    *uuid.UUID
	Stage        *domain.Stage
	Status       *domain.WorkOrderStatus
	Priority     *domain.Priority
	ItemID       string
}

var workOrderSortableFields = map[string]string{
	"createdAt":            "created_at",
	"updatedAt":            "updated_at",
	"stage":                "stage",
	"status":               "status",
	"priority":             "priority",
	"itemId":               "item_id",
	"targetQuantity":       "target_quantity",
	"completedQuantity":    "completed_quantity",
	"actualWastagePercent": "actual_wastage_percent",
	"startedAt":            "started_at",
	"completedAt":          "completed_at",
}

// WorkOrderRepository handles work order data access operations
type WorkOrderRepository struct {
	db *gorm.DB
}

// NewWorkOrderRepository creates a new work order repository instance
func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// GetByID retrieves a work order with its machine
func (r *WorkOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	var wo domain.WorkOrder
	err := r.db.WithContext(ctx).Preload("Machine").Where("id = ?", id).First(&wo).Error
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

// ListByOrderSheet returns every work order of a sheet in one statement
func (r *WorkOrderRepository) ListByOrderSheet(ctx context.Context, sheetID uuid.UUID) ([]domain.WorkOrder, error) {
	var workOrders []domain.WorkOrder
	err := r.db.WithContext(ctx).
		Preload("Machine").
		Where("order_sheet_id = ?", sheetID).
		Order("sales_order_line_ref ASC, created_at ASC").
		Find(&workOrders).Error
	return workOrders, err
}

// ListWithSortConfig returns a paginated list of work orders with filter and sort options
func (r *WorkOrderRepository) ListWithSortConfig(ctx context.Context, page, pageSize int, filters *WorkOrderFilters, sort SortConfig) ([]domain.WorkOrder, int64, error) {
	var workOrders []domain.WorkOrder
	var total int64

	page, pageSize = NormalizePagination(page, pageSize)

	query := r.db.WithContext(ctx).Model(&domain.WorkOrder{})

	if filters != nil {
		if filters.OrderSheetID != nil {
			query = query.Where("order_sheet_id = ?", *filters.OrderSheetID)
		}
		if filters.MachineID != nil {
			query = query.Where("machine_id = ?", *filters.MachineID)
		}
		if filters.Stage != nil {
			query = query.Where("stage = ?", *filters.Stage)
		}
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.Priority != nil {
			query = query.Where("priority = ?", *filters.Priority)
		}
		if filters.ItemID != "" {
			query = query.Where("item_id = ?", filters.ItemID)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, workOrderSortableFields, "updated_at")
	err := query.
		Preload("Machine").
		Order(orderClause).
		Scopes(Paginate(page, pageSize)).
		Find(&workOrders).Error

	return workOrders, total, err
}

// MutateFunc changes a locked work order. Any additional rows must be written through tx.
type MutateFunc func(tx *gorm.DB, wo *domain.WorkOrder) error

// UpdateLocked loads the work order with a row lock, applies fn and saves the result,
// all in one transaction. Concurrent callers on the same work order are serialized.
// If fn returns an error nothing is written.
func (r *WorkOrderRepository) UpdateLocked(ctx context.Context, id uuid.UUID, fn MutateFunc) (*domain.WorkOrder, error) {
	var wo domain.WorkOrder

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&wo).Error; err != nil {
			return err
		}

		if err := fn(tx, &wo); err != nil {
			return err
		}

		// Associations are saved separately; only the work order row is written here
		return tx.Omit(clause.Associations).Save(&wo).Error
	})
	if err != nil {
		return nil, err
	}
	return &wo, nil
}
