package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicateSalesOrder is returned when a sheet already exists for the sales order
	ErrDuplicateSalesOrder = errors.New("order sheet already exists for sales order")

	// ErrOrderSheetClosed is returned when cancelling a completed or cancelled sheet
	ErrOrderSheetClosed = errors.New("order sheet is closed")
)

// OrderSheetFilters defines filter options for order sheet listing
type OrderSheetFilters struct {
	Search      string
	Status      *domain.OrderSheetStatus
	Priority    *domain.Priority
	CustomerRef string
}

var orderSheetSortableFields = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"sheetNumber":  "sheet_number",
	"orderDate":    "order_date",
	"deliveryDate": "delivery_date",
	"priority":     "priority",
	"status":       "status",
	"customerName": "customer_name",
}

// SheetNumbering describes how the human readable sheet number is built
type SheetNumbering struct {
	Prefix string
	Year   int
}

// Format renders PREFIX-YYYY-NNNN
func (n SheetNumbering) Format(seq int) string {
	return fmt.Sprintf("%s-%d-%04d", n.Prefix, n.Year, seq)
}

// OrderSheetRepository handles order sheet data access operations
type OrderSheetRepository struct {
	db        *gorm.DB
	sequences *NumberSequenceRepository
}

// NewOrderSheetRepository creates a new order sheet repository instance
func NewOrderSheetRepository(db *gorm.DB, sequences *NumberSequenceRepository) *OrderSheetRepository {
	return &OrderSheetRepository{db: db, sequences: sequences}
}

// CreateNumbered inserts the sheet together with its lines and work orders in one
// transaction, allocating the sheet number inside the same transaction.
// Returns ErrDuplicateSalesOrder if the sales order already has a sheet.
func (r *OrderSheetRepository) CreateNumbered(ctx context.Context, sheet *domain.OrderSheet, numbering SheetNumbering) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.OrderSheet{}).
			Where("sales_order_ref = ?", sheet.SalesOrderRef).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check sales order: %w", err)
		}
		if count > 0 {
			return ErrDuplicateSalesOrder
		}

		seq, err := r.sequences.NextInTx(tx, numbering.Prefix, numbering.Year)
		if err != nil {
			return err
		}
		sheet.SheetNumber = numbering.Format(seq)

		return tx.Create(sheet).Error
	})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	// A creation that raced past the pre-check hits the sales_order_ref index.
	// Any other unique violation (a clashing sheet number) is not a duplicate order.
	existing, lookupErr := r.GetBySalesOrderRef(ctx, sheet.SalesOrderRef)
	if lookupErr == nil && existing != nil {
		return ErrDuplicateSalesOrder
	}
	return fmt.Errorf("failed to create order sheet %s: %w", sheet.SheetNumber, err)
}

// GetByID retrieves an order sheet with its lines; work orders are included when requested
func (r *OrderSheetRepository) GetByID(ctx context.Context, id uuid.UUID, withWorkOrders bool) (*domain.OrderSheet, error) {
	var sheet domain.OrderSheet
	query := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
	if withWorkOrders {
		query = query.Preload("WorkOrders", func(db *gorm.DB) *gorm.DB {
			return db.Order("sales_order_line_ref ASC, created_at ASC")
		}).Preload("WorkOrders.Machine")
	}
	if err := query.Where("id = ?", id).First(&sheet).Error; err != nil {
		return nil, err
	}
	return &sheet, nil
}

// GetBySalesOrderRef finds the sheet for a sales order, returning nil when none exists
func (r *OrderSheetRepository) GetBySalesOrderRef(ctx context.Context, ref string) (*domain.OrderSheet, error) {
	var sheet domain.OrderSheet
	err := r.db.WithContext(ctx).Where("sales_order_ref = ?", ref).First(&sheet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sheet, nil
}

// ListWithSortConfig returns a paginated list of order sheets (without work orders)
func (r *OrderSheetRepository) ListWithSortConfig(ctx context.Context, page, pageSize int, filters *OrderSheetFilters, sort SortConfig) ([]domain.OrderSheet, int64, error) {
	var sheets []domain.OrderSheet
	var total int64

	page, pageSize = NormalizePagination(page, pageSize)

	query := r.db.WithContext(ctx).Model(&domain.OrderSheet{})

	if filters != nil {
		if filters.Search != "" {
			searchPattern := "%" + strings.ToLower(filters.Search) + "%"
			query = query.Where(
				"LOWER(sheet_number) LIKE ? OR LOWER(sales_order_ref) LIKE ? OR LOWER(customer_name) LIKE ?",
				searchPattern, searchPattern, searchPattern)
		}
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.Priority != nil {
			query = query.Where("priority = ?", *filters.Priority)
		}
		if filters.CustomerRef != "" {
			query = query.Where("customer_ref = ?", filters.CustomerRef)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, orderSheetSortableFields, "updated_at")
	err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order(orderClause).
		Scopes(Paginate(page, pageSize)).
		Find(&sheets).Error

	return sheets, total, err
}

// MarkInProductionTx moves an open sheet to in_production; other statuses are left alone
func (r *OrderSheetRepository) MarkInProductionTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&domain.OrderSheet{}).
		Where("id = ? AND status = ?", id, domain.OrderSheetStatusOpen).
		Updates(map[string]interface{}{
			"status":     domain.OrderSheetStatusInProduction,
			"updated_at": time.Now(),
		}).Error
}

// MarkDelivered completes the sheet if it is still in a non-terminal status
func (r *OrderSheetRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.OrderSheet{}).
		Where("id = ? AND status IN ?", id, []domain.OrderSheetStatus{
			domain.OrderSheetStatusOpen, domain.OrderSheetStatusInProduction,
		}).
		Updates(map[string]interface{}{
			"status":       domain.OrderSheetStatusCompleted,
			"delivered_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected > 0, result.Error
}

// CancelledWorkOrder identifies a work order moved to cancelled by a sheet cancellation
type CancelledWorkOrder struct {
	ID         uuid.UUID
	FromStatus domain.WorkOrderStatus
}

// Cancel marks the sheet cancelled and cascades to every non-terminal work order,
// writing a status history row for each. Production entries are left untouched.
func (r *OrderSheetRepository) Cancel(ctx context.Context, id uuid.UUID, reason, changedBy string, at time.Time) ([]CancelledWorkOrder, error) {
	var cancelled []CancelledWorkOrder
	historyReason := reason
	if historyReason == "" {
		historyReason = "order sheet cancelled"
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet domain.OrderSheet
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&sheet).Error; err != nil {
			return err
		}
		if sheet.Status.IsTerminal() {
			return ErrOrderSheetClosed
		}

		var workOrders []domain.WorkOrder
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_sheet_id = ? AND status NOT IN ?", id, []domain.WorkOrderStatus{
				domain.WorkOrderStatusCompleted, domain.WorkOrderStatusCancelled,
			}).
			Find(&workOrders).Error; err != nil {
			return err
		}

		for _, wo := range workOrders {
			if err := tx.Model(&domain.WorkOrder{}).Where("id = ?", wo.ID).Updates(map[string]interface{}{
				"status":        domain.WorkOrderStatusCancelled,
				"cancel_reason": reason,
				"updated_at":    at,
			}).Error; err != nil {
				return err
			}
			from := wo.Status
			if err := tx.Create(&domain.WorkOrderStatusHistory{
				WorkOrderID: wo.ID,
				FromStatus:  &from,
				ToStatus:    domain.WorkOrderStatusCancelled,
				ChangedBy:   changedBy,
				Reason:      historyReason,
				ChangedAt:   at,
			}).Error; err != nil {
				return err
			}
			cancelled = append(cancelled, CancelledWorkOrder{ID: wo.ID, FromStatus: from})
		}

		return tx.Model(&domain.OrderSheet{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":     domain.OrderSheetStatusCancelled,
			"updated_at": at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
