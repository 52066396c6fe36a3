package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/mapper"
	"github.com/straye-as/production-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SheetNumberPrefix is the prefix of human readable order sheet numbers (OS-2026-0001)
const SheetNumberPrefix = "OS"

// SalesOrderSource looks up approved sales orders in an upstream system.
// It returns nil, nil when the sales order does not exist.
type SalesOrderSource interface {
	GetSalesOrder(ctx context.Context, ref string) (*domain.SalesOrder, error)
}

// OrderSheetService creates order sheets and fans them out into work orders
type OrderSheetService struct {
	sheetRepo *repository.OrderSheetRepository
	source    SalesOrderSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderSheetService creates a new OrderSheetService. source may be nil when no
// upstream sales order system is configured.
func NewOrderSheetService(
	sheetRepo *repository.OrderSheetRepository,
	source SalesOrderSource,
	logger *zap.Logger,
) *OrderSheetService {
	return &OrderSheetService{
		sheetRepo: sheetRepo,
		source:    source,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateFromSalesOrder creates an order sheet with six work orders (one per
// productive stage) for every line item. Everything is written in one transaction.
func (s *OrderSheetService) CreateFromSalesOrder(ctx context.Context, so *domain.SalesOrder) (*domain.OrderSheetDTO, error) {
	if err := validateSalesOrder(so); err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(so.ID)
	existing, err := s.sheetRepo.GetBySalesOrderRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to check sales order: %w", err)
	}
	if existing != nil {
		return nil, fieldError(ErrAlreadyExists, "salesOrderRef", ref, "order sheet "+existing.SheetNumber+" already exists")
	}

	sheet := s.buildSheet(ref, so)
	numbering := repository.SheetNumbering{Prefix: SheetNumberPrefix, Year: s.now().Year()}

	if err := s.sheetRepo.CreateNumbered(ctx, sheet, numbering); err != nil {
		if errors.Is(err, repository.ErrDuplicateSalesOrder) {
			return nil, fieldError(ErrAlreadyExists, "salesOrderRef", ref, "order sheet already exists")
		}
		return nil, fmt.Errorf("failed to create order sheet: %w", err)
	}

	s.logger.Info("order sheet created",
		zap.String("order_sheet_id", sheet.ID.String()),
		zap.String("sheet_number", sheet.SheetNumber),
		zap.String("sales_order_ref", ref),
		zap.Int("lines", len(sheet.Lines)),
		zap.Int("work_orders", len(sheet.WorkOrders)))

	return s.toDTO(sheet), nil
}

// CreateFromSalesOrderRef fetches the sales order from the configured source and
// creates its order sheet.
func (s *OrderSheetService) CreateFromSalesOrderRef(ctx context.Context, ref string) (*domain.OrderSheetDTO, error) {
	if s.source == nil {
		return nil, ErrSalesOrderSourceUnavailable
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fieldError(ErrInvalidInput, "salesOrderRef", ref, "reference is required")
	}

	so, err := s.source.GetSalesOrder(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales order %s: %w", ref, err)
	}
	if so == nil {
		return nil, fieldError(ErrNotFound, "salesOrderRef", ref, "sales order not found")
	}

	return s.CreateFromSalesOrder(ctx, so)
}

func (s *OrderSheetService) buildSheet(ref string, so *domain.SalesOrder) *domain.OrderSheet {
	priority := so.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	orderDate := s.now()
	if so.OrderDate != nil {
		orderDate = *so.OrderDate
	}

	sheet := &domain.OrderSheet{
		SalesOrderRef: ref,
		CustomerRef:   strings.TrimSpace(so.CustomerID),
		CustomerName:  so.CustomerName,
		OrderDate:     orderDate,
		DeliveryDate:  so.DeliveryDate,
		Priority:      priority,
		Status:        domain.OrderSheetStatusOpen,
	}

	stages := domain.ProductiveStages()
	for i, item := range so.LineItems {
		lineRef := lineRefOf(item, i)
		sheet.Lines = append(sheet.Lines, domain.OrderSheetLine{
			LineRef:  lineRef,
			ItemID:   item.ItemID,
			ItemName: item.ItemName,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			Position: i,
		})
		for _, stage := range stages {
			sheet.WorkOrders = append(sheet.WorkOrders, domain.WorkOrder{
				SalesOrderLineRef: lineRef,
				ItemID:            item.ItemID,
				ItemName:          item.ItemName,
				Stage:             stage,
				TargetQuantity:    item.Quantity,
				Unit:              item.Unit,
				Priority:          priority,
				Status:            domain.WorkOrderStatusPending,
			})
		}
	}
	return sheet
}

func lineRefOf(item domain.SalesOrderLineItem, i int) string {
	if ref := strings.TrimSpace(item.LineRef); ref != "" {
		return ref
	}
	return strconv.Itoa(i + 1)
}

func validateSalesOrder(so *domain.SalesOrder) error {
	if so == nil {
		return fieldError(ErrInvalidInput, "salesOrder", nil, "sales order is required")
	}
	if strings.TrimSpace(so.ID) == "" {
		return fieldError(ErrInvalidInput, "id", so.ID, "sales order reference is required")
	}
	if strings.TrimSpace(so.CustomerID) == "" {
		return fieldError(ErrInvalidInput, "customerId", so.CustomerID, "customer reference is required")
	}
	if so.Priority != "" && !so.Priority.IsValid() {
		return fieldError(ErrInvalidInput, "priority", so.Priority, "must be one of: urgent high normal low")
	}
	if len(so.LineItems) == 0 {
		return fieldError(ErrInvalidInput, "lineItems", 0, "at least one line item is required")
	}

	seen := make(map[string]bool, len(so.LineItems))
	for i, item := range so.LineItems {
		prefix := fmt.Sprintf("lineItems[%d]", i)
		if strings.TrimSpace(item.ItemID) == "" {
			return fieldError(ErrInvalidInput, prefix+".itemId", item.ItemID, "item is required")
		}
		if !item.Quantity.IsPositive() {
			return fieldError(ErrInvalidInput, prefix+".quantity", item.Quantity, "quantity must be positive")
		}
		if strings.TrimSpace(item.Unit) == "" {
			return fieldError(ErrInvalidInput, prefix+".unit", item.Unit, "unit is required")
		}
		ref := lineRefOf(item, i)
		if seen[ref] {
			return fieldError(ErrInvalidInput, prefix+".lineRef", ref, "duplicate line reference")
		}
		seen[ref] = true
	}
	return nil
}

// GetByID returns a sheet with its work orders and overall progress
func (s *OrderSheetService) GetByID(ctx context.Context, id uuid.UUID) (*domain.OrderSheetDTO, error) {
	sheet, err := s.getSheet(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return s.toDTO(sheet), nil
}

// List returns a paginated list of order sheets
func (s *OrderSheetService) List(ctx context.Context, page, pageSize int, filters *repository.OrderSheetFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePagination(page, pageSize)

	sheets, total, err := s.sheetRepo.ListWithSortConfig(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list order sheets: %w", err)
	}

	dtos := make([]domain.OrderSheetDTO, len(sheets))
	for i := range sheets {
		dtos[i] = mapper.ToOrderSheetDTO(&sheets[i])
	}

	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// Cancel cancels the sheet and every work order that has not finished.
// Recorded production entries are kept. The reason is optional.
func (s *OrderSheetService) Cancel(ctx context.Context, id uuid.UUID, reason, changedBy string) (*domain.OrderSheetDTO, error) {
	reason = strings.TrimSpace(reason)

	cancelled, err := s.sheetRepo.Cancel(ctx, id, reason, changedBy, s.now())
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fieldError(ErrNotFound, "orderSheetId", id, "")
		case errors.Is(err, repository.ErrOrderSheetClosed):
			return nil, fieldError(ErrInvalidTransition, "status", domain.OrderSheetStatusCancelled, "order sheet is already closed")
		}
		return nil, fmt.Errorf("failed to cancel order sheet: %w", err)
	}

	s.logger.Info("order sheet cancelled",
		zap.String("order_sheet_id", id.String()),
		zap.Int("work_orders_cancelled", len(cancelled)),
		zap.String("reason", reason))

	return s.GetByID(ctx, id)
}

// MarkDelivered records delivery of the sheet. Every work order must be completed or cancelled.
func (s *OrderSheetService) MarkDelivered(ctx context.Context, id uuid.UUID) (*domain.OrderSheetDTO, error) {
	sheet, err := s.getSheet(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if sheet.Status.IsTerminal() {
		return nil, fieldError(ErrInvalidTransition, "status", sheet.Status, "order sheet is already closed")
	}
	for _, wo := range sheet.WorkOrders {
		if !wo.Status.IsTerminal() {
			return nil, fieldError(ErrInvalidTransition, "workOrders", wo.ID,
				fmt.Sprintf("%s work order is still %s", wo.Stage, wo.Status))
		}
	}

	ok, err := s.sheetRepo.MarkDelivered(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark order sheet delivered: %w", err)
	}
	if !ok {
		return nil, fieldError(ErrInvalidTransition, "status", sheet.Status, "order sheet changed concurrently")
	}

	s.logger.Info("order sheet delivered",
		zap.String("order_sheet_id", id.String()),
		zap.String("sheet_number", sheet.SheetNumber))

	return s.GetByID(ctx, id)
}

func (s *OrderSheetService) getSheet(ctx context.Context, id uuid.UUID, withWorkOrders bool) (*domain.OrderSheet, error) {
	sheet, err := s.sheetRepo.GetByID(ctx, id, withWorkOrders)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(ErrNotFound, "orderSheetId", id, "")
		}
		return nil, fmt.Errorf("failed to get order sheet: %w", err)
	}
	return sheet, nil
}

func (s *OrderSheetService) toDTO(sheet *domain.OrderSheet) *domain.OrderSheetDTO {
	SortWorkOrders(sheet.WorkOrders, linePositions(sheet.Lines))
	dto := mapper.ToOrderSheetDTO(sheet)
	dto.ProgressPercent = SheetProgressOf(sheet.ID, sheet.WorkOrders).Percent
	return &dto
}

func linePositions(lines []domain.OrderSheetLine) map[string]int {
	positions := make(map[string]int, len(lines))
	for _, line := range lines {
		positions[line.LineRef] = line.Position
	}
	return positions
}
