package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/repository"
	"gorm.io/gorm"
)

// AggregationService computes the progress views of an order sheet on demand.
// Nothing is cached; every call reads the current work orders.
type AggregationService struct {
	sheetRepo     *repository.OrderSheetRepository
	workOrderRepo *repository.WorkOrderRepository
}

// NewAggregationService creates a new AggregationService
func NewAggregationService(sheetRepo *repository.OrderSheetRepository, workOrderRepo *repository.WorkOrderRepository) *AggregationService {
	return &AggregationService{
		sheetRepo:     sheetRepo,
		workOrderRepo: workOrderRepo,
	}
}

// OrderWise returns progress per sales order line
func (s *AggregationService) OrderWise(ctx context.Context, sheetID uuid.UUID) ([]domain.OrderLineProgress, error) {
	_, workOrders, err := s.snapshot(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return OrderWiseProgress(workOrders), nil
}

// ProductWise returns the stage pipeline per item
func (s *AggregationService) ProductWise(ctx context.Context, sheetID uuid.UUID) ([]domain.ProductProgress, error) {
	sheet, workOrders, err := s.snapshot(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return ProductWiseProgress(workOrders, sheet.DeliveredAt != nil), nil
}

// MachineWise returns the load per assigned machine
func (s *AggregationService) MachineWise(ctx context.Context, sheetID uuid.UUID) ([]domain.MachineLoad, error) {
	_, workOrders, err := s.snapshot(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return MachineWiseProgress(workOrders), nil
}

// Progress returns the overall completion of the sheet
func (s *AggregationService) Progress(ctx context.Context, sheetID uuid.UUID) (*domain.SheetProgress, error) {
	_, workOrders, err := s.snapshot(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	progress := SheetProgressOf(sheetID, workOrders)
	return &progress, nil
}

// snapshot reads the sheet and all of its work orders, ordered by line then stage
func (s *AggregationService) snapshot(ctx context.Context, sheetID uuid.UUID) (*domain.OrderSheet, []domain.WorkOrder, error) {
	sheet, err := s.sheetRepo.GetByID(ctx, sheetID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fieldError(ErrNotFound, "orderSheetId", sheetID, "")
		}
		return nil, nil, fmt.Errorf("failed to get order sheet: %w", err)
	}
	workOrders, err := s.workOrderRepo.ListByOrderSheet(ctx, sheetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list work orders: %w", err)
	}
	SortWorkOrders(workOrders, linePositions(sheet.Lines))
	return sheet, workOrders, nil
}
