package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/mapper"
	"github.com/straye-as/production-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Status transition rules for work orders
var validStatusTransitions = map[domain.WorkOrderStatus][]domain.WorkOrderStatus{
	domain.WorkOrderStatusPending:    {domain.WorkOrderStatusInProgress, domain.WorkOrderStatusOnHold, domain.WorkOrderStatusCancelled},
	domain.WorkOrderStatusInProgress: {domain.WorkOrderStatusCompleted, domain.WorkOrderStatusOnHold, domain.WorkOrderStatusCancelled},
	domain.WorkOrderStatusOnHold:     {domain.WorkOrderStatusInProgress, domain.WorkOrderStatusCancelled},
	domain.WorkOrderStatusCompleted:  {}, // Terminal state
	domain.WorkOrderStatusCancelled:  {}, // Terminal state
}

// isValidTransition checks if a status transition is allowed
func isValidTransition(from, to domain.WorkOrderStatus) bool {
	validNext, ok := validStatusTransitions[from]
	if !ok {
		return false
	}
	for _, status := range validNext {
		if status == to {
			return true
		}
	}
	return false
}

func transitionError(from, to domain.WorkOrderStatus) error {
	return fieldError(ErrInvalidTransition, "status", from, fmt.Sprintf("cannot move from %s to %s", from, to))
}

// WorkOrderService drives the work order state machine
type WorkOrderService struct {
	workOrderRepo *repository.WorkOrderRepository
	machineRepo   *repository.MachineRepository
	sheetRepo     *repository.OrderSheetRepository
	historyRepo   *repository.WorkOrderStatusHistoryRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewWorkOrderService creates a new WorkOrderService
func NewWorkOrderService(
	workOrderRepo *repository.WorkOrderRepository,
	machineRepo *repository.MachineRepository,
	sheetRepo *repository.OrderSheetRepository,
	historyRepo *repository.WorkOrderStatusHistoryRepository,
	logger *zap.Logger,
) *WorkOrderService {
	return &WorkOrderService{
		workOrderRepo: workOrderRepo,
		machineRepo:   machineRepo,
		sheetRepo:     sheetRepo,
		historyRepo:   historyRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// GetByID retrieves a work order
func (s *WorkOrderService) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkOrderDTO, error) {
	wo, err := s.workOrderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	dto := mapper.ToWorkOrderDTO(wo)
	return &dto, nil
}

// List returns a paginated list of work orders
func (s *WorkOrderService) List(ctx context.Context, page, pageSize int, filters *repository.WorkOrderFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePagination(page, pageSize)

	workOrders, total, err := s.workOrderRepo.ListWithSortConfig(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}

	return &domain.PaginatedResponse{
		Data:       mapper.ToWorkOrderDTOs(workOrders),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// History returns every status change of a work order, oldest first
func (s *WorkOrderService) History(ctx context.Context, id uuid.UUID) ([]domain.WorkOrderStatusHistoryDTO, error) {
	if _, err := s.workOrderRepo.GetByID(ctx, id); err != nil {
		return nil, s.mapLookupError(err, id)
	}
	history, err := s.historyRepo.GetByWorkOrderID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get work order history: %w", err)
	}
	dtos := make([]domain.WorkOrderStatusHistoryDTO, len(history))
	for i := range history {
		dtos[i] = mapper.ToStatusHistoryDTO(&history[i])
	}
	return dtos, nil
}

// AssignMachine sets the machine of a pending work order. The machine must
// serve the work order's stage and be active. A work order held before it got a
// machine cannot be assigned or resumed; it can only be cancelled.
func (s *WorkOrderService) AssignMachine(ctx context.Context, id, machineID uuid.UUID) (*domain.WorkOrderDTO, error) {
	var machine *domain.Machine

	wo, err := s.workOrderRepo.UpdateLocked(ctx, id, func(tx *gorm.DB, wo *domain.WorkOrder) error {
		if wo.Status == domain.WorkOrderStatusOnHold && wo.MachineID == nil {
			return fieldError(ErrInvalidTransition, "status", wo.Status,
				"work order was held before a machine was assigned; cancel it and re-plan")
		}
		if wo.Status != domain.WorkOrderStatusPending {
			return fieldError(ErrInvalidTransition, "status", wo.Status, "machines can only be assigned to pending work orders")
		}
		m, err := s.machineRepo.GetByIDTx(tx, machineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fieldError(ErrNotFound, "machineId", machineID, "")
			}
			return err
		}
		if err := checkMachineFits(wo, m); err != nil {
			return err
		}
		wo.MachineID = &m.ID
		machine = m
		return nil
	})
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	wo.Machine = machine
	s.logger.Info("machine assigned to work order",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("machine_id", machine.ID.String()),
		zap.String("stage", string(wo.Stage)))

	dto := mapper.ToWorkOrderDTO(wo)
	return &dto, nil
}

// Start moves a pending work order into production on its assigned machine
func (s *WorkOrderService) Start(ctx context.Context, id uuid.UUID, operatorID string) (*domain.WorkOrderDTO, error) {
	return s.run(ctx, id, domain.WorkOrderStatusInProgress, operatorID, "", func(tx *gorm.DB, wo *domain.WorkOrder) error {
		if wo.Status != domain.WorkOrderStatusPending {
			return transitionError(wo.Status, domain.WorkOrderStatusInProgress)
		}
		return s.enterProduction(tx, wo)
	})
}

// Resume returns a held work order to production
func (s *WorkOrderService) Resume(ctx context.Context, id uuid.UUID, operatorID string) (*domain.WorkOrderDTO, error) {
	return s.run(ctx, id, domain.WorkOrderStatusInProgress, operatorID, "", func(tx *gorm.DB, wo *domain.WorkOrder) error {
		if wo.Status != domain.WorkOrderStatusOnHold {
			return transitionError(wo.Status, domain.WorkOrderStatusInProgress)
		}
		if err := s.enterProduction(tx, wo); err != nil {
			return err
		}
		wo.HoldReason = ""
		return nil
	})
}

// Hold pauses a pending or running work order. A reason is required.
// Holding a pending work order with no machine leaves cancel as its only exit.
func (s *WorkOrderService) Hold(ctx context.Context, id uuid.UUID, reason, operatorID string) (*domain.WorkOrderDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fieldError(ErrMissingReason, "reason", reason, "a hold reason is required")
	}
	return s.run(ctx, id, domain.WorkOrderStatusOnHold, operatorID, reason, func(tx *gorm.DB, wo *domain.WorkOrder) error {
		wo.HoldReason = reason
		return nil
	})
}

// Complete closes a running work order on the operator's decision, even below target
func (s *WorkOrderService) Complete(ctx context.Context, id uuid.UUID, operatorID string) (*domain.WorkOrderDTO, error) {
	return s.run(ctx, id, domain.WorkOrderStatusCompleted, operatorID, "manual completion", func(tx *gorm.DB, wo *domain.WorkOrder) error {
		return nil
	})
}

// Cancel cancels a work order that has not finished. The reason is optional.
func (s *WorkOrderService) Cancel(ctx context.Context, id uuid.UUID, reason, operatorID string) (*domain.WorkOrderDTO, error) {
	reason = strings.TrimSpace(reason)
	return s.run(ctx, id, domain.WorkOrderStatusCancelled, operatorID, historyReason(reason, "manual cancellation"), func(tx *gorm.DB, wo *domain.WorkOrder) error {
		wo.CancelReason = reason
		return nil
	})
}

// historyReason falls back to a fixed note when the operator gave none
func historyReason(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

// SetPriority overrides the priority inherited from the order sheet
func (s *WorkOrderService) SetPriority(ctx context.Context, id uuid.UUID, priority domain.Priority) (*domain.WorkOrderDTO, error) {
	if !priority.IsValid() {
		return nil, fieldError(ErrInvalidInput, "priority", priority, "must be one of: urgent high normal low")
	}

	wo, err := s.workOrderRepo.UpdateLocked(ctx, id, func(tx *gorm.DB, wo *domain.WorkOrder) error {
		if wo.Status.IsTerminal() {
			return fieldError(ErrInvalidTransition, "status", wo.Status, "priority cannot change on a closed work order")
		}
		wo.Priority = priority
		return nil
	})
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	s.logger.Info("work order priority changed",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("priority", string(priority)))

	return s.GetByID(ctx, id)
}

// run applies a status change under the work order lock: the transition table is
// checked, fn applies status specific changes, and history is recorded.
func (s *WorkOrderService) run(ctx context.Context, id uuid.UUID, to domain.WorkOrderStatus, operatorID, reason string, fn repository.MutateFunc) (*domain.WorkOrderDTO, error) {
	var from domain.WorkOrderStatus

	wo, err := s.workOrderRepo.UpdateLocked(ctx, id, func(tx *gorm.DB, wo *domain.WorkOrder) error {
		from = wo.Status
		if !isValidTransition(wo.Status, to) {
			return transitionError(wo.Status, to)
		}
		if err := fn(tx, wo); err != nil {
			return err
		}
		return s.applyTransitionTx(tx, wo, to, operatorID, reason, nil)
	})
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	s.logger.Info("work order status changed",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("operator_id", operatorID))

	return s.GetByID(ctx, id)
}

// enterProduction checks the assigned machine can run the work order and marks
// the owning sheet as in production.
func (s *WorkOrderService) enterProduction(tx *gorm.DB, wo *domain.WorkOrder) error {
	if wo.MachineID == nil {
		return fieldError(ErrNoMachineAssigned, "machineId", nil, "assign a machine before starting")
	}
	machine, err := s.machineRepo.GetByIDTx(tx, *wo.MachineID)
	if err != nil {
		return fmt.Errorf("failed to load assigned machine: %w", err)
	}
	if err := checkMachineFits(wo, machine); err != nil {
		return err
	}
	if wo.StartedAt == nil {
		now := s.now()
		wo.StartedAt = &now
	}
	return s.sheetRepo.MarkInProductionTx(tx, wo.OrderSheetID)
}

// applyTransitionTx sets the new status, stamps completion and writes history.
// The caller must hold the work order lock and have validated the transition.
func (s *WorkOrderService) applyTransitionTx(tx *gorm.DB, wo *domain.WorkOrder, to domain.WorkOrderStatus, changedBy, reason string, entryID *uuid.UUID) error {
	from := wo.Status
	wo.Status = to
	if to == domain.WorkOrderStatusCompleted && wo.CompletedAt == nil {
		now := s.now()
		wo.CompletedAt = &now
	}
	return s.historyRepo.RecordTransitionTx(tx, wo.ID, &from, to, changedBy, reason, entryID)
}

func checkMachineFits(wo *domain.WorkOrder, machine *domain.Machine) error {
	if machine.StageType != wo.Stage {
		return fieldError(ErrStageMismatch, "machineId", machine.ID,
			fmt.Sprintf("machine %s serves %s, work order is %s", machine.Code, machine.StageType, wo.Stage))
	}
	if !machine.IsActive() {
		return fieldError(ErrMachineInactive, "machineId", machine.ID,
			fmt.Sprintf("machine %s is inactive", machine.Code))
	}
	return nil
}

func (s *WorkOrderService) mapLookupError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fieldError(ErrNotFound, "workOrderId", id, "")
	}
	if _, ok := AsFieldError(err); ok {
		return err
	}
	return fmt.Errorf("work order %s: %w", id, err)
}
