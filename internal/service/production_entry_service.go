package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/mapper"
	"github.com/straye-as/production-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductionEntryService appends production entries and keeps the work order's
// cumulative totals in step with the ledger
type ProductionEntryService struct {
	entryRepo     *repository.ProductionEntryRepository
	workOrderRepo *repository.WorkOrderRepository
	machineRepo   *repository.MachineRepository
	workOrders    *WorkOrderService
	logger        *zap.Logger
}

// NewProductionEntryService creates a new ProductionEntryService
func NewProductionEntryService(
	entryRepo *repository.ProductionEntryRepository,
	workOrderRepo *repository.WorkOrderRepository,
	machineRepo *repository.MachineRepository,
	workOrders *WorkOrderService,
	logger *zap.Logger,
) *ProductionEntryService {
	return &ProductionEntryService{
		entryRepo:     entryRepo,
		workOrderRepo: workOrderRepo,
		machineRepo:   machineRepo,
		workOrders:    workOrders,
		logger:        logger,
	}
}

// Record appends a production batch to a running work order. The entry insert,
// the cumulative totals and any auto-completion happen under one row lock.
// The result reports whether this entry's wastage was above the machine norm.
func (s *ProductionEntryService) Record(ctx context.Context, req *domain.RecordEntryRequest) (*domain.RecordEntryResult, error) {
	if err := validateEntryRequest(req); err != nil {
		return nil, err
	}

	var (
		entry         *domain.ProductionEntry
		autoCompleted bool
	)

	wo, err := s.workOrderRepo.UpdateLocked(ctx, req.WorkOrderID, func(tx *gorm.DB, wo *domain.WorkOrder) error {
		if wo.Status != domain.WorkOrderStatusInProgress {
			return fieldError(ErrNotInProgress, "status", wo.Status, "production can only be recorded on a running work order")
		}
		if err := req.Attributes.Validate(wo.Stage); err != nil {
			return fieldError(ErrInvalidInput, "attributes", req.Attributes.Stage, err.Error())
		}

		norm, err := s.currentNorm(tx, wo)
		if err != nil {
			return err
		}

		percent := WastagePercent(req.WastageQuantity, req.InputQuantity)
		entry = &domain.ProductionEntry{
			WorkOrderID:        wo.ID,
			MachineID:          wo.MachineID,
			Stage:              wo.Stage,
			OperatorID:         strings.TrimSpace(req.OperatorID),
			StartTime:          req.StartTime.UTC(),
			EndTime:            req.EndTime.UTC(),
			InputQuantity:      req.InputQuantity,
			InputUnit:          unitOr(req.InputUnit, wo.Unit),
			OutputQuantity:     req.OutputQuantity,
			OutputUnit:         unitOr(req.OutputUnit, wo.Unit),
			WastageQuantity:    req.WastageQuantity,
			WastageUnit:        unitOr(req.WastageUnit, wo.Unit),
			WastagePercent:     percent,
			WastageNormPercent: norm,
			WastageExceeded:    ExceedsNorm(percent, norm),
			Reason:             req.Reason,
			Notes:              req.Notes,
			Attributes:         req.Attributes.Normalize(),
		}
		if err := s.entryRepo.CreateTx(tx, entry); err != nil {
			return fmt.Errorf("failed to append production entry: %w", err)
		}

		applyTotals(wo, req.OutputQuantity, req.WastageQuantity)

		if !wo.CompletedQuantity.LessThan(wo.TargetQuantity) {
			autoCompleted = true
			return s.workOrders.applyTransitionTx(tx, wo, domain.WorkOrderStatusCompleted,
				entry.OperatorID, "target quantity reached", &entry.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.workOrders.mapLookupError(err, req.WorkOrderID)
	}

	fields := []zap.Field{
		zap.String("work_order_id", wo.ID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("stage", string(wo.Stage)),
		zap.String("output", entry.OutputQuantity.String()),
		zap.String("wastage_percent", entry.WastagePercent.String()),
		zap.String("completed_quantity", wo.CompletedQuantity.String()),
	}
	if wo.MachineID != nil {
		fields = append(fields, zap.String("machine_id", wo.MachineID.String()))
	}
	s.logger.Info("production entry recorded", fields...)

	if entry.WastageExceeded {
		s.logger.Warn("wastage above machine norm", append(fields,
			zap.String("wastage_norm_percent", entry.WastageNormPercent.String()))...)
	}
	if autoCompleted {
		s.logger.Info("work order completed by production entry", fields...)
	}
	if wo.OverTarget {
		s.logger.Info("work order over target", fields...)
	}

	return &domain.RecordEntryResult{
		Entry:           mapper.ToProductionEntryDTO(entry),
		WorkOrder:       mapper.ToWorkOrderDTO(wo),
		WastageExceeded: entry.WastageExceeded,
		AutoCompleted:   autoCompleted,
	}, nil
}

// RecordCorrection appends a compensating entry for an earlier entry. Signed
// deltas adjust the work order totals; neither the corrected entry's effective
// quantities nor the work order totals may drop below zero. The original entry
// is never modified. A correction does not reopen a completed work order.
//
// The correction row stores the deltas as its quantities, but its WastagePercent
// and WastageExceeded describe the corrected entry (original plus every
// correction), so on this row the percent is not wastage/input of the row itself.
func (s *ProductionEntryService) RecordCorrection(ctx context.Context, req *domain.CorrectEntryRequest) (*domain.RecordEntryResult, error) {
	if strings.TrimSpace(req.OperatorID) == "" {
		return nil, fieldError(ErrInvalidInput, "operatorId", req.OperatorID, "operator is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fieldError(ErrMissingReason, "reason", req.Reason, "a correction reason is required")
	}
	if req.InputDelta.IsZero() && req.OutputDelta.IsZero() && req.WastageDelta.IsZero() {
		return nil, fieldError(ErrInvalidInput, "outputDelta", req.OutputDelta, "at least one delta must be non-zero")
	}

	var (
		entry         *domain.ProductionEntry
		autoCompleted bool
	)

	wo, err := s.workOrderRepo.UpdateLocked(ctx, req.WorkOrderID, func(tx *gorm.DB, wo *domain.WorkOrder) error {
		if wo.Status == domain.WorkOrderStatusCancelled {
			return fieldError(ErrNotInProgress, "status", wo.Status, "cancelled work orders cannot be corrected")
		}

		original, err := s.entryRepo.GetByIDTx(tx, req.EntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fieldError(ErrNotFound, "entryId", req.EntryID, "")
			}
			return err
		}
		if original.WorkOrderID != wo.ID {
			return fieldError(ErrInvalidInput, "entryId", req.EntryID, "entry belongs to another work order")
		}
		if original.IsCorrection() {
			return fieldError(ErrInvalidInput, "entryId", req.EntryID, "corrections cannot be corrected; correct the original entry")
		}

		corrections, err := s.entryRepo.ListCorrectionsTx(tx, original.ID)
		if err != nil {
			return fmt.Errorf("failed to load corrections: %w", err)
		}
		input, output, wastage := original.InputQuantity, original.OutputQuantity, original.WastageQuantity
		for _, c := range corrections {
			input = input.Add(c.InputQuantity)
			output = output.Add(c.OutputQuantity)
			wastage = wastage.Add(c.WastageQuantity)
		}
		input = input.Add(req.InputDelta)
		output = output.Add(req.OutputDelta)
		wastage = wastage.Add(req.WastageDelta)

		switch {
		case input.IsNegative():
			return fieldError(ErrInvalidInput, "inputDelta", req.InputDelta, "corrected input would be negative")
		case output.IsNegative():
			return fieldError(ErrInvalidInput, "outputDelta", req.OutputDelta, "corrected output would be negative")
		case wastage.IsNegative():
			return fieldError(ErrInvalidInput, "wastageDelta", req.WastageDelta, "corrected wastage would be negative")
		case wastage.GreaterThan(input):
			return fieldError(ErrInvalidWastage, "wastageDelta", req.WastageDelta, "corrected wastage would exceed corrected input")
		}

		if wo.CompletedQuantity.Add(req.OutputDelta).IsNegative() {
			return fieldError(ErrInvalidInput, "outputDelta", req.OutputDelta, "work order completed quantity would be negative")
		}
		if wo.WastageQuantity.Add(req.WastageDelta).IsNegative() {
			return fieldError(ErrInvalidInput, "wastageDelta", req.WastageDelta, "work order wastage would be negative")
		}

		percent := WastagePercent(wastage, input)
		entry = &domain.ProductionEntry{
			WorkOrderID:        wo.ID,
			MachineID:          original.MachineID,
			Stage:              original.Stage,
			OperatorID:         strings.TrimSpace(req.OperatorID),
			StartTime:          original.StartTime,
			EndTime:            original.StartTime,
			InputQuantity:      req.InputDelta,
			InputUnit:          original.InputUnit,
			OutputQuantity:     req.OutputDelta,
			OutputUnit:         original.OutputUnit,
			WastageQuantity:    req.WastageDelta,
			WastageUnit:        original.WastageUnit,
			WastagePercent:     percent,
			WastageNormPercent: original.WastageNormPercent,
			WastageExceeded:    ExceedsNorm(percent, original.WastageNormPercent),
			Reason:             req.Reason,
			CompensatesEntryID: &original.ID,
		}
		if err := s.entryRepo.CreateTx(tx, entry); err != nil {
			return fmt.Errorf("failed to append correction: %w", err)
		}

		applyTotals(wo, req.OutputDelta, req.WastageDelta)

		if wo.Status == domain.WorkOrderStatusInProgress && !wo.CompletedQuantity.LessThan(wo.TargetQuantity) {
			autoCompleted = true
			return s.workOrders.applyTransitionTx(tx, wo, domain.WorkOrderStatusCompleted,
				entry.OperatorID, "target quantity reached after correction", &entry.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.workOrders.mapLookupError(err, req.WorkOrderID)
	}

	s.logger.Info("production entry corrected",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("compensates_entry_id", req.EntryID.String()),
		zap.String("output_delta", req.OutputDelta.String()),
		zap.String("wastage_delta", req.WastageDelta.String()),
		zap.String("reason", req.Reason))

	return &domain.RecordEntryResult{
		Entry:           mapper.ToProductionEntryDTO(entry),
		WorkOrder:       mapper.ToWorkOrderDTO(wo),
		WastageExceeded: entry.WastageExceeded,
		AutoCompleted:   autoCompleted,
	}, nil
}

// ListByWorkOrder returns the entries of a work order in time order
func (s *ProductionEntryService) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]domain.ProductionEntryDTO, error) {
	if _, err := s.workOrderRepo.GetByID(ctx, workOrderID); err != nil {
		return nil, s.workOrders.mapLookupError(err, workOrderID)
	}
	entries, err := s.entryRepo.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list production entries: %w", err)
	}
	dtos := make([]domain.ProductionEntryDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToProductionEntryDTO(&entries[i])
	}
	return dtos, nil
}

// currentNorm reads the assigned machine's wastage norm at write time
func (s *ProductionEntryService) currentNorm(tx *gorm.DB, wo *domain.WorkOrder) (decimal.Decimal, error) {
	if wo.MachineID == nil {
		return decimal.Zero, fieldError(ErrNoMachineAssigned, "machineId", nil, "running work order has no machine")
	}
	machine, err := s.machineRepo.GetByIDTx(tx, *wo.MachineID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load machine norm: %w", err)
	}
	return machine.WastageNormPercent, nil
}

// applyTotals adds output and wastage to the cumulative totals and re-derives
// the cumulative wastage percentage and over-target flag
func applyTotals(wo *domain.WorkOrder, output, wastage decimal.Decimal) {
	wo.CompletedQuantity = wo.CompletedQuantity.Add(output)
	wo.WastageQuantity = wo.WastageQuantity.Add(wastage)
	wo.ActualWastagePercent = CumulativeWastagePercent(wo.CompletedQuantity, wo.WastageQuantity)
	wo.OverTarget = wo.CompletedQuantity.GreaterThan(wo.TargetQuantity)
}

func validateEntryRequest(req *domain.RecordEntryRequest) error {
	if req == nil {
		return fieldError(ErrInvalidInput, "entry", nil, "entry is required")
	}
	if strings.TrimSpace(req.OperatorID) == "" {
		return fieldError(ErrInvalidInput, "operatorId", req.OperatorID, "operator is required")
	}
	if req.StartTime.IsZero() {
		return fieldError(ErrInvalidInput, "startTime", req.StartTime, "start time is required")
	}
	if req.EndTime.IsZero() {
		return fieldError(ErrInvalidInput, "endTime", req.EndTime, "end time is required")
	}
	if req.EndTime.Before(req.StartTime) {
		return fieldError(ErrInvalidInput, "endTime", req.EndTime, "end time is before start time")
	}
	if req.InputQuantity.IsNegative() {
		return fieldError(ErrInvalidInput, "inputQuantity", req.InputQuantity, "must not be negative")
	}
	if req.OutputQuantity.IsNegative() {
		return fieldError(ErrInvalidInput, "outputQuantity", req.OutputQuantity, "must not be negative")
	}
	if req.WastageQuantity.IsNegative() {
		return fieldError(ErrInvalidInput, "wastageQuantity", req.WastageQuantity, "must not be negative")
	}
	if req.WastageQuantity.GreaterThan(req.InputQuantity) {
		return fieldError(ErrInvalidWastage, "wastageQuantity", req.WastageQuantity,
			fmt.Sprintf("wastage exceeds input %s", req.InputQuantity))
	}
	return nil
}

func unitOr(unit, fallback string) string {
	if strings.TrimSpace(unit) == "" {
		return fallback
	}
	return unit
}
