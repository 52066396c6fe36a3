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

// MachineService manages the machine registry
type MachineService struct {
	machineRepo *repository.MachineRepository
	logger      *zap.Logger
}

// NewMachineService creates a new MachineService
func NewMachineService(machineRepo *repository.MachineRepository, logger *zap.Logger) *MachineService {
	return &MachineService{
		machineRepo: machineRepo,
		logger:      logger,
	}
}

// Create registers a new machine. Machines can only serve productive stages.
func (s *MachineService) Create(ctx context.Context, req *domain.CreateMachineRequest) (*domain.MachineDTO, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fieldError(ErrInvalidInput, "code", req.Code, "code is required")
	}
	if err := validateMachineFields(req.StageType, req.WastageNormPercent, req.Capacity); err != nil {
		return nil, err
	}

	existing, err := s.machineRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check machine code: %w", err)
	}
	if existing != nil {
		return nil, fieldError(ErrAlreadyExists, "code", code, "machine code already registered")
	}

	machine := &domain.Machine{
		Code:               code,
		Name:               req.Name,
		StageType:          req.StageType,
		Location:           req.Location,
		Capacity:           req.Capacity,
		CapacityUnit:       req.CapacityUnit,
		WastageNormPercent: req.WastageNormPercent,
		Status:             domain.MachineStatusActive,
	}

	if err := s.machineRepo.Create(ctx, machine); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fieldError(ErrAlreadyExists, "code", code, "machine code already registered")
		}
		return nil, fmt.Errorf("failed to create machine: %w", err)
	}

	s.logger.Info("machine registered",
		zap.String("machine_id", machine.ID.String()),
		zap.String("code", machine.Code),
		zap.String("stage", string(machine.StageType)))

	dto := mapper.ToMachineDTO(machine)
	return &dto, nil
}

// GetByID retrieves a machine
func (s *MachineService) GetByID(ctx context.Context, id uuid.UUID) (*domain.MachineDTO, error) {
	machine, err := s.getMachine(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToMachineDTO(machine)
	return &dto, nil
}

// Update changes a machine's descriptive fields, stage and wastage norm.
// Existing work order assignments and recorded entries are not rewritten.
func (s *MachineService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateMachineRequest) (*domain.MachineDTO, error) {
	if err := validateMachineFields(req.StageType, req.WastageNormPercent, req.Capacity); err != nil {
		return nil, err
	}

	machine, err := s.getMachine(ctx, id)
	if err != nil {
		return nil, err
	}

	if !machine.WastageNormPercent.Equal(req.WastageNormPercent) {
		s.logger.Info("machine wastage norm changed",
			zap.String("machine_id", machine.ID.String()),
			zap.String("from", machine.WastageNormPercent.String()),
			zap.String("to", req.WastageNormPercent.String()))
	}

	machine.Name = req.Name
	machine.StageType = req.StageType
	machine.Location = req.Location
	machine.Capacity = req.Capacity
	machine.CapacityUnit = req.CapacityUnit
	machine.WastageNormPercent = req.WastageNormPercent

	if err := s.machineRepo.Update(ctx, machine); err != nil {
		return nil, fmt.Errorf("failed to update machine: %w", err)
	}

	dto := mapper.ToMachineDTO(machine)
	return &dto, nil
}

// Deactivate stops a machine from taking new assignments
func (s *MachineService) Deactivate(ctx context.Context, id uuid.UUID) (*domain.MachineDTO, error) {
	return s.setStatus(ctx, id, domain.MachineStatusInactive)
}

// Activate returns a machine to service
func (s *MachineService) Activate(ctx context.Context, id uuid.UUID) (*domain.MachineDTO, error) {
	return s.setStatus(ctx, id, domain.MachineStatusActive)
}

func (s *MachineService) setStatus(ctx context.Context, id uuid.UUID, status domain.MachineStatus) (*domain.MachineDTO, error) {
	if err := s.machineRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(ErrNotFound, "machineId", id, "")
		}
		return nil, fmt.Errorf("failed to update machine status: %w", err)
	}

	s.logger.Info("machine status changed",
		zap.String("machine_id", id.String()),
		zap.String("status", string(status)))

	return s.GetByID(ctx, id)
}

// List returns a paginated list of machines
func (s *MachineService) List(ctx context.Context, page, pageSize int, filters *repository.MachineFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePagination(page, pageSize)

	machines, total, err := s.machineRepo.ListWithSortConfig(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	dtos := make([]domain.MachineDTO, len(machines))
	for i := range machines {
		dtos[i] = mapper.ToMachineDTO(&machines[i])
	}

	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// ListByStage returns the machines that can run work orders of a stage
func (s *MachineService) ListByStage(ctx context.Context, stage domain.Stage, activeOnly bool) ([]domain.MachineDTO, error) {
	if !stage.IsProductive() {
		return nil, fieldError(ErrInvalidInput, "stage", stage, "stage has no machines")
	}
	machines, err := s.machineRepo.ListByStage(ctx, stage, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	dtos := make([]domain.MachineDTO, len(machines))
	for i := range machines {
		dtos[i] = mapper.ToMachineDTO(&machines[i])
	}
	return dtos, nil
}

func (s *MachineService) getMachine(ctx context.Context, id uuid.UUID) (*domain.Machine, error) {
	machine, err := s.machineRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(ErrNotFound, "machineId", id, "")
		}
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	return machine, nil
}

func validateMachineFields(stage domain.Stage, norm, capacity decimal.Decimal) error {
	if !stage.IsProductive() {
		return fieldError(ErrInvalidInput, "stageType", stage, "machines serve productive stages only")
	}
	if norm.IsNegative() {
		return fieldError(ErrInvalidInput, "wastageNormPercent", norm, "must not be negative")
	}
	if capacity.IsNegative() {
		return fieldError(ErrInvalidInput, "capacity", capacity, "must not be negative")
	}
	return nil
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
