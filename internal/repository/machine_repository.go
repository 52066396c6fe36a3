package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"gorm.io/gorm"
)

// MachineFilters defines filter options for machine listing
type MachineFilters struct {
	Search string
	Stage  *domain.Stage
	Status *domain.MachineStatus
}

// machineSortableFields maps API field names to database column names for machines
var machineSortableFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"code":      "code",
	"name":      "name",
	"stageType": "stage_type",
	"status":    "status",
}

// MachineRepository handles machine data access operations
type MachineRepository struct {
	db *gorm.DB
}

// NewMachineRepository creates a new machine repository instance
func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// Create creates a new machine in the database
func (r *MachineRepository) Create(ctx context.Context, machine *domain.Machine) error {
	return r.db.WithContext(ctx).Create(machine).Error
}

// GetByID retrieves a machine by its ID
func (r *MachineRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Machine, error) {
	var machine domain.Machine
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&machine).Error
	if err != nil {
		return nil, err
	}
	return &machine, nil
}

// GetByIDTx retrieves a machine inside the caller's transaction
func (r *MachineRepository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.Machine, error) {
	var machine domain.Machine
	if err := tx.Where("id = ?", id).First(&machine).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

// GetByCode finds a machine by its code, returning nil when none exists
func (r *MachineRepository) GetByCode(ctx context.Context, code string) (*domain.Machine, error) {
	var machine domain.Machine
	err := r.db.WithContext(ctx).Where("LOWER(code) = LOWER(?)", code).First(&machine).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &machine, nil
}

// Update updates an existing machine in the database
func (r *MachineRepository) Update(ctx context.Context, machine *domain.Machine) error {
	return r.db.WithContext(ctx).Save(machine).Error
}

// UpdateStatus changes only the status column
func (r *MachineRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MachineStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Machine{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByStage returns all machines of a stage ordered by code
func (r *MachineRepository) ListByStage(ctx context.Context, stage domain.Stage, activeOnly bool) ([]domain.Machine, error) {
	var machines []domain.Machine
	query := r.db.WithContext(ctx).Where("stage_type = ?", stage)
	if activeOnly {
		query = query.Where("status = ?", domain.MachineStatusActive)
	}
	err := query.Order("code ASC").Find(&machines).Error
	return machines, err
}

// ListWithSortConfig returns a paginated list of machines with filter and sort options
func (r *MachineRepository) ListWithSortConfig(ctx context.Context, page, pageSize int, filters *MachineFilters, sort SortConfig) ([]domain.Machine, int64, error) {
	var machines []domain.Machine
	var total int64

	page, pageSize = NormalizePagination(page, pageSize)

	query := r.db.WithContext(ctx).Model(&domain.Machine{})

	if filters != nil {
		if filters.Search != "" {
			searchPattern := "%" + strings.ToLower(filters.Search) + "%"
			query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", searchPattern, searchPattern)
		}
		if filters.Stage != nil {
			query = query.Where("stage_type = ?", *filters.Stage)
		}
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, machineSortableFields, "code")
	err := query.Order(orderClause).Scopes(Paginate(page, pageSize)).Find(&machines).Error

	return machines, total, err
}
