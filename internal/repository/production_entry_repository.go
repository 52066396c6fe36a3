package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"gorm.io/gorm"
)

// ProductionEntryRepository reads and appends production entries.
// Entries are immutable so there is no update or delete.
type ProductionEntryRepository struct {
	db *gorm.DB
}

// NewProductionEntryRepository creates a new production entry repository instance
func NewProductionEntryRepository(db *gorm.DB) *ProductionEntryRepository {
	return &ProductionEntryRepository{db: db}
}

// CreateTx appends an entry inside the caller's transaction
func (r *ProductionEntryRepository) CreateTx(tx *gorm.DB, entry *domain.ProductionEntry) error {
	return tx.Omit("WorkOrder", "Machine").Create(entry).Error
}

// ListByWorkOrder returns the ledger of a work order in time order
func (r *ProductionEntryRepository) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]domain.ProductionEntry, error) {
	var entries []domain.ProductionEntry
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("start_time ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListCorrectionsTx returns the compensating entries that reference the given entry
func (r *ProductionEntryRepository) ListCorrectionsTx(tx *gorm.DB, entryID uuid.UUID) ([]domain.ProductionEntry, error) {
	var entries []domain.ProductionEntry
	err := tx.
		Where("compensates_entry_id = ?", entryID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// GetByIDTx retrieves a single entry inside the caller's transaction
func (r *ProductionEntryRepository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*domain.ProductionEntry, error) {
	var entry domain.ProductionEntry
	if err := tx.Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListInWindow returns all entries whose start time falls in [from, to), with machines loaded
func (r *ProductionEntryRepository) ListInWindow(ctx context.Context, from, to time.Time) ([]domain.ProductionEntry, error) {
	var entries []domain.ProductionEntry
	err := r.db.WithContext(ctx).
		Preload("Machine").
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time ASC").
		Find(&entries).Error
	return entries, err
}
