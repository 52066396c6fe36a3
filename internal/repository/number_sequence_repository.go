package repository

import (
	"fmt"
	"time"

	"github.com/straye-as/production-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository hands out strictly increasing sequence numbers per
// scope and year (e.g. order sheet numbers). It only works inside a caller's
// transaction, so it holds no connection of its own.
type NumberSequenceRepository struct{}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository() *NumberSequenceRepository {
	return &NumberSequenceRepository{}
}

// NextInTx increments the sequence inside a caller-owned transaction so the
// number is only consumed if the surrounding work commits.
func (r *NumberSequenceRepository) NextInTx(tx *gorm.DB, scope string, year int) (int, error) {
	// The first allocation of a year races on the insert; the loser does nothing
	// and then waits on the row lock below.
	now := time.Now()
	seed := domain.NumberSequence{Scope: scope, Year: year, CreatedAt: now, UpdatedAt: now}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "year"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("failed to seed number sequence: %w", err)
	}

	var seq domain.NumberSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("scope = ? AND year = ?", scope, year).
		First(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", err)
	}

	next := seq.LastSequence + 1
	if err := tx.Model(&seq).Updates(map[string]interface{}{
		"last_sequence": next,
		"updated_at":    time.Now(),
	}).Error; err != nil {
		return 0, fmt.Errorf("failed to update number sequence: %w", err)
	}
	return next, nil
}
