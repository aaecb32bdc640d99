package repository

import (
	"context"
	"errors"

	"clearlot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DedupStore is the deduplication ledger: a bounded, restart-surviving set of
// already-handled event ids gating side-effecting fan-out.
type DedupStore interface {
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	// Clear removes a single entry so a legitimately new event reusing the id
	// is not starved forever.
	Clear(ctx context.Context, eventID string) error
}

// GormDedupStore persists the ledger in the primary database. Inserts trim
// the table to the configured capacity, oldest entries first.
type GormDedupStore struct {
	db       *gorm.DB
	capacity int
}

func NewGormDedupStore(db *gorm.DB, capacity int) *GormDedupStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &GormDedupStore{db: db, capacity: capacity}
}

func (s *GormDedupStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	var entry models.ProcessedEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormDedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedEvent{EventID: eventID}).Error
	if err != nil {
		return err
	}
	return s.Trim(ctx)
}

func (s *GormDedupStore) Clear(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Unscoped().
		Where("event_id = ?", eventID).
		Delete(&models.ProcessedEvent{}).Error
}

// Trim drops everything but the most recent capacity entries.
func (s *GormDedupStore) Trim(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ProcessedEvent{}).Count(&count).Error; err != nil {
		return err
	}
	excess := count - int64(s.capacity)
	if excess <= 0 {
		return nil
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.ProcessedEvent{}).
		Order("created_at ASC, id ASC").
		Limit(int(excess)).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Unscoped().Delete(&models.ProcessedEvent{}, ids).Error
}
