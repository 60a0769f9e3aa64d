package repository

import (
	"fmt"

	"pulsefm/db"
	"pulsefm/model"

	"gorm.io/gorm"
)

// QueueRepository persists snapshots of the in-memory request queue.
// The queue itself is authoritative; this is write-behind storage for
// crash recovery.
type QueueRepository interface {
	Save(entries []model.QueueEntry) error
	Load() ([]model.QueueEntry, error)
}

type gormQueueRepository struct {
	db *gorm.DB
}

// NewGormQueueRepository creates a queue repository on the shared GORM
// connection.
func NewGormQueueRepository() QueueRepository {
	return &gormQueueRepository{db: db.GormDB}
}

// Save replaces the stored queue with the snapshot in one transaction.
func (r *gormQueueRepository) Save(entries []model.QueueEntry) error {
	if r.db == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.QueueEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear stored queue: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("failed to store queue snapshot: %w", err)
		}
		return nil
	})
}

// Load returns the stored queue in position order.
func (r *gormQueueRepository) Load() ([]model.QueueEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("GORM database not initialized")
	}

	var entries []model.QueueEntry
	if err := r.db.Order("position ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load stored queue: %w", err)
	}
	return entries, nil
}
