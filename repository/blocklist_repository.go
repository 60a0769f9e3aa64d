package repository

import (
	"errors"
	"fmt"

	"pulsefm/db"
	"pulsefm/model"

	"gorm.io/gorm"
)

// BlocklistRepository stores tracks excluded from selection and
// submission.
type BlocklistRepository interface {
	Add(blocked *model.BlockedTrack) error
	Remove(trackID string) error
	IsBlocked(trackID string) (bool, error)
	All() ([]model.BlockedTrack, error)
}

type gormBlocklistRepository struct {
	db *gorm.DB
}

// NewGormBlocklistRepository creates a blocklist repository on the
// shared GORM connection.
func NewGormBlocklistRepository() BlocklistRepository {
	return &gormBlocklistRepository{db: db.GormDB}
}

// Add stores a blocked track.
func (r *gormBlocklistRepository) Add(blocked *model.BlockedTrack) error {
	if r.db == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := r.db.Create(blocked).Error; err != nil {
		return fmt.Errorf("failed to store blocked track %s: %w", blocked.TrackID, err)
	}
	return nil
}

// Remove deletes a blocked track. Missing rows are not an error; the
// caller checks IsBlocked first for the coded rejection.
func (r *gormBlocklistRepository) Remove(trackID string) error {
	if r.db == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := r.db.Delete(&model.BlockedTrack{}, "track_id = ?", trackID).Error; err != nil {
		return fmt.Errorf("failed to remove blocked track %s: %w", trackID, err)
	}
	return nil
}

// IsBlocked reports whether a track is on the blocklist.
func (r *gormBlocklistRepository) IsBlocked(trackID string) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("GORM database not initialized")
	}

	var blocked model.BlockedTrack
	err := r.db.First(&blocked, "track_id = ?", trackID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blocklist for %s: %w", trackID, err)
	}
	return true, nil
}

// All returns the blocklist, newest first.
func (r *gormBlocklistRepository) All() ([]model.BlockedTrack, error) {
	if r.db == nil {
		return nil, fmt.Errorf("GORM database not initialized")
	}

	var blocked []model.BlockedTrack
	if err := r.db.Order("blocked_at DESC").Find(&blocked).Error; err != nil {
		return nil, fmt.Errorf("failed to load blocklist: %w", err)
	}
	return blocked, nil
}
