package repository

import (
	"fmt"
	"time"

	"pulsefm/db"
	"pulsefm/model"

	"gorm.io/gorm"
)

// PromoRepository stores promotional audio scheduling and play stats.
type PromoRepository interface {
	Create(promo *model.Promotion) error
	All() ([]model.Promotion, error)
	ActiveAt(t time.Time) ([]model.Promotion, error)
	ExpiredAt(t time.Time) ([]model.Promotion, error)
	MarkPlayed(id uint, playedAt time.Time) error
	Delete(id uint) error
}

type gormPromoRepository struct {
	db *gorm.DB
}

// NewGormPromoRepository creates a promotion repository on the shared
// GORM connection.
func NewGormPromoRepository() PromoRepository {
	return &gormPromoRepository{db: db.GormDB}
}

// Create stores a promotion.
func (r *gormPromoRepository) Create(promo *model.Promotion) error {
	if r.db == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := r.db.Create(promo).Error; err != nil {
		return fmt.Errorf("failed to store promotion %q: %w", promo.Title, err)
	}
	return nil
}

// All returns every promotion, soonest-expiring first.
func (r *gormPromoRepository) All() ([]model.Promotion, error) {
	if r.db == nil {
		return nil, fmt.Errorf("GORM database not initialized")
	}

	var promos []model.Promotion
	if err := r.db.Order("active_to ASC").Find(&promos).Error; err != nil {
		return nil, fmt.Errorf("failed to load promotions: %w", err)
	}
	return promos, nil
}

// ActiveAt returns promotions whose window covers the given time.
func (r *gormPromoRepository) ActiveAt(t time.Time) ([]model.Promotion, error) {
	if r.db == nil {
		return nil, fmt.Errorf("GORM database not initialized")
	}

	var promos []model.Promotion
	err := r.db.Where("active_from <= ? AND active_to >= ?", t, t).
		Order("created_at ASC").Find(&promos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active promotions: %w", err)
	}
	return promos, nil
}

// ExpiredAt returns promotions whose window has fully passed.
func (r *gormPromoRepository) ExpiredAt(t time.Time) ([]model.Promotion, error) {
	if r.db == nil {
		return nil, fmt.Errorf("GORM database not initialized")
	}

	var promos []model.Promotion
	if err := r.db.Where("active_to < ?", t).Find(&promos).Error; err != nil {
		return nil, fmt.Errorf("failed to load expired promotions: %w", err)
	}
	return promos, nil
}

// MarkPlayed bumps the play counter and records the play time.
func (r *gormPromoRepository) MarkPlayed(id uint, playedAt time.Time) error {
	if r.db == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	err := r.db.Model(&model.Promotion{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"play_count":     gorm.Expr("play_count + 1"),
			"last_played_at": playedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record promotion play for %d: %w", id, err)
	}
	return nil
}

// Delete removes a promotion row.
func (r *gormPromoRepository) Delete(id uint) error {
	if r.db == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := r.db.Delete(&model.Promotion{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete promotion %d: %w", id, err)
	}
	return nil
}
