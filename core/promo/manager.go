package promo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pulsefm/core/library"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"
)

// Manager schedules promotional audio breaks. It counts songs since the
// last break and exposes the active promotions when one is due. Play
// stats and scheduling windows live in the promotions table; the audio
// files live under dir.
type Manager struct {
	repo     repository.PromoRepository
	dir      string
	interval int

	mu        sync.Mutex
	sinceLast int
}

// NewManager creates a promo manager. interval is the number of songs
// between breaks.
func NewManager(repo repository.PromoRepository, dir string, interval int) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create promo dir: %w", err)
	}
	return &Manager{repo: repo, dir: dir, interval: interval}, nil
}

// Due reports whether enough songs have played for a promo break.
func (m *Manager) Due() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinceLast >= m.interval
}

// TrackPlayed bumps the songs-since-break counter.
func (m *Manager) TrackPlayed() {
	m.mu.Lock()
	m.sinceLast++
	count := m.sinceLast
	m.mu.Unlock()
	logger.Debug("songs since last promo break",
		logger.Int("count", count), logger.Int("interval", m.interval))
}

// Reset clears the songs-since-break counter after a break (or after a
// due check found nothing to air).
func (m *Manager) Reset() {
	m.mu.Lock()
	m.sinceLast = 0
	m.mu.Unlock()
}

// SongsSinceBreak returns the current counter value.
func (m *Manager) SongsSinceBreak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinceLast
}

// ActivePromos returns the promotions scheduled to air at t whose audio
// files still exist, least played first.
func (m *Manager) ActivePromos(t time.Time) []model.Promotion {
	promos, err := m.repo.ActiveAt(t)
	if err != nil {
		logger.Error("failed to load active promotions", logger.ErrorField(err))
		return nil
	}

	out := promos[:0]
	for _, p := range promos {
		if _, err := os.Stat(p.FilePath); err != nil {
			logger.Warn("promo audio file missing",
				logger.String("title", p.Title), logger.String("path", p.FilePath))
			continue
		}
		out = append(out, p)
	}
	return out
}

// MarkPlayed bumps the play stats of one promotion. Best-effort.
func (m *Manager) MarkPlayed(id uint) {
	if err := m.repo.MarkPlayed(id, time.Now()); err != nil {
		logger.Warn("failed to update promo play stats",
			logger.Any("promoId", id), logger.ErrorField(err))
	}
}

// Add registers a new promotion: the uploaded audio file is moved into
// the promo directory under a recognizable name and a row is created.
func (m *Manager) Add(title, promoter, description string, from, to time.Time, audioPath string) (*model.Promotion, error) {
	name := fmt.Sprintf("promo_%d_%s.mp3", time.Now().Unix(), library.Sanitize(title))
	dest := filepath.Join(m.dir, name)
	if err := os.Rename(audioPath, dest); err != nil {
		return nil, fmt.Errorf("failed to place promo audio: %w", err)
	}

	promo := &model.Promotion{
		Title:       title,
		Promoter:    promoter,
		Description: description,
		FilePath:    dest,
		ActiveFrom:  from,
		ActiveTo:    to,
		CreatedAt:   time.Now(),
	}
	if err := m.repo.Create(promo); err != nil {
		os.Remove(dest)
		return nil, err
	}

	logger.Info("promotion added",
		logger.Any("promoId", promo.ID),
		logger.String("title", title),
		logger.String("promoter", promoter))
	return promo, nil
}

// Cleanup deletes promotions whose window has fully passed, removing
// both the row and the audio file. Returns the number deleted.
func (m *Manager) Cleanup(t time.Time) int {
	expired, err := m.repo.ExpiredAt(t)
	if err != nil {
		logger.Error("failed to load expired promotions", logger.ErrorField(err))
		return 0
	}

	deleted := 0
	for _, p := range expired {
		if err := os.Remove(p.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove expired promo audio",
				logger.String("path", p.FilePath), logger.ErrorField(err))
		}
		if err := m.repo.Delete(p.ID); err != nil {
			logger.Error("failed to delete expired promotion",
				logger.Any("promoId", p.ID), logger.ErrorField(err))
			continue
		}
		deleted++
		logger.Info("expired promotion removed",
			logger.Any("promoId", p.ID), logger.String("title", p.Title))
	}
	return deleted
}
