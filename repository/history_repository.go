package repository

import (
	"database/sql"
	"fmt"
	"time"

	"pulsefm/db"
	"pulsefm/model"
)

// HistoryRepository defines play-history data operations. History is
// keyed by track ID and upserted on every play so played_at ordering
// keeps the table most-recent-first.
type HistoryRepository interface {
	Upsert(entry *model.HistoryEntry) error
	PlayedWithin(trackID string, window time.Duration) (bool, error)
	Recent(limit int) ([]*model.HistoryEntry, error)
	Get(trackID string) (*model.HistoryEntry, error)
}

// mysqlHistoryRepository implements HistoryRepository for MySQL.
type mysqlHistoryRepository struct {
	DB *sql.DB
}

// NewMySQLHistoryRepository creates a new instance of mysqlHistoryRepository.
func NewMySQLHistoryRepository() HistoryRepository {
	return &mysqlHistoryRepository{DB: db.DB}
}

// Upsert removes any prior row for the track and inserts the new play.
func (r *mysqlHistoryRepository) Upsert(entry *model.HistoryEntry) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for history upsert: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM play_history WHERE track_id = ?`, entry.TrackID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete prior history row for %s: %w", entry.TrackID, err)
	}

	query := `INSERT INTO play_history (track_id, title, artist, album, artwork_url, played_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query, entry.TrackID, entry.Title, entry.Artist, entry.Album, entry.ArtworkURL, entry.PlayedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert history row for %s: %w", entry.TrackID, err)
	}

	return tx.Commit()
}

// PlayedWithin reports whether the track played inside the window.
func (r *mysqlHistoryRepository) PlayedWithin(trackID string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window)
	query := `SELECT COUNT(*) FROM play_history WHERE track_id = ? AND played_at > ?`

	var count int
	if err := r.DB.QueryRow(query, trackID, cutoff).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check history window for %s: %w", trackID, err)
	}
	return count > 0, nil
}

// Recent returns the most recent plays, newest first.
func (r *mysqlHistoryRepository) Recent(limit int) ([]*model.HistoryEntry, error) {
	query := `SELECT track_id, title, artist, album, artwork_url, played_at
	           FROM play_history ORDER BY played_at DESC LIMIT ?`
	rows, err := r.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.HistoryEntry, 0)
	for rows.Next() {
		entry := &model.HistoryEntry{}
		err := rows.Scan(&entry.TrackID, &entry.Title, &entry.Artist, &entry.Album, &entry.ArtworkURL, &entry.PlayedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during history rows iteration: %w", err)
	}

	return entries, nil
}

// Get returns the history entry for a track, nil when never played.
func (r *mysqlHistoryRepository) Get(trackID string) (*model.HistoryEntry, error) {
	query := `SELECT track_id, title, artist, album, artwork_url, played_at
	           FROM play_history WHERE track_id = ?`
	row := r.DB.QueryRow(query, trackID)

	entry := &model.HistoryEntry{}
	err := row.Scan(&entry.TrackID, &entry.Title, &entry.Artist, &entry.Album, &entry.ArtworkURL, &entry.PlayedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan history row for %s: %w", trackID, err)
	}
	return entry, nil
}
