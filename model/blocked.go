package model

import "time"

// BlockedTrack is a track excluded from selection and submission.
type BlockedTrack struct {
	TrackID   string    `json:"trackId" gorm:"primaryKey"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	BlockedBy string    `json:"blockedBy"`
	BlockedAt time.Time `json:"blockedAt"`
}

// TableName keeps the blocklist under a stable name.
func (BlockedTrack) TableName() string {
	return "blocked_tracks"
}
