package model

import "time"

// QueueEntry is one listener-submitted track waiting to play.
// Positions are a dense 1..N sequence; any removal renumbers the tail.
type QueueEntry struct {
	Position    int           `json:"position" gorm:"primaryKey;autoIncrement:false"`
	Track       TrackMetadata `json:"track" gorm:"embedded;embeddedPrefix:track_"`
	Requester   string        `json:"requester"`
	App         string        `json:"app"` // submitting application
	SubmittedAt time.Time     `json:"submittedAt"`
}

// TableName keeps the persisted queue under a stable name.
func (QueueEntry) TableName() string {
	return "request_queue"
}
