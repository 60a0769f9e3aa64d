package model

import "time"

// HistoryEntry records one play of a track, keyed by track ID. Entries
// are upserted on every play so the table stays most-recent-first under
// a played_at ordering.
type HistoryEntry struct {
	TrackID    string    `json:"trackId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	ArtworkURL string    `json:"albumArt"`
	PlayedAt   time.Time `json:"playedAt"`
}
