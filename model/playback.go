package model

import "time"

// RequesterAuto marks a system-selected track in a playback record.
const RequesterAuto = "AutoDJ"

// PlaybackRecord is one of the two singleton playback slots ("now" and
// "next"). At most one of each exists at any time; "next" is cleared the
// instant its track becomes "now".
type PlaybackRecord struct {
	Track        TrackMetadata `json:"track"`
	Requester    string        `json:"requester"`
	App          string        `json:"app"`
	StationName  string        `json:"stationName"`
	PlayedAt     time.Time     `json:"playedAt"`
	PositionSec  int           `json:"positionSec"`
	RemainingSec int           `json:"remainingSec"`
}

// SystemSelected reports whether the record came from the automatic
// selector rather than a listener request.
func (r *PlaybackRecord) SystemSelected() bool {
	return r != nil && r.Requester == RequesterAuto
}
