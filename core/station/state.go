package station

import (
	"context"
	"sync"
	"time"

	"pulsefm/cache"
	"pulsefm/logger"
	"pulsefm/model"
)

// StateStore owns the two singleton playback slots. The in-memory copy
// is authoritative; Redis only mirrors it for external readers, so
// mirror failures are logged and swallowed.
type StateStore struct {
	mu     sync.RWMutex
	now    *model.PlaybackRecord
	next   *model.PlaybackRecord
	mirror *cache.PlaybackCache
}

// NewStateStore creates a state store. mirror may be nil to disable the
// Redis mirror.
func NewStateStore(mirror *cache.PlaybackCache) *StateStore {
	return &StateStore{mirror: mirror}
}

// Now returns a copy of the current playback record, or nil when
// nothing is playing.
func (s *StateStore) Now() *model.PlaybackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecord(s.now)
}

// Next returns a copy of the staged next record, or nil when no track
// is staged.
func (s *StateStore) Next() *model.PlaybackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecord(s.next)
}

// SetNow writes the now slot directly, bypassing the staged record.
// Promo spots use this so a staged track survives the break.
func (s *StateStore) SetNow(ctx context.Context, rec *model.PlaybackRecord) {
	s.mu.Lock()
	s.now = copyRecord(rec)
	s.mu.Unlock()

	s.mirrorNow(ctx, rec)
}

// SetNext stages the record that will play after the current one.
func (s *StateStore) SetNext(ctx context.Context, rec *model.PlaybackRecord) {
	s.mu.Lock()
	s.next = copyRecord(rec)
	s.mu.Unlock()

	s.mirrorNext(ctx, rec)
}

// PromoteNextToNow moves the staged record into the now slot and clears
// next in the same critical section, so no reader ever sees the track
// in both slots. PlayedAt is stamped here, at promotion. With nothing
// staged it is a no-op that keeps the current now slot, and returns nil.
func (s *StateStore) PromoteNextToNow(ctx context.Context) *model.PlaybackRecord {
	s.mu.Lock()
	if s.next == nil {
		s.mu.Unlock()
		return nil
	}
	promoted := s.next
	promoted.PlayedAt = time.Now()
	s.now = promoted
	s.next = nil
	s.mu.Unlock()

	s.mirrorNow(ctx, promoted)
	s.mirrorNext(ctx, nil)
	return copyRecord(promoted)
}

// UpdateNextDuration fixes up the staged record once the real file is
// on disk, where the probed duration replaces the catalog estimate. It
// applies only while trackID is still the staged track.
func (s *StateStore) UpdateNextDuration(ctx context.Context, trackID string, durationSec int) {
	s.mu.Lock()
	if s.next == nil || s.next.Track.ID != trackID {
		s.mu.Unlock()
		return
	}
	s.next.Track.DurationSec = durationSec
	s.next.RemainingSec = durationSec
	rec := copyRecord(s.next)
	s.mu.Unlock()

	s.mirrorNext(ctx, rec)
}

// ClearNow empties the now slot, for end-of-stream shutdown.
func (s *StateStore) ClearNow(ctx context.Context) {
	s.mu.Lock()
	s.now = nil
	s.mu.Unlock()

	s.mirrorNow(ctx, nil)
}

// UpdateProgress updates the elapsed and remaining seconds of the now
// slot. It is a no-op when nothing is playing.
func (s *StateStore) UpdateProgress(ctx context.Context, positionSec, remainingSec int) {
	s.mu.Lock()
	if s.now == nil {
		s.mu.Unlock()
		return
	}
	s.now.PositionSec = positionSec
	s.now.RemainingSec = remainingSec
	rec := copyRecord(s.now)
	s.mu.Unlock()

	s.mirrorNow(ctx, rec)
}

func (s *StateStore) mirrorNow(ctx context.Context, rec *model.PlaybackRecord) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SetNow(ctx, rec); err != nil {
		logger.Warn("failed to mirror now-playing state", logger.ErrorField(err))
	}
}

func (s *StateStore) mirrorNext(ctx context.Context, rec *model.PlaybackRecord) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SetNext(ctx, rec); err != nil {
		logger.Warn("failed to mirror next-coming state", logger.ErrorField(err))
	}
}

func copyRecord(rec *model.PlaybackRecord) *model.PlaybackRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	return &out
}
