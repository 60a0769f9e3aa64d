package station

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulsefm/core/catalog"
	"pulsefm/core/queue"
	"pulsefm/core/radioerr"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"
)

// Broadcaster pushes station notifications to every connected session.
type Broadcaster interface {
	Broadcast(action string, data interface{})
}

// Submissions is the intake for listener track requests. Every request
// runs the same validation ladder before it may join the queue; the
// first failing rule wins and its code reaches the client unchanged.
type Submissions struct {
	queue     *queue.Queue
	state     *StateStore
	resolver  MetadataResolver
	blocklist repository.BlocklistRepository
	history   repository.HistoryRepository
	hub       Broadcaster

	resubmitWindow time.Duration
}

func NewSubmissions(q *queue.Queue, state *StateStore, resolver MetadataResolver,
	blocklist repository.BlocklistRepository, history repository.HistoryRepository,
	hub Broadcaster, resubmitWindow time.Duration) *Submissions {
	return &Submissions{
		queue:          q,
		state:          state,
		resolver:       resolver,
		blocklist:      blocklist,
		history:        history,
		hub:            hub,
		resubmitWindow: resubmitWindow,
	}
}

// SubmitRequest validates and enqueues a catalog track by its ID.
func (s *Submissions) SubmitRequest(ctx context.Context, catalogID, requester, app string) (*model.QueueEntry, error) {
	if err := s.validate(catalogID); err != nil {
		return nil, err
	}

	track, err := s.resolver.LookupByID(ctx, catalogID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, radioerr.Ef(radioerr.CodeInvalidTrackID, "no track with id %s", catalogID)
		}
		return nil, fmt.Errorf("resolve track %s: %w", catalogID, err)
	}

	return s.accept(*track, requester, app), nil
}

// SubmitExternal validates and enqueues a track backed by a direct
// media URL instead of a catalog entry. durationSec may be zero when
// the caller does not know it.
func (s *Submissions) SubmitExternal(ctx context.Context, sourceURL, title, artist string, durationSec int, requester, app string) (*model.QueueEntry, error) {
	if sourceURL == "" || title == "" {
		return nil, radioerr.E(radioerr.CodeInvalidTrackID, "external submissions need a source url and a title")
	}

	track := model.TrackFromExternal(sourceURL, title, artist, durationSec)
	if err := s.validate(track.ID); err != nil {
		return nil, err
	}

	return s.accept(*track, requester, app), nil
}

// Remove deletes a queue entry on behalf of its requester or a
// moderator and announces the new queue.
func (s *Submissions) Remove(position int, requesterID string, isModerator bool) error {
	if err := s.queue.RemoveAt(position, requesterID, isModerator); err != nil {
		return err
	}
	s.broadcastQueue()
	return nil
}

// validate runs the request ladder against a track ID. Store errors on
// the soft checks never reject a request on their own.
func (s *Submissions) validate(trackID string) error {
	if s.blocklist != nil {
		blocked, err := s.blocklist.IsBlocked(trackID)
		if err != nil {
			logger.Warn("blocklist check failed", logger.String("trackId", trackID), logger.ErrorField(err))
		} else if blocked {
			return radioerr.E(radioerr.CodeBlocked, "this track is blocked from the station")
		}
	}

	if now := s.state.Now(); now != nil && now.Track.ID == trackID {
		return radioerr.E(radioerr.CodeNowPlaying, "this track is playing right now")
	}
	if next := s.state.Next(); next != nil && next.Track.ID == trackID {
		return radioerr.E(radioerr.CodeAlreadyNext, "this track is already up next")
	}
	if s.queue.Exists(trackID) {
		return radioerr.E(radioerr.CodeAlreadyQueued, "this track is already in the queue")
	}

	if s.history != nil {
		played, err := s.history.PlayedWithin(trackID, s.resubmitWindow)
		if err != nil {
			logger.Warn("history check failed", logger.String("trackId", trackID), logger.ErrorField(err))
		} else if played {
			return radioerr.Ef(radioerr.CodeRecentlyPlayed, "this track already played within the last %s", s.resubmitWindow)
		}
	}

	return nil
}

func (s *Submissions) accept(track model.TrackMetadata, requester, app string) *model.QueueEntry {
	entry := model.QueueEntry{
		Track:       track,
		Requester:   requester,
		App:         app,
		SubmittedAt: time.Now(),
	}
	entry.Position = s.queue.Enqueue(entry)

	logger.Info("request accepted",
		logger.String("trackId", track.ID),
		logger.String("title", track.Title),
		logger.String("requester", requester),
		logger.Int("position", entry.Position))

	s.broadcastQueue()
	return &entry
}

func (s *Submissions) broadcastQueue() {
	if s.hub != nil {
		s.hub.Broadcast(model.ActionQueue, s.queue.Snapshot())
	}
}
