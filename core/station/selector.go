package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pulsefm/core/agent"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"
)

// selectAttempts bounds the reject-and-retry loop so a fully suppressed
// catalog degrades to silence instead of spinning.
const selectAttempts = 30

// recentForAgent is how many history entries the DJ agent sees.
const recentForAgent = 10

// CatalogWalker yields catalog track IDs in shuffled rotation order.
type CatalogWalker interface {
	Next(ctx context.Context) (string, error)
}

// MetadataResolver resolves catalog IDs and free-text queries to track
// metadata.
type MetadataResolver interface {
	LookupByID(ctx context.Context, id string) (*model.TrackMetadata, error)
	Search(ctx context.Context, query string) (*model.TrackMetadata, error)
}

// TrackSuggester proposes the next track from recent plays.
type TrackSuggester interface {
	SuggestTrack(ctx context.Context, recent []*model.HistoryEntry) (*agent.Suggestion, error)
}

// Selector picks the next track for unattended rotation: an optional
// agent suggestion for up to maxAgentPicks consecutive turns, otherwise
// the shuffled catalog walk. Whichever path wins, blocked tracks and
// tracks played inside the reselect window are rejected and retried.
type Selector struct {
	walker    CatalogWalker
	resolver  MetadataResolver
	suggester TrackSuggester // nil disables the agent path
	blocklist repository.BlocklistRepository
	history   repository.HistoryRepository

	reselectWindow time.Duration
	maxAgentPicks  int

	mu         sync.Mutex
	agentPicks int // consecutive successful agent selections
}

// NewSelector wires a selector. suggester may be nil.
func NewSelector(
	walker CatalogWalker,
	resolver MetadataResolver,
	suggester TrackSuggester,
	blocklist repository.BlocklistRepository,
	history repository.HistoryRepository,
	reselectWindow time.Duration,
	maxAgentPicks int,
) *Selector {
	return &Selector{
		walker:         walker,
		resolver:       resolver,
		suggester:      suggester,
		blocklist:      blocklist,
		history:        history,
		reselectWindow: reselectWindow,
		maxAgentPicks:  maxAgentPicks,
	}
}

// SelectNext returns the next track to acquire. An error means nothing
// playable could be found and the caller should fall back to silence.
func (s *Selector) SelectNext(ctx context.Context) (*model.TrackMetadata, error) {
	agentBurned := false

	for attempt := 0; attempt < selectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			track     *model.TrackMetadata
			fromAgent bool
		)
		if !agentBurned && s.agentTurn() {
			track = s.agentPick(ctx)
			if track == nil {
				// One agent failure per selection; the walk takes over.
				agentBurned = true
			} else {
				fromAgent = true
			}
		}
		if track == nil {
			var err error
			track, err = s.walkPick(ctx)
			if err != nil {
				return nil, err
			}
			if track == nil {
				continue
			}
		}

		if reason := s.suppressed(track.ID); reason != "" {
			logger.Info("selection rejected",
				logger.String("title", track.Title),
				logger.String("artist", track.Artist),
				logger.String("reason", reason))
			if fromAgent {
				agentBurned = true
			}
			continue
		}

		s.recordPath(fromAgent)
		logger.Info("next track selected",
			logger.String("title", track.Title),
			logger.String("artist", track.Artist),
			logger.Bool("agentPick", fromAgent))
		return track, nil
	}

	return nil, fmt.Errorf("no playable track found after %d attempts", selectAttempts)
}

func (s *Selector) agentTurn() bool {
	if s.suggester == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentPicks < s.maxAgentPicks
}

func (s *Selector) recordPath(fromAgent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fromAgent {
		s.agentPicks++
	} else {
		s.agentPicks = 0
	}
}

// agentPick returns nil on any agent or resolution failure; the caller
// falls back to the catalog walk.
func (s *Selector) agentPick(ctx context.Context) *model.TrackMetadata {
	recent, err := s.history.Recent(recentForAgent)
	if err != nil {
		logger.Warn("failed to load recent history for agent", logger.ErrorField(err))
	}

	suggestion, err := s.suggester.SuggestTrack(ctx, recent)
	if err != nil {
		logger.Warn("agent suggestion failed, using catalog walk", logger.ErrorField(err))
		return nil
	}

	track, err := s.resolver.Search(ctx, suggestion.Title+" "+suggestion.Artist)
	if err != nil {
		logger.Warn("agent suggestion did not resolve",
			logger.String("title", suggestion.Title),
			logger.String("artist", suggestion.Artist),
			logger.ErrorField(err))
		return nil
	}
	return track
}

// walkPick advances the rotation one step. A nil, nil return means the
// walked ID could not be resolved and the caller should try again.
func (s *Selector) walkPick(ctx context.Context) (*model.TrackMetadata, error) {
	id, err := s.walker.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog walk failed: %w", err)
	}

	track, err := s.resolver.LookupByID(ctx, id)
	if err != nil {
		logger.Warn("walked track did not resolve",
			logger.String("trackId", id), logger.ErrorField(err))
		return nil, nil
	}
	return track, nil
}

// suppressed returns a human-readable reason when the track must not be
// selected, or "" when it is playable.
func (s *Selector) suppressed(trackID string) string {
	if blocked, err := s.blocklist.IsBlocked(trackID); err != nil {
		logger.Warn("blocklist check failed", logger.ErrorField(err))
	} else if blocked {
		return "blocked"
	}

	if played, err := s.history.PlayedWithin(trackID, s.reselectWindow); err != nil {
		logger.Warn("history window check failed", logger.ErrorField(err))
	} else if played {
		return fmt.Sprintf("played within %s", s.reselectWindow)
	}
	return ""
}
