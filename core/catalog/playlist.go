package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"pulsefm/logger"
)

// ErrCatalogEmpty means the configured playlists hold no playable
// tracks at all. The station has nothing left but silence.
var ErrCatalogEmpty = errors.New("configured playlists contain no tracks")

// TrackLister supplies the raw track IDs the walker shuffles.
type TrackLister interface {
	ListTrackIDs(ctx context.Context) ([]string, error)
}

// Walker hands out the station's base rotation one track ID at a time,
// in a shuffled order that is rebuilt and reshuffled once exhausted.
type Walker struct {
	lister TrackLister

	mu    sync.Mutex
	order []string
	pos   int
	rnd   *rand.Rand
}

// NewWalker builds an unprimed walker; the first Next triggers the
// initial playlist fetch.
func NewWalker(lister TrackLister) *Walker {
	return &Walker{
		lister: lister,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next pops the next track ID of the shuffled rotation.
func (w *Walker) Next(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pos >= len(w.order) {
		if err := w.rebuildLocked(ctx); err != nil {
			return "", err
		}
	}

	id := w.order[w.pos]
	w.pos++
	return id, nil
}

// Remaining reports how many IDs are left before the next rebuild.
func (w *Walker) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order) - w.pos
}

func (w *Walker) rebuildLocked(ctx context.Context) error {
	ids, err := w.lister.ListTrackIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild rotation: %w", err)
	}
	if len(ids) == 0 {
		return ErrCatalogEmpty
	}

	w.order = append(w.order[:0], ids...)
	w.rnd.Shuffle(len(w.order), func(i, j int) {
		w.order[i], w.order[j] = w.order[j], w.order[i]
	})
	w.pos = 0

	logger.Info("rotation rebuilt", logger.Int("tracks", len(w.order)))
	return nil
}
