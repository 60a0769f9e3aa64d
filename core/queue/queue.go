package queue

import (
	"context"
	"sync"
	"time"

	"pulsefm/core/radioerr"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"
)

// Mirror is the secondary queue store kept alongside MySQL, read only
// when the primary cannot be.
type Mirror interface {
	SaveQueue(ctx context.Context, entries []model.QueueEntry) error
	LoadQueue(ctx context.Context) ([]model.QueueEntry, error)
}

// Queue is the in-memory listener request queue. Positions are dense,
// starting at 1; every mutation renumbers. The in-memory slice is
// authoritative; MySQL and the redis mirror are written behind by a
// coalescing background writer and only consulted at boot.
type Queue struct {
	mu      sync.Mutex
	entries []model.QueueEntry

	repo   repository.QueueRepository
	mirror Mirror
	dirty  chan struct{}
}

// New builds an empty queue. Either store may be nil, which disables
// that side of persistence.
func New(repo repository.QueueRepository, mirror Mirror) *Queue {
	return &Queue{
		repo:   repo,
		mirror: mirror,
		dirty:  make(chan struct{}, 1),
	}
}

// Start restores persisted entries and launches the write-behind
// worker. The worker exits with ctx.
func (q *Queue) Start(ctx context.Context) {
	q.restore(ctx)
	go q.writer(ctx)
}

func (q *Queue) restore(ctx context.Context) {
	var entries []model.QueueEntry
	loaded := false

	if q.repo != nil {
		if got, err := q.repo.Load(); err != nil {
			logger.Warn("queue restore from database failed", logger.ErrorField(err))
		} else {
			entries = got
			loaded = true
		}
	}
	if !loaded && q.mirror != nil {
		if got, err := q.mirror.LoadQueue(ctx); err != nil {
			logger.Warn("queue restore from mirror failed", logger.ErrorField(err))
		} else {
			entries = got
		}
	}

	q.mu.Lock()
	q.entries = entries
	q.renumberLocked()
	q.mu.Unlock()

	if len(entries) > 0 {
		logger.Info("request queue restored", logger.Int("entries", len(entries)))
	}
}

// Enqueue appends an entry and returns its assigned position.
func (q *Queue) Enqueue(entry model.QueueEntry) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry.Position = len(q.entries) + 1
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now()
	}
	q.entries = append(q.entries, entry)

	q.markDirtyLocked()
	return entry.Position
}

// DequeueHead pops position 1, renumbering the remainder. Nil when the
// queue is empty.
func (q *Queue) DequeueHead() *model.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	q.renumberLocked()

	q.markDirtyLocked()
	return &head
}

// Head returns a copy of position 1 without removing it. Nil when the
// queue is empty.
func (q *Queue) Head() *model.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	return &head
}

// RemoveTrack deletes the first entry holding trackID, so a dispatched
// request can be settled after its download lands regardless of how
// the positions shifted meanwhile.
func (q *Queue) RemoveTrack(trackID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, entry := range q.entries {
		if entry.Track.ID == trackID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.renumberLocked()
			q.markDirtyLocked()
			return true
		}
	}
	return false
}

// RemoveAt deletes the entry at position. Only the original requester
// or a moderator may remove an entry.
func (q *Queue) RemoveAt(position int, requesterID string, isModerator bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if position < 1 || position > len(q.entries) {
		return radioerr.Ef(radioerr.CodePositionMissing, "no queue entry at position %d", position)
	}

	entry := q.entries[position-1]
	if !isModerator && entry.Requester != requesterID {
		return radioerr.E(radioerr.CodeNotAuthorized, "only the requester or a moderator can remove this entry")
	}

	q.entries = append(q.entries[:position-1], q.entries[position:]...)
	q.renumberLocked()

	q.markDirtyLocked()
	logger.Info("queue entry removed",
		logger.Int("position", position),
		logger.String("trackId", entry.Track.ID),
		logger.Bool("byModerator", isModerator))
	return nil
}

// Exists reports whether the track is already queued.
func (q *Queue) Exists(trackID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, entry := range q.entries {
		if entry.Track.ID == trackID {
			return true
		}
	}
	return false
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the queue in position order.
func (q *Queue) Snapshot() []model.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) renumberLocked() {
	for i := range q.entries {
		q.entries[i].Position = i + 1
	}
}

// markDirtyLocked nudges the writer; a pending nudge already covers
// this mutation.
func (q *Queue) markDirtyLocked() {
	select {
	case q.dirty <- struct{}{}:
	default:
	}
}

// writer persists the current snapshot after each batch of mutations.
// Persistence failure never blocks or fails a mutation.
func (q *Queue) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.dirty:
		}

		snapshot := q.Snapshot()
		if q.repo != nil {
			if err := q.repo.Save(snapshot); err != nil {
				logger.Error("queue save to database failed", logger.ErrorField(err))
			}
		}
		if q.mirror != nil {
			if err := q.mirror.SaveQueue(ctx, snapshot); err != nil {
				logger.Warn("queue save to mirror failed", logger.ErrorField(err))
			}
		}
	}
}
