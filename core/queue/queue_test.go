package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pulsefm/core/radioerr"
	"pulsefm/model"
)

type fakeRepo struct {
	mu     sync.Mutex
	saved  [][]model.QueueEntry
	load   []model.QueueEntry
	errOut error
}

func (f *fakeRepo) Save(entries []model.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, entries)
	return f.errOut
}

func (f *fakeRepo) Load() ([]model.QueueEntry, error) {
	return f.load, f.errOut
}

func entry(id, requester string) model.QueueEntry {
	return model.QueueEntry{
		Track:     model.TrackMetadata{ID: id, Title: "t-" + id},
		Requester: requester,
		App:       "test",
	}
}

func TestEnqueueAssignsDensePositions(t *testing.T) {
	q := New(nil, nil)

	if pos := q.Enqueue(entry("a", "u1")); pos != 1 {
		t.Errorf("first position = %d, want 1", pos)
	}
	if pos := q.Enqueue(entry("b", "u2")); pos != 2 {
		t.Errorf("second position = %d, want 2", pos)
	}

	snap := q.Snapshot()
	for i, e := range snap {
		if e.Position != i+1 {
			t.Errorf("snapshot[%d].Position = %d, want %d", i, e.Position, i+1)
		}
	}
}

func TestDequeueHeadRenumbers(t *testing.T) {
	q := New(nil, nil)
	q.Enqueue(entry("a", "u1"))
	q.Enqueue(entry("b", "u2"))
	q.Enqueue(entry("c", "u3"))

	head := q.DequeueHead()
	if head == nil || head.Track.ID != "a" {
		t.Fatalf("head = %+v, want track a", head)
	}

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len = %d, want 2", len(snap))
	}
	if snap[0].Track.ID != "b" || snap[0].Position != 1 {
		t.Errorf("new head = %s at %d, want b at 1", snap[0].Track.ID, snap[0].Position)
	}
	if snap[1].Position != 2 {
		t.Errorf("second position = %d, want 2", snap[1].Position)
	}
}

func TestDequeueHeadEmpty(t *testing.T) {
	q := New(nil, nil)
	if head := q.DequeueHead(); head != nil {
		t.Errorf("DequeueHead on empty queue = %+v, want nil", head)
	}
}

func TestRemoveAt(t *testing.T) {
	tests := []struct {
		name        string
		position    int
		requester   string
		isModerator bool
		wantCode    int
	}{
		{"own entry", 2, "u2", false, 0},
		{"moderator removes anyone", 2, "mod", true, 0},
		{"foreign entry denied", 2, "u1", false, radioerr.CodeNotAuthorized},
		{"position zero", 0, "u1", false, radioerr.CodePositionMissing},
		{"position past end", 9, "u1", false, radioerr.CodePositionMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(nil, nil)
			q.Enqueue(entry("a", "u1"))
			q.Enqueue(entry("b", "u2"))
			q.Enqueue(entry("c", "u3"))

			err := q.RemoveAt(tt.position, tt.requester, tt.isModerator)
			if got := radioerr.Code(err); got != tt.wantCode {
				t.Fatalf("RemoveAt code = %d (err %v), want %d", got, err, tt.wantCode)
			}

			if tt.wantCode == 0 {
				snap := q.Snapshot()
				if len(snap) != 2 {
					t.Fatalf("len after removal = %d, want 2", len(snap))
				}
				if snap[1].Track.ID != "c" || snap[1].Position != 2 {
					t.Errorf("entry after removal = %s at %d, want c at 2", snap[1].Track.ID, snap[1].Position)
				}
			} else if q.Len() != 3 {
				t.Errorf("failed removal changed the queue, len = %d", q.Len())
			}
		})
	}
}

func TestExists(t *testing.T) {
	q := New(nil, nil)
	q.Enqueue(entry("a", "u1"))

	if !q.Exists("a") {
		t.Error("Exists(a) = false after enqueue")
	}
	if q.Exists("zzz") {
		t.Error("Exists(zzz) = true for unknown track")
	}
}

func TestHeadPeeksWithoutRemoving(t *testing.T) {
	q := New(nil, nil)
	if q.Head() != nil {
		t.Error("Head on empty queue should be nil")
	}

	q.Enqueue(entry("a", "u1"))
	q.Enqueue(entry("b", "u2"))

	head := q.Head()
	if head == nil || head.Track.ID != "a" {
		t.Fatalf("Head = %+v, want track a", head)
	}
	if q.Len() != 2 {
		t.Errorf("Head changed the queue, len = %d", q.Len())
	}
}

func TestRemoveTrack(t *testing.T) {
	q := New(nil, nil)
	q.Enqueue(entry("a", "u1"))
	q.Enqueue(entry("b", "u2"))
	q.Enqueue(entry("c", "u3"))

	if !q.RemoveTrack("b") {
		t.Fatal("RemoveTrack(b) = false")
	}
	if q.RemoveTrack("b") {
		t.Error("second RemoveTrack(b) should report nothing removed")
	}

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len = %d, want 2", len(snap))
	}
	if snap[0].Track.ID != "a" || snap[1].Track.ID != "c" {
		t.Errorf("remaining = %s,%s, want a,c", snap[0].Track.ID, snap[1].Track.ID)
	}
	if snap[1].Position != 2 {
		t.Errorf("tail position = %d, want 2", snap[1].Position)
	}
}

func TestWriterPersistsMutations(t *testing.T) {
	repo := &fakeRepo{}
	q := New(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(entry("a", "u1"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		repo.mu.Lock()
		n := len(repo.saved)
		repo.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("write-behind save never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	repo.mu.Lock()
	last := repo.saved[len(repo.saved)-1]
	repo.mu.Unlock()
	if len(last) != 1 || last[0].Track.ID != "a" {
		t.Errorf("persisted snapshot = %+v, want single entry a", last)
	}
}

func TestRestorePrefersDatabase(t *testing.T) {
	repo := &fakeRepo{load: []model.QueueEntry{entry("x", "u1"), entry("y", "u2")}}
	q := New(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("restored len = %d, want 2", len(snap))
	}
	// Restore renumbers regardless of persisted positions.
	if snap[0].Position != 1 || snap[1].Position != 2 {
		t.Errorf("restored positions = %d,%d, want 1,2", snap[0].Position, snap[1].Position)
	}
}

type fakeMirror struct {
	entries []model.QueueEntry
	saves   int
}

func (f *fakeMirror) SaveQueue(ctx context.Context, entries []model.QueueEntry) error {
	f.saves++
	return nil
}

func (f *fakeMirror) LoadQueue(ctx context.Context) ([]model.QueueEntry, error) {
	return f.entries, nil
}

func TestRestoreFallsBackToMirror(t *testing.T) {
	repo := &fakeRepo{errOut: errors.New("mysql down")}
	mirror := &fakeMirror{entries: []model.QueueEntry{entry("m", "u1")}}
	q := New(repo, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	snap := q.Snapshot()
	if len(snap) != 1 || snap[0].Track.ID != "m" {
		t.Fatalf("restored from mirror = %+v, want entry m", snap)
	}
}
