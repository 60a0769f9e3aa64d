package station

import (
	"context"
	"sync"
	"testing"
	"time"

	"pulsefm/core/queue"
	"pulsefm/core/radioerr"
	"pulsefm/model"
)

type fakeHub struct {
	mu      sync.Mutex
	actions []string
}

func (h *fakeHub) Broadcast(action string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = append(h.actions, action)
}

func (h *fakeHub) count(action string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, a := range h.actions {
		if a == action {
			n++
		}
	}
	return n
}

type submissionsFixture struct {
	subs      *Submissions
	queue     *queue.Queue
	state     *StateStore
	blocklist *fakeBlocklist
	history   *fakeHistory
	hub       *fakeHub
}

func newSubmissionsFixture(resolver MetadataResolver) *submissionsFixture {
	f := &submissionsFixture{
		queue:     queue.New(nil, nil),
		state:     NewStateStore(nil),
		blocklist: &fakeBlocklist{blocked: map[string]bool{}},
		history:   &fakeHistory{recentlyPlayed: map[string]bool{}},
		hub:       &fakeHub{},
	}
	f.subs = NewSubmissions(f.queue, f.state, resolver, f.blocklist, f.history, f.hub, 3*time.Hour)
	return f
}

func TestSubmitRequestAccepted(t *testing.T) {
	resolver := &fakeSelResolver{byID: map[string]*model.TrackMetadata{
		"t1": track("t1", "First"),
	}}
	f := newSubmissionsFixture(resolver)

	entry, err := f.subs.SubmitRequest(context.Background(), "t1", "alice", "web")
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if entry.Position != 1 {
		t.Errorf("position = %d, want 1", entry.Position)
	}
	if entry.Requester != "alice" || entry.App != "web" {
		t.Errorf("requester/app = %s/%s", entry.Requester, entry.App)
	}
	if f.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1", f.queue.Len())
	}
	if got := f.hub.count(model.ActionQueue); got != 1 {
		t.Errorf("queue broadcasts = %d, want 1", got)
	}
}

func TestSubmitRequestUnknownTrack(t *testing.T) {
	f := newSubmissionsFixture(&fakeSelResolver{byID: map[string]*model.TrackMetadata{}})

	_, err := f.subs.SubmitRequest(context.Background(), "nope", "alice", "web")
	if got := radioerr.Code(err); got != radioerr.CodeInvalidTrackID {
		t.Fatalf("code = %d, want %d (err: %v)", got, radioerr.CodeInvalidTrackID, err)
	}
}

func TestSubmitRequestValidationLadder(t *testing.T) {
	resolver := &fakeSelResolver{byID: map[string]*model.TrackMetadata{
		"t1": track("t1", "First"),
	}}

	tests := []struct {
		name     string
		arrange  func(f *submissionsFixture)
		wantCode int
	}{
		{
			name:     "blocked",
			arrange:  func(f *submissionsFixture) { f.blocklist.blocked["t1"] = true },
			wantCode: radioerr.CodeBlocked,
		},
		{
			name: "now playing",
			arrange: func(f *submissionsFixture) {
				ctx := context.Background()
				f.state.SetNext(ctx, &model.PlaybackRecord{Track: *track("t1", "First")})
				f.state.PromoteNextToNow(ctx)
			},
			wantCode: radioerr.CodeNowPlaying,
		},
		{
			name: "already next",
			arrange: func(f *submissionsFixture) {
				f.state.SetNext(context.Background(), &model.PlaybackRecord{Track: *track("t1", "First")})
			},
			wantCode: radioerr.CodeAlreadyNext,
		},
		{
			name: "already queued",
			arrange: func(f *submissionsFixture) {
				f.queue.Enqueue(model.QueueEntry{Track: *track("t1", "First"), Requester: "bob"})
			},
			wantCode: radioerr.CodeAlreadyQueued,
		},
		{
			name:     "played recently",
			arrange:  func(f *submissionsFixture) { f.history.recentlyPlayed["t1"] = true },
			wantCode: radioerr.CodeRecentlyPlayed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSubmissionsFixture(resolver)
			tt.arrange(f)

			_, err := f.subs.SubmitRequest(context.Background(), "t1", "alice", "web")
			if got := radioerr.Code(err); got != tt.wantCode {
				t.Fatalf("code = %d, want %d (err: %v)", got, tt.wantCode, err)
			}
		})
	}
}

// A track being blocked outranks every other rejection reason.
func TestBlockedWinsOverRecentlyPlayed(t *testing.T) {
	resolver := &fakeSelResolver{byID: map[string]*model.TrackMetadata{
		"t1": track("t1", "First"),
	}}
	f := newSubmissionsFixture(resolver)
	f.blocklist.blocked["t1"] = true
	f.history.recentlyPlayed["t1"] = true

	_, err := f.subs.SubmitRequest(context.Background(), "t1", "alice", "web")
	if got := radioerr.Code(err); got != radioerr.CodeBlocked {
		t.Fatalf("code = %d, want %d", got, radioerr.CodeBlocked)
	}
}

func TestSubmitExternal(t *testing.T) {
	f := newSubmissionsFixture(&fakeSelResolver{})

	entry, err := f.subs.SubmitExternal(context.Background(),
		"https://cdn.example.com/mix.mp3", "Night Mix", "DJ Nova", 0, "alice", "web")
	if err != nil {
		t.Fatalf("SubmitExternal: %v", err)
	}
	if entry.Track.DirectSourceURL() != "https://cdn.example.com/mix.mp3" {
		t.Errorf("DirectSourceURL = %q", entry.Track.DirectSourceURL())
	}

	// The same link again must trip the duplicate check.
	_, err = f.subs.SubmitExternal(context.Background(),
		"https://cdn.example.com/mix.mp3", "Night Mix", "DJ Nova", 0, "bob", "web")
	if got := radioerr.Code(err); got != radioerr.CodeAlreadyQueued {
		t.Fatalf("resubmit code = %d, want %d", got, radioerr.CodeAlreadyQueued)
	}
}

func TestSubmitExternalNeedsURLAndTitle(t *testing.T) {
	f := newSubmissionsFixture(&fakeSelResolver{})

	_, err := f.subs.SubmitExternal(context.Background(), "", "Night Mix", "", 0, "alice", "web")
	if got := radioerr.Code(err); got != radioerr.CodeInvalidTrackID {
		t.Fatalf("code = %d, want %d", got, radioerr.CodeInvalidTrackID)
	}
}

func TestRemoveAuthorization(t *testing.T) {
	resolver := &fakeSelResolver{byID: map[string]*model.TrackMetadata{
		"t1": track("t1", "First"),
	}}
	f := newSubmissionsFixture(resolver)

	if _, err := f.subs.SubmitRequest(context.Background(), "t1", "alice", "web"); err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}

	if err := f.subs.Remove(1, "bob", false); radioerr.Code(err) != radioerr.CodeNotAuthorized {
		t.Fatalf("stranger removal: %v", err)
	}
	if err := f.subs.Remove(1, "bob", true); err != nil {
		t.Fatalf("moderator removal: %v", err)
	}
	if f.queue.Len() != 0 {
		t.Errorf("queue length = %d after removal", f.queue.Len())
	}
	if got := f.hub.count(model.ActionQueue); got != 2 {
		t.Errorf("queue broadcasts = %d, want 2", got)
	}
}
