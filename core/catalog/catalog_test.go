package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulsefm/model"
)

type fakeAPI struct {
	byIDCalls   int
	searchCalls int
	byID        func(call int) (*model.TrackMetadata, error)
	search      func(call int) (*model.TrackMetadata, error)
}

func (f *fakeAPI) trackByID(ctx context.Context, id string) (*model.TrackMetadata, error) {
	f.byIDCalls++
	return f.byID(f.byIDCalls)
}

func (f *fakeAPI) searchTrack(ctx context.Context, query string) (*model.TrackMetadata, error) {
	f.searchCalls++
	return f.search(f.searchCalls)
}

func testResolver(api *fakeAPI) *Resolver {
	return &Resolver{api: api, attempts: 3, backoff: time.Millisecond}
}

func TestLookupRetriesTransientErrors(t *testing.T) {
	want := &model.TrackMetadata{ID: "abc", Title: "Track"}
	api := &fakeAPI{
		byID: func(call int) (*model.TrackMetadata, error) {
			if call < 3 {
				return nil, errors.New("connection reset")
			}
			return want, nil
		},
	}

	got, err := testResolver(api).LookupByID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("LookupByID: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("got track %q, want %q", got.ID, want.ID)
	}
	if api.byIDCalls != 3 {
		t.Errorf("byID called %d times, want 3", api.byIDCalls)
	}
}

func TestLookupGivesUpAfterAttempts(t *testing.T) {
	api := &fakeAPI{
		byID: func(int) (*model.TrackMetadata, error) {
			return nil, errors.New("connection reset")
		},
	}

	if _, err := testResolver(api).LookupByID(context.Background(), "abc"); err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if api.byIDCalls != 3 {
		t.Errorf("byID called %d times, want 3", api.byIDCalls)
	}
}

func TestSearchNoResultNotRetried(t *testing.T) {
	api := &fakeAPI{
		search: func(int) (*model.TrackMetadata, error) {
			return nil, ErrNotFound
		},
	}

	_, err := testResolver(api).Search(context.Background(), "nothing matches this")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if api.searchCalls != 1 {
		t.Errorf("search called %d times, want 1", api.searchCalls)
	}
}

func TestLookupHonoursContextCancel(t *testing.T) {
	api := &fakeAPI{
		byID: func(int) (*model.TrackMetadata, error) {
			return nil, errors.New("connection reset")
		},
	}
	r := &Resolver{api: api, attempts: 3, backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.LookupByID(ctx, "abc")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

type fakeLister struct {
	calls int
	lists [][]string
	err   error
}

func (f *fakeLister) ListTrackIDs(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	list := f.lists[f.calls%len(f.lists)]
	f.calls++
	return list, nil
}

func TestWalkerCoversEveryTrackBeforeRebuild(t *testing.T) {
	lister := &fakeLister{lists: [][]string{{"a", "b", "c", "d"}}}
	w := NewWalker(lister)
	ctx := context.Background()

	seen := make(map[string]int)
	for i := 0; i < 4; i++ {
		id, err := w.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen[id]++
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		if seen[id] != 1 {
			t.Errorf("track %q seen %d times in one pass, want 1", id, seen[id])
		}
	}
	if lister.calls != 1 {
		t.Errorf("rotation fetched %d times during one pass, want 1", lister.calls)
	}

	// A fifth draw exhausts the pass and rebuilds.
	if _, err := w.Next(ctx); err != nil {
		t.Fatalf("Next after exhaustion: %v", err)
	}
	if lister.calls != 2 {
		t.Errorf("rotation fetched %d times after exhaustion, want 2", lister.calls)
	}
}

func TestWalkerEmptyCatalog(t *testing.T) {
	w := NewWalker(&fakeLister{lists: [][]string{{}}})
	if _, err := w.Next(context.Background()); !errors.Is(err, ErrCatalogEmpty) {
		t.Fatalf("want ErrCatalogEmpty, got %v", err)
	}
}

func TestWalkerPropagatesFetchError(t *testing.T) {
	w := NewWalker(&fakeLister{err: errors.New("api down")})
	if _, err := w.Next(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}
