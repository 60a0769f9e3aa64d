package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pulsefm/logger"
	"pulsefm/model"

	"github.com/zmb3/spotify/v2"
)

// ErrNotFound marks a lookup that resolved cleanly to no track. It is
// terminal; the resolver does not retry it.
var ErrNotFound = errors.New("track not found in catalog")

const (
	lookupAttempts = 3
	lookupBackoff  = 2 * time.Second
)

// catalogAPI is the slice of Client the resolver uses. Narrowed so the
// retry behaviour is testable without network.
type catalogAPI interface {
	trackByID(ctx context.Context, id string) (*model.TrackMetadata, error)
	searchTrack(ctx context.Context, query string) (*model.TrackMetadata, error)
}

// Resolver answers "which track is this" with bounded retries around
// the catalog client. Transient failures back off linearly; a clean
// no-result is returned immediately.
type Resolver struct {
	api      catalogAPI
	attempts int
	backoff  time.Duration
}

// NewResolver wraps a catalog client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{api: client, attempts: lookupAttempts, backoff: lookupBackoff}
}

// LookupByID fetches full metadata for a known catalog ID.
func (r *Resolver) LookupByID(ctx context.Context, id string) (*model.TrackMetadata, error) {
	return r.withRetry(ctx, fmt.Sprintf("lookup %s", id), func() (*model.TrackMetadata, error) {
		return r.api.trackByID(ctx, id)
	})
}

// Search resolves a free-text query to its best catalog match.
func (r *Resolver) Search(ctx context.Context, query string) (*model.TrackMetadata, error) {
	return r.withRetry(ctx, fmt.Sprintf("search %q", query), func() (*model.TrackMetadata, error) {
		return r.api.searchTrack(ctx, query)
	})
}

func (r *Resolver) withRetry(ctx context.Context, op string, call func() (*model.TrackMetadata, error)) (*model.TrackMetadata, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		track, err := call()
		if err == nil {
			return track, nil
		}
		if terminal(err) {
			return nil, err
		}
		lastErr = err

		logger.Warn("catalog request failed",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.ErrorField(err))

		if attempt < r.attempts {
			select {
			case <-time.After(time.Duration(attempt) * r.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("catalog unavailable after %d attempts: %w", r.attempts, lastErr)
}

// terminal reports errors that retrying cannot fix.
func terminal(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest
	}
	return false
}
